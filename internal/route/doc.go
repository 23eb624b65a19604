// Package route defines the routing configuration of a workload and
// its validation rules. A routing configuration maps path patterns to
// absolute upstream target URLs and is the exact JSON shape exchanged
// with the data layer.
package route
