// Package dispatch wires route resolution end to end: cache lookup,
// provider fetch on miss, path matching, target construction, and the
// upstream call. It is the only component that touches all of cache,
// provider, matcher, and forwarder.
package dispatch
