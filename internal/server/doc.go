// Package server hosts the two HTTP surfaces of the edge router: the
// edge listener that dispatches workload traffic, and the admin
// listener with cache management and probe endpoints.
package server
