// Package provider fetches workload route configuration from an
// external control-plane service. The HTTP provider is the source of
// truth on cache misses; the breaker provider shields it from
// cascading failures.
package provider
