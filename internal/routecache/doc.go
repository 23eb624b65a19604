// Package routecache caches validated workload routing configurations
// for a bounded time so the route provider is not consulted on every
// request. Entries expire after a TTL and can be invalidated explicitly
// when a workload's configuration changes.
package routecache
