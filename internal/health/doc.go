// Package health exposes liveness and readiness probes for the admin
// server. Readiness aggregates registered checks (cache backend,
// control plane) and degrades to 503 when any fails.
package health
