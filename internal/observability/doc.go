// Package observability provides logging, metrics, and tracing for the
// edge router.
package observability
