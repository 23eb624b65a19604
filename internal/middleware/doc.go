// Package middleware provides the HTTP middleware chain for the edge
// server: request IDs, access logging, panic recovery, and rate
// limiting.
package middleware
