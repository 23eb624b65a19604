// Package router resolves request paths against a workload's routing
// configuration. Patterns are compiled to anchored regular expressions,
// ranked by specificity, and matched deterministically; compilation and
// matching are free of I/O.
package router
