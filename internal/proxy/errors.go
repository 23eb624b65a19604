package proxy

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for upstream transport failures.
var (
	// ErrUpstreamTimeout indicates that the upstream call was aborted
	// by the configured timeout.
	ErrUpstreamTimeout = errors.New("upstream request timed out")

	// ErrUpstreamUnreachable indicates a network-level failure to
	// reach the upstream.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
)

// ProxyError is a transport-level failure to reach or complete the
// call to a matched target. It carries an HTTP-style status code for
// the caller to surface.
type ProxyError struct {
	StatusCode int
	Target     string
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Target != "" {
		if e.Cause != nil {
			return fmt.Sprintf("proxy error target=%s: %s: %v", e.Target, e.Message, e.Cause)
		}
		return fmt.Sprintf("proxy error target=%s: %s", e.Target, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("proxy error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("proxy error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// NewTimeoutError creates a ProxyError for an aborted upstream call.
func NewTimeoutError(target string, cause error) *ProxyError {
	return &ProxyError{
		StatusCode: http.StatusGatewayTimeout,
		Target:     target,
		Message:    "Request timed out",
		Cause:      errors.Join(ErrUpstreamTimeout, cause),
	}
}

// NewUnreachableError creates a ProxyError for a network-level failure.
func NewUnreachableError(target string, cause error) *ProxyError {
	return &ProxyError{
		StatusCode: http.StatusBadGateway,
		Target:     target,
		Message:    "Failed to connect to upstream",
		Cause:      errors.Join(ErrUpstreamUnreachable, cause),
	}
}

// NewBadResponseError creates a ProxyError for an upstream response
// that could not be consumed.
func NewBadResponseError(target, message string, cause error) *ProxyError {
	return &ProxyError{
		StatusCode: http.StatusBadGateway,
		Target:     target,
		Message:    message,
		Cause:      cause,
	}
}

// IsProxyError checks if an error is a ProxyError.
func IsProxyError(err error) bool {
	var proxyErr *ProxyError
	return errors.As(err, &proxyErr)
}

// AsProxyError extracts a ProxyError from an error chain.
func AsProxyError(err error) (*ProxyError, bool) {
	var proxyErr *ProxyError
	ok := errors.As(err, &proxyErr)
	return proxyErr, ok
}
