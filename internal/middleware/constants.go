package middleware

// Header names used across the middleware chain.
const (
	HeaderContentType   = "Content-Type"
	HeaderRetryAfter    = "Retry-After"
	HeaderXForwardedFor = "X-Forwarded-For"
)

// ContentTypeJSON is the JSON content type.
const ContentTypeJSON = "application/json"

// Canned JSON error bodies.
const (
	ErrInternalServer    = `{"error":"internal server error"}`
	ErrRateLimitExceeded = `{"error":"rate limit exceeded"}`
)
