package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

// Request is the normalized inbound request handed to the forwarder.
type Request struct {
	// Method is the HTTP method, forwarded unchanged.
	Method string

	// Path is the request path used for route matching.
	Path string

	// Headers are the flattened inbound headers.
	Headers map[string]string

	// Query holds the query parameters; array values produce repeated
	// key=value pairs in order.
	Query url.Values

	// Body is the raw request body, forwarded unchanged.
	Body []byte

	// Host is the original Host header, carried as X-Forwarded-Host.
	Host string

	// RemoteAddr is the caller's address, carried as X-Forwarded-For.
	RemoteAddr string

	// TLS reports whether the original connection was TLS, deciding
	// X-Forwarded-Proto.
	TLS bool
}

// SetJSONBody serializes a structured value as the JSON request body
// and marks the content type accordingly.
func (r *Request) SetJSONBody(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Body = data
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers["Content-Type"] = "application/json"
	return nil
}

// RequestFromHTTP normalizes an *http.Request. The body is drained.
func RequestFromHTTP(r *http.Request) (*Request, error) {
	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		body = data
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[len(values)-1]
		}
	}

	return &Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Query:      r.URL.Query(),
		Body:       body,
		Host:       r.Host,
		RemoteAddr: r.RemoteAddr,
		TLS:        r.TLS != nil,
	}, nil
}

// Response is the normalized upstream response.
type Response struct {
	// Status is the upstream HTTP status code.
	Status int

	// StatusText is the standard reason phrase for Status.
	StatusText string

	// Headers are the upstream headers flattened last-wins.
	Headers map[string]string

	// Body is the decoded JSON value for application/json responses,
	// or the raw text otherwise.
	Body any

	// RawBody is the upstream body exactly as received.
	RawBody []byte
}
