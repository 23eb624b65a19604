package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"encoding/json"

	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/router"
)

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 30 * time.Second

// hopHeaders are connection-management headers that must not be
// forwarded to the upstream.
var hopHeaders = []string{
	"Host",
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder sends requests to resolved upstream targets.
type Forwarder struct {
	client  *http.Client
	timeout time.Duration
	logger  observability.Logger
}

// Option is a functional option for configuring the forwarder.
type Option func(*Forwarder)

// WithTimeout sets the per-call upstream timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Forwarder) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithTransport sets the HTTP transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(f *Forwarder) {
		f.client.Transport = transport
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// NewForwarder creates a forwarder with a pooled transport.
func NewForwarder(opts ...Option) *Forwarder {
	f := &Forwarder{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: DefaultTimeout,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Forward sends the request to targetURL and normalizes the response.
// Transport failures return a *ProxyError: 504 when the configured
// timeout aborted the call, 502 for connect/DNS/TLS failures. Caller
// cancellation propagates unchanged.
func (f *Forwarder) Forward(
	ctx context.Context, match *router.Match, req *Request, targetURL string,
) (*Response, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	upstreamURL := appendQuery(targetURL, req.Query)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	upstreamReq, err := http.NewRequestWithContext(ctx, req.Method, upstreamURL, body)
	if err != nil {
		return nil, NewUnreachableError(targetURL, err)
	}

	f.prepareHeaders(upstreamReq, req)

	resp, err := f.client.Do(upstreamReq)
	if err != nil {
		getProxyMetrics().errorsTotal.WithLabelValues(errorLabel(err)).Inc()
		return nil, f.classify(targetURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	normalized, err := normalizeResponse(resp, targetURL)
	if err != nil {
		getProxyMetrics().errorsTotal.WithLabelValues("bad_response").Inc()
		return nil, err
	}

	getProxyMetrics().forwardDuration.Observe(time.Since(start).Seconds())
	getProxyMetrics().upstreamStatus.WithLabelValues(statusClass(resp.StatusCode)).Inc()

	f.logger.Debug("request forwarded",
		observability.String("target", targetURL),
		observability.String("pattern", match.Pattern),
		observability.Int("status", resp.StatusCode),
		observability.Duration("duration", time.Since(start)))

	return normalized, nil
}

// prepareHeaders copies inbound headers minus the hop-by-hop set and
// stamps the X-Forwarded-* headers.
func (f *Forwarder) prepareHeaders(upstreamReq *http.Request, req *Request) {
	skip := make(map[string]bool, len(hopHeaders))
	for _, h := range hopHeaders {
		skip[strings.ToLower(h)] = true
	}

	for name, value := range req.Headers {
		if skip[strings.ToLower(name)] {
			continue
		}
		upstreamReq.Header.Set(name, value)
	}

	if req.Host != "" {
		upstreamReq.Header.Set("X-Forwarded-Host", req.Host)
	}

	if req.TLS {
		upstreamReq.Header.Set("X-Forwarded-Proto", "https")
	} else {
		upstreamReq.Header.Set("X-Forwarded-Proto", "http")
	}

	if clientIP := clientAddr(req.RemoteAddr); clientIP != "" {
		if prior := req.Headers["X-Forwarded-For"]; prior != "" {
			clientIP = prior + ", " + clientIP
		}
		upstreamReq.Header.Set("X-Forwarded-For", clientIP)
	}
}

// clientAddr strips the port from a remote address.
func clientAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// appendQuery appends encoded query parameters to a target URL.
// Array values produce repeated key=value pairs in array order.
func appendQuery(targetURL string, query map[string][]string) string {
	if len(query) == 0 {
		return targetURL
	}

	var sb strings.Builder
	sb.WriteString(targetURL)
	if strings.Contains(targetURL, "?") {
		sb.WriteString("&")
	} else {
		sb.WriteString("?")
	}

	first := true
	for key, values := range query {
		for _, value := range values {
			if !first {
				sb.WriteString("&")
			}
			first = false
			sb.WriteString(encodeQueryComponent(key))
			sb.WriteString("=")
			sb.WriteString(encodeQueryComponent(value))
		}
	}

	return sb.String()
}

// encodeQueryComponent escapes one query key or value.
func encodeQueryComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// classify maps a transport error to a ProxyError.
func (f *Forwarder) classify(targetURL string, err error) error {
	if errors.Is(err, context.Canceled) {
		// Caller went away; not an upstream failure.
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		f.logger.Warn("upstream request timed out",
			observability.String("target", targetURL))
		return NewTimeoutError(targetURL, err)
	}

	f.logger.Warn("upstream unreachable",
		observability.String("target", targetURL),
		observability.Error(err))
	return NewUnreachableError(targetURL, err)
}

// errorLabel returns the metrics label for a transport error.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return "timeout"
	default:
		return "connect"
	}
}

// isTimeout reports whether an error chain carries a network timeout.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// normalizeResponse flattens headers and decodes the body according to
// the upstream content type.
func normalizeResponse(resp *http.Response, targetURL string) (*Response, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewBadResponseError(targetURL, "failed to read upstream response", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		if len(values) > 0 {
			// Last one wins for duplicate headers.
			headers[name] = values[len(values)-1]
		}
	}

	normalized := &Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    headers,
		RawBody:    raw,
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") && len(raw) > 0 {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, NewBadResponseError(targetURL, "invalid JSON response from upstream", err)
		}
		normalized.Body = decoded
	} else {
		normalized.Body = string(raw)
	}

	return normalized, nil
}

// statusClass buckets a status code for metrics (2xx, 3xx, ...).
func statusClass(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
