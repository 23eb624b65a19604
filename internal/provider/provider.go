package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/route"
)

// DefaultTimeout bounds a single control-plane call.
const DefaultTimeout = 10 * time.Second

// maxResponseSize caps a route config document at 1 MiB.
const maxResponseSize = 1 << 20

// Provider resolves the route configuration for a workload. A nil
// config with a nil error means the workload has no routes configured.
type Provider interface {
	Routes(ctx context.Context, workloadID string) (route.Config, error)
}

// Error is a control-plane fetch failure.
type Error struct {
	WorkloadID string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error workload=%s: %s: %v", e.WorkloadID, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error workload=%s: %s", e.WorkloadID, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPProvider fetches route configuration over HTTP from the
// control plane at GET {endpoint}/v1/workloads/{id}/routes.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
	logger   observability.Logger
	token    string
}

// HTTPOption is a functional option for configuring the HTTP provider.
type HTTPOption func(*HTTPProvider)

// WithHTTPTimeout sets the per-call timeout.
func WithHTTPTimeout(timeout time.Duration) HTTPOption {
	return func(p *HTTPProvider) {
		if timeout > 0 {
			p.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger observability.Logger) HTTPOption {
	return func(p *HTTPProvider) {
		p.logger = logger
	}
}

// WithBearerToken sets a bearer token sent on every call.
func WithBearerToken(token string) HTTPOption {
	return func(p *HTTPProvider) {
		p.token = token
	}
}

// NewHTTPProvider creates an HTTP provider for the given control-plane
// endpoint.
func NewHTTPProvider(endpoint string, opts ...HTTPOption) (*HTTPProvider, error) {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("provider endpoint is required")
	}

	p := &HTTPProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Routes fetches and validates the route configuration for a workload.
// A 404 means the workload is unknown and yields a nil config.
func (p *HTTPProvider) Routes(ctx context.Context, workloadID string) (route.Config, error) {
	start := time.Now()

	url := fmt.Sprintf("%s/v1/workloads/%s/routes", p.endpoint, workloadID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{WorkloadID: workloadID, Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		getProviderMetrics().fetchesTotal.WithLabelValues("error").Inc()
		return nil, &Error{WorkloadID: workloadID, Message: "control plane unreachable", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		getProviderMetrics().fetchesTotal.WithLabelValues("not_found").Inc()
		p.logger.Debug("workload has no route configuration",
			observability.String("workload_id", workloadID))
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		getProviderMetrics().fetchesTotal.WithLabelValues("error").Inc()
		return nil, &Error{
			WorkloadID: workloadID,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("control plane returned status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		getProviderMetrics().fetchesTotal.WithLabelValues("error").Inc()
		return nil, &Error{WorkloadID: workloadID, Message: "failed to read response", Cause: err}
	}

	cfg, err := route.ParseConfig(body)
	if err != nil {
		getProviderMetrics().fetchesTotal.WithLabelValues("invalid").Inc()
		return nil, &Error{WorkloadID: workloadID, Message: "invalid route configuration", Cause: err}
	}

	getProviderMetrics().fetchesTotal.WithLabelValues("ok").Inc()
	getProviderMetrics().fetchDuration.Observe(time.Since(start).Seconds())

	p.logger.Debug("fetched route configuration",
		observability.String("workload_id", workloadID),
		observability.Int("routes", len(cfg)),
		observability.Duration("duration", time.Since(start)))

	return cfg, nil
}

// StaticProvider serves a fixed route table for every workload. Used
// in tests and single-tenant deployments.
type StaticProvider struct {
	routes map[string]route.Config
}

// NewStaticProvider creates a provider over a fixed workload table.
func NewStaticProvider(routes map[string]route.Config) *StaticProvider {
	return &StaticProvider{routes: routes}
}

// Routes returns the configured table for the workload, nil if absent.
func (p *StaticProvider) Routes(_ context.Context, workloadID string) (route.Config, error) {
	cfg, ok := p.routes[workloadID]
	if !ok {
		return nil, nil
	}
	return cfg.Clone(), nil
}
