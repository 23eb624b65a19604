package dispatch

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/proxy"
	"github.com/cloudrelay/edge-router/internal/route"
	"github.com/cloudrelay/edge-router/internal/routecache"
	"github.com/cloudrelay/edge-router/internal/router"
)

// dispatchTracer is the OTEL tracer for dispatch operations.
var dispatchTracer = otel.Tracer("edgerouter/dispatch")

// Provider resolves the route configuration for a workload. A nil
// config with a nil error means the workload has no routes configured.
type Provider interface {
	Routes(ctx context.Context, workloadID string) (route.Config, error)
}

// Forwarder sends a matched request to its upstream target.
type Forwarder interface {
	Forward(ctx context.Context, match *router.Match, req *proxy.Request, targetURL string) (*proxy.Response, error)
}

// Outcome classifies a dispatch result.
type Outcome int

const (
	// OutcomeProxied means the request reached an upstream and its
	// response is available.
	OutcomeProxied Outcome = iota

	// OutcomeNoConfig means the workload has no routing configured.
	OutcomeNoConfig

	// OutcomeNoMatch means no route pattern matched the request path.
	OutcomeNoMatch

	// OutcomeError means dispatch failed before or during the upstream
	// call; the accompanying error carries the detail.
	OutcomeError
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeProxied:
		return "proxied"
	case OutcomeNoConfig:
		return "no_config"
	case OutcomeNoMatch:
		return "no_match"
	default:
		return "error"
	}
}

// Dispatcher resolves and forwards requests for workloads.
type Dispatcher struct {
	cache     routecache.Cache
	provider  Provider
	forwarder Forwarder
	logger    observability.Logger
}

// Option is a functional option for configuring the dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a dispatcher over the given cache, provider, and
// forwarder.
func New(cache routecache.Cache, prov Provider, fwd Forwarder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cache:     cache,
		provider:  prov,
		forwarder: fwd,
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch resolves the workload's routes, matches the request path,
// and forwards to the resolved target.
//
// A nil response with OutcomeNoConfig or OutcomeNoMatch and a nil
// error is normal control flow. Concurrent cache misses for the same
// workload may each fetch from the provider; the last write wins.
func (d *Dispatcher) Dispatch(
	ctx context.Context, workloadID string, req *proxy.Request,
) (*proxy.Response, Outcome, error) {
	start := time.Now()

	ctx, span := dispatchTracer.Start(ctx, "dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("workload.id", workloadID),
			attribute.String("http.path", req.Path),
		))
	defer span.End()

	routes, err := d.resolveRoutes(ctx, workloadID)
	if err != nil {
		span.SetAttributes(attribute.String("dispatch.outcome", OutcomeError.String()))
		getDispatchMetrics().dispatchesTotal.WithLabelValues(OutcomeError.String()).Inc()
		return nil, OutcomeError, err
	}

	if routes == nil {
		span.SetAttributes(attribute.String("dispatch.outcome", OutcomeNoConfig.String()))
		getDispatchMetrics().dispatchesTotal.WithLabelValues(OutcomeNoConfig.String()).Inc()
		d.logger.Debug("workload has no routing configuration",
			observability.String("workload_id", workloadID))
		return nil, OutcomeNoConfig, nil
	}

	match := router.MatchPath(req.Path, routes)
	if match == nil {
		span.SetAttributes(attribute.String("dispatch.outcome", OutcomeNoMatch.String()))
		getDispatchMetrics().dispatchesTotal.WithLabelValues(OutcomeNoMatch.String()).Inc()
		d.logger.Debug("no route matched",
			observability.String("workload_id", workloadID),
			observability.String("path", req.Path))
		return nil, OutcomeNoMatch, nil
	}

	targetURL := router.BuildTargetURL(match)
	span.SetAttributes(
		attribute.String("route.pattern", match.Pattern),
		attribute.String("route.target", targetURL),
	)

	resp, err := d.forwarder.Forward(ctx, match, req, targetURL)
	if err != nil {
		span.SetAttributes(attribute.String("dispatch.outcome", OutcomeError.String()))
		getDispatchMetrics().dispatchesTotal.WithLabelValues(OutcomeError.String()).Inc()
		return nil, OutcomeError, err
	}

	span.SetAttributes(attribute.String("dispatch.outcome", OutcomeProxied.String()))
	getDispatchMetrics().dispatchesTotal.WithLabelValues(OutcomeProxied.String()).Inc()
	getDispatchMetrics().dispatchDuration.Observe(time.Since(start).Seconds())

	d.logger.Info("request dispatched",
		observability.String("workload_id", workloadID),
		observability.String("path", req.Path),
		observability.String("pattern", match.Pattern),
		observability.Int("status", resp.Status),
		observability.Duration("duration", time.Since(start)))

	return resp, OutcomeProxied, nil
}

// resolveRoutes returns the workload's routes from cache, falling back
// to the provider on a miss, validating the result, and filling the
// cache on success. A nil table means no routing is configured; empty
// provider results are not cached so a later configuration is picked
// up promptly, and invalid tables are rejected before they can be
// cached or matched.
func (d *Dispatcher) resolveRoutes(ctx context.Context, workloadID string) (route.Config, error) {
	routes, err := d.cache.Get(ctx, workloadID)
	if err == nil {
		return routes, nil
	}
	if !errors.Is(err, routecache.ErrCacheMiss) {
		// Cache backend failure; fall through to the provider.
		d.logger.Warn("route cache lookup failed",
			observability.String("workload_id", workloadID),
			observability.Error(err))
	}

	routes, err = d.provider.Routes(ctx, workloadID)
	if err != nil {
		return nil, err
	}
	if routes == nil {
		return nil, nil
	}

	if err := route.Validate(routes); err != nil {
		// A malformed table fails loudly and is never cached.
		d.logger.Error("provider returned invalid route configuration",
			observability.String("workload_id", workloadID),
			observability.Error(err))
		return nil, err
	}

	if err := d.cache.Set(ctx, workloadID, routes); err != nil {
		// Serving beats caching; the next miss will refetch.
		d.logger.Warn("route cache fill failed",
			observability.String("workload_id", workloadID),
			observability.Error(err))
	}

	return routes, nil
}

// Invalidate drops the workload's cached routes so the next dispatch
// refetches from the provider.
func (d *Dispatcher) Invalidate(ctx context.Context, workloadID string) error {
	getDispatchMetrics().invalidationsTotal.Inc()
	d.logger.Info("route cache invalidated",
		observability.String("workload_id", workloadID))
	return d.cache.Invalidate(ctx, workloadID)
}

// ClearCache drops every cached route table.
func (d *Dispatcher) ClearCache(ctx context.Context) error {
	d.logger.Info("route cache cleared")
	return d.cache.Clear(ctx)
}

// CacheStats reports cache size and hit counters.
func (d *Dispatcher) CacheStats() routecache.Stats {
	return d.cache.Stats()
}
