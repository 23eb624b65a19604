package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/route"
)

// ErrControlPlaneDegraded is returned while the circuit is open and
// calls to the control plane are being shed.
var ErrControlPlaneDegraded = errors.New("control plane degraded")

// BreakerProvider wraps another provider with a circuit breaker so a
// failing control plane does not stall every cache miss.
type BreakerProvider struct {
	inner  Provider
	cb     *gobreaker.CircuitBreaker
	logger observability.Logger
}

// BreakerOption is a functional option for configuring the breaker.
type BreakerOption func(*BreakerProvider)

// WithBreakerLogger sets the logger.
func WithBreakerLogger(logger observability.Logger) BreakerOption {
	return func(b *BreakerProvider) {
		b.logger = logger
	}
}

// NewBreakerProvider wraps inner with a circuit breaker. The circuit
// trips when at least threshold calls in the rolling interval fail at
// a ratio of 0.5 or worse, and probes again after timeout.
func NewBreakerProvider(
	inner Provider, threshold int, timeout time.Duration, opts ...BreakerOption,
) *BreakerProvider {
	b := &BreakerProvider{
		inner:  inner,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(b)
	}

	thresholdU32 := safeIntToUint32(threshold)

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "control-plane",
		MaxRequests: thresholdU32,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= thresholdU32 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.logger.Info("control plane circuit state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()))
			getProviderMetrics().breakerTransitions.WithLabelValues(
				from.String(), to.String()).Inc()
		},
	})

	return b
}

// Routes delegates to the wrapped provider under circuit protection.
func (b *BreakerProvider) Routes(ctx context.Context, workloadID string) (route.Config, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Routes(ctx, workloadID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.logger.Warn("control plane call rejected by open circuit",
				observability.String("workload_id", workloadID))
			return nil, &Error{
				WorkloadID: workloadID,
				Message:    "control plane degraded",
				Cause:      errors.Join(ErrControlPlaneDegraded, err),
			}
		}
		return nil, err
	}

	cfg, _ := result.(route.Config)
	return cfg, nil
}

// State returns the current circuit state.
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
