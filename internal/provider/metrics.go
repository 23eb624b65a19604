package provider

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type providerMetrics struct {
	fetchesTotal       *prometheus.CounterVec
	fetchDuration      prometheus.Histogram
	breakerTransitions *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *providerMetrics
)

// getProviderMetrics returns process-wide provider metrics.
func getProviderMetrics() *providerMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &providerMetrics{
			fetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "edgerouter",
				Subsystem: "provider",
				Name:      "fetches_total",
				Help:      "Control-plane fetches by result.",
			}, []string{"result"}),
			fetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: "edgerouter",
				Subsystem: "provider",
				Name:      "fetch_duration_seconds",
				Help:      "Time spent fetching route configuration.",
				Buckets:   prometheus.DefBuckets,
			}),
			breakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "edgerouter",
				Subsystem: "provider",
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker state transitions.",
			}, []string{"from", "to"}),
		}
	})
	return metricsInstance
}
