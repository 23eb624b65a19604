package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type dispatchMetrics struct {
	dispatchesTotal    *prometheus.CounterVec
	dispatchDuration   prometheus.Histogram
	invalidationsTotal prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *dispatchMetrics
)

// getDispatchMetrics returns process-wide dispatch metrics.
func getDispatchMetrics() *dispatchMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &dispatchMetrics{
			dispatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "edgerouter",
				Subsystem: "dispatch",
				Name:      "requests_total",
				Help:      "Dispatch results by outcome.",
			}, []string{"outcome"}),
			dispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: "edgerouter",
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "End-to-end dispatch latency for proxied requests.",
				Buckets:   prometheus.DefBuckets,
			}),
			invalidationsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "edgerouter",
				Subsystem: "dispatch",
				Name:      "invalidations_total",
				Help:      "Explicit cache invalidations.",
			}),
		}
	})
	return metricsInstance
}
