package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type middlewareMetrics struct {
	panicsRecovered prometheus.Counter
	rateLimited     prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *middlewareMetrics
)

// getMiddlewareMetrics returns process-wide middleware metrics.
func getMiddlewareMetrics() *middlewareMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &middlewareMetrics{
			panicsRecovered: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "edgerouter",
				Subsystem: "middleware",
				Name:      "panics_recovered_total",
				Help:      "Handler panics turned into 500 responses.",
			}),
			rateLimited: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "edgerouter",
				Subsystem: "middleware",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter.",
			}),
		}
	})
	return metricsInstance
}
