package router

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// compileCacheMetrics contains Prometheus metrics for the pattern
// compile cache.
type compileCacheMetrics struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheSize      prometheus.Gauge
}

var (
	compileCacheMetricsInstance *compileCacheMetrics
	compileCacheMetricsOnce     sync.Once
)

// getCompileCacheMetrics returns the singleton compile cache metrics instance.
func getCompileCacheMetrics() *compileCacheMetrics {
	compileCacheMetricsOnce.Do(func() {
		compileCacheMetricsInstance = &compileCacheMetrics{
			cacheHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "edgerouter",
					Subsystem: "router",
					Name:      "pattern_cache_hits_total",
					Help:      "Total number of pattern compile cache hits",
				},
			),
			cacheMisses: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "edgerouter",
					Subsystem: "router",
					Name:      "pattern_cache_misses_total",
					Help:      "Total number of pattern compile cache misses",
				},
			),
			cacheEvictions: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "edgerouter",
					Subsystem: "router",
					Name:      "pattern_cache_evictions_total",
					Help:      "Total number of pattern compile cache evictions",
				},
			),
			cacheSize: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "edgerouter",
					Subsystem: "router",
					Name:      "pattern_cache_size",
					Help:      "Current number of entries in the pattern compile cache",
				},
			),
		}
	})
	return compileCacheMetricsInstance
}
