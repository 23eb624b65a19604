package routecache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// cacheMetrics contains Prometheus metrics for the route cache.
type cacheMetrics struct {
	hitsTotal      *prometheus.CounterVec
	missesTotal    *prometheus.CounterVec
	evictionsTotal *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	sizeGauge      *prometheus.GaugeVec
}

var (
	cacheMetricsInstance *cacheMetrics
	cacheMetricsOnce     sync.Once
)

// getCacheMetrics returns the singleton cache metrics instance.
func getCacheMetrics() *cacheMetrics {
	cacheMetricsOnce.Do(func() {
		cacheMetricsInstance = &cacheMetrics{
			hitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "edgerouter",
					Subsystem: "routecache",
					Name:      "hits_total",
					Help:      "Total number of route cache hits",
				},
				[]string{"backend"},
			),
			missesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "edgerouter",
					Subsystem: "routecache",
					Name:      "misses_total",
					Help:      "Total number of route cache misses",
				},
				[]string{"backend"},
			),
			evictionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "edgerouter",
					Subsystem: "routecache",
					Name:      "evictions_total",
					Help:      "Total number of expired route cache entries evicted",
				},
				[]string{"backend"},
			),
			errorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "edgerouter",
					Subsystem: "routecache",
					Name:      "errors_total",
					Help:      "Total number of route cache backend errors",
				},
				[]string{"backend", "operation"},
			),
			sizeGauge: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "edgerouter",
					Subsystem: "routecache",
					Name:      "size",
					Help:      "Current number of route cache entries",
				},
				[]string{"backend"},
			),
		}
	})
	return cacheMetricsInstance
}
