package proxy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type proxyMetrics struct {
	forwardDuration prometheus.Histogram
	upstreamStatus  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *proxyMetrics
)

// getProxyMetrics returns process-wide forwarder metrics.
func getProxyMetrics() *proxyMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &proxyMetrics{
			forwardDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: "edgerouter",
				Subsystem: "proxy",
				Name:      "forward_duration_seconds",
				Help:      "Time spent forwarding requests to upstreams.",
				Buckets:   prometheus.DefBuckets,
			}),
			upstreamStatus: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "edgerouter",
				Subsystem: "proxy",
				Name:      "upstream_responses_total",
				Help:      "Upstream responses by status class.",
			}, []string{"class"}),
			errorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "edgerouter",
				Subsystem: "proxy",
				Name:      "errors_total",
				Help:      "Upstream transport failures by kind.",
			}, []string{"kind"}),
		}
	})
	return metricsInstance
}
