package routecache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/route"
)

// cacheTracerName is the OpenTelemetry tracer name for cache operations.
const cacheTracerName = "edgerouter/routecache"

// memoryCache implements an in-memory TTL cache.
type memoryCache struct {
	logger observability.Logger
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]*memoryEntry

	hits   int64
	misses int64

	// now is swappable for tests.
	now func() time.Time

	// stopCh signals the background cleanup goroutine to stop.
	stopCh   chan struct{}
	stopOnce sync.Once
}

// memoryEntry is a cached configuration and its fill time.
type memoryEntry struct {
	routes    route.Config
	timestamp time.Time
}

// newMemoryCache creates a new in-memory cache.
func newMemoryCache(ttl time.Duration, logger observability.Logger) *memoryCache {
	c := &memoryCache{
		logger:  logger,
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	logger.Info("memory route cache initialized",
		observability.Duration("ttl", ttl))

	return c
}

// expired reports whether an entry is older than the TTL.
func (c *memoryCache) expired(e *memoryEntry) bool {
	return c.now().Sub(e.timestamp) > c.ttl
}

// Get returns the cached configuration, evicting it lazily when stale.
func (c *memoryCache) Get(ctx context.Context, workloadID string) (route.Config, error) {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "routecache.Get",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", "memory"),
			attribute.String("cache.key", workloadID),
		),
	)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[workloadID]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		getCacheMetrics().missesTotal.WithLabelValues("memory").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}

	if c.expired(entry) {
		delete(c.entries, workloadID)
		atomic.AddInt64(&c.misses, 1)
		getCacheMetrics().missesTotal.WithLabelValues("memory").Inc()
		getCacheMetrics().evictionsTotal.WithLabelValues("memory").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		c.logger.Debug("route cache entry expired",
			observability.String("workload", workloadID))
		return nil, ErrCacheMiss
	}

	atomic.AddInt64(&c.hits, 1)
	getCacheMetrics().hitsTotal.WithLabelValues("memory").Inc()
	span.SetAttributes(attribute.Bool("cache.hit", true))

	return entry.routes, nil
}

// Set stores a configuration with the current timestamp.
func (c *memoryCache) Set(ctx context.Context, workloadID string, routes route.Config) error {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "routecache.Set",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", "memory"),
			attribute.String("cache.key", workloadID),
		),
	)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[workloadID] = &memoryEntry{
		routes:    routes,
		timestamp: c.now(),
	}

	getCacheMetrics().sizeGauge.WithLabelValues("memory").Set(float64(len(c.entries)))

	c.logger.Debug("route cache set",
		observability.String("workload", workloadID),
		observability.Int("routes", len(routes)),
		observability.Int("size", len(c.entries)))

	return nil
}

// Invalidate removes one entry.
func (c *memoryCache) Invalidate(ctx context.Context, workloadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[workloadID]; exists {
		delete(c.entries, workloadID)
		getCacheMetrics().sizeGauge.WithLabelValues("memory").Set(float64(len(c.entries)))
		c.logger.Debug("route cache invalidated",
			observability.String("workload", workloadID))
	}

	return nil
}

// Clear removes all entries.
func (c *memoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*memoryEntry)
	getCacheMetrics().sizeGauge.WithLabelValues("memory").Set(0)

	c.logger.Info("route cache cleared")

	return nil
}

// Cleanup sweeps all entries and evicts the expired ones, independent
// of the lazy eviction done by Get.
func (c *memoryCache) Cleanup(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for workloadID, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, workloadID)
			removed++
		}
	}

	if removed > 0 {
		getCacheMetrics().evictionsTotal.WithLabelValues("memory").Add(float64(removed))
		getCacheMetrics().sizeGauge.WithLabelValues("memory").Set(float64(len(c.entries)))
		c.logger.Debug("route cache cleanup completed",
			observability.Int("removed", removed))
	}

	return removed
}

// Stats returns cache statistics.
func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	size := int64(len(c.entries))
	c.mu.RUnlock()

	return Stats{
		Size:   size,
		TTL:    c.ttl,
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}

// StartCleanupLoop starts a background goroutine that periodically
// sweeps expired entries until Close is called.
func (c *memoryCache) StartCleanupLoop(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Cleanup(context.Background())
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Close stops the cleanup goroutine and drops all entries.
func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*memoryEntry)

	return nil
}
