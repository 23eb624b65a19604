package routecache

import (
	"context"
	"errors"
	"time"

	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/route"
)

// Common cache errors.
var (
	// ErrCacheMiss indicates that the key was not found or has expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidConfig indicates that the cache configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")
)

// DefaultTTL is the default time-to-live for cached configurations.
const DefaultTTL = 300 * time.Second

// Cache stores routing configurations keyed by workload ID.
type Cache interface {
	// Get returns the cached configuration for a workload.
	// Returns ErrCacheMiss when absent or expired.
	Get(ctx context.Context, workloadID string) (route.Config, error)

	// Set stores a configuration, overwriting any existing entry and
	// resetting its age.
	Set(ctx context.Context, workloadID string, routes route.Config) error

	// Invalidate removes one entry.
	Invalidate(ctx context.Context, workloadID string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Cleanup sweeps expired entries and returns how many were removed.
	Cleanup(ctx context.Context) int

	// Stats returns cache statistics.
	Stats() Stats

	// Close releases cache resources.
	Close() error
}

// Stats contains cache statistics.
type Stats struct {
	// Size is the current number of entries.
	Size int64

	// TTL is the configured time-to-live.
	TTL time.Duration

	// Hits is the number of cache hits.
	Hits int64

	// Misses is the number of cache misses.
	Misses int64
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options configures cache construction.
type Options struct {
	// Backend selects the cache implementation, "memory" by default.
	Backend string

	// TTL is the entry time-to-live, DefaultTTL when zero.
	TTL time.Duration

	// RedisURL is the Redis connection URL (redis backend only).
	RedisURL string

	// KeyPrefix namespaces cache keys (redis backend only).
	KeyPrefix string
}

// New creates a cache for the configured backend.
func New(opts Options, logger observability.Logger) (Cache, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	switch opts.Backend {
	case BackendMemory, "":
		return newMemoryCache(opts.TTL, logger), nil
	case BackendRedis:
		return newRedisCache(opts, logger)
	default:
		return nil, errors.New("unknown cache backend: " + opts.Backend)
	}
}
