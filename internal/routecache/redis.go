package routecache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/route"
)

// redisCache implements a Redis-backed route cache. Expiry is handled
// by Redis TTLs, so Cleanup has nothing to sweep.
type redisCache struct {
	logger    observability.Logger
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration

	hits   int64
	misses int64
}

// newRedisCache creates a new Redis route cache.
func newRedisCache(opts Options, logger observability.Logger) (*redisCache, error) {
	if opts.RedisURL == "" {
		return nil, errors.New("redis URL is required")
	}

	redisOpts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, errors.New("invalid redis URL: " + err.Error())
	}

	client := redis.NewClient(redisOpts)

	if err := pingRedis(client); err != nil {
		_ = client.Close()
		return nil, errors.New("redis connection failed: " + err.Error())
	}

	c := &redisCache{
		logger:    logger,
		client:    client,
		keyPrefix: resolveKeyPrefix(opts.KeyPrefix),
		ttl:       opts.TTL,
	}

	logger.Info("redis route cache initialized",
		observability.String("keyPrefix", c.keyPrefix),
		observability.Duration("ttl", c.ttl))

	return c, nil
}

// pingRedis tests the Redis connection with a timeout.
func pingRedis(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}

// resolveKeyPrefix returns the key prefix, defaulting to "edgerouter:routes:".
func resolveKeyPrefix(prefix string) string {
	if prefix == "" {
		return "edgerouter:routes:"
	}
	return prefix
}

// key builds the namespaced Redis key for a workload.
func (c *redisCache) key(workloadID string) string {
	return c.keyPrefix + workloadID
}

// Get returns the cached configuration for a workload.
func (c *redisCache) Get(ctx context.Context, workloadID string) (route.Config, error) {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "routecache.Get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.backend", "redis"),
			attribute.String("cache.key", workloadID),
		),
	)
	defer span.End()

	data, err := c.client.Get(ctx, c.key(workloadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		atomic.AddInt64(&c.misses, 1)
		getCacheMetrics().missesTotal.WithLabelValues("redis").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}
	if err != nil {
		getCacheMetrics().errorsTotal.WithLabelValues("redis", "get").Inc()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		c.logger.Error("redis get failed",
			observability.String("workload", workloadID),
			observability.Error(err))
		return nil, err
	}

	var routes route.Config
	if err := json.Unmarshal(data, &routes); err != nil {
		// A corrupt entry is dropped and treated as a miss.
		_ = c.client.Del(ctx, c.key(workloadID)).Err()
		atomic.AddInt64(&c.misses, 1)
		getCacheMetrics().missesTotal.WithLabelValues("redis").Inc()
		c.logger.Warn("dropping corrupt route cache entry",
			observability.String("workload", workloadID),
			observability.Error(err))
		return nil, ErrCacheMiss
	}

	atomic.AddInt64(&c.hits, 1)
	getCacheMetrics().hitsTotal.WithLabelValues("redis").Inc()
	span.SetAttributes(attribute.Bool("cache.hit", true))

	return routes, nil
}

// Set stores a configuration with the configured TTL.
func (c *redisCache) Set(ctx context.Context, workloadID string, routes route.Config) error {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "routecache.Set",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.backend", "redis"),
			attribute.String("cache.key", workloadID),
		),
	)
	defer span.End()

	data, err := json.Marshal(routes)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, c.key(workloadID), data, c.ttl).Err(); err != nil {
		getCacheMetrics().errorsTotal.WithLabelValues("redis", "set").Inc()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		c.logger.Error("redis set failed",
			observability.String("workload", workloadID),
			observability.Error(err))
		return err
	}

	c.logger.Debug("route cache set",
		observability.String("workload", workloadID),
		observability.Int("routes", len(routes)))

	return nil
}

// Invalidate removes one entry.
func (c *redisCache) Invalidate(ctx context.Context, workloadID string) error {
	if err := c.client.Del(ctx, c.key(workloadID)).Err(); err != nil {
		getCacheMetrics().errorsTotal.WithLabelValues("redis", "delete").Inc()
		c.logger.Error("redis delete failed",
			observability.String("workload", workloadID),
			observability.Error(err))
		return err
	}

	c.logger.Debug("route cache invalidated",
		observability.String("workload", workloadID))

	return nil
}

// Clear removes all entries under the key prefix.
func (c *redisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		getCacheMetrics().errorsTotal.WithLabelValues("redis", "clear").Inc()
		return err
	}

	c.logger.Info("route cache cleared")

	return nil
}

// Cleanup is a no-op for Redis; expiry is server-side.
func (c *redisCache) Cleanup(ctx context.Context) int {
	return 0
}

// Stats returns cache statistics. Size counts keys under the prefix.
func (c *redisCache) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var size int64
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		size++
	}

	return Stats{
		Size:   size,
		TTL:    c.ttl,
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}

// Close closes the Redis connection.
func (c *redisCache) Close() error {
	return c.client.Close()
}
