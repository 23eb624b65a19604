package routecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/route"
)

// fakeClock drives entry expiry without sleeping.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(ttl time.Duration) (*memoryCache, *fakeClock) {
	c := newMemoryCache(ttl, observability.NopLogger())
	clock := &fakeClock{t: time.Now()}
	c.now = clock.now
	return c, clock
}

var testRoutes = route.Config{"/api/*": "https://api.example.com"}

func TestMemoryCacheSetGet(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(DefaultTTL)
	ctx := context.Background()

	_, err := c.Get(ctx, "wl-1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "wl-1", testRoutes))

	got, err := c.Get(ctx, "wl-1")
	require.NoError(t, err)
	assert.Equal(t, testRoutes, got)
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(300 * time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "wl-1", testRoutes))

	clock.advance(299 * time.Second)
	_, err := c.Get(ctx, "wl-1")
	assert.NoError(t, err)

	clock.advance(2 * time.Second)
	_, err = c.Get(ctx, "wl-1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Lazy eviction removed the entry.
	assert.Equal(t, int64(0), c.Stats().Size)
}

func TestMemoryCacheSetResetsAge(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(10 * time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "wl-1", testRoutes))
	clock.advance(8 * time.Second)
	require.NoError(t, c.Set(ctx, "wl-1", testRoutes))
	clock.advance(8 * time.Second)

	_, err := c.Get(ctx, "wl-1")
	assert.NoError(t, err)
}

func TestMemoryCacheInvalidate(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(DefaultTTL)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "wl-1", testRoutes))
	require.NoError(t, c.Set(ctx, "wl-2", testRoutes))

	require.NoError(t, c.Invalidate(ctx, "wl-1"))

	_, err := c.Get(ctx, "wl-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "wl-2")
	assert.NoError(t, err)

	// Invalidating an absent key is fine.
	assert.NoError(t, c.Invalidate(ctx, "missing"))
}

func TestMemoryCacheClear(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(DefaultTTL)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "wl-1", testRoutes))
	require.NoError(t, c.Set(ctx, "wl-2", testRoutes))
	require.NoError(t, c.Clear(ctx))

	assert.Equal(t, int64(0), c.Stats().Size)
}

func TestMemoryCacheCleanup(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(60 * time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "old-1", testRoutes))
	require.NoError(t, c.Set(ctx, "old-2", testRoutes))
	clock.advance(61 * time.Second)
	require.NoError(t, c.Set(ctx, "fresh", testRoutes))

	removed := c.Cleanup(ctx)
	assert.Equal(t, 2, removed)
	assert.Equal(t, int64(1), c.Stats().Size)

	_, err := c.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryCacheStats(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(42 * time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "wl-1", testRoutes))
	_, _ = c.Get(ctx, "wl-1")
	_, _ = c.Get(ctx, "missing")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Size)
	assert.Equal(t, 42*time.Second, stats.TTL)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InEpsilon(t, 50.0, stats.HitRate(), 0.001)
}

func TestMemoryCacheClose(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(DefaultTTL)
	c.StartCleanupLoop(time.Millisecond)

	require.NoError(t, c.Set(context.Background(), "wl-1", testRoutes))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, int64(0), c.Stats().Size)
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	c, err := New(Options{}, nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, DefaultTTL, c.Stats().TTL)

	_, err = New(Options{Backend: "bogus"}, nil)
	assert.Error(t, err)
}
