package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudrelay/edge-router/internal/dispatch"
	"github.com/cloudrelay/edge-router/internal/health"
	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/provider"
	"github.com/cloudrelay/edge-router/internal/proxy"
	"github.com/cloudrelay/edge-router/internal/route"
	"github.com/cloudrelay/edge-router/internal/routecache"
)

func newTestAdminServer(t *testing.T, routes map[string]route.Config) (*AdminServer, *dispatch.Dispatcher) {
	t.Helper()

	cache, err := routecache.New(routecache.Options{}, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	d := dispatch.New(cache, provider.NewStaticProvider(routes), proxy.NewForwarder())

	checker := health.NewHandler(observability.NopLogger())
	metrics := observability.NewMetrics("")

	s := NewAdminServer(AdminOptions{
		Address:     ":0",
		MetricsPath: "/metrics",
	}, d, checker, metrics.Handler(), observability.NopLogger())

	return s, d
}

func TestAdminInvalidateWorkload(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	s, d := newTestAdminServer(t, map[string]route.Config{
		"wl-1": {"/*": upstream.URL},
	})

	// Prime the cache.
	_, _, err := d.Dispatch(httptest.NewRequest(http.MethodGet, "/", nil).Context(),
		"wl-1", &proxy.Request{Method: http.MethodGet, Path: "/x"})
	require.NoError(t, err)
	require.Equal(t, int64(1), d.CacheStats().Size)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/admin/workloads/wl-1/invalidate", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), d.CacheStats().Size)
}

func TestAdminClearCache(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	s, d := newTestAdminServer(t, map[string]route.Config{
		"wl-1": {"/*": upstream.URL},
		"wl-2": {"/*": upstream.URL},
	})

	for _, id := range []string{"wl-1", "wl-2"} {
		_, _, err := d.Dispatch(httptest.NewRequest(http.MethodGet, "/", nil).Context(),
			id, &proxy.Request{Method: http.MethodGet, Path: "/x"})
		require.NoError(t, err)
	}
	require.Equal(t, int64(2), d.CacheStats().Size)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/cache", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), d.CacheStats().Size)
}

func TestAdminCacheStats(t *testing.T) {
	s, _ := newTestAdminServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Contains(t, stats, "size")
	assert.Contains(t, stats, "hitRate")
	assert.Contains(t, stats, "ttl")
}

func TestAdminHealthEndpoints(t *testing.T) {
	s, _ := newTestAdminServer(t, nil)

	for _, path := range []string{"/health", "/livez", "/readyz"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAdminMetricsEndpoint(t *testing.T) {
	s, _ := newTestAdminServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "edgerouter")
}
