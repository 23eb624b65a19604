package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/provider"
	"github.com/cloudrelay/edge-router/internal/proxy"
	"github.com/cloudrelay/edge-router/internal/route"
	"github.com/cloudrelay/edge-router/internal/routecache"
)

// countingProvider wraps a provider and counts fetches.
type countingProvider struct {
	inner Provider
	calls atomic.Int64
}

func (p *countingProvider) Routes(ctx context.Context, workloadID string) (route.Config, error) {
	p.calls.Add(1)
	return p.inner.Routes(ctx, workloadID)
}

func newTestDispatcher(t *testing.T, prov Provider) *Dispatcher {
	t.Helper()

	cache, err := routecache.New(routecache.Options{}, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return New(cache, prov, proxy.NewForwarder())
}

func TestDispatchProxiesMatchedRequest(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	}))
	defer upstream.Close()

	prov := provider.NewStaticProvider(map[string]route.Config{
		"wl-1": {"/api/*": upstream.URL},
	})
	d := newTestDispatcher(t, prov)

	resp, outcome, err := d.Dispatch(context.Background(),
		"wl-1", &proxy.Request{Method: http.MethodGet, Path: "/api/users/7"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProxied, outcome)
	assert.Equal(t, http.StatusOK, resp.Status)

	body, ok := resp.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/users/7", body["path"])
}

func TestDispatchNoConfig(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, provider.NewStaticProvider(nil))

	resp, outcome, err := d.Dispatch(context.Background(),
		"unknown", &proxy.Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, OutcomeNoConfig, outcome)
}

func TestDispatchNoMatch(t *testing.T) {
	t.Parallel()

	prov := provider.NewStaticProvider(map[string]route.Config{
		"wl-1": {"/api": "http://api.internal"},
	})
	d := newTestDispatcher(t, prov)

	resp, outcome, err := d.Dispatch(context.Background(),
		"wl-1", &proxy.Request{Method: http.MethodGet, Path: "/other"})
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, OutcomeNoMatch, outcome)
}

func TestDispatchCachesRoutes(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	prov := &countingProvider{inner: provider.NewStaticProvider(map[string]route.Config{
		"wl-1": {"/*": upstream.URL},
	})}
	d := newTestDispatcher(t, prov)

	for i := 0; i < 3; i++ {
		_, outcome, err := d.Dispatch(context.Background(),
			"wl-1", &proxy.Request{Method: http.MethodGet, Path: "/page"})
		require.NoError(t, err)
		require.Equal(t, OutcomeProxied, outcome)
	}

	assert.Equal(t, int64(1), prov.calls.Load())
}

func TestDispatchEmptyProviderResultNotCached(t *testing.T) {
	t.Parallel()

	prov := &countingProvider{inner: provider.NewStaticProvider(nil)}
	d := newTestDispatcher(t, prov)

	for i := 0; i < 2; i++ {
		_, outcome, err := d.Dispatch(context.Background(),
			"wl-1", &proxy.Request{Method: http.MethodGet, Path: "/"})
		require.NoError(t, err)
		require.Equal(t, OutcomeNoConfig, outcome)
	}

	// Each miss goes back to the provider until routes appear.
	assert.Equal(t, int64(2), prov.calls.Load())
}

func TestDispatchInvalidateForcesRefetch(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	prov := &countingProvider{inner: provider.NewStaticProvider(map[string]route.Config{
		"wl-1": {"/*": upstream.URL},
	})}
	d := newTestDispatcher(t, prov)

	req := &proxy.Request{Method: http.MethodGet, Path: "/page"}

	_, _, err := d.Dispatch(context.Background(), "wl-1", req)
	require.NoError(t, err)
	_, _, err = d.Dispatch(context.Background(), "wl-1", req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), prov.calls.Load())

	require.NoError(t, d.Invalidate(context.Background(), "wl-1"))

	_, _, err = d.Dispatch(context.Background(), "wl-1", req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), prov.calls.Load())
}

func TestDispatchRejectsInvalidProviderConfig(t *testing.T) {
	t.Parallel()

	// Missing leading slash and a non-http scheme are both invalid.
	prov := &countingProvider{inner: provider.NewStaticProvider(map[string]route.Config{
		"wl-1": {"api/x": "ftp://a.example.com"},
	})}
	d := newTestDispatcher(t, prov)

	req := &proxy.Request{Method: http.MethodGet, Path: "/api/x"}

	resp, outcome, err := d.Dispatch(context.Background(), "wl-1", req)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, OutcomeError, outcome)

	var valErr *route.ValidationError
	assert.ErrorAs(t, err, &valErr)

	// The invalid table must never be cached; every attempt refetches.
	assert.Equal(t, int64(0), d.CacheStats().Size)

	_, outcome, err = d.Dispatch(context.Background(), "wl-1", req)
	require.Error(t, err)
	assert.Equal(t, OutcomeError, outcome)
	assert.Equal(t, int64(2), prov.calls.Load())
}

func TestDispatchProviderFailure(t *testing.T) {
	t.Parallel()

	httpProv, err := provider.NewHTTPProvider("http://127.0.0.1:1")
	require.NoError(t, err)
	d := newTestDispatcher(t, httpProv)

	resp, outcome, err := d.Dispatch(context.Background(),
		"wl-1", &proxy.Request{Method: http.MethodGet, Path: "/"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, OutcomeError, outcome)

	var provErr *provider.Error
	assert.ErrorAs(t, err, &provErr)
}

func TestDispatchProxyErrorPropagates(t *testing.T) {
	t.Parallel()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := dead.URL
	dead.Close()

	prov := provider.NewStaticProvider(map[string]route.Config{
		"wl-1": {"/*": target},
	})
	d := newTestDispatcher(t, prov)

	_, outcome, err := d.Dispatch(context.Background(),
		"wl-1", &proxy.Request{Method: http.MethodGet, Path: "/page"})
	require.Error(t, err)
	assert.Equal(t, OutcomeError, outcome)

	proxyErr, ok := proxy.AsProxyError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, proxyErr.StatusCode)
}

func TestDispatchExactBeatsWildcardEndToEnd(t *testing.T) {
	t.Parallel()

	var hit string
	exact := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = "exact" }))
	defer exact.Close()
	wild := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = "wild" }))
	defer wild.Close()

	prov := provider.NewStaticProvider(map[string]route.Config{
		"wl-1": {
			"/api/auth/login": exact.URL,
			"/api/auth/*":     wild.URL,
		},
	})
	d := newTestDispatcher(t, prov)

	_, outcome, err := d.Dispatch(context.Background(),
		"wl-1", &proxy.Request{Method: http.MethodGet, Path: "/api/auth/login"})
	require.NoError(t, err)
	require.Equal(t, OutcomeProxied, outcome)
	assert.Equal(t, "exact", hit)

	_, outcome, err = d.Dispatch(context.Background(),
		"wl-1", &proxy.Request{Method: http.MethodGet, Path: "/api/auth/logout"})
	require.NoError(t, err)
	require.Equal(t, OutcomeProxied, outcome)
	assert.Equal(t, "wild", hit)
}

func TestCacheStats(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	prov := provider.NewStaticProvider(map[string]route.Config{
		"wl-1": {"/*": upstream.URL},
	})
	d := newTestDispatcher(t, prov)

	_, _, err := d.Dispatch(context.Background(),
		"wl-1", &proxy.Request{Method: http.MethodGet, Path: "/page"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), d.CacheStats().Size)

	require.NoError(t, d.ClearCache(context.Background()))
	assert.Equal(t, int64(0), d.CacheStats().Size)
}
