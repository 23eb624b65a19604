package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{name: "json stdout", cfg: LogConfig{Level: "info", Format: "json", Output: "stdout"}},
		{name: "console stderr", cfg: LogConfig{Level: "debug", Format: "console", Output: "stderr"}},
		{name: "warn level", cfg: LogConfig{Level: "warn", Format: "json"}},
		{name: "bad level", cfg: LogConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)

			logger.Debug("debug", String("k", "v"))
			logger.Info("info", Int("n", 1))
			logger.Warn("warn", Bool("b", true))
			logger.Error("error", Duration("d", time.Second))
		})
	}
}

func TestLoggerWith(t *testing.T) {
	logger := NopLogger()
	child := logger.With(String("component", "test"))
	require.NotNil(t, child)
	child.Info("message")
}

func TestLoggerWithContext(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithWorkloadID(ctx, "wl-1")

	logger := NopLogger().WithContext(ctx)
	require.NotNil(t, logger)

	// A context with no values returns the logger unchanged.
	same := NopLogger()
	assert.Equal(t, same, same.WithContext(context.Background()))
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, WorkloadIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "req-42")
	ctx = ContextWithWorkloadID(ctx, "wl-42")

	assert.Equal(t, "req-42", RequestIDFromContext(ctx))
	assert.Equal(t, "wl-42", WorkloadIDFromContext(ctx))
}

func TestGlobalLogger(t *testing.T) {
	logger := NopLogger()
	SetGlobalLogger(logger)

	assert.Equal(t, logger, GetGlobalLogger())
	assert.Equal(t, logger, L())
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics("testns")
	m.SetBuildInfo("1.0.0", "abcdef", "2026-01-01")
	m.ObserveRequest(http.MethodGet, "proxied", http.StatusOK, 25*time.Millisecond, 512)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "testns_requests_total")
	assert.Contains(t, body, "testns_build_info")
	assert.Contains(t, body, "testns_start_time_seconds")
}

func TestMetricsDefaultNamespace(t *testing.T) {
	m := NewMetrics("")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, rec.Body.String(), "edgerouter_start_time_seconds")
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics("mwtest")

	handler := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	metricsRec := httptest.NewRecorder()
	m.Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := metricsRec.Body.String()
	assert.True(t, strings.Contains(body, `mwtest_requests_total`))
	assert.Contains(t, body, `status="201"`)
}

func TestTracerDisabled(t *testing.T) {
	tracer, err := NewTracer(TracerConfig{ServiceName: "test", Enabled: false})
	require.NoError(t, err)

	ctx, span := tracer.Start(context.Background(), "op")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}
