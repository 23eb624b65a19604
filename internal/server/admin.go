package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/cloudrelay/edge-router/internal/dispatch"
	"github.com/cloudrelay/edge-router/internal/health"
	"github.com/cloudrelay/edge-router/internal/observability"
)

// AdminOptions configures the admin server.
type AdminOptions struct {
	// Address is the admin listen address.
	Address string

	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string
}

// AdminServer hosts cache management, probes, and metrics.
type AdminServer struct {
	opts       AdminOptions
	engine     *gin.Engine
	dispatcher *dispatch.Dispatcher
	logger     observability.Logger
	httpServer *http.Server
	running    atomic.Bool
}

// NewAdminServer creates the admin server and mounts its routes.
func NewAdminServer(
	opts AdminOptions,
	dispatcher *dispatch.Dispatcher,
	checker *health.Handler,
	metricsHandler http.Handler,
	logger observability.Logger,
) *AdminServer {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &AdminServer{
		opts:       opts,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
	}

	admin := engine.Group("/admin")
	admin.POST("/workloads/:id/invalidate", s.invalidateWorkload)
	admin.DELETE("/cache", s.clearCache)
	admin.GET("/cache/stats", s.cacheStats)

	if checker != nil {
		checker.RegisterRoutes(engine)
	}

	if metricsHandler != nil && opts.MetricsPath != "" {
		engine.GET(opts.MetricsPath, gin.WrapH(metricsHandler))
	}

	s.httpServer = &http.Server{
		Addr:    opts.Address,
		Handler: engine,
	}

	return s
}

// Handler returns the admin HTTP handler.
func (s *AdminServer) Handler() http.Handler {
	return s.engine
}

// Start begins serving. It blocks until the listener stops.
func (s *AdminServer) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("admin server already running")
	}

	s.logger.Info("admin server listening",
		observability.String("address", s.opts.Address))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *AdminServer) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.logger.Info("admin server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// invalidateWorkload drops one workload's cached routes.
func (s *AdminServer) invalidateWorkload(c *gin.Context) {
	workloadID := c.Param("id")
	if workloadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workload id is required"})
		return
	}

	if err := s.dispatcher.Invalidate(c.Request.Context(), workloadID); err != nil {
		s.logger.Error("cache invalidation failed",
			observability.String("workload_id", workloadID),
			observability.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalidation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "invalidated", "workload": workloadID})
}

// clearCache drops every cached route table.
func (s *AdminServer) clearCache(c *gin.Context) {
	if err := s.dispatcher.ClearCache(c.Request.Context()); err != nil {
		s.logger.Error("cache clear failed", observability.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// cacheStats reports size, TTL, and hit rate.
func (s *AdminServer) cacheStats(c *gin.Context) {
	stats := s.dispatcher.CacheStats()
	c.JSON(http.StatusOK, gin.H{
		"size":    stats.Size,
		"ttl":     stats.TTL.String(),
		"hits":    stats.Hits,
		"misses":  stats.Misses,
		"hitRate": stats.HitRate(),
	})
}
