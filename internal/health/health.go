package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cloudrelay/edge-router/internal/observability"
)

// DefaultProbeTimeout bounds one readiness probe pass.
const DefaultProbeTimeout = 5 * time.Second

// Check is a named readiness check.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to the Check interface.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewCheckFunc creates a named check from a function.
func NewCheckFunc(name string, fn func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

// Name returns the check name.
func (c *CheckFunc) Name() string { return c.name }

// Check runs the check.
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// Status is the aggregated probe result.
type Status struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Uptime    string                  `json:"uptime,omitempty"`
	Checks    map[string]*CheckResult `json:"checks,omitempty"`
}

// CheckResult is one check's outcome.
type CheckResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Handler runs registered checks and serves probe endpoints.
type Handler struct {
	checks       []Check
	logger       observability.Logger
	mu           sync.RWMutex
	startTime    time.Time
	probeTimeout time.Duration
}

// NewHandler creates a probe handler.
func NewHandler(logger observability.Logger) *Handler {
	return &Handler{
		logger:       logger,
		startTime:    time.Now(),
		probeTimeout: DefaultProbeTimeout,
	}
}

// AddCheck registers a readiness check.
func (h *Handler) AddCheck(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// runChecks runs all checks concurrently under one probe timeout.
func (h *Handler) runChecks(ctx context.Context) *Status {
	h.mu.RLock()
	checks := make([]Check, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := &Status{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]*CheckResult),
	}

	if len(checks) == 0 {
		return status
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, check := range checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()

			start := time.Now()
			err := c.Check(ctx)

			result := &CheckResult{
				Status:   "ok",
				Duration: time.Since(start).String(),
			}

			if err != nil {
				result.Status = "error"
				result.Error = err.Error()

				h.logger.Warn("readiness check failed",
					observability.String("check", c.Name()),
					observability.Error(err))
			}

			mu.Lock()
			if err != nil {
				status.Status = "error"
			}
			status.Checks[c.Name()] = result
			mu.Unlock()
		}(check)
	}

	wg.Wait()
	return status
}

// Liveness answers 200 whenever the process is serving requests.
func (h *Handler) Liveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	}
}

// Readiness runs the registered checks and answers 503 while any of
// them fails.
func (h *Handler) Readiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.probeTimeout)
		defer cancel()

		status := h.runChecks(ctx)

		code := http.StatusOK
		if status.Status != "ok" {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, status)
	}
}

// Health answers with the full check detail plus uptime.
func (h *Handler) Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.probeTimeout)
		defer cancel()

		status := h.runChecks(ctx)
		status.Uptime = time.Since(h.startTime).Round(time.Second).String()

		code := http.StatusOK
		if status.Status != "ok" {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, status)
	}
}

// RegisterRoutes mounts the probe endpoints on a gin engine.
func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", h.Health())
	engine.GET("/livez", h.Liveness())
	engine.GET("/readyz", h.Readiness())
}
