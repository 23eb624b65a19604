package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudrelay/edge-router/internal/dispatch"
	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/provider"
	"github.com/cloudrelay/edge-router/internal/proxy"
	"github.com/cloudrelay/edge-router/internal/router"
)

// WorkloadIDHeader resolves the workload when host-based resolution is
// unavailable or disabled.
const WorkloadIDHeader = "X-Workload-ID"

// Middleware is one element of the edge middleware chain.
type Middleware func(http.Handler) http.Handler

// EdgeOptions configures the edge server.
type EdgeOptions struct {
	// Address is the listen address.
	Address string

	// DomainSuffix enables host-based workload resolution:
	// <workload>.<suffix>. Empty disables it.
	DomainSuffix string

	// DefaultTarget receives requests with no config or no matching
	// route. Empty means those answer 404.
	DefaultTarget string

	// ReadTimeout, WriteTimeout, IdleTimeout bound the listener.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// EdgeServer is the traffic-facing HTTP server.
type EdgeServer struct {
	opts       EdgeOptions
	dispatcher *dispatch.Dispatcher
	forwarder  dispatch.Forwarder
	logger     observability.Logger
	httpServer *http.Server
	running    atomic.Bool
}

// NewEdgeServer creates the edge server. The middleware chain wraps
// the dispatch handler outermost-first.
func NewEdgeServer(
	opts EdgeOptions,
	dispatcher *dispatch.Dispatcher,
	forwarder dispatch.Forwarder,
	logger observability.Logger,
	chain ...Middleware,
) *EdgeServer {
	s := &EdgeServer{
		opts:       opts,
		dispatcher: dispatcher,
		forwarder:  forwarder,
		logger:     logger,
	}

	var handler http.Handler = http.HandlerFunc(s.handle)
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}

	s.httpServer = &http.Server{
		Addr:         opts.Address,
		Handler:      handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}

	return s
}

// Handler returns the fully wrapped edge handler.
func (s *EdgeServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving. It blocks until the listener stops.
func (s *EdgeServer) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("edge server already running")
	}

	s.logger.Info("edge server listening",
		observability.String("address", s.opts.Address))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("edge server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *EdgeServer) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.logger.Info("edge server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// handle resolves the workload, dispatches, and maps the outcome onto
// the HTTP response.
func (s *EdgeServer) handle(w http.ResponseWriter, r *http.Request) {
	workloadID := s.resolveWorkloadID(r)
	if workloadID == "" {
		writeJSONError(w, http.StatusNotFound, "unknown workload")
		return
	}

	ctx := observability.ContextWithWorkloadID(r.Context(), workloadID)
	r = r.WithContext(ctx)

	req, err := proxy.RequestFromHTTP(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request")
		return
	}

	resp, outcome, err := s.dispatcher.Dispatch(ctx, workloadID, req)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}

	switch outcome {
	case dispatch.OutcomeProxied:
		writeUpstreamResponse(w, resp)
	case dispatch.OutcomeNoConfig, dispatch.OutcomeNoMatch:
		s.handleUnrouted(w, r, req, outcome)
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// resolveWorkloadID takes the explicit header first, then the host
// subdomain under the configured suffix.
func (s *EdgeServer) resolveWorkloadID(r *http.Request) string {
	if id := r.Header.Get(WorkloadIDHeader); id != "" {
		return id
	}

	if s.opts.DomainSuffix == "" {
		return ""
	}

	host := r.Host
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	suffix := "." + strings.TrimPrefix(s.opts.DomainSuffix, ".")
	if !strings.HasSuffix(host, suffix) {
		return ""
	}

	workload := strings.TrimSuffix(host, suffix)
	if workload == "" || strings.Contains(workload, ".") {
		return ""
	}
	return workload
}

// handleUnrouted forwards to the default target when one is
// configured, otherwise answers 404.
func (s *EdgeServer) handleUnrouted(
	w http.ResponseWriter, r *http.Request, req *proxy.Request, outcome dispatch.Outcome,
) {
	if s.opts.DefaultTarget == "" {
		if outcome == dispatch.OutcomeNoConfig {
			writeJSONError(w, http.StatusNotFound, "no routing configured for this workload")
		} else {
			writeJSONError(w, http.StatusNotFound, "no matching route")
		}
		return
	}

	match := &router.Match{
		Target:       s.opts.DefaultTarget,
		Pattern:      "/*",
		MatchedPath:  req.Path,
		Wildcard:     true,
		WildcardPath: strings.TrimPrefix(req.Path, "/"),
	}
	targetURL := router.BuildTargetURL(match)

	resp, err := s.forwarder.Forward(r.Context(), match, req, targetURL)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}

	writeUpstreamResponse(w, resp)
}

// writeDispatchError maps dispatch failures to status codes.
func (s *EdgeServer) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		return
	}

	if proxyErr, ok := proxy.AsProxyError(err); ok {
		writeJSONError(w, proxyErr.StatusCode, proxyErr.Message)
		return
	}

	var provErr *provider.Error
	if errors.As(err, &provErr) {
		s.logger.Error("route resolution failed",
			observability.String("path", r.URL.Path),
			observability.Error(err))
		writeJSONError(w, http.StatusBadGateway, "failed to resolve routes")
		return
	}

	s.logger.Error("dispatch failed",
		observability.String("path", r.URL.Path),
		observability.Error(err))
	writeJSONError(w, http.StatusInternalServerError, "internal server error")
}

// hopResponseHeaders are never relayed back to the client.
var hopResponseHeaders = map[string]bool{
	"connection":        true,
	"keep-alive":        true,
	"transfer-encoding": true,
	"upgrade":           true,
	"trailer":           true,
	"content-length":    true,
}

// writeUpstreamResponse relays a normalized upstream response.
func writeUpstreamResponse(w http.ResponseWriter, resp *proxy.Response) {
	for name, value := range resp.Headers {
		if hopResponseHeaders[strings.ToLower(name)] {
			continue
		}
		w.Header().Set(name, value)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.RawBody)
}

// writeJSONError writes a one-field JSON error body.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
