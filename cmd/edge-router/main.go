// Package main is the entry point for the edge router.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudrelay/edge-router/internal/config"
	"github.com/cloudrelay/edge-router/internal/dispatch"
	"github.com/cloudrelay/edge-router/internal/health"
	"github.com/cloudrelay/edge-router/internal/middleware"
	"github.com/cloudrelay/edge-router/internal/observability"
	"github.com/cloudrelay/edge-router/internal/provider"
	"github.com/cloudrelay/edge-router/internal/proxy"
	"github.com/cloudrelay/edge-router/internal/route"
	"github.com/cloudrelay/edge-router/internal/routecache"
	"github.com/cloudrelay/edge-router/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("EDGE_ROUTER_CONFIG_PATH", "configs/edge-router.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("EDGE_ROUTER_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("EDGE_ROUTER_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("edge-router version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting edge-router",
		observability.String("version", version),
		observability.String("config", configPath))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.Validate(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("address", cfg.Server.Address),
		observability.String("cache_backend", cfg.Cache.Backend),
		observability.String("provider", cfg.Provider.Endpoint))

	return cfg
}

// application holds all wired components.
type application struct {
	edge        *server.EdgeServer
	admin       *server.AdminServer
	dispatcher  *dispatch.Dispatcher
	cache       routecache.Cache
	rateLimiter *middleware.RateLimiter
	tracer      *observability.Tracer
	config      *config.Config
}

// initApplication wires every component from the configuration.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	metrics := observability.NewMetrics("")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer := initTracer(cfg, logger)

	cache := initCache(cfg, logger)
	prov := initProvider(cfg, logger)

	forwarder := proxy.NewForwarder(
		proxy.WithTimeout(cfg.Proxy.Timeout.Duration()),
		proxy.WithLogger(logger),
	)

	dispatcher := dispatch.New(cache, prov, forwarder, dispatch.WithLogger(logger))

	chain, rateLimiter := buildMiddlewareChain(cfg, logger, metrics)

	edge := server.NewEdgeServer(server.EdgeOptions{
		Address:       cfg.Server.Address,
		DomainSuffix:  cfg.Server.DomainSuffix,
		DefaultTarget: cfg.Server.DefaultTarget,
		ReadTimeout:   cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:  cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:   cfg.Server.IdleTimeout.Duration(),
	}, dispatcher, forwarder, logger, chain...)

	var admin *server.AdminServer
	if cfg.Admin.Enabled {
		checker := health.NewHandler(logger)
		checker.AddCheck(health.NewCheckFunc("cache", func(context.Context) error {
			_ = cache.Stats()
			return nil
		}))

		metricsPath := ""
		if cfg.Observability.Metrics.Enabled {
			metricsPath = cfg.Observability.Metrics.Path
		}

		admin = server.NewAdminServer(server.AdminOptions{
			Address:     cfg.Admin.Address,
			MetricsPath: metricsPath,
		}, dispatcher, checker, metrics.Handler(), logger)
	}

	return &application{
		edge:        edge,
		admin:       admin,
		dispatcher:  dispatcher,
		cache:       cache,
		rateLimiter: rateLimiter,
		tracer:      tracer,
		config:      cfg,
	}
}

// initTracer initializes OTLP trace export.
func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "edge-router",
		Enabled:      cfg.Observability.Tracing.Enabled,
		OTLPEndpoint: cfg.Observability.Tracing.Endpoint,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}
	return tracer
}

// initCache builds the route cache and starts the expiry sweep for the
// memory backend.
func initCache(cfg *config.Config, logger observability.Logger) routecache.Cache {
	cache, err := routecache.New(routecache.Options{
		Backend:   cfg.Cache.Backend,
		TTL:       cfg.Cache.TTL.Duration(),
		RedisURL:  cfg.Cache.RedisURL,
		KeyPrefix: cfg.Cache.KeyPrefix,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize route cache", observability.Error(err))
	}

	if interval := cfg.Cache.CleanupInterval.Duration(); interval > 0 {
		if sweeper, ok := cache.(interface{ StartCleanupLoop(time.Duration) }); ok {
			sweeper.StartCleanupLoop(interval)
		}
	}

	return cache
}

// initProvider builds the route provider: static table when
// configured, otherwise HTTP with an optional circuit breaker.
func initProvider(cfg *config.Config, logger observability.Logger) dispatch.Provider {
	if len(cfg.Provider.Static) > 0 {
		tables := make(map[string]route.Config, len(cfg.Provider.Static))
		for workloadID, routes := range cfg.Provider.Static {
			tables[workloadID] = route.Config(routes)
		}
		logger.Info("using static route provider",
			observability.Int("workloads", len(tables)))
		return provider.NewStaticProvider(tables)
	}

	httpProv, err := provider.NewHTTPProvider(cfg.Provider.Endpoint,
		provider.WithHTTPTimeout(cfg.Provider.Timeout.Duration()),
		provider.WithBearerToken(cfg.Provider.Token),
		provider.WithHTTPLogger(logger),
	)
	if err != nil {
		logger.Fatal("failed to initialize route provider", observability.Error(err))
	}

	if cfg.Provider.Breaker.Enabled {
		return provider.NewBreakerProvider(httpProv,
			cfg.Provider.Breaker.Threshold,
			cfg.Provider.Breaker.Timeout.Duration(),
			provider.WithBreakerLogger(logger))
	}
	return httpProv
}

// buildMiddlewareChain assembles the edge middleware, outermost first.
func buildMiddlewareChain(
	cfg *config.Config,
	logger observability.Logger,
	metrics *observability.Metrics,
) ([]server.Middleware, *middleware.RateLimiter) {
	chain := []server.Middleware{
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		observability.MetricsMiddleware(metrics),
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(
			cfg.RateLimit.RequestsPerSecond,
			cfg.RateLimit.Burst,
			cfg.RateLimit.PerClient,
			middleware.WithRateLimiterLogger(logger))
		if cfg.RateLimit.PerClient {
			rateLimiter.StartAutoCleanup()
		}
		chain = append(chain, middleware.RateLimit(rateLimiter))
	}

	return chain, rateLimiter
}

// run starts the servers and blocks until shutdown.
func run(app *application, configPath string, logger observability.Logger) {
	errCh := make(chan error, 2)

	go func() {
		if err := app.edge.Start(); err != nil {
			errCh <- err
		}
	}()

	if app.admin != nil {
		go func() {
			if err := app.admin.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, errCh, logger)
}

// startConfigWatcher watches the config file; a successful reload
// clears the route cache so new provider data is picked up.
func startConfigWatcher(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(*config.Config) {
		logger.Info("configuration changed, clearing route cache")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if clearErr := app.dispatcher.ClearCache(ctx); clearErr != nil {
			logger.Error("failed to clear route cache", observability.Error(clearErr))
		}
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown blocks on a signal or server failure and stops
// everything gracefully.
func waitForShutdown(
	app *application,
	watcher *config.Watcher,
	errCh <-chan error,
	logger observability.Logger,
) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server failed", observability.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.edge.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop edge server gracefully", observability.Error(err))
	}

	if app.admin != nil {
		if err := app.admin.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop admin server gracefully", observability.Error(err))
		}
	}

	if app.rateLimiter != nil {
		app.rateLimiter.Stop()
	}

	if err := app.cache.Close(); err != nil {
		logger.Error("failed to close route cache", observability.Error(err))
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("edge-router stopped")
}
