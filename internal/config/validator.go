package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudrelay/edge-router/internal/route"
)

// ValidationError is one configuration validation failure.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors reports whether any validation errors were collected.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate checks a configuration and returns every problem found.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	addError := func(path, message string) {
		errs = append(errs, ValidationError{Path: path, Message: message})
	}

	if cfg == nil {
		addError("", "configuration is nil")
		return errs
	}

	if cfg.Server.Address == "" {
		addError("server.address", "listen address is required")
	}
	if cfg.Server.DefaultTarget != "" {
		if !isAbsoluteHTTPURL(cfg.Server.DefaultTarget) {
			addError("server.defaultTarget", "must be an absolute http or https URL")
		}
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Cache.RedisURL == "" {
			addError("cache.redisUrl", "required for the redis backend")
		}
	default:
		addError("cache.backend", fmt.Sprintf("unknown backend %q", cfg.Cache.Backend))
	}
	if cfg.Cache.TTL < 0 {
		addError("cache.ttl", "must not be negative")
	}

	if cfg.Provider.Endpoint == "" && len(cfg.Provider.Static) == 0 {
		addError("provider", "either endpoint or static routes are required")
	}
	if cfg.Provider.Endpoint != "" && !isAbsoluteHTTPURL(cfg.Provider.Endpoint) {
		addError("provider.endpoint", "must be an absolute http or https URL")
	}
	if cfg.Provider.Breaker.Enabled && cfg.Provider.Breaker.Threshold <= 0 {
		addError("provider.breaker.threshold", "must be positive")
	}
	for workloadID, table := range cfg.Provider.Static {
		if err := route.Validate(route.Config(table)); err != nil {
			addError("provider.static."+workloadID, err.Error())
		}
	}

	if cfg.Proxy.Timeout <= 0 {
		addError("proxy.timeout", "must be positive")
	}

	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			addError("rateLimit.requestsPerSecond", "must be positive")
		}
		if cfg.RateLimit.Burst <= 0 {
			addError("rateLimit.burst", "must be positive")
		}
	}

	switch cfg.Observability.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		addError("observability.logging.level",
			fmt.Sprintf("unknown level %q", cfg.Observability.Logging.Level))
	}
	switch cfg.Observability.Logging.Format {
	case "json", "console":
	default:
		addError("observability.logging.format",
			fmt.Sprintf("unknown format %q", cfg.Observability.Logging.Format))
	}

	if cfg.Observability.Tracing.Enabled && cfg.Observability.Tracing.Endpoint == "" {
		addError("observability.tracing.endpoint", "required when tracing is enabled")
	}
	if rate := cfg.Observability.Tracing.SamplingRate; rate < 0 || rate > 1 {
		addError("observability.tracing.samplingRate", "must be between 0 and 1")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// isAbsoluteHTTPURL reports whether s parses as an absolute http(s)
// URL with a host.
func isAbsoluteHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
