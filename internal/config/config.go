package config

import "time"

// Config is the full process configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Admin         AdminConfig         `yaml:"admin"`
	Cache         CacheConfig         `yaml:"cache"`
	Provider      ProviderConfig      `yaml:"provider"`
	Proxy         ProxyConfig         `yaml:"proxy"`
	RateLimit     *RateLimitConfig    `yaml:"rateLimit,omitempty"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the edge listener.
type ServerConfig struct {
	// Address is the listen address, ":8080" by default.
	Address string `yaml:"address"`

	// DomainSuffix resolves workload IDs from request hosts:
	// <workload>.<suffix>. Empty disables host-based resolution.
	DomainSuffix string `yaml:"domainSuffix"`

	// DefaultTarget receives requests with no config or no matching
	// route instead of a 404 when set.
	DefaultTarget string `yaml:"defaultTarget"`

	// ReadTimeout bounds request header+body reads.
	ReadTimeout Duration `yaml:"readTimeout"`

	// WriteTimeout bounds response writes.
	WriteTimeout Duration `yaml:"writeTimeout"`

	// IdleTimeout bounds keep-alive idle connections.
	IdleTimeout Duration `yaml:"idleTimeout"`
}

// AdminConfig configures the admin/health listener.
type AdminConfig struct {
	// Address is the admin listen address, ":9090" by default.
	Address string `yaml:"address"`

	// Enabled turns the admin server on.
	Enabled bool `yaml:"enabled"`
}

// CacheConfig configures the route cache.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`

	// TTL is the entry time-to-live, 300s by default.
	TTL Duration `yaml:"ttl"`

	// RedisURL is the Redis connection URL (redis backend only).
	RedisURL string `yaml:"redisUrl"`

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `yaml:"keyPrefix"`

	// CleanupInterval is the expired-entry sweep period for the memory
	// backend. Zero disables the sweep.
	CleanupInterval Duration `yaml:"cleanupInterval"`
}

// ProviderConfig configures the route provider.
type ProviderConfig struct {
	// Endpoint is the control-plane base URL.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds one fetch.
	Timeout Duration `yaml:"timeout"`

	// Token is an optional bearer token.
	Token string `yaml:"token"`

	// Breaker configures the circuit breaker around fetches.
	Breaker BreakerConfig `yaml:"breaker"`

	// Static maps workload IDs to route tables, replacing the HTTP
	// provider when non-empty. Single-tenant and test deployments.
	Static map[string]map[string]string `yaml:"static,omitempty"`
}

// BreakerConfig configures the provider circuit breaker.
type BreakerConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Threshold int      `yaml:"threshold"`
	Timeout   Duration `yaml:"timeout"`
}

// ProxyConfig configures upstream forwarding.
type ProxyConfig struct {
	// Timeout bounds one upstream call, 30s by default.
	Timeout Duration `yaml:"timeout"`
}

// RateLimitConfig configures inbound rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerSecond int  `yaml:"requestsPerSecond"`
	Burst             int  `yaml:"burst"`
	PerClient         bool `yaml:"perClient"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is json or console.
	Format string `yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `yaml:"output"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Default returns a configuration with sane defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			IdleTimeout:  Duration(120 * time.Second),
		},
		Admin: AdminConfig{
			Address: ":9090",
			Enabled: true,
		},
		Cache: CacheConfig{
			Backend:         "memory",
			TTL:             Duration(300 * time.Second),
			CleanupInterval: Duration(60 * time.Second),
		},
		Provider: ProviderConfig{
			Timeout: Duration(10 * time.Second),
			Breaker: BreakerConfig{
				Enabled:   true,
				Threshold: 5,
				Timeout:   Duration(30 * time.Second),
			},
		},
		Proxy: ProxyConfig{
			Timeout: Duration(30 * time.Second),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Tracing: TracingConfig{
				SamplingRate: 1.0,
			},
		},
	}
}

// applyDefaults fills zero-valued fields from Default.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = def.Server.IdleTimeout
	}
	if c.Admin.Address == "" {
		c.Admin.Address = def.Admin.Address
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = def.Cache.Backend
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = def.Provider.Timeout
	}
	if c.Provider.Breaker.Threshold == 0 {
		c.Provider.Breaker.Threshold = def.Provider.Breaker.Threshold
	}
	if c.Provider.Breaker.Timeout == 0 {
		c.Provider.Breaker.Timeout = def.Provider.Breaker.Timeout
	}
	if c.Proxy.Timeout == 0 {
		c.Proxy.Timeout = def.Proxy.Timeout
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = def.Observability.Logging.Level
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = def.Observability.Logging.Format
	}
	if c.Observability.Logging.Output == "" {
		c.Observability.Logging.Output = def.Observability.Logging.Output
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = def.Observability.Metrics.Path
	}
	if c.Observability.Tracing.SamplingRate == 0 {
		c.Observability.Tracing.SamplingRate = def.Observability.Tracing.SamplingRate
	}
}
