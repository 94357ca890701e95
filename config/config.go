package config

import (
	"fmt"
	"time"

	"github.com/enrichflow/enrichflow/job"
	"github.com/enrichflow/enrichflow/reliability/breaker"
	"github.com/enrichflow/enrichflow/reliability/cache"
	"github.com/enrichflow/enrichflow/reliability/ratelimit"
	"github.com/enrichflow/enrichflow/reliability/retry"
)

// Config is the complete enrichflow configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Jobs      JobsConfig      `yaml:"jobs" env:"JOBS"`
	Cache     CacheConfig     `yaml:"cache" env:"CACHE"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	RateLimit RateLimitConfig `yaml:"rate_limit" env:"RATE_LIMIT"`
	Breaker   BreakerConfig   `yaml:"breaker" env:"BREAKER"`
	Retry     RetryConfig     `yaml:"retry" env:"RETRY"`
	Blocks    BlocksConfig    `yaml:"blocks" env:"BLOCKS"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// ClientRateLimit throttles requests per client IP (requests/second);
	// zero disables the middleware.
	ClientRateLimit float64 `yaml:"client_rate_limit" env:"CLIENT_RATE_LIMIT"`
	ClientRateBurst int     `yaml:"client_rate_burst" env:"CLIENT_RATE_BURST"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console.
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// JobsConfig bounds the job store and processor.
type JobsConfig struct {
	MaxJobs         int           `yaml:"max_jobs" env:"MAX_JOBS"`
	MaxAge          time.Duration `yaml:"max_age" env:"MAX_AGE"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
	MaxConcurrent   int64         `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
}

// StoreConfig converts to the job store's own configuration.
func (c JobsConfig) StoreConfig() job.StoreConfig {
	return job.StoreConfig{
		MaxJobs:         c.MaxJobs,
		MaxAge:          c.MaxAge,
		CleanupInterval: c.CleanupInterval,
	}
}

// CacheConfig configures the shared enrichment response cache.
type CacheConfig struct {
	MaxEntries    int           `yaml:"max_entries" env:"MAX_ENTRIES"`
	DefaultTTL    time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// Component converts to the cache package's configuration.
func (c CacheConfig) Component() cache.Config {
	return cache.Config{
		MaxEntries:    c.MaxEntries,
		DefaultTTL:    c.DefaultTTL,
		SweepInterval: c.SweepInterval,
	}
}

// RedisConfig configures the optional Redis-backed cache store.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	PoolSize int    `yaml:"pool_size" env:"POOL_SIZE"`
}

// Component converts to the cache package's Redis configuration.
func (c RedisConfig) Component() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	}
}

// RateLimitConfig is the default per-provider token bucket.
type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests" env:"MAX_REQUESTS"`
	Per         time.Duration `yaml:"per" env:"PER"`
}

// Component converts to the ratelimit package's configuration.
func (c RateLimitConfig) Component() ratelimit.Config {
	return ratelimit.Config{MaxRequests: c.MaxRequests, Per: c.Per}
}

// BreakerConfig is the default per-provider circuit breaker.
type BreakerConfig struct {
	FailureThreshold  int           `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	ResetTimeout      time.Duration `yaml:"reset_timeout" env:"RESET_TIMEOUT"`
	HalfOpenMaxProbes int           `yaml:"half_open_max_probes" env:"HALF_OPEN_MAX_PROBES"`
	HalfOpenSuccesses int           `yaml:"half_open_successes" env:"HALF_OPEN_SUCCESSES"`
}

// Component converts to the breaker package's configuration.
func (c BreakerConfig) Component() breaker.Config {
	return breaker.Config{
		FailureThreshold:  c.FailureThreshold,
		ResetTimeout:      c.ResetTimeout,
		HalfOpenMaxProbes: c.HalfOpenMaxProbes,
		HalfOpenSuccesses: c.HalfOpenSuccesses,
	}
}

// RetryConfig is the base retry policy for provider calls.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	Multiplier   float64       `yaml:"multiplier" env:"MULTIPLIER"`
	Jitter       bool          `yaml:"jitter" env:"JITTER"`
}

// Policy converts to the retry package's policy.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxRetries:   c.MaxRetries,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
		Jitter:       c.Jitter,
	}
}

// BlocksConfig configures the built-in block library.
type BlocksConfig struct {
	// RequestTimeout bounds each outbound provider call.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate rejects configurations that cannot possibly run.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", c.Server.HTTPPort)
	}
	if c.Jobs.MaxJobs <= 0 {
		return fmt.Errorf("jobs.max_jobs must be positive, got %d", c.Jobs.MaxJobs)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Per <= 0 {
		return fmt.Errorf("rate_limit requires positive max_requests and per")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required when redis is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otlp_endpoint required when telemetry is enabled")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}
