package config

import "time"

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			ClientRateLimit: 20,
			ClientRateBurst: 40,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Jobs: JobsConfig{
			MaxJobs:         1000,
			MaxAge:          24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
			MaxConcurrent:   8,
		},
		Cache: CacheConfig{
			MaxEntries:    1000,
			DefaultTTL:    5 * time.Minute,
			SweepInterval: time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 10,
			Per:         time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold:  5,
			ResetTimeout:      30 * time.Second,
			HalfOpenMaxProbes: 3,
			HalfOpenSuccesses: 2,
		},
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		Blocks: BlocksConfig{
			RequestTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "enrichflow",
			SampleRate:  1.0,
		},
	}
}
