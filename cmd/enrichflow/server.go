package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/api/handlers"
	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/blocks"
	"github.com/enrichflow/enrichflow/config"
	"github.com/enrichflow/enrichflow/internal/metrics"
	"github.com/enrichflow/enrichflow/internal/server"
	"github.com/enrichflow/enrichflow/internal/telemetry"
	"github.com/enrichflow/enrichflow/job"
	"github.com/enrichflow/enrichflow/reliability/breaker"
	"github.com/enrichflow/enrichflow/reliability/cache"
	"github.com/enrichflow/enrichflow/reliability/ratelimit"
	"github.com/enrichflow/enrichflow/workflow"
)

// Server wires the job store, processor, block registry, and HTTP layer
// together from configuration.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager *server.Manager

	store      *job.Store
	processor  *job.Processor
	registry   *block.Registry
	engine     *workflow.Engine
	respCache  *cache.Cache[any]
	redisStore *cache.RedisStore

	promRegistry *prometheus.Registry
	collector    *metrics.Collector

	otelProviders *telemetry.Providers

	rateLimiterCancel context.CancelFunc
}

// NewServer creates an unstarted server.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// Start builds every component and begins serving.
func (s *Server) Start() error {
	s.promRegistry = prometheus.NewRegistry()
	s.collector = metrics.NewCollector("enrichflow", s.promRegistry, s.logger)

	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s.logger.Info("Server started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("block_types", len(s.registry.Types())),
	)
	return nil
}

// breakerMetricsHandler mirrors circuit state transitions into the gauge.
type breakerMetricsHandler struct {
	collector *metrics.Collector
	logger    *zap.Logger
}

func (h *breakerMetricsHandler) OnStateChange(event breaker.Event) {
	h.collector.SetBreakerState(event.Service, int(event.NewState))
	h.logger.Info("circuit state change",
		zap.String("service", event.Service),
		zap.String("old_state", event.OldState.String()),
		zap.String("new_state", event.NewState.String()),
		zap.String("reason", event.Reason),
	)
}

func (s *Server) initComponents() error {
	s.respCache = cache.New[any](s.cfg.Cache.Component(), s.logger)

	if s.cfg.Redis.Enabled {
		store, err := cache.NewRedisStore(s.cfg.Redis.Component(), s.logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		s.redisStore = store
	}

	deps := blocks.Deps{
		HTTPClient: &http.Client{Timeout: s.cfg.Blocks.RequestTimeout},
		Cache:      s.respCache,
		Limiters:   ratelimit.NewRegistry(s.cfg.RateLimit.Component(), s.logger),
		Breakers: breaker.NewRegistry(s.cfg.Breaker.Component(), &breakerMetricsHandler{
			collector: s.collector,
			logger:    s.logger,
		}, s.logger),
		RetryBase: s.cfg.Retry.Policy(),
		Logger:    s.logger,
	}

	s.registry = block.NewRegistry()
	if err := blocks.RegisterAll(s.registry, deps); err != nil {
		return fmt.Errorf("register blocks: %w", err)
	}

	s.engine = workflow.NewEngine(s.registry, s.logger)
	s.store = job.NewStore(s.cfg.Jobs.StoreConfig(), s.logger)
	s.processor = job.NewProcessor(s.store, s.cfg.Jobs.MaxConcurrent, s.logger)
	return nil
}

func (s *Server) startHTTPServer() error {
	runners := map[job.Kind]job.Runner{
		job.KindWorkflow: job.WorkflowRunner(s.engine, s.logger),
	}

	jobsHandler := handlers.NewJobsHandler(s.store, s.processor, runners, s.collector, s.logger)

	healthHandler := handlers.NewHealthHandler(s.logger)
	healthHandler.RegisterCheck(storeCheck{store: s.store, max: s.cfg.Jobs.MaxJobs})
	if s.redisStore != nil {
		healthHandler.RegisterCheck(redisCheck{store: s.redisStore})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler.HandleLiveness)
	mux.HandleFunc("GET /readyz", healthHandler.HandleReadiness)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /v1/jobs", jobsHandler.HandleCreate)
	mux.HandleFunc("GET /v1/jobs", jobsHandler.HandleList)
	mux.HandleFunc("GET /v1/jobs/{id}", jobsHandler.HandleGet)
	mux.HandleFunc("DELETE /v1/jobs/{id}", jobsHandler.HandleCancel)

	blocksHandler := handlers.NewBlocksHandler(s.registry, s.logger)
	mux.HandleFunc("GET /v1/blocks", blocksHandler.HandleList)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
	}
	if s.cfg.Server.ClientRateLimit > 0 {
		rateLimiterCtx, cancel := context.WithCancel(context.Background())
		s.rateLimiterCancel = cancel
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, s.cfg.Server.ClientRateLimit, s.cfg.Server.ClientRateBurst, s.logger))
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// WaitForShutdown blocks until a termination signal, then shuts down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops every component in reverse startup order.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")
	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.respCache != nil {
		s.respCache.Close()
	}
	if s.redisStore != nil {
		if err := s.redisStore.Close(); err != nil {
			s.logger.Error("Redis shutdown error", zap.Error(err))
		}
	}
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}

// storeCheck reports the job store unhealthy when it is saturated with
// active jobs; the eviction policy never removes those.
type storeCheck struct {
	store *job.Store
	max   int
}

func (c storeCheck) Name() string { return "job_store" }

func (c storeCheck) Check(ctx context.Context) error {
	if active := c.store.ActiveCount(); active >= c.max {
		return fmt.Errorf("job store saturated: %d active jobs at capacity %d", active, c.max)
	}
	return nil
}

type redisCheck struct {
	store *cache.RedisStore
}

func (c redisCheck) Name() string { return "redis" }

func (c redisCheck) Check(ctx context.Context) error {
	return c.store.Ping(ctx)
}
