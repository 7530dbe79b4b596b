package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/agents"
	"github.com/aescanero/sparkcopilot/internal/application/orchestrator"
	"github.com/aescanero/sparkcopilot/internal/application/retention"
	"github.com/aescanero/sparkcopilot/internal/application/workers"
	"github.com/aescanero/sparkcopilot/internal/config"
	"github.com/aescanero/sparkcopilot/internal/graph"
	"github.com/aescanero/sparkcopilot/internal/pipeline"
	eventsmemory "github.com/aescanero/sparkcopilot/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/sparkcopilot/pkg/adapters/events/redis"
	"github.com/aescanero/sparkcopilot/pkg/adapters/llm"
	promcollector "github.com/aescanero/sparkcopilot/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/sparkcopilot/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/sparkcopilot/pkg/adapters/storage/redis"
	"github.com/aescanero/sparkcopilot/pkg/adapters/storage/sqlite"
	"github.com/aescanero/sparkcopilot/pkg/adapters/tracing"
	apigrpc "github.com/aescanero/sparkcopilot/pkg/api/grpc"
	apihttp "github.com/aescanero/sparkcopilot/pkg/api/http"
	"github.com/aescanero/sparkcopilot/pkg/api/websocket"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// NewServeCmd creates the "serve" subcommand. Configuration comes from the
// environment.
func NewServeCmd(version, buildTime string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP, WebSocket and gRPC service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, version, buildTime)
		},
	}
}

// core holds the components shared by every API surface
type core struct {
	cfg       *config.Config
	logger    *zap.Logger
	redis     *goredis.Client
	store     ports.AnalysisStore
	eventBus  ports.EventBus
	registry  *prometheus.Registry
	collector *promcollector.Collector
	tracing   *tracing.Provider
	plan      *pipeline.Plan
	manager   *orchestrator.Manager
	pool      *workers.Pool
	sweeper   *retention.Sweeper

	closers []func() error
}

// newCore builds storage, events, metrics, tracing, the pipeline and the
// orchestrator. Nothing is started.
func newCore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (c *core, err error) {
	c = &core{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			c.close()
		}
	}()

	if cfg.Storage.Backend == config.BackendRedis || cfg.Events.Backend == config.BackendRedis {
		c.redis = newRedisClient(cfg.Redis)
		c.closers = append(c.closers, c.redis.Close)

		if err := c.redis.Ping(ctx).Err(); err != nil {
			return c, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	if c.store, err = c.openStore(); err != nil {
		return c, err
	}
	c.eventBus = c.openEventBus()
	c.closers = append(c.closers, c.eventBus.Close)

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.collector = promcollector.NewCollector(c.registry)

	if c.tracing, err = tracing.NewProvider(ctx, cfg.Tracing, logger); err != nil {
		return c, err
	}

	advisor, err := llm.NewAdvisor(cfg.LLM, c.collector, logger)
	if err != nil {
		return c, fmt.Errorf("failed to create LLM advisor: %w", err)
	}

	observers := graph.MultiObserver{
		orchestrator.NewStepPublisher(c.eventBus, logger),
		c.collector,
		tracing.NewObserver(c.tracing.Tracer("sparkcopilot/pipeline")),
	}

	c.plan, err = pipeline.Standard(
		agents.Config{Advisor: advisor, SkewThreshold: cfg.Pipeline.SkewThreshold},
		pipeline.Options{
			MaxSteps:      cfg.Pipeline.MaxSteps,
			StepTimeout:   cfg.Timeouts.StepTimeout,
			SkewRouting:   cfg.Pipeline.SkewRouting,
			SkewThreshold: cfg.Pipeline.SkewThreshold,
		},
		[]agents.Option{agents.WithLogger(logger)},
		graph.WithLogger(logger),
		graph.WithObserver(observers),
	)
	if err != nil {
		return c, fmt.Errorf("failed to compile pipeline: %w", err)
	}

	c.manager = orchestrator.NewManager(
		c.plan,
		c.store,
		c.eventBus,
		c.collector,
		logger,
		cfg.Timeouts.AnalysisTimeout,
	)

	c.pool = workers.NewPool(
		cfg.Workers.PoolSize,
		cfg.Workers.QueueSize,
		c.manager,
		c.collector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)
	c.manager.SetQueue(c.pool)

	if cfg.Storage.RetentionSchedule != "" {
		c.sweeper, err = retention.NewSweeper(c.store, cfg.Storage.RetentionSchedule, cfg.Storage.TTL, logger)
		if err != nil {
			return c, err
		}
	}

	return c, nil
}

func newRedisClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

func (c *core) openStore() (ports.AnalysisStore, error) {
	switch c.cfg.Storage.Backend {
	case config.BackendRedis:
		return storageredis.NewAnalysisStore(c.redis, c.cfg.Storage.TTL, c.logger), nil
	case config.BackendSQLite:
		store, err := sqlite.Open(c.cfg.Storage.SQLitePath, c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	default:
		return storagememory.NewAnalysisStore(), nil
	}
}

func (c *core) openEventBus() ports.EventBus {
	if c.cfg.Events.Backend == config.BackendRedis {
		return eventsredis.NewStreamsEventBus(c.redis, c.cfg.Events.ConsumerGroup, c.cfg.Events.StreamMaxLen, c.logger)
	}
	return eventsmemory.NewInMemoryEventBus()
}

// start launches the workers and the retention schedule
func (c *core) start() error {
	if err := c.pool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	if c.sweeper != nil {
		c.sweeper.Start()
	}
	return nil
}

// shutdown drains the workers and the orchestrator, then releases the
// backends
func (c *core) shutdown(ctx context.Context) {
	if err := c.pool.Shutdown(ctx); err != nil {
		c.logger.Error("worker pool shutdown error", zap.Error(err))
	}
	if err := c.manager.Shutdown(ctx); err != nil {
		c.logger.Error("orchestrator shutdown error", zap.Error(err))
	}
	if c.sweeper != nil {
		if err := c.sweeper.Stop(ctx); err != nil {
			c.logger.Error("retention sweeper shutdown error", zap.Error(err))
		}
	}
	if err := c.tracing.Shutdown(ctx); err != nil {
		c.logger.Error("tracing shutdown error", zap.Error(err))
	}
	c.close()
}

// close releases backends in reverse order of opening
func (c *core) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Error("close error", zap.Error(err))
		}
	}
	c.closers = nil
}

func runServe(cmd *cobra.Command, version, buildTime string) error {
	cfg, err := config.Load()
	if err != nil {
		return exitError(exitValidation, "failed to load config: %v", err)
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting Spark Intelligence Copilot",
		zap.String("version", version),
		zap.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := newCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := c.start(); err != nil {
		c.close()
		return err
	}

	httpServer := apihttp.NewServer(&apihttp.Config{
		Port:          cfg.HTTPPort,
		Orchestrator:  c.manager,
		Plan:          c.plan,
		Health:        c.pool.Health(),
		Gatherer:      c.registry,
		CORSOrigins:   cfg.CORSOrigins,
		SkewThreshold: cfg.Pipeline.SkewThreshold,
		Logger:        logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(c.eventBus, c.manager, logger))

	grpcServer, err := apigrpc.NewServer(&apigrpc.Config{
		Port:          cfg.GRPCPort,
		Health:        c.pool.Health(),
		CheckInterval: cfg.Workers.HealthCheckInterval,
		Logger:        logger,
	})
	if err != nil {
		c.shutdown(context.Background())
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- httpServer.Start() }()
	go func() { errCh <- grpcServer.Start() }()

	logger.Info("Spark Intelligence Copilot started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("events", cfg.Events.Backend),
		zap.Bool("llm_advisor", cfg.LLM.Enabled()))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case serveErr = <-errCh:
		logger.Error("server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}
	c.shutdown(shutdownCtx)

	logger.Info("Spark Intelligence Copilot shut down complete")

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return exitError(exitRuntime, "%v", serveErr)
	}
	return nil
}
