package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/application/orchestrator"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/application/versions"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/application/workers"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/config"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/seed"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/metrics/prometheus"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/api/grpc"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/api/http"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/api/websocket"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting content publisher",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	ctx := context.Background()
	var resources closers

	var redisClient goredis.UniversalClient
	if cfg.UsesRedis() {
		client, err := newRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		redisClient = client
		resources = append(resources, client)
	}

	repo, pg, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	if pg != nil {
		resources = append(resources, pg)
	}

	if cfg.Database.SeedFile != "" {
		fixture, err := seed.LoadFile(cfg.Database.SeedFile)
		if err != nil {
			logger.Fatal("failed to load seed file", zap.Error(err))
		}
		if err := seed.Apply(ctx, repo, fixture, logger); err != nil {
			logger.Fatal("failed to seed store", zap.Error(err))
		}
	}

	queue, queueCloser := newQueue(cfg, redisClient, logger)
	eventBus := newEventBus(cfg, redisClient, logger)
	locker := newLocker(cfg, redisClient, pg, logger)

	syncer, err := newSyncAdapter(ctx, cfg.Sync, logger)
	if err != nil {
		logger.Fatal("failed to create sync adapter", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector(nil)

	orchestratorMgr := orchestrator.NewManager(
		repo,
		versions.NewManager(repo, locker, logger),
		queue,
		syncer,
		eventBus,
		metricsCollector,
		locker,
		orchestrator.NewValidator(),
		logger,
		orchestrator.Config{
			JobTimeout:   cfg.Publish.JobTimeout,
			SyncTimeout:  cfg.Sync.Timeout,
			SaveRetries:  cfg.Publish.SaveRetries,
			SingleFlight: cfg.Publish.SingleFlight,
		},
	)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		queue,
		orchestratorMgr,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	httpServer := http.NewServer(&http.Config{
		Port:      cfg.HTTPPort,
		Publisher: orchestratorMgr,
		Health:    workerPool,
		Logger:    logger,
	})

	wsHandler := websocket.NewHandler(eventBus, orchestratorMgr, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:           cfg.GRPCPort,
		Health:         workerPool,
		HealthInterval: cfg.Workers.HealthCheckInterval,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("content publisher started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.String("store", cfg.Database.Driver),
		zap.String("queue", cfg.Queue.Backend),
		zap.String("sync_adapter", ports.SyncAdapterName(syncer)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	// Cancel running jobs first so workers return promptly; failures are still recorded
	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if queueCloser != nil {
		resources = append(resources, queueCloser)
	}
	resources = append(resources, eventBus)
	resources.closeAll(logger)

	logger.Info("content publisher shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
