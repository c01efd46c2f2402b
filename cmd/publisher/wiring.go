package main

import (
	"context"
	"fmt"
	"io"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/config"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/seed"
	eventmem "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/events/memory"
	eventredis "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/events/redis"
	lockmem "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/lock/memory"
	lockredis "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/lock/redis"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/platform"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/platform/httpapi"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/platform/s3"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/platform/stub"
	queuemem "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/queue/memory"
	queueredis "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/queue/redis"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/storage/memory"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/storage/postgres"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

// store is a repository that can also be seeded
type store interface {
	ports.Repository
	seed.Importer
}

// closers are released in reverse order on shutdown
type closers []io.Closer

func (c closers) closeAll(logger *zap.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			logger.Error("failed to close resource", zap.Error(err))
		}
	}
}

func newRedisClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
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

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Addr))
	return client, nil
}

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store, *postgres.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pg, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			RunMigrations:   cfg.Database.RunMigrations,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to PostgreSQL", zap.Bool("migrated", cfg.Database.RunMigrations))
		return pg, pg, nil
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), nil, nil
	}
}

func newQueue(cfg *config.Config, client goredis.UniversalClient, logger *zap.Logger) (ports.JobQueue, io.Closer) {
	if cfg.Queue.Backend == "redis" {
		key := fmt.Sprintf("%s:%s", cfg.Redis.Prefix, cfg.Queue.Key)
		return queueredis.NewQueue(client, key, cfg.Queue.Capacity, logger), nil
	}
	q := queuemem.NewQueue(cfg.Queue.Capacity)
	return q, q
}

func newEventBus(cfg *config.Config, client goredis.UniversalClient, logger *zap.Logger) ports.EventBus {
	if cfg.Events.Backend == "redis" {
		consumer := cfg.Events.ConsumerName
		if consumer == "" {
			consumer = fmt.Sprintf("publisher-%d", os.Getpid())
		}
		return eventredis.NewStreamsEventBus(client, cfg.Redis.Prefix, cfg.Events.StreamMaxLen,
			cfg.Events.ConsumerGroup, consumer, logger)
	}
	return eventmem.NewInMemoryEventBus(logger)
}

func newLocker(cfg *config.Config, client goredis.UniversalClient, pg *postgres.Store, logger *zap.Logger) ports.Locker {
	switch cfg.Locks.Backend {
	case "redis":
		return lockredis.NewLocker(client, cfg.Redis.Prefix, cfg.Locks.TTL, logger)
	case "postgres":
		return postgres.NewAdvisoryLocker(pg.DB(), logger)
	default:
		return lockmem.NewLocker()
	}
}

// newSyncAdapter builds the platform adapter wrapped in idempotent retries
func newSyncAdapter(ctx context.Context, cfg config.SyncConfig, logger *zap.Logger) (ports.SyncAdapter, error) {
	var adapter ports.SyncAdapter
	switch cfg.Adapter {
	case "http":
		a, err := httpapi.New(httpapi.Config{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.Timeout,
		}, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create http sync adapter: %w", err)
		}
		adapter = a
	case "s3":
		a, err := s3.New(ctx, s3.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 sync adapter: %w", err)
		}
		adapter = a
	default:
		logger.Warn("using stub sync adapter; bundles are not sent anywhere")
		adapter = stub.New(logger)
	}

	return platform.NewRetrying(adapter, cfg.Retries, cfg.RetryDelay, logger), nil
}
