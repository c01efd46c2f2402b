package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the publishing service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"PUBLISHER_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"PUBLISHER_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Events   EventsConfig
	Locks    LocksConfig
	Workers  WorkerConfig
	Sync     SyncConfig
	Publish  PublishConfig
	Timeouts TimeoutConfig
}

// DatabaseConfig selects and configures the project/job store
type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"memory"`
	DSN             string        `env:"DB_DSN"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	RunMigrations   bool          `env:"DB_RUN_MIGRATIONS" envDefault:"true"`
	SeedFile        string        `env:"DB_SEED_FILE"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Prefix   string `env:"REDIS_KEY_PREFIX" envDefault:"publisher"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// QueueConfig configures the publish job queue
type QueueConfig struct {
	Backend  string `env:"QUEUE_BACKEND" envDefault:"memory"`
	Capacity int    `env:"QUEUE_CAPACITY" envDefault:"256"`
	Key      string `env:"QUEUE_KEY" envDefault:"publish:jobs"`
}

// EventsConfig configures the job event bus
type EventsConfig struct {
	Backend       string `env:"EVENTS_BACKEND" envDefault:"memory"`
	StreamMaxLen  int64  `env:"EVENTS_STREAM_MAX_LEN" envDefault:"10000"`
	ConsumerGroup string `env:"EVENTS_CONSUMER_GROUP"`
	ConsumerName  string `env:"EVENTS_CONSUMER_NAME"`
}

// LocksConfig configures the version-numbering lock
type LocksConfig struct {
	Backend string        `env:"LOCKS_BACKEND" envDefault:"memory"`
	TTL     time.Duration `env:"LOCKS_TTL" envDefault:"30s"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// SyncConfig selects and configures the external platform adapter
type SyncConfig struct {
	Adapter    string        `env:"SYNC_ADAPTER" envDefault:"stub"`
	Endpoint   string        `env:"SYNC_ENDPOINT"`
	APIKey     string        `env:"SYNC_API_KEY"`
	Timeout    time.Duration `env:"SYNC_TIMEOUT" envDefault:"30s"`
	Retries    int           `env:"SYNC_RETRIES" envDefault:"3"`
	RetryDelay time.Duration `env:"SYNC_RETRY_DELAY" envDefault:"1s"`

	S3Region          string `env:"SYNC_S3_REGION" envDefault:"us-east-1"`
	S3Bucket          string `env:"SYNC_S3_BUCKET"`
	S3Prefix          string `env:"SYNC_S3_PREFIX" envDefault:"bundles"`
	S3AccessKeyID     string `env:"SYNC_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"SYNC_S3_SECRET_ACCESS_KEY"`
	S3Endpoint        string `env:"SYNC_S3_ENDPOINT"`
	S3UsePathStyle    bool   `env:"SYNC_S3_USE_PATH_STYLE" envDefault:"false"`
}

// PublishConfig tunes publish job execution
type PublishConfig struct {
	SingleFlight bool          `env:"PUBLISH_SINGLE_FLIGHT" envDefault:"false"`
	JobTimeout   time.Duration `env:"PUBLISH_JOB_TIMEOUT" envDefault:"5m"`
	SaveRetries  int           `env:"PUBLISH_SAVE_RETRIES" envDefault:"3"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from a .env file, when present, and environment variables
func Load() (*Config, error) {
	if err := loadDotEnv(os.Getenv("PUBLISHER_ENV_FILE")); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv never overrides variables already set in the environment
func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s (must be memory or postgres)", c.Database.Driver)
	}

	for name, backend := range map[string]string{
		"queue":  c.Queue.Backend,
		"events": c.Events.Backend,
	} {
		if backend != "memory" && backend != "redis" {
			return fmt.Errorf("unsupported %s backend: %s (must be memory or redis)", name, backend)
		}
	}
	switch c.Locks.Backend {
	case "memory", "redis":
	case "postgres":
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("postgres locks require the postgres database driver")
		}
	default:
		return fmt.Errorf("unsupported locks backend: %s (must be memory, redis, or postgres)", c.Locks.Backend)
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Queue.Capacity < 1 {
		return fmt.Errorf("queue capacity must be at least 1")
	}

	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}

	switch c.Sync.Adapter {
	case "stub":
	case "http":
		if c.Sync.Endpoint == "" {
			return fmt.Errorf("SYNC_ENDPOINT is required for the http adapter")
		}
	case "s3":
		if c.Sync.S3Bucket == "" {
			return fmt.Errorf("SYNC_S3_BUCKET is required for the s3 adapter")
		}
	default:
		return fmt.Errorf("unsupported sync adapter: %s (must be stub, http, or s3)", c.Sync.Adapter)
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync timeout must be positive")
	}
	if c.Sync.Retries < 1 {
		return fmt.Errorf("sync retries must be at least 1")
	}

	if c.Publish.JobTimeout <= 0 {
		return fmt.Errorf("publish job timeout must be positive")
	}
	if c.Publish.SaveRetries < 1 {
		return fmt.Errorf("publish save retries must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// UsesRedis reports whether any backend needs a redis client
func (c *Config) UsesRedis() bool {
	return c.Queue.Backend == "redis" || c.Events.Backend == "redis" || c.Locks.Backend == "redis"
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
