// Package config loads configuration for the anomaly service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the anomaly service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Fanout    FanoutConfig    `mapstructure:"fanout"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// TrustProxyHeaders makes X-Forwarded-For / X-Real-IP authoritative for
	// the caller address. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// IngestionConfig configures the raw ingestion gateway.
type IngestionConfig struct {
	Path        string `mapstructure:"path"`
	Token       string `mapstructure:"token"`
	MaxBodySize int64  `mapstructure:"max_body_size"`
}

// WorkerConfig configures the validated-create endpoint.
type WorkerConfig struct {
	Token string `mapstructure:"token"`
}

// RedisConfig configures the shared Redis connection pool.
type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	// MaxRetries is the number of times a failed command is resent. XADD is
	// not idempotent, so the default of -1 disables retries.
	MaxRetries int `mapstructure:"max_retries"`
}

// QueueConfig configures the bounded raw-event queue.
type QueueConfig struct {
	// Backend is "redis" (Redis Stream) or "jetstream".
	Backend string `mapstructure:"backend"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"max_len"`
}

// DatabaseConfig configures the PostgreSQL store.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConns       int32         `mapstructure:"max_conns"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Migrate        bool          `mapstructure:"migrate"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// FanoutConfig configures live propagation of new anomalies.
type FanoutConfig struct {
	// Backend is "redis" or "nats".
	Backend        string        `mapstructure:"backend"`
	Subject        string        `mapstructure:"subject"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	ObserverBuffer int           `mapstructure:"observer_buffer"`
}

// NATSConfig holds NATS connection settings, used when a backend is nats or jetstream.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	BackendRedis     = "redis"
	BackendNATS      = "nats"
	BackendJetStream = "jetstream"
)

// legacyEnv maps config keys to the environment names used by existing
// deployments. They are honoured alongside the ANOMALY_ prefixed names.
var legacyEnv = map[string]string{
	"ingestion.path":     "INGESTION_PATH",
	"ingestion.token":    "INGESTION_TOKEN",
	"worker.token":       "ANOMALY_WORKER_TOKEN",
	"redis.url":          "REDIS_URL",
	"redis.pool_size":    "REDIS_POOL",
	"redis.pool_timeout": "REDIS_POOL_TIMEOUT",
	"queue.stream":       "REDIS_STREAM_NAME",
	"queue.max_len":      "STREAM_MAX_LEN",
	"database.url":       "DATABASE_URL",
	"nats.url":           "NATS_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.trust_proxy_headers", false)

	v.SetDefault("ingestion.path", "/ingest")
	v.SetDefault("ingestion.token", "dev-ingest-token")
	v.SetDefault("ingestion.max_body_size", 10<<20)

	v.SetDefault("worker.token", "dev-secret-change-me")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.pool_timeout", "3s")
	v.SetDefault("redis.max_retries", -1)

	v.SetDefault("queue.backend", BackendRedis)
	v.SetDefault("queue.stream", "anomaly:raw")
	v.SetDefault("queue.max_len", 50000)

	v.SetDefault("database.url", "postgres://telhawk@localhost:5432/telhawk_anomaly?sslmode=disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.acquire_timeout", "3s")
	v.SetDefault("database.query_timeout", "5s")
	v.SetDefault("database.write_timeout", "10s")
	v.SetDefault("database.migrate", false)
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("fanout.backend", BackendRedis)
	v.SetDefault("fanout.subject", "anomalies")
	v.SetDefault("fanout.publish_timeout", "1s")
	v.SetDefault("fanout.observer_buffer", 64)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configuration from an optional file and the environment.
// Environment variables (ANOMALY_SERVER_PORT, ...) override the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/telhawk/anomaly")
	}

	v.SetEnvPrefix("ANOMALY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "ANOMALY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Ingestion.Path == "" || !strings.HasPrefix(c.Ingestion.Path, "/") {
		errs = append(errs, fmt.Errorf("ingestion.path must start with '/' (got %q)", c.Ingestion.Path))
	}
	if c.Ingestion.Token == "" {
		errs = append(errs, errors.New("ingestion.token must not be empty"))
	}
	if c.Worker.Token == "" {
		errs = append(errs, errors.New("worker.token must not be empty"))
	}
	if c.Ingestion.Token != "" && c.Ingestion.Token == c.Worker.Token {
		errs = append(errs, errors.New("ingestion.token and worker.token must differ"))
	}
	if c.Ingestion.MaxBodySize < 0 {
		errs = append(errs, errors.New("ingestion.max_body_size must not be negative"))
	}
	if c.Redis.PoolSize <= 0 {
		errs = append(errs, errors.New("redis.pool_size must be positive"))
	}
	if c.Redis.PoolTimeout <= 0 {
		errs = append(errs, errors.New("redis.pool_timeout must be positive"))
	}
	if c.Queue.MaxLen <= 0 {
		errs = append(errs, errors.New("queue.max_len must be positive"))
	}
	if c.Queue.Stream == "" {
		errs = append(errs, errors.New("queue.stream must not be empty"))
	}
	switch c.Queue.Backend {
	case BackendRedis, BackendJetStream:
	default:
		errs = append(errs, fmt.Errorf("queue.backend must be %q or %q (got %q)", BackendRedis, BackendJetStream, c.Queue.Backend))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, errors.New("database.max_conns must be positive"))
	}
	if c.Database.AcquireTimeout <= 0 {
		errs = append(errs, errors.New("database.acquire_timeout must be positive"))
	}
	switch c.Fanout.Backend {
	case BackendRedis, BackendNATS:
	default:
		errs = append(errs, fmt.Errorf("fanout.backend must be %q or %q (got %q)", BackendRedis, BackendNATS, c.Fanout.Backend))
	}
	if c.Fanout.Subject == "" {
		errs = append(errs, errors.New("fanout.subject must not be empty"))
	}
	if c.Fanout.ObserverBuffer <= 0 {
		errs = append(errs, errors.New("fanout.observer_buffer must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// UsesNATS reports whether any component needs a NATS connection.
func (c *Config) UsesNATS() bool {
	return c.Fanout.Backend == BackendNATS || c.Queue.Backend == BackendJetStream
}
