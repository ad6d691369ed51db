package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Checkout      CheckoutConfig      `mapstructure:"checkout"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// WebhookConfig covers the processor-facing intake boundary.
type WebhookConfig struct {
	SigningSecret string        `mapstructure:"signing_secret"`
	Tolerance     time.Duration `mapstructure:"tolerance"`
	// EventRetention bounds how long processed event IDs are kept for
	// duplicate detection.
	EventRetention time.Duration `mapstructure:"event_retention"`
}

// CheckoutConfig covers hosted checkout session creation.
type CheckoutConfig struct {
	Currency     string `mapstructure:"currency"`
	ProcessorURL string `mapstructure:"processor_url"`
	SuccessURL   string `mapstructure:"success_url"`
	CancelURL    string `mapstructure:"cancel_url"`
}

// BackendConfig covers the external directory backend collaborator.
type BackendConfig struct {
	URL              string        `mapstructure:"url"`
	APIKey           string        `mapstructure:"api_key"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
}

// QueueConfig covers the durable task channel and its consumers.
type QueueConfig struct {
	ConsumerGroup     string        `mapstructure:"consumer_group"`
	Consumers         int           `mapstructure:"consumers"`
	BatchSize         int64         `mapstructure:"batch_size"`
	BlockDuration     time.Duration `mapstructure:"block_duration"`
	// VisibilityTimeout is how long an unacked delivery stays invisible
	// before any consumer may reclaim it. Must exceed the backend request
	// timeout.
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	DispatchInterval  time.Duration `mapstructure:"dispatch_interval"`
	ReclaimInterval   time.Duration `mapstructure:"reclaim_interval"`
}

// RetryConfig covers the periodic retry scheduler.
type RetryConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BatchSize   int           `mapstructure:"batch_size"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

// MonitorConfig covers the health monitor sweep.
type MonitorConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	Window           time.Duration `mapstructure:"window"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BILLING")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/directory-billing")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Queue.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("queue.batch_size must be positive"))
	}
	if c.Queue.Consumers <= 0 {
		errs = append(errs, fmt.Errorf("queue.consumers must be positive"))
	}
	if c.Queue.VisibilityTimeout <= c.Backend.RequestTimeout {
		errs = append(errs, fmt.Errorf("queue.visibility_timeout (%s) must exceed backend.request_timeout (%s)",
			c.Queue.VisibilityTimeout, c.Backend.RequestTimeout))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be positive"))
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, fmt.Errorf("retry.base_delay must be positive and no greater than retry.max_delay"))
	}
	if c.Monitor.FailureThreshold <= 0 || c.Monitor.FailureThreshold > 1 {
		errs = append(errs, fmt.Errorf("monitor.failure_threshold must be in (0, 1]"))
	}

	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Webhook.SigningSecret == "" {
			errs = append(errs, fmt.Errorf("webhook.signing_secret required in production"))
		}
		if c.Backend.APIKey == "" {
			errs = append(errs, fmt.Errorf("backend.api_key required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit_per_min", 300)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "billing")
	v.SetDefault("database.database", "billing")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Webhook defaults
	v.SetDefault("webhook.tolerance", "5m")
	v.SetDefault("webhook.event_retention", "720h") // 30 days

	// Checkout defaults
	v.SetDefault("checkout.currency", "USD")
	v.SetDefault("checkout.processor_url", "https://pay.example.com")
	v.SetDefault("checkout.success_url", "http://localhost:3000/signup/success")
	v.SetDefault("checkout.cancel_url", "http://localhost:3000/signup/cancelled")

	// Backend defaults
	v.SetDefault("backend.url", "http://localhost:8001")
	v.SetDefault("backend.request_timeout", "30s")
	v.SetDefault("backend.breaker_threshold", 10)
	v.SetDefault("backend.breaker_timeout", "30s")

	// Queue defaults
	v.SetDefault("queue.consumer_group", "provisioners")
	v.SetDefault("queue.consumers", 4)
	v.SetDefault("queue.batch_size", 10)
	v.SetDefault("queue.block_duration", "1s")
	v.SetDefault("queue.visibility_timeout", "60s")
	v.SetDefault("queue.dispatch_interval", "2s")
	v.SetDefault("queue.reclaim_interval", "30s")

	// Retry scheduler defaults
	v.SetDefault("retry.interval", "60m")
	v.SetDefault("retry.base_delay", "1m")
	v.SetDefault("retry.max_delay", "1h")
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.batch_size", 100)
	v.SetDefault("retry.lock_ttl", "5m")

	// Health monitor defaults
	v.SetDefault("monitor.interval", "30m")
	v.SetDefault("monitor.window", "720h") // 30 days
	v.SetDefault("monitor.failure_threshold", 0.10)

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	// Auth defaults
	v.SetDefault("auth.jwt_expiry", "24h")

	// Instance ID
	v.SetDefault("instance_id", "billing-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
