package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 5*time.Minute, cfg.Webhook.Tolerance)
	assert.Equal(t, 720*time.Hour, cfg.Webhook.EventRetention)
	assert.Equal(t, "USD", cfg.Checkout.Currency)
	assert.Equal(t, "provisioners", cfg.Queue.ConsumerGroup)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 0.10, cfg.Monitor.FailureThreshold)
	assert.Equal(t, "billing-1", cfg.InstanceID)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BILLING_INSTANCE_ID", "billing-test-7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "billing-test-7", cfg.InstanceID)
}

func validConfig() *Config {
	cfg, _ := Load()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad server port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "database.host",
		},
		{
			name: "visibility timeout below backend timeout",
			mutate: func(c *Config) {
				c.Backend.RequestTimeout = 2 * time.Minute
				c.Queue.VisibilityTimeout = time.Minute
			},
			wantErr: "visibility_timeout",
		},
		{
			name:    "zero consumers",
			mutate:  func(c *Config) { c.Queue.Consumers = 0 },
			wantErr: "queue.consumers",
		},
		{
			name: "backoff ceiling under base",
			mutate: func(c *Config) {
				c.Retry.BaseDelay = time.Hour
				c.Retry.MaxDelay = time.Minute
			},
			wantErr: "retry.base_delay",
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Monitor.FailureThreshold = 1.5 },
			wantErr: "monitor.failure_threshold",
		},
		{
			name:    "threshold zero",
			mutate:  func(c *Config) { c.Monitor.FailureThreshold = 0 },
			wantErr: "monitor.failure_threshold",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "too-short" },
			wantErr: "jwt_secret",
		},
		{
			name:   "long jwt secret passes",
			mutate: func(c *Config) { c.Auth.JWTSecret = strings.Repeat("s", 32) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestProductionRequiresSecrets(t *testing.T) {
	cfg := validConfig()
	t.Setenv("ENV", "production")

	cfg.Database.Password = ""
	cfg.Webhook.SigningSecret = ""
	cfg.Backend.APIKey = ""
	cfg.Auth.JWTSecret = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.password")
	assert.Contains(t, err.Error(), "webhook.signing_secret")
	assert.Contains(t, err.Error(), "backend.api_key")
	assert.Contains(t, err.Error(), "auth.jwt_secret")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "billing",
		Password: "secret", Database: "billing", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=billing password=secret dbname=billing sslmode=require",
		cfg.DatabaseDSN())
}

func TestRedisAddr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddr())
}
