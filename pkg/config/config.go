// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stewardhq/steward/pkg/observability"
	"github.com/stewardhq/steward/pkg/ratelimit"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	OIDC       OIDCConfig
	RateLimits ratelimit.Limits
	LogLevel   observability.LogLevel
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for probes and scrapes)
	HealthPort string
}

// PostgresConfig holds the session/membership store configuration
type PostgresConfig struct {
	URL      string
	MaxConns int
	MinConns int
	Timeout  time.Duration
}

// RedisConfig holds the rate limit counter store configuration. An empty URL
// disables the shared store; the accountant then runs entirely in-process.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// OIDCConfig holds the external identity provider configuration
type OIDCConfig struct {
	IssuerURL string
	ClientID  string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("STEWARD_HOST", "0.0.0.0"),
			Port:            getEnv("STEWARD_PORT", "8080"),
			ReadTimeout:     getEnvDuration("STEWARD_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("STEWARD_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("STEWARD_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("STEWARD_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("STEWARD_HEALTH_PORT", "9090"),
		},
		Postgres: PostgresConfig{
			URL:      getEnv("STEWARD_POSTGRES_URL", ""),
			MaxConns: getEnvInt("STEWARD_POSTGRES_MAX_CONNS", 20),
			MinConns: getEnvInt("STEWARD_POSTGRES_MIN_CONNS", 2),
			Timeout:  getEnvDuration("STEWARD_POSTGRES_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:      getEnv("STEWARD_REDIS_URL", ""),
			Password: getEnv("STEWARD_REDIS_PASSWORD", ""),
			DB:       getEnvInt("STEWARD_REDIS_DB", 0),
		},
		OIDC: OIDCConfig{
			IssuerURL: getEnv("STEWARD_OIDC_ISSUER", ""),
			ClientID:  getEnv("STEWARD_OIDC_CLIENT_ID", ""),
		},
		RateLimits: loadRateLimits(),
		LogLevel:   observability.ParseLogLevel(strings.ToLower(getEnv("STEWARD_LOG_LEVEL", "info"))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadRateLimits applies environment overrides on top of the default named
// limits.
func loadRateLimits() ratelimit.Limits {
	limits := ratelimit.DefaultLimits()
	overrideLimit(&limits.Messages, "STEWARD_LIMIT_SMS")
	overrideLimit(&limits.API, "STEWARD_LIMIT_API")
	overrideLimit(&limits.Uploads, "STEWARD_LIMIT_UPLOAD")
	overrideLimit(&limits.AuthAttempts, "STEWARD_LIMIT_AUTH")
	return limits
}

func overrideLimit(limit *ratelimit.Limit, prefix string) {
	if max := getEnvInt(prefix+"_MAX", 0); max > 0 {
		limit.MaxRequests = max
	}
	if window := getEnvDuration(prefix+"_WINDOW", 0); window > 0 {
		limit.Window = window
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.OIDC.IssuerURL == "" {
		return fmt.Errorf("OIDC issuer URL is required")
	}
	if c.OIDC.ClientID == "" {
		return fmt.Errorf("OIDC client ID is required")
	}

	for _, limit := range []ratelimit.Limit{
		c.RateLimits.Messages, c.RateLimits.API, c.RateLimits.Uploads, c.RateLimits.AuthAttempts,
	} {
		if limit.MaxRequests <= 0 || limit.Window <= 0 {
			return fmt.Errorf("rate limit %q must have positive max and window", limit.Name)
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
