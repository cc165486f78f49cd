// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Role specifies the service role: "gateway" or "handler"
	Role string

	ServerPort string

	// Handler service URL, used by the gateway to forward requests
	HandlerURL string

	// Upstream notification API
	APIBaseURL   string
	APIToken     string
	APIRateLimit int
	APITimeout   time.Duration

	RedisURL string
	CacheTTL time.Duration

	// Authoring sessions untouched for this long are torn down
	DraftIdleTimeout time.Duration
	SweepInterval    time.Duration

	Environment string
}

// New creates a new Config with values from environment variables or defaults.
func New() *Config {
	return &Config{
		Role:             getEnv("SERVICE_ROLE", "gateway"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		HandlerURL:       getEnv("HANDLER_URL", "http://handler:8081"),
		APIBaseURL:       getEnv("API_BASE_URL", "http://api:3000"),
		APIToken:         getEnv("API_TOKEN", ""),
		APIRateLimit:     getEnvInt("API_RATE_LIMIT", 20),
		APITimeout:       getEnvSeconds("API_TIMEOUT_SECONDS", 15),
		RedisURL:         getEnv("REDIS_URL", "redis://redis:6379"),
		CacheTTL:         getEnvSeconds("CACHE_TTL_SECONDS", 60),
		DraftIdleTimeout: getEnvSeconds("DRAFT_IDLE_TIMEOUT_SECONDS", 30*60),
		SweepInterval:    getEnvSeconds("DRAFT_SWEEP_INTERVAL_SECONDS", 60),
		Environment:      getEnv("ENVIRONMENT", "development"),
	}
}

// IsGateway returns true if the service is running as an API gateway.
func (c *Config) IsGateway() bool {
	return c.Role == "gateway"
}

// IsHandler returns true if the service is running as a handler.
func (c *Config) IsHandler() bool {
	return c.Role == "handler"
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// HasRedis reports whether a Redis cache is configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
