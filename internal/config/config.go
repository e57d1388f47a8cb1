package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Sweeper  SweeperConfig
	App      AppConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration.
// Driver selects between "postgres" (production) and "sqlite" (dev/test).
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string // sqlite only; ":memory:" for an in-memory store
}

// RedisConfig holds Redis configuration for the sweeper advisory lock
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds the event publisher configuration
type NATSConfig struct {
	URL string
}

// SweeperConfig holds expiry sweeper configuration
type SweeperConfig struct {
	Schedule    string // standard 5-field cron expression
	MaxAgeHours int    // tenants older than this are reclaimed
	Enabled     bool
}

// AppConfig holds application configuration
type AppConfig struct {
	Environment string
	LogLevel    string
}

// New creates a new configuration instance
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnvWithDefault("SERVER_HOST", "0.0.0.0"),
			Port: getEnvWithDefault("PORT", "8090"),
		},
		Database: DatabaseConfig{
			Driver:   getEnvWithDefault("DB_DRIVER", "postgres"),
			Host:     getEnvWithDefault("DB_HOST", "localhost"),
			Port:     getEnvWithDefault("DB_PORT", "5432"),
			User:     getEnvWithDefault("DB_USER", "postgres"),
			Password: getEnvWithDefault("DB_PASSWORD", "postgres"),
			Name:     getEnvWithDefault("DB_NAME", "discord_fake"),
			SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
			Path:     getEnvWithDefault("DB_PATH", "discord_fake.db"),
		},
		Redis: RedisConfig{
			Host:     getEnvWithDefault("REDIS_HOST", "localhost"),
			Port:     getEnvWithDefault("REDIS_PORT", "6379"),
			Password: getEnvWithDefault("REDIS_PASSWORD", ""),
			DB:       getEnvAsIntWithDefault("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL: getEnvWithDefault("NATS_URL", "nats://localhost:4222"),
		},
		Sweeper: SweeperConfig{
			Schedule:    getEnvWithDefault("SWEEPER_SCHEDULE", "0 * * * *"),
			MaxAgeHours: getEnvAsIntWithDefault("TENANT_MAX_AGE_HOURS", 24),
			Enabled:     getEnvAsBoolWithDefault("SWEEPER_ENABLED", true),
		},
		App: AppConfig{
			Environment: getEnvWithDefault("APP_ENV", "development"),
			LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		},
	}
}

// getEnvWithDefault gets environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntWithDefault gets environment variable as integer with default fallback
func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBoolWithDefault gets environment variable as boolean with default fallback
func getEnvAsBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
