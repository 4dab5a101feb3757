package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Data      DataConfig
	CORS      CORSConfig
	API       APIConfig
	Retention RetentionConfig
	Log       LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// DataConfig holds market-data provider configuration
type DataConfig struct {
	// Provider selects the default market-data source: csv or yahoo.
	Provider string

	// Dir is the root of the CSV data tree (bars/, dividends/, splits/).
	Dir string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// APIConfig holds API security configuration
type APIConfig struct {
	// Key guards destructive and credential routes via X-API-Key. An
	// empty key disables the guard.
	Key string

	// FernetKey encrypts stored provider credentials at rest. Must be a
	// base64-encoded 32-byte fernet key when credential routes are used.
	FernetKey string
}

// RetentionConfig holds the stored-run retention policy
type RetentionConfig struct {
	// Days is how long completed runs are kept. Zero disables purging.
	Days int

	// Schedule is the cron expression for the purge job.
	Schedule string
}

// LogConfig holds logging configuration
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	retentionDays, err := strconv.Atoi(getEnv("RUN_RETENTION_DAYS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_RETENTION_DAYS: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/backtester.db"),
		},
		Data: DataConfig{
			Provider: getEnv("DATA_PROVIDER", "csv"),
			Dir:      getEnv("DATA_DIR", "./data"),
		},
		CORS: CORSConfig{
			AllowedOrigins: strings.Split(
				getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost"),
				",",
			),
		},
		API: APIConfig{
			Key:       getEnv("API_KEY", ""),
			FernetKey: getEnv("FERNET_KEY", ""),
		},
		Retention: RetentionConfig{
			Days:     retentionDays,
			Schedule: getEnv("RUN_RETENTION_SCHEDULE", "0 3 * * *"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnv("LOG_PRETTY", "false") == "true",
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
