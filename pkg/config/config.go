// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Store drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Config represents the application configuration
type Config struct {
	// Warehouse connections; nil when not configured
	Snowflake *SnowflakeConfig
	Postgres  *PostgresConfig

	// Where audit trails, reporting conditions and tables are written
	Store StoreConfig

	// Loader settings
	LoaderWorkers int
	Timezone      string

	// Logging
	LogLevel  string
	LogFormat string
}

// StoreConfig selects the database written by the store
type StoreConfig struct {
	Driver string
	// Data source name; empty with the pgx driver uses the Postgres section
	DSN     string
	Timeout time.Duration
}

// LoadConfig loads configuration from environment variables. The given env
// files, or .env when none are given, are loaded first when they exist;
// variables already set take precedence.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Store: StoreConfig{
			Driver:  getEnv("STORE_DRIVER", DriverSQLite),
			DSN:     getEnv("STORE_DSN", ""),
			Timeout: time.Duration(getEnvAsInt("STORE_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		LoaderWorkers: getEnvAsInt("LOADER_WORKERS", 4),
		Timezone:      getEnv("DATA_TIMEZONE", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
	}
	if cfg.Store.Driver == DriverSQLite && cfg.Store.DSN == "" {
		cfg.Store.DSN = "captest.db"
	}

	snowConfig, err := LoadSnowflakeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load Snowflake configuration: %w", err)
	}
	cfg.Snowflake = snowConfig

	pgConfig, err := LoadPostgresConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load PostgreSQL configuration: %w", err)
	}
	cfg.Postgres = pgConfig

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if c.LoaderWorkers <= 0 {
		return errors.New("loader workers must be positive")
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.LogFormat)
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.DSN == "" {
			return errors.New("sqlite store requires STORE_DSN")
		}
	case DriverPostgres:
		if c.Store.DSN == "" && c.Postgres == nil {
			return errors.New("postgres store requires STORE_DSN or the POSTGRES_* settings")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	return nil
}

// Location returns the zone for timestamps without an offset, nil when unset
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil
	}
	return loc
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
