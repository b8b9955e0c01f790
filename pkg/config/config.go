// Package config holds the runtime configuration for opening a database,
// loaded from a YAML file, environment variables, and defaults.
package config

import "time"

// PoolConfig tunes the database/sql connection pool.
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"` // e.g. "1h", "30m"
}

// DatabaseConfig selects the backend and how to reach it.
type DatabaseConfig struct {
	Dialect string     `mapstructure:"dialect" validate:"required"` // "sqlite", "postgres", "mysql", "sqlserver", "mongodb"
	DSN     string     `mapstructure:"dsn"     validate:"required"` // dialect-specific data source name
	Pool    PoolConfig `mapstructure:"pool"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // "text", "json"
}

// Config aggregates all settings.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// NewDefaultConfig returns a configuration with sensible pool and logging
// defaults. Dialect and DSN must be supplied by the caller.
func NewDefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Pool: PoolConfig{
				MaxIdleConns:    5,
				MaxOpenConns:    10,
				ConnMaxLifetime: time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
