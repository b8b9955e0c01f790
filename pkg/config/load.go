package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from a file, environment variables, and
// defaults, in increasing precedence. configPath may name a specific file;
// when empty, "ormkit.yaml" is searched in the working directory and
// $HOME/.ormkit. Environment variables use the ORMKIT_ prefix with dots
// replaced by underscores (ORMKIT_DATABASE_DSN).
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	cfg := NewDefaultConfig()

	v.SetDefault("database.pool.maxIdleConns", cfg.Database.Pool.MaxIdleConns)
	v.SetDefault("database.pool.maxOpenConns", cfg.Database.Pool.MaxOpenConns)
	v.SetDefault("database.pool.connMaxLifetime", cfg.Database.Pool.ConnMaxLifetime)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetEnvPrefix("ORMKIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("ormkit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ormkit")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is only fatal when one was named explicitly.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || configPath != "" {
			return cfg, fmt.Errorf("error reading configuration file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshaling configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var failures []string
		for _, err := range err.(validator.ValidationErrors) {
			failures = append(failures, fmt.Sprintf("field %q failed validation on %q", err.Namespace(), err.Tag()))
		}
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(failures, "; "))
	}

	return cfg, nil
}
