package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/trialguard-server/internal/domain"
)

// Manager loads and validates service configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment and defaults.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/trialguard/")

	viper.SetEnvPrefix("TRIALGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars suffice.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values.
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.request_timeout", "60s")
	viper.SetDefault("server.rate_limit", 20)
	viper.SetDefault("server.rate_burst", 40)

	// Upstream collaborator defaults
	viper.SetDefault("upstream.extractor.base_url", "http://localhost:8091")
	viper.SetDefault("upstream.extractor.timeout", "30s")
	viper.SetDefault("upstream.extractor.retry_count", 3)
	viper.SetDefault("upstream.assessor.base_url", "http://localhost:8092")
	viper.SetDefault("upstream.assessor.timeout", "60s")
	viper.SetDefault("upstream.assessor.retry_count", 3)

	// Cache defaults
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.memory_size", 1000)
	viper.SetDefault("cache.memory_ttl", "15m")
	viper.SetDefault("cache.disable_remote", false)

	// History store defaults
	viper.SetDefault("history.driver", "sqlite")
	viper.SetDefault("history.sqlite_path", "./data/match_history.db")
	viper.SetDefault("history.database_url", "")
	viper.SetDefault("history.migrations_path", "")

	// Trial catalog defaults
	viper.SetDefault("catalog.snapshot_path", "./data/trials.json")

	// Guardrail defaults. Overrides historically combine by letting the
	// last triggered rule win; strictest_wins switches to severity order.
	viper.SetDefault("guardrails.strictest_wins", false)
	viper.SetDefault("guardrails.max_concurrency", 4)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Reload reloads the configuration.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Upstream.Extractor.BaseURL == "" {
		return fmt.Errorf("extractor base URL is required")
	}
	if config.Upstream.Assessor.BaseURL == "" {
		return fmt.Errorf("assessor base URL is required")
	}

	switch config.History.Driver {
	case "sqlite":
		if config.History.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite history driver")
		}
	case "postgres":
		if config.History.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for the postgres history driver")
		}
	default:
		return fmt.Errorf("invalid history driver: %s", config.History.Driver)
	}

	if config.Catalog.SnapshotPath == "" {
		return fmt.Errorf("trial catalog snapshot path is required")
	}

	if !config.Cache.DisableRemote && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required unless the remote cache is disabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}
