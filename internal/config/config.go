// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/playmaker-hq/teamscout/internal/enricher"
	"github.com/playmaker-hq/teamscout/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig     `yaml:"store" mapstructure:"store"`
	Server ServerConfig    `yaml:"server" mapstructure:"server"`
	Log    LogConfig       `yaml:"log" mapstructure:"log"`
	Enrich enricher.Config `yaml:"enrich" mapstructure:"enrich"`
	Scrape ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Tasks  TasksConfig     `yaml:"tasks" mapstructure:"tasks"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	Path        string            `yaml:"path" mapstructure:"path"`    // sqlite file path
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScrapeConfig configures outbound scraper requests.
type ScrapeConfig struct {
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
}

// TasksConfig configures the task orchestrator.
type TasksConfig struct {
	HistoryLimit int `yaml:"history_limit" mapstructure:"history_limit"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TEAMSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "teamscout.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("enrich.max_concurrent", 5)
	v.SetDefault("enrich.max_retries", 3)
	v.SetDefault("enrich.retry_delay", "1s")
	v.SetDefault("enrich.batch_delay", "100ms")
	v.SetDefault("enrich.request_timeout", "30s")
	v.SetDefault("enrich.batch_size", 50)
	v.SetDefault("scrape.user_agent", "teamscout/1.0 (+https://github.com/playmaker-hq/teamscout)")
	v.SetDefault("scrape.timeout", "30s")
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.retry_delay", "1s")
	v.SetDefault("tasks.history_limit", 50)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
