package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const minProductionSecretLen = 32

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"720h"` // 30 days

	StoreBackend string `env:"STORE_BACKEND" default:"memory"`
	SQLitePath   string `env:"SQLITE_PATH"`
	RedisURL     string `env:"REDIS_URL"`
	DatabaseURL  string `env:"DATABASE_URL"`

	VoteWindow        time.Duration `env:"VOTE_WINDOW" default:"30m"`
	FairnessLookback  int           `env:"FAIRNESS_LOOKBACK" default:"20"`
	StarvationCeiling int           `env:"STARVATION_CEILING" default:"100"`
	CoverageLookback  int           `env:"COVERAGE_LOOKBACK" default:"10"`
	StatsDefaultLimit int           `env:"STATS_DEFAULT_LIMIT" default:"100"`
	StatsMaxLimit     int           `env:"STATS_MAX_LIMIT" default:"1000"`

	VoteRateLimit float64 `env:"VOTE_RATE_LIMIT" default:"5"`
	VoteRateBurst int     `env:"VOTE_RATE_BURST" default:"10"`

	HistoryRetention  time.Duration `env:"HISTORY_RETENTION" default:"0s"`
	RetentionInterval time.Duration `env:"RETENTION_INTERVAL" default:"1h"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if cfg.IsProduction() && len(cfg.SessionSecret) < minProductionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in production", minProductionSecretLen)
	}

	if err := validateBackend(cfg); err != nil {
		return err
	}

	positive := map[string]int{
		"FAIRNESS_LOOKBACK":   cfg.FairnessLookback,
		"STARVATION_CEILING":  cfg.StarvationCeiling,
		"COVERAGE_LOOKBACK":   cfg.CoverageLookback,
		"STATS_DEFAULT_LIMIT": cfg.StatsDefaultLimit,
		"STATS_MAX_LIMIT":     cfg.StatsMaxLimit,
		"VOTE_RATE_BURST":     cfg.VoteRateBurst,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if cfg.StatsDefaultLimit > cfg.StatsMaxLimit {
		return errors.New("STATS_DEFAULT_LIMIT must not exceed STATS_MAX_LIMIT")
	}
	if cfg.VoteWindow <= 0 {
		return errors.New("VOTE_WINDOW must be positive")
	}
	if cfg.VoteRateLimit <= 0 {
		return errors.New("VOTE_RATE_LIMIT must be positive")
	}
	if cfg.HistoryRetention < 0 {
		return errors.New("HISTORY_RETENTION must not be negative")
	}
	if cfg.HistoryRetention > 0 && cfg.RetentionInterval <= 0 {
		return errors.New("RETENTION_INTERVAL must be positive when HISTORY_RETENTION is set")
	}

	return nil
}

func validateBackend(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendMemory:
		return nil
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
		return nil
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
		return nil
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
		if cfg.IsProduction() {
			return validateSSLMode(cfg.DatabaseURL)
		}
		return nil
	default:
		return fmt.Errorf("STORE_BACKEND %q is not one of memory, sqlite, redis, postgres", cfg.StoreBackend)
	}
}

func validateSSLMode(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
