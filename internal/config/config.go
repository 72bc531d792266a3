package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port              int
	Store             string
	DatabaseURL       string
	SQLitePath        string
	NatsURL           string
	NatsToken         string
	NatsQueue         string
	LogLevel          string
	APIToken          string
	QuotaWindow       time.Duration
	DefaultDailyQuota int
	MaxAttempts       int
	CatalogFile       string
}

func Load() Config {
	return Config{
		Port:              envInt("ROSTER_PORT", 8760),
		Store:             envStr("ROSTER_STORE", "sqlite"),
		DatabaseURL:       envStr("DATABASE_URL", ""),
		SQLitePath:        envStr("ROSTER_SQLITE_PATH", "roster.db"),
		NatsURL:           envStr("NATS_URL", ""),
		NatsToken:         envStr("NATS_TOKEN", ""),
		NatsQueue:         envStr("ROSTER_NATS_QUEUE", "roster"),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		APIToken:          envStr("ROSTER_API_TOKEN", ""),
		QuotaWindow:       envDuration("ROSTER_QUOTA_WINDOW", 24*time.Hour),
		DefaultDailyQuota: envInt("ROSTER_DEFAULT_DAILY_QUOTA", 10),
		MaxAttempts:       envInt("ROSTER_MAX_ATTEMPTS", 3),
		CatalogFile:       envStr("ROSTER_CATALOG_FILE", ""),
	}
}

// StoreDSN returns the connection string for the configured store driver.
func (c Config) StoreDSN() string {
	if c.Store == "postgres" {
		return c.DatabaseURL
	}
	return c.SQLitePath
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
