// Package config reads client settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Token store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Defaults.
const (
	DefaultAPIURL   = "http://localhost:5000"
	DefaultStateDB  = "finance-client.db"
	DefaultRedisURL = "localhost:6379"
)

// Config holds the client settings.
type Config struct {
	// APIURL is the backend base URL without a trailing slash.
	APIURL string
	// StateDB is the SQLite file holding tokens and cookies.
	StateDB string
	// TokenStore selects where the token pair lives.
	TokenStore string
	RedisURL   string
	// HTTPTimeout bounds each request. Zero leaves the transport default.
	HTTPTimeout time.Duration
}

// Load builds a Config from getenv, usually os.Getenv.
func Load(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return fallback
	}

	cfg := Config{
		APIURL:     strings.TrimRight(get("FINANCE_API_URL", DefaultAPIURL), "/"),
		StateDB:    get("FINANCE_STATE_DB", DefaultStateDB),
		TokenStore: strings.ToLower(get("FINANCE_TOKEN_STORE", StoreSQLite)),
		RedisURL:   get("REDIS_URL", DefaultRedisURL),
	}

	if raw := getenv("FINANCE_HTTP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FINANCE_HTTP_TIMEOUT %q: %w", raw, err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("invalid FINANCE_HTTP_TIMEOUT %q: must not be negative", raw)
		}
		cfg.HTTPTimeout = d
	}

	switch cfg.TokenStore {
	case StoreSQLite, StoreRedis:
	default:
		return Config{}, fmt.Errorf("invalid FINANCE_TOKEN_STORE %q: want %s or %s", cfg.TokenStore, StoreSQLite, StoreRedis)
	}
	return cfg, nil
}
