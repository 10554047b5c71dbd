// Package cache provides the key/value store shared by sessions, catalog
// memoization and cart handles, plus per-key locking on top of it.
//
// Values are opaque bytes; callers own serialization.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is a key/value store with optional per-key expiry.
type Store interface {
	// Get returns the value for key. A missing or expired key yields ok=false and a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set writes value under key. ttl <= 0 persists until deleted or evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	// BackendRedis stores entries in Redis via go-redis.
	BackendRedis = "redis"
	// BackendValkey stores entries in Valkey via valkey-go.
	BackendValkey = "valkey"
	// BackendPostgres stores entries in the kv_entries table.
	BackendPostgres = "postgres"
	// BackendMemory keeps entries in process memory (development and tests).
	BackendMemory = "memory"

	defaultTimeout = 2 * time.Second
	defaultLockTTL = 10 * time.Second

	defaultPurgeInterval = 5 * time.Minute
)

// Config holds cache store connection settings.
type Config struct {
	Backend   string `yaml:"backend" envconfig:"CACHE_BACKEND"`
	Host      string `yaml:"host" envconfig:"CACHE_HOST"`
	Port      string `yaml:"port" envconfig:"CACHE_PORT"`
	Password  string `yaml:"password" envconfig:"CACHE_PASSWORD"`
	DB        int    `yaml:"db" envconfig:"CACHE_DB"`
	KeyPrefix string `yaml:"key_prefix" envconfig:"CACHE_KEY_PREFIX"`
	// TimeoutMS bounds every store operation; 0 -> 2000.
	TimeoutMS int `yaml:"timeout_ms" envconfig:"CACHE_TIMEOUT_MS"`
	// DisableUserLock turns off per-user serialization of conversation events.
	DisableUserLock bool `yaml:"disable_user_lock" envconfig:"CACHE_DISABLE_USER_LOCK"`
	// LockTTLSeconds is the expiry of a distributed user lock; 0 -> 10.
	LockTTLSeconds int `yaml:"lock_ttl_seconds" envconfig:"CACHE_LOCK_TTL_SECONDS"`
	// PurgeIntervalSeconds paces expired-row cleanup on the postgres backend; 0 -> 300.
	PurgeIntervalSeconds int `yaml:"purge_interval_seconds" envconfig:"CACHE_PURGE_INTERVAL_SECONDS"`
}

// Normalize validates the configuration and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cache: nil config")
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendRedis
	}
	switch backend {
	case BackendRedis, BackendValkey:
		if strings.TrimSpace(cfg.Host) == "" {
			cfg.Host = "localhost"
		}
		if strings.TrimSpace(cfg.Port) == "" {
			cfg.Port = "6379"
		}
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("invalid cache.backend %q; allowed: redis, valkey, postgres, memory", cfg.Backend)
	}
	cfg.Backend = backend

	if cfg.TimeoutMS < 0 {
		return fmt.Errorf("cache.timeout_ms must be >= 0")
	}
	if cfg.LockTTLSeconds < 0 {
		return fmt.Errorf("cache.lock_ttl_seconds must be >= 0")
	}
	if cfg.PurgeIntervalSeconds < 0 {
		return fmt.Errorf("cache.purge_interval_seconds must be >= 0")
	}
	if cfg.KeyPrefix != "" && !strings.HasSuffix(cfg.KeyPrefix, ":") {
		cfg.KeyPrefix += ":"
	}
	return nil
}

// Timeout returns the per-operation timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return defaultTimeout
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// LockTTL returns the distributed lock expiry.
func (c Config) LockTTL() time.Duration {
	if c.LockTTLSeconds <= 0 {
		return defaultLockTTL
	}
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// PurgeInterval returns the janitor period.
func (c Config) PurgeInterval() time.Duration {
	if c.PurgeIntervalSeconds <= 0 {
		return defaultPurgeInterval
	}
	return time.Duration(c.PurgeIntervalSeconds) * time.Second
}

// Addr returns host:port for network backends.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}
