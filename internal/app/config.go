package app

import (
	"fmt"
	"time"

	"github.com/m3rciful/shopbot/core/cache"
	coreconfig "github.com/m3rciful/shopbot/core/config"
	coredatabase "github.com/m3rciful/shopbot/core/database"
	"github.com/m3rciful/shopbot/core/telemetry"
	"github.com/m3rciful/shopbot/internal/backend"
	"github.com/m3rciful/shopbot/internal/catalog"
)

// Config is the full shop bot configuration: the shared core sections plus
// the cache store, backend and conversation settings.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Cache     cache.Config        `yaml:"cache"`
	Database  coredatabase.Config `yaml:"database"`
	Backend   backend.Config      `yaml:"backend"`
	Catalog   CatalogConfig       `yaml:"catalog"`
	Session   SessionConfig       `yaml:"session"`
	Telemetry telemetry.Config    `yaml:"telemetry"`
}

// CatalogConfig controls product caching.
type CatalogConfig struct {
	// TTLSeconds bounds catalog staleness; 0 -> 3600.
	TTLSeconds int `yaml:"ttl_seconds" envconfig:"CATALOG_TTL_SECONDS"`
	// SkipWarm disables loading the product list before serving updates.
	SkipWarm bool `yaml:"skip_warm" envconfig:"CATALOG_SKIP_WARM"`
}

// SessionConfig controls conversation state storage.
type SessionConfig struct {
	// StateTTLSeconds expires idle conversations; 0 keeps them until evicted.
	StateTTLSeconds int `yaml:"state_ttl_seconds" envconfig:"SESSION_STATE_TTL_SECONDS"`
	// QuantityTTLSeconds expires pending quantity selections; 0 -> 3600.
	QuantityTTLSeconds int `yaml:"quantity_ttl_seconds" envconfig:"SESSION_QUANTITY_TTL_SECONDS"`
	// ReportErrors sends a short notice when an event fails; nil -> true.
	ReportErrors *bool `yaml:"report_errors" envconfig:"SESSION_REPORT_ERRORS"`
}

// CoreConfig satisfies core/cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads YAML from path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults. The database section
// is only checked when the cache lives in Postgres.
func Normalize(cfg *Config) error {
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cache.Normalize(&cfg.Cache); err != nil {
		return err
	}
	if cfg.UsesDatabase() {
		if err := coredatabase.Normalize(&cfg.Database); err != nil {
			return err
		}
	}
	if err := backend.Normalize(&cfg.Backend); err != nil {
		return err
	}
	if err := telemetry.Normalize(&cfg.Telemetry); err != nil {
		return err
	}

	if cfg.Catalog.TTLSeconds < 0 {
		return fmt.Errorf("catalog.ttl_seconds must be >= 0")
	}
	if cfg.Catalog.TTLSeconds == 0 {
		cfg.Catalog.TTLSeconds = int(catalog.DefaultTTL / time.Second)
	}
	if cfg.Session.StateTTLSeconds < 0 || cfg.Session.QuantityTTLSeconds < 0 {
		return fmt.Errorf("session ttls must be >= 0")
	}
	if cfg.Session.ReportErrors == nil {
		report := true
		cfg.Session.ReportErrors = &report
	}
	return nil
}

// UsesDatabase reports whether a Postgres pool is required.
func (c *Config) UsesDatabase() bool {
	return c.Cache.Backend == cache.BackendPostgres
}

// CatalogTTL returns the product cache expiry.
func (c *Config) CatalogTTL() time.Duration {
	return time.Duration(c.Catalog.TTLSeconds) * time.Second
}

// StateTTL returns the session expiry; zero means none.
func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.Session.StateTTLSeconds) * time.Second
}

// QuantityTTL returns the pending quantity expiry; zero selects the default.
func (c *Config) QuantityTTL() time.Duration {
	return time.Duration(c.Session.QuantityTTLSeconds) * time.Second
}
