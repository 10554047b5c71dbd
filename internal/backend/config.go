package backend

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config describes the catalog/cart backend connection.
type Config struct {
	BaseURL   string `yaml:"base_url" envconfig:"BACKEND_BASE_URL"`
	APIPrefix string `yaml:"api_prefix" envconfig:"BACKEND_API_PREFIX"`
	Token     string `yaml:"token" envconfig:"BACKEND_TOKEN"`
	// TimeoutMS bounds every request; 0 -> 5000.
	TimeoutMS int `yaml:"timeout_ms" envconfig:"BACKEND_TIMEOUT_MS"`
	// RetryCount applies to GET requests only; POSTs are never retried.
	RetryCount int `yaml:"retry_count" envconfig:"BACKEND_RETRY_COUNT"`
	// MaxImageBytes caps downloaded product pictures; 0 -> 10 MiB.
	MaxImageBytes int64 `yaml:"max_image_bytes" envconfig:"BACKEND_MAX_IMAGE_BYTES"`
}

// Normalize validates the backend settings and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("backend: nil config")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", cfg.BaseURL)
	}
	prefix := strings.TrimSpace(cfg.APIPrefix)
	if prefix == "" {
		prefix = "/api"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	cfg.APIPrefix = strings.TrimRight(prefix, "/")
	if cfg.TimeoutMS < 0 || cfg.RetryCount < 0 || cfg.MaxImageBytes < 0 {
		return fmt.Errorf("backend timeouts, retries and limits must be >= 0")
	}
	if cfg.TimeoutMS == 0 {
		cfg.TimeoutMS = 5000
	}
	if cfg.MaxImageBytes == 0 {
		cfg.MaxImageBytes = 10 << 20
	}
	return nil
}

// Timeout returns the per-request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
