package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("defaults run mode to longpoll", func(t *testing.T) {
		cfg := &Config{Telegram: TelegramConfig{Token: "t"}}
		require.NoError(t, Normalize(cfg))
		assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	})

	t.Run("accepts polling alias", func(t *testing.T) {
		cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: " Polling "}}
		require.NoError(t, Normalize(cfg))
		assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	})

	t.Run("requires token", func(t *testing.T) {
		assert.Error(t, Normalize(&Config{}))
	})

	t.Run("webhook requires url listen and port", func(t *testing.T) {
		cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}}
		assert.Error(t, Normalize(cfg))

		cfg.Webhook = WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443}
		require.NoError(t, Normalize(cfg))
		assert.Equal(t, RunModeWebhook, cfg.Telegram.RunMode)
	})

	t.Run("lowercases rate limit exclusions", func(t *testing.T) {
		cfg := &Config{
			Telegram:  TelegramConfig{Token: "t"},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback", "MESSAGE"}},
		}
		require.NoError(t, Normalize(cfg))
		assert.Equal(t, []string{UpdateCallback, UpdateMessage}, cfg.RateLimit.ExcludeUpdates)
	})

	t.Run("reports every problem", func(t *testing.T) {
		cfg := &Config{
			Telegram:  TelegramConfig{RunMode: "webhook"},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{"", "photo"}},
		}
		err := Normalize(cfg)
		require.Error(t, err)
		for _, want := range []string{"telegram.token", "webhook.url", "webhook.port", "photo"} {
			assert.ErrorContains(t, err, want)
		}
	})

	t.Run("rejects unknown exclusion", func(t *testing.T) {
		cfg := &Config{
			Telegram:  TelegramConfig{Token: "t"},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{"photo"}},
		}
		assert.Error(t, Normalize(cfg))
	})
}

func TestLoadOverlaysEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "telegram:\n  token: from-file\n  run_mode: longpoll\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("LOG_FORMAT", "kv")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "kv", cfg.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
