// Package telemetry configures the OpenTelemetry meter provider used by bot metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/m3rciful/shopbot/core/buildinfo"
	"github.com/m3rciful/shopbot/core/logger"
)

// ErrMissingEndpoint is returned when metrics are enabled without an OTLP endpoint.
var ErrMissingEndpoint = errors.New("telemetry: otlp endpoint is required when enabled")

// Config controls metric export.
type Config struct {
	Enabled      bool   `yaml:"enabled" envconfig:"TELEMETRY_ENABLED"`
	OTLPEndpoint string `yaml:"otlp_endpoint" envconfig:"TELEMETRY_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" envconfig:"TELEMETRY_SERVICE_NAME"`
	Environment  string `yaml:"environment" envconfig:"TELEMETRY_ENVIRONMENT"`
	// IntervalSeconds is the export period; 0 -> 30.
	IntervalSeconds int `yaml:"interval_seconds" envconfig:"TELEMETRY_INTERVAL_SECONDS"`
}

// Normalize fills defaults and validates the configuration.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("telemetry: nil config")
	}
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "shopbot"
	}
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 30
	}
	if cfg.Enabled && strings.TrimSpace(cfg.OTLPEndpoint) == "" {
		return ErrMissingEndpoint
	}
	return nil
}

// Telemetry owns the meter provider for the process lifetime.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
}

// Option customises Initialize.
type Option func(*options)

type options struct {
	reader sdkmetric.Reader
}

// WithReader replaces the OTLP periodic reader, e.g. with a ManualReader in tests.
func WithReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.reader = r }
}

// Initialize builds the meter provider. When disabled and no reader is
// supplied, it returns a Telemetry backed by a no-op meter.
func Initialize(ctx context.Context, cfg Config, opts ...Option) (*Telemetry, error) {
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if !cfg.Enabled && o.reader == nil {
		return &Telemetry{meter: noop.NewMeterProvider().Meter(cfg.ServiceName)}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(buildinfo.Current().Version),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	reader := o.reader
	if reader == nil {
		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(time.Duration(cfg.IntervalSeconds)*time.Second),
		)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	logger.Info(ctx, "app", "telemetry.init",
		slog.String("status", "ok"),
		slog.String("endpoint", cfg.OTLPEndpoint),
		slog.Int("interval_seconds", cfg.IntervalSeconds),
	)

	return &Telemetry{provider: mp, meter: mp.Meter(cfg.ServiceName)}, nil
}

// Meter returns the process meter.
func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

// Shutdown flushes pending metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown meter provider: %w", err)
	}
	return nil
}
