package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNormalize(t *testing.T) {
	cfg := Config{}
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, "shopbot", cfg.ServiceName)
	assert.Equal(t, 30, cfg.IntervalSeconds)

	assert.ErrorIs(t, Normalize(&Config{Enabled: true}), ErrMissingEndpoint)
}

func TestInitializeDisabledIsNoop(t *testing.T) {
	tel, err := Initialize(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, tel.Meter())

	counter, err := tel.Meter().Int64Counter("noop_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestInitializeWithReader(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	tel, err := Initialize(ctx, Config{ServiceName: "shopbot-test"}, WithReader(reader))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(ctx) })

	counter, err := tel.Meter().Int64Counter("probe_total")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, "shopbot-test", rm.ScopeMetrics[0].Scope.Name)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	assert.Equal(t, "probe_total", rm.ScopeMetrics[0].Metrics[0].Name)
}
