package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestNew_DisabledTelemetry(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.Nil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())

	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.False(t, health.Degraded)
	assert.NoError(t, health.Err)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := &Config{Enabled: true}

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_EnabledBuildsProviders(t *testing.T) {
	for _, protocol := range []string{ProtocolGRPC, ProtocolHTTP} {
		t.Run(protocol, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			cfg.Protocol = protocol

			// exporters connect lazily, so no collector is needed
			tel, err := New(context.Background(), cfg)
			require.NoError(t, err)
			assert.NotNil(t, tel.tracerProvider)
			assert.NotNil(t, tel.meterProvider)
			assert.True(t, tel.IsEnabled())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = tel.Shutdown(ctx)
			assert.False(t, tel.IsEnabled())
		})
	}
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.LoggerProvider()
		_ = tel.IsEnabled()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})

	health := tel.Health()
	assert.False(t, health.Healthy)
	assert.True(t, health.Degraded)
}

func TestTelemetry_SetDegraded(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	tel.setDegraded(assert.AnError)

	health := tel.Health()
	assert.True(t, health.Degraded)
	assert.ErrorIs(t, health.Err, assert.AnError)
}

func TestTestTelemetry_SpansAndMetrics(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("test").Start(ctx, "capture.End")
	span.SetAttributes(attribute.Int("capture.steps", 3), attribute.String("capture.session_id", "abc"))
	span.End()

	tt.AssertSpanExists(t, "capture.End")
	tt.AssertSpanAttribute(t, "capture.End", "capture.steps", int64(3))
	tt.AssertSpanAttribute(t, "capture.End", "capture.session_id", "abc")
	assert.Nil(t, tt.SpanByName("missing"))

	meter := tt.Meter("test")
	counter, err := meter.Int64Counter("errprop.test.total")
	require.NoError(t, err)
	counter.Add(ctx, 2, metricAttr("op", "add"))
	counter.Add(ctx, 5, metricAttr("op", "mul"))

	hist, err := meter.Int64Histogram("errprop.test.lines")
	require.NoError(t, err)
	hist.Record(ctx, 4)
	hist.Record(ctx, 2)

	assert.Equal(t, int64(7), tt.CounterValue(t, "errprop.test.total"))
	assert.Equal(t, int64(5), tt.CounterValue(t, "errprop.test.total", attribute.String("op", "mul")))
	assert.Zero(t, tt.CounterValue(t, "errprop.test.total", attribute.String("op", "div")))
	assert.Equal(t, uint64(2), tt.HistogramCount(t, "errprop.test.lines"))
	assert.True(t, tt.IsEnabled())
}

func metricAttr(key, value string) metric.AddOption {
	return metric.WithAttributes(attribute.String(key, value))
}
