package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

// newTestMeter returns a meter backed by a manual reader.
func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

// sumValue returns the counter value for the data point carrying attrs.
func sumValue(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func gaugeValue(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "%s is not an int64 gauge", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range gauge.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	t.Fatalf("no %s data point for %v", m.Name, attrs)
	return 0
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := NewMeterProvider(ctx, MetricsConfig{ServiceName: "community-console"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestCounter(t *testing.T) {
	reader, provider := newTestMeter(t)
	c, err := NewCounter(provider.Meter("test"), "events_total", "Events", "{event}")
	require.NoError(t, err)

	ctx := context.Background()
	c.Inc(ctx, AttrOutcome.String("approved"))
	c.Inc(ctx, AttrOutcome.String("approved"))
	c.Inc(ctx, AttrOutcome.String("declined"))

	m := collect(t, reader)["events_total"]
	assert.Equal(t, int64(2), sumValue(t, m, AttrOutcome.String("approved")))
	assert.Equal(t, int64(1), sumValue(t, m, AttrOutcome.String("declined")))
}

func TestHistogram_RecordDuration(t *testing.T) {
	reader, provider := newTestMeter(t)
	h, err := NewHistogram(provider.Meter("test"), HistogramOpts{
		Name:       "wait_seconds",
		Unit:       "s",
		Boundaries: GatewayDurationBuckets,
	})
	require.NoError(t, err)

	h.RecordDuration(context.Background(), 1500*time.Millisecond)

	hist, ok := collect(t, reader)["wait_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 1e-9)
	assert.Equal(t, GatewayDurationBuckets, hist.DataPoints[0].Bounds)
}

func TestGauge_Record(t *testing.T) {
	reader, provider := newTestMeter(t)
	g, err := NewGauge(provider.Meter("test"), "pool", "Pool", "{connection}")
	require.NoError(t, err)

	g.Record(context.Background(), 3, AttrDBState.String("idle"))
	g.Record(context.Background(), 5, AttrDBState.String("idle"))

	assert.Equal(t, int64(5), gaugeValue(t, collect(t, reader)["pool"], AttrDBState.String("idle")))
}
