package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collect reads all exported metrics into a name-indexed map.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	out := make(map[string]metricdata.Metrics)

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func TestNewREDMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	rm, err := NewREDMetrics(meter)
	require.NoError(t, err)
	assert.NotNil(t, rm)
}

func TestRecordRequest_Success(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	rm, err := NewREDMetrics(meter)
	require.NoError(t, err)

	rm.RecordRequest(context.Background(), "rollback.preview", "ok", 150*time.Millisecond)

	metrics := collect(t, reader)

	require.Contains(t, metrics, "gitundo.requests.total")
	require.Contains(t, metrics, "gitundo.request.duration.seconds")
	assert.NotContains(t, metrics, "gitundo.errors.total", "no error recorded on ok status")
}

func TestRecordRequest_Error(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	rm, err := NewREDMetrics(meter)
	require.NoError(t, err)

	rm.RecordRequest(context.Background(), "rollback.execute", "error", time.Second)

	metrics := collect(t, reader)

	require.Contains(t, metrics, "gitundo.errors.total")

	sum, ok := metrics["gitundo.errors.total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestTrackInflight(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	rm, err := NewREDMetrics(meter)
	require.NoError(t, err)

	done := rm.TrackInflight(context.Background(), "provenance.track")

	metrics := collect(t, reader)
	sum, ok := metrics["gitundo.inflight.requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)

	done()

	metrics = collect(t, reader)
	sum, ok = metrics["gitundo.inflight.requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(0), sum.DataPoints[0].Value)
}
