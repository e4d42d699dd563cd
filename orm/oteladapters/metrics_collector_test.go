package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
	"github.com/AntonStoeckl/active-record-orm-go/orm/oteladapters"
	"github.com/AntonStoeckl/active-record-orm-go/testutil/ormtest"
)

func newMeter(t *testing.T) (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	byName := make(map[string]metricdata.Metrics)
	for _, scope := range resourceMetrics.ScopeMetrics {
		for _, m := range scope.Metrics {
			byName[m.Name] = m
		}
	}

	return byName
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// setup
	collector, reader := newMeter(t)

	// act
	collector.RecordDuration("orm_operation_duration_seconds", 150*time.Millisecond, map[string]string{"operation": "read"})
	collector.RecordDurationContext(context.Background(), "orm_operation_duration_seconds", 50*time.Millisecond, map[string]string{"operation": "read"})

	// assert
	metrics := collect(t, reader)
	histogram, ok := metrics["orm_operation_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(2), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.2, histogram.DataPoints[0].Sum, 0.001)
	assert.Equal(t, "s", metrics["orm_operation_duration_seconds"].Unit)
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// setup
	collector, reader := newMeter(t)
	labels := map[string]string{"operation": "read", "error_type": "adapter"}

	// act
	collector.IncrementCounter("orm_operation_errors_total", labels)
	collector.IncrementCounterContext(context.Background(), "orm_operation_errors_total", labels)

	// assert
	sum, ok := collect(t, reader)["orm_operation_errors_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	// setup
	collector, reader := newMeter(t)

	// act
	collector.RecordValue("orm_eager_load_entities", 3, map[string]string{"relation": "Tag"})
	collector.RecordValueContext(context.Background(), "orm_eager_load_entities", 5, map[string]string{"relation": "Tag"})

	// assert
	gauge, ok := collect(t, reader)["orm_eager_load_entities"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, float64(5), gauge.DataPoints[0].Value)
}

func Test_MetricsCollector_MeasuresEngineOperations(t *testing.T) {
	// setup
	ctx := context.Background()
	collector, reader := newMeter(t)
	engine, _ := ormtest.NewFixtureEngine(t, orm.WithMetrics(collector))
	productModel := ormtest.MustModel(t, engine, ormtest.ModelProduct)

	// act
	product, err := engine.Factory(ctx, productModel, 22)
	require.NoError(t, err)
	require.NoError(t, product.EagerLoad(ctx, orm.With("Tag")))
	_, _ = engine.Factory(ctx, productModel, 404)

	// assert
	metrics := collect(t, reader)
	assert.Contains(t, metrics, orm.MetricOperationDuration)
	assert.Contains(t, metrics, orm.MetricOperationErrors)
	assert.Contains(t, metrics, orm.MetricEagerLoadEntities)
}
