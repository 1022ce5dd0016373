package oteladapters_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/emmett-community/emmett-google-realtime-db/oteladapters"
)

func buildMeter() (metric.Meter, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return provider.Meter("test"), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	return resourceMetrics
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// setup
	meter, reader := buildMeter()
	collector := oteladapters.NewMetricsCollector(meter)

	// act
	collector.RecordDuration("projection_read_duration_seconds", 150*time.Millisecond, map[string]string{
		"operation": "read",
		"status":    "success",
	})

	// assert
	histogram := findHistogramMetric(t, collect(t, reader), "projection_read_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)
	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count)
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001)

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "read"),
		attribute.String("status", "success"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// setup
	ctx := context.Background()
	meter, reader := buildMeter()
	collector := oteladapters.NewMetricsCollector(meter)
	labels := map[string]string{"projection": "carts_summary"}

	// act
	collector.IncrementCounter("projection_documents_written_total", labels)
	collector.IncrementCounterContext(ctx, "projection_documents_written_total", labels)
	collector.IncrementCounter("projection_documents_written_total", labels)

	// assert
	counter := findCounterMetric(t, collect(t, reader), "projection_documents_written_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(3), counter.DataPoints[0].Value)
	assert.True(t, counter.IsMonotonic)
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	// setup
	meter, reader := buildMeter()
	collector := oteladapters.NewMetricsCollector(meter)

	// act
	collector.RecordValue("projection_events_applied", 4, map[string]string{"projection": "carts_details"})
	collector.RecordValueContext(context.Background(), "projection_events_applied", 2, map[string]string{"projection": "carts_details"})

	// assert
	gauge := findGaugeMetric(t, collect(t, reader), "projection_events_applied")
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, float64(2), gauge.DataPoints[0].Value, "a gauge keeps the last value")
}

func Test_MetricsCollector_Is_Safe_For_Concurrent_Use(t *testing.T) {
	// setup
	meter, reader := buildMeter()
	collector := oteladapters.NewMetricsCollector(meter)

	// act
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("projection_reconnects_total", map[string]string{"status": "success"})
		}()
	}
	wg.Wait()

	// assert
	counter := findCounterMetric(t, collect(t, reader), "projection_reconnects_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(20), counter.DataPoints[0].Value)
}

func Test_MetricsCollector_When_Instrument_Creation_Fails(t *testing.T) {
	// setup
	meter, _ := buildMeter()
	collector := oteladapters.NewMetricsCollector(&errorInjectingMeter{Meter: meter})
	ctx := context.Background()

	// act / assert
	assert.NotPanics(t, func() {
		collector.RecordDuration("error_histogram", 100*time.Millisecond, nil)
		collector.RecordDurationContext(ctx, "error_histogram", 100*time.Millisecond, nil)
		collector.IncrementCounter("error_counter", nil)
		collector.IncrementCounterContext(ctx, "error_counter", nil)
		collector.RecordValue("error_gauge", 42, nil)
		collector.RecordValueContext(ctx, "error_gauge", 42, nil)
	})
}

// errorInjectingMeter fails to create instruments whose name starts with "error_".
type errorInjectingMeter struct {
	metric.Meter
}

func (m *errorInjectingMeter) Float64Histogram(name string, options ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	if name == "error_histogram" {
		return nil, errors.New("histogram creation failed")
	}

	return m.Meter.Float64Histogram(name, options...)
}

func (m *errorInjectingMeter) Int64Counter(name string, options ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if name == "error_counter" {
		return nil, errors.New("counter creation failed")
	}

	return m.Meter.Int64Counter(name, options...)
}

func (m *errorInjectingMeter) Float64Gauge(name string, options ...metric.Float64GaugeOption) (metric.Float64Gauge, error) {
	if name == "error_gauge" {
		return nil, errors.New("gauge creation failed")
	}

	return m.Meter.Float64Gauge(name, options...)
}

func findMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, candidate := range scopeMetrics.Metrics {
			if candidate.Name == name {
				return candidate
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	return metricdata.Metrics{}
}

func findHistogramMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Histogram[float64] {
	t.Helper()

	histogram, ok := findMetric(t, resourceMetrics, name).Data.(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is not a float64 histogram", name)

	return histogram
}

func findCounterMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()

	counter, ok := findMetric(t, resourceMetrics, name).Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)

	return counter
}

func findGaugeMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Gauge[float64] {
	t.Helper()

	gauge, ok := findMetric(t, resourceMetrics, name).Data.(metricdata.Gauge[float64])
	require.True(t, ok, "metric %s is not a float64 gauge", name)

	return gauge
}
