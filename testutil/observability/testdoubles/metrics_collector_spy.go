package testdoubles

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

// MetricsCollectorSpy captures MetricsCollector calls for testing.
// It also implements ContextualMetricsCollector, so callers that prefer the context-aware methods are covered too.
type MetricsCollectorSpy struct {
	durationRecords []SpyDurationRecord
	counterRecords  []SpyCounterRecord
	valueRecords    []SpyValueRecord
	mu              sync.Mutex
	recordCalls     bool
}

// SpyDurationRecord represents a recorded duration metric call.
type SpyDurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// SpyCounterRecord represents a recorded counter increment call.
type SpyCounterRecord struct {
	Metric string
	Labels map[string]string
}

// SpyValueRecord represents a recorded value metric call.
type SpyValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
// Set recordCalls to true to capture all metrics calls for inspection in tests.
func NewMetricsCollectorSpy(recordCalls bool) *MetricsCollectorSpy {
	return &MetricsCollectorSpy{
		durationRecords: make([]SpyDurationRecord, 0),
		counterRecords:  make([]SpyCounterRecord, 0),
		valueRecords:    make([]SpyValueRecord, 0),
		recordCalls:     recordCalls,
	}
}

// RecordDuration implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = append(s.durationRecords, SpyDurationRecord{
		Metric:   metric,
		Duration: duration,
		Labels:   maps.Clone(labels),
	})
}

// IncrementCounter implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterRecords = append(s.counterRecords, SpyCounterRecord{
		Metric: metric,
		Labels: maps.Clone(labels),
	})
}

// RecordValue implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.valueRecords = append(s.valueRecords, SpyValueRecord{
		Metric: metric,
		Value:  value,
		Labels: maps.Clone(labels),
	})
}

// RecordDurationContext implements the ContextualMetricsCollector interface.
func (s *MetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.RecordDuration(metric, duration, labels)
}

// IncrementCounterContext implements the ContextualMetricsCollector interface.
func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.IncrementCounter(metric, labels)
}

// RecordValueContext implements the ContextualMetricsCollector interface.
func (s *MetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.RecordValue(metric, value, labels)
}

// Reset clears all captured records.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = s.durationRecords[:0]
	s.counterRecords = s.counterRecords[:0]
	s.valueRecords = s.valueRecords[:0]
}

// GetDurationRecords returns a copy of all captured duration records.
func (s *MetricsCollectorSpy) GetDurationRecords() []SpyDurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyDurationRecord(nil), s.durationRecords...)
}

// GetCounterRecords returns a copy of all captured counter records.
func (s *MetricsCollectorSpy) GetCounterRecords() []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyCounterRecord(nil), s.counterRecords...)
}

// GetValueRecords returns a copy of all captured value records.
func (s *MetricsCollectorSpy) GetValueRecords() []SpyValueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyValueRecord(nil), s.valueRecords...)
}

// HasDurationRecord checks if a duration was recorded for metric.
func (s *MetricsCollectorSpy) HasDurationRecord(metric string) bool {
	for _, record := range s.GetDurationRecords() {
		if record.Metric == metric {
			return true
		}
	}

	return false
}

// HasValueRecord checks if a value was recorded for metric.
func (s *MetricsCollectorSpy) HasValueRecord(metric string) bool {
	for _, record := range s.GetValueRecords() {
		if record.Metric == metric {
			return true
		}
	}

	return false
}

// CountCounterRecords counts the increments of metric whose labels contain all of wantLabels.
func (s *MetricsCollectorSpy) CountCounterRecords(metric string, wantLabels map[string]string) int {
	count := 0
	for _, record := range s.GetCounterRecords() {
		if record.Metric == metric && containsLabels(record.Labels, wantLabels) {
			count++
		}
	}

	return count
}

// SumValueRecords adds up the values recorded for metric whose labels contain all of wantLabels.
func (s *MetricsCollectorSpy) SumValueRecords(metric string, wantLabels map[string]string) float64 {
	sum := 0.0
	for _, record := range s.GetValueRecords() {
		if record.Metric == metric && containsLabels(record.Labels, wantLabels) {
			sum += record.Value
		}
	}

	return sum
}

func containsLabels(labels, wantLabels map[string]string) bool {
	for key, value := range wantLabels {
		if labels[key] != value {
			return false
		}
	}

	return true
}

var (
	_ eventstore.MetricsCollector           = (*MetricsCollectorSpy)(nil)
	_ eventstore.ContextualMetricsCollector = (*MetricsCollectorSpy)(nil)
)
