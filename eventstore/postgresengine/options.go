package postgresengine

import (
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/internal/adapters"
)

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore) error

// WithTableName sets the table name for the EventStore.
func WithTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return eventstore.ErrEmptyEventsTableName
		}

		if err := adapters.ValidateTableName(tableName); err != nil {
			return err
		}

		es.eventTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the EventStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Event counts, durations, concurrency conflicts (production-safe)
// Error level: Critical failures that cause operation failures.
func WithLogger(logger eventstore.Logger) Option {
	return func(es *EventStore) error {
		es.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the EventStore.
// It receives read/append durations, event counts, concurrency conflicts, and database errors.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(es *EventStore) error {
		es.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the EventStore.
// Each read and append gets its own span.
func WithTracing(collector eventstore.TracingCollector) Option {
	return func(es *EventStore) error {
		es.tracingCollector = collector
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the EventStore.
// It receives the same messages as the Logger, with the context attached for trace correlation.
func WithContextualLogger(logger eventstore.ContextualLogger) Option {
	return func(es *EventStore) error {
		es.contextualLogger = logger
		return nil
	}
}
