package projections

import (
	"errors"
	"slices"
	"time"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

var ErrEmptyReadTimeouts = errors.New("read retry policy needs at least one timeout")
var ErrNonPositiveReadTimeout = errors.New("read timeouts must be positive")
var ErrNegativeBackoff = errors.New("read backoff must not be negative")

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithLogger sets the logger for the Engine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: per-read and per-write detail
// Info level: completed dispatches with projection and event counts
// Warn level: retried reads and failed reconnects
// Error level: failures that abort a dispatch.
func WithLogger(logger eventstore.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = eventstore.NoopLogger{}
		}
		e.logger = logger

		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Engine.
// It receives the same messages as the Logger, with the context attached for trace correlation.
func WithContextualLogger(logger eventstore.ContextualLogger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = eventstore.NoopLogger{}
		}
		e.contextualLogger = logger

		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(e *Engine) error {
		if collector == nil {
			collector = eventstore.NoopMetricsCollector{}
		}
		e.metricsCollector = collector

		return nil
	}
}

// WithTracing sets the tracing collector for the Engine.
// Every dispatch and every applied projection gets its own span.
func WithTracing(collector eventstore.TracingCollector) Option {
	return func(e *Engine) error {
		if collector == nil {
			collector = eventstore.NoopTracingCollector{}
		}
		e.tracingCollector = collector

		return nil
	}
}

// WithReadTimeouts replaces the per-attempt read timeouts. The number of timeouts is the number of attempts.
func WithReadTimeouts(timeouts ...time.Duration) Option {
	return func(e *Engine) error {
		policy := e.retryPolicy
		policy.Timeouts = slices.Clone(timeouts)
		if err := policy.Validate(); err != nil {
			return err
		}
		e.retryPolicy = policy

		return nil
	}
}

// WithReadBackoff sets the base delay of the linear backoff between read attempts.
func WithReadBackoff(baseDelay time.Duration) Option {
	return func(e *Engine) error {
		policy := e.retryPolicy
		policy.BaseDelay = baseDelay
		if err := policy.Validate(); err != nil {
			return err
		}
		e.retryPolicy = policy

		return nil
	}
}
