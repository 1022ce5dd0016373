package eventstore

import (
	"context"
	"time"
)

// Logger interface for operational logging, warnings, and error reporting.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
// It stays dependency-free so that any logging backend (slog, OpenTelemetry, ...) can be plugged in.
// *slog.Logger satisfies it.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods for trace correlation.
// This interface is optional - callers use the context-aware methods when available and fall back to
// the base MetricsCollector interface otherwise.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information.
// Like MetricsCollector it is dependency-free, so any tracing backend can implement it.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// NoopLogger discards everything. It implements both Logger and ContextualLogger.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any) {}
func (NoopLogger) Warn(string, ...any) {}
func (NoopLogger) Error(string, ...any) {}
func (NoopLogger) DebugContext(context.Context, string, ...any) {}
func (NoopLogger) InfoContext(context.Context, string, ...any) {}
func (NoopLogger) WarnContext(context.Context, string, ...any) {}
func (NoopLogger) ErrorContext(context.Context, string, ...any) {}

// NoopMetricsCollector discards all measurements.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordDuration(string, time.Duration, map[string]string) {}
func (NoopMetricsCollector) IncrementCounter(string, map[string]string) {}
func (NoopMetricsCollector) RecordValue(string, float64, map[string]string) {}

// NoopTracingCollector starts no spans; the returned SpanContext is nil.
type NoopTracingCollector struct{}

func (NoopTracingCollector) StartSpan(ctx context.Context, _ string, _ map[string]string) (context.Context, SpanContext) {
	return ctx, nil
}

func (NoopTracingCollector) FinishSpan(SpanContext, string, map[string]string) {}

var (
	_ Logger           = NoopLogger{}
	_ ContextualLogger = NoopLogger{}
	_ MetricsCollector = NoopMetricsCollector{}
	_ TracingCollector = NoopTracingCollector{}
)
