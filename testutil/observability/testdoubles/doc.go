// Package testdoubles provides spies for the observability ports of the eventstore package.
//
//   - LogHandlerSpy: a slog.Handler that captures records, for use behind slog.New
//   - ContextualLoggerSpy: captures ContextualLogger calls together with their context
//   - MetricsCollectorSpy: captures MetricsCollector and ContextualMetricsCollector calls
//   - TracingCollectorSpy: captures started and finished spans
//
// All spies are safe for concurrent use.
package testdoubles
