// Package oteladapters implements the observability ports of this module on top of OpenTelemetry.
//
// The engines only know the dependency-free interfaces declared in the eventstore package
// (Logger, ContextualLogger, MetricsCollector, TracingCollector). The adapters in this package plug
// an OpenTelemetry setup into them:
//   - SlogBridgeLogger: slog through the otelslog bridge, with trace correlation
//   - OTelLogger: the OpenTelemetry log API directly
//   - MetricsCollector: durations as histograms, counters as counters, values as gauges
//   - TracingCollector: one OpenTelemetry span per StartSpan/FinishSpan pair
//
// Typical wiring:
//
//	engineOptions := []projections.Option{
//		projections.WithContextualLogger(oteladapters.NewSlogBridgeLogger("shopping-cart")),
//		projections.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter("shopping-cart"))),
//		projections.WithTracing(oteladapters.NewTracingCollector(otel.Tracer("shopping-cart"))),
//	}
package oteladapters
