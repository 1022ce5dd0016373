package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

// TracingCollector implements eventstore.TracingCollector with an OpenTelemetry tracer.
// The context returned by StartSpan carries the span, so nested spans and correlated logs line up.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector wraps tracer, usually obtained from a TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

func (t *TracingCollector) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, eventstore.SpanContext) {

	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan adds attrs, maps status onto the span status and ends the span.
// Span contexts that were not created by this collector are ignored.
func (t *TracingCollector) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok || otelSpanCtx == nil {
		return
	}

	otelSpanCtx.span.SetAttributes(toAttributes(attrs)...)
	otelSpanCtx.setSpanStatus(status)
	otelSpanCtx.span.End()
}

// OTelSpanContext implements eventstore.SpanContext over an OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

func (s *OTelSpanContext) SetStatus(status string) {
	s.setSpanStatus(status)
}

func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

func (s *OTelSpanContext) setSpanStatus(status string) {
	switch status {
	case "ok", "success", "completed":
		s.span.SetStatus(codes.Ok, "")
	case "error", "failed", "failure":
		s.span.SetStatus(codes.Error, "operation failed")
	case "cancelled", "canceled":
		s.span.SetStatus(codes.Error, "operation cancelled")
	case "timeout":
		s.span.SetStatus(codes.Error, "operation timed out")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

var (
	_ eventstore.TracingCollector = (*TracingCollector)(nil)
	_ eventstore.SpanContext      = (*OTelSpanContext)(nil)
)
