package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/emmett-community/emmett-google-realtime-db/oteladapters"
)

func buildTracer() (trace.Tracer, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	return provider.Tracer("test"), exporter
}

func Test_TracingCollector_StartSpan_And_FinishSpan(t *testing.T) {
	// setup
	tracer, exporter := buildTracer()
	collector := oteladapters.NewTracingCollector(tracer)

	// act
	ctx, spanCtx := collector.StartSpan(context.Background(), "projections.apply", map[string]string{
		"projection": "carts_summary",
		"stream_id":  "cart-1",
	})
	collector.FinishSpan(spanCtx, "success", map[string]string{"outcome": "written"})

	// assert
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid(), "the context carries the span")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "projections.apply", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)
	assertSpanHasAttribute(t, span, "projection", "carts_summary")
	assertSpanHasAttribute(t, span, "stream_id", "cart-1")
	assertSpanHasAttribute(t, span, "outcome", "written")
}

func Test_TracingCollector_Nests_Spans(t *testing.T) {
	// setup
	tracer, exporter := buildTracer()
	collector := oteladapters.NewTracingCollector(tracer)

	// act
	parentCtx, parent := collector.StartSpan(context.Background(), "projections.dispatch", nil)
	_, child := collector.StartSpan(parentCtx, "projections.apply", nil)
	collector.FinishSpan(child, "success", nil)
	collector.FinishSpan(parent, "success", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "projections.apply", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func Test_TracingCollector_FinishSpan_Maps_Status(t *testing.T) {
	tests := []struct {
		status       string
		expectedCode codes.Code
	}{
		{status: "success", expectedCode: codes.Ok},
		{status: "error", expectedCode: codes.Error},
		{status: "canceled", expectedCode: codes.Error},
		{status: "timeout", expectedCode: codes.Error},
		{status: "custom", expectedCode: codes.Unset},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			tracer, exporter := buildTracer()
			collector := oteladapters.NewTracingCollector(tracer)

			_, spanCtx := collector.StartSpan(context.Background(), "span", nil)
			collector.FinishSpan(spanCtx, tt.status, nil)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.expectedCode, spans[0].Status.Code)
		})
	}
}

func Test_TracingCollector_FinishSpan_Ignores_Foreign_Span_Contexts(t *testing.T) {
	// setup
	tracer, exporter := buildTracer()
	collector := oteladapters.NewTracingCollector(tracer)

	// act / assert
	assert.NotPanics(t, func() {
		collector.FinishSpan(&foreignSpanContext{}, "success", nil)
		collector.FinishSpan(nil, "success", nil)
	})
	assert.Empty(t, exporter.GetSpans())
}

func Test_OTelSpanContext_AddAttribute(t *testing.T) {
	// setup
	tracer, exporter := buildTracer()
	collector := oteladapters.NewTracingCollector(tracer)

	// act
	_, spanCtx := collector.StartSpan(context.Background(), "span", nil)
	spanCtx.AddAttribute("attempt", "2")
	collector.FinishSpan(spanCtx, "completed", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assertSpanHasAttribute(t, spans[0], "attempt", "2")
}

type foreignSpanContext struct{}

func (*foreignSpanContext) SetStatus(string)            {}
func (*foreignSpanContext) AddAttribute(string, string) {}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expectedValue string) {
	t.Helper()

	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) && attr.Value.AsString() == expectedValue {
			return
		}
	}

	assert.Failf(t, "missing span attribute", "%s=%s", key, expectedValue)
}
