package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore/memoryengine"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/oteladapters"
	"github.com/emmett-community/emmett-google-realtime-db/projections"
)

type visits struct {
	Count int `json:"count"`
}

func Test_Projections_Report_Through_OpenTelemetry(t *testing.T) {
	// setup
	ctx := context.Background()
	tracer, exporter := buildTracer()
	meter, reader := buildMeter()

	definition, err := projections.BuildDefinition(projections.DefinitionConfig[visits]{
		Name:         "visits",
		CanHandle:    []string{"PageVisited"},
		InitialState: func() visits { return visits{} },
		Evolve: func(state *visits, _ eventstore.ReadEvent) (*visits, error) {
			return &visits{Count: state.Count + 1}, nil
		},
	})
	require.NoError(t, err)

	event, err := eventstore.BuildEventFromJSON("PageVisited", []byte(`{}`), nil)
	require.NoError(t, err)

	// act
	dispatchErr := projections.HandleInlineProjections(
		ctx,
		memoryengine.NewDocumentStore(),
		eventstore.ReadEvents{event.ToReadEvent("page-1", 0)},
		[]projections.Projection{definition},
		"page-1",
		projections.WithTracing(oteladapters.NewTracingCollector(tracer)),
		projections.WithMetrics(oteladapters.NewMetricsCollector(meter)),
	)

	// assert
	require.NoError(t, dispatchErr)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "projections.apply", spans[0].Name)
	assert.Equal(t, "projections.dispatch", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID(), "apply runs inside dispatch")

	resourceMetrics := collect(t, reader)
	assert.Len(t, findHistogramMetric(t, resourceMetrics, "projection_dispatch_duration_seconds").DataPoints, 1)
	assert.Equal(t, int64(1), findCounterMetric(t, resourceMetrics, "projection_documents_written_total").DataPoints[0].Value)
}
