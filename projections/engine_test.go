package projections_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/documentstore/memoryengine"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/projections"
	"github.com/emmett-community/emmett-google-realtime-db/testutil/documentstore/flaky"
	. "github.com/emmett-community/emmett-google-realtime-db/testutil/observability/testdoubles"
)

func Test_HandleInlineProjections_When_No_Projection_Is_Interested(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, _ := buildFlakyEngine(t)
	projectionSet := []projections.Projection{
		buildCartDetailsProjection(t),
		buildCartSummaryProjection(t),
	}

	// act
	err := engine.HandleInlineProjections(ctx, readEventsFrom("cart-1", 0, emptyEvent(t, unrelatedEventType)), projectionSet, "cart-1")

	// assert
	require.NoError(t, err)
	assert.Empty(t, store.Accesses(), "no read or write may be issued")
}

func Test_HandleInlineProjections_When_No_Events(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, _ := buildFlakyEngine(t)

	// act
	err := engine.HandleInlineProjections(ctx, nil, []projections.Projection{buildCartSummaryProjection(t)}, "cart-1")

	// assert
	require.NoError(t, err)
	assert.Empty(t, store.Accesses())
}

func Test_HandleInlineProjections_Only_Runs_Interested_Projections(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, _ := buildFlakyEngine(t)
	details := buildCartDetailsProjection(t)
	summary := buildCartSummaryProjection(t)

	// act
	err := engine.HandleInlineProjections(
		ctx,
		readEventsFrom("cart-1", 0, emptyEvent(t, shoppingCartConfirmed)),
		[]projections.Projection{details, summary},
		"cart-1",
	)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, store.CallsOn(flaky.OperationGet, "projections/carts_details/cart-1"))
	assert.Equal(t, 1, store.CallsOn(flaky.OperationSet, "projections/carts_details/cart-1"))
	assert.Equal(t, 0, store.CallsOn(flaky.OperationGet, "projections/carts_summary/cart-1"))
	assert.Equal(t, 0, store.CallsOn(flaky.OperationSet, "projections/carts_summary/cart-1"))
}

func Test_HandleInlineProjections_Runs_Projections_Sequentially_In_Order(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, _ := buildFlakyEngine(t)
	details := buildCartDetailsProjection(t)
	summary := buildCartSummaryProjection(t)

	// act
	err := engine.HandleInlineProjections(
		ctx,
		readEventsFrom("cart-1", 0, productItemEvent(t, productItemAdded, "p-1", 2)),
		[]projections.Projection{summary, details},
		"cart-1",
	)

	// assert
	require.NoError(t, err)
	assert.Equal(t, []flaky.Access{
		{Operation: flaky.OperationGet, Path: "projections/carts_summary/cart-1"},
		{Operation: flaky.OperationSet, Path: "projections/carts_summary/cart-1"},
		{Operation: flaky.OperationGet, Path: "projections/carts_details/cart-1"},
		{Operation: flaky.OperationSet, Path: "projections/carts_details/cart-1"},
	}, store.Accesses())
}

func Test_HandleInlineProjections_Never_Touches_Other_Streams(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, inner := buildFlakyEngine(t)
	summary := buildCartSummaryProjection(t)
	otherDocument := []byte(`{"totalQuantity":7,"changes":1}`)
	require.NoError(t, inner.Set(ctx, "projections/carts_summary/cart-2", otherDocument))

	// act
	err := engine.HandleInlineProjections(
		ctx,
		readEventsFrom("cart-1", 0, productItemEvent(t, productItemAdded, "p-1", 2)),
		[]projections.Projection{summary},
		"cart-1",
	)

	// assert
	require.NoError(t, err)
	for _, access := range store.Accesses() {
		assert.Equal(t, "projections/carts_summary/cart-1", access.Path)
	}

	snapshot, getErr := inner.Get(ctx, "projections/carts_summary/cart-2")
	require.NoError(t, getErr)
	assert.JSONEq(t, string(otherDocument), string(snapshot.Raw()))
}

func Test_HandleInlineProjections_Keeps_Nested_Looking_Stream_IDs_Apart(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memoryengine.NewDocumentStore()
	counters := []projections.Projection{buildCounterProjection(t, "counter", "Added")}

	require.NoError(t, projections.HandleInlineProjections(ctx, store,
		readEventsFrom("cart", 0, emptyEvent(t, "Added")), counters, "cart"))

	// act
	err := projections.HandleInlineProjections(ctx, store,
		readEventsFrom("cart/1", 0, emptyEvent(t, "Added")), counters, "cart/1")
	rewriteErr := projections.HandleInlineProjections(ctx, store,
		readEventsFrom("cart", 1, emptyEvent(t, "Added")), counters, "cart")

	// assert
	assert.ErrorIs(t, err, projections.ErrInvalidStreamID)
	require.NoError(t, rewriteErr)
	assert.Equal(t, []string{"projections/counter/cart"}, store.Paths())
}

func Test_HandleInlineProjections_When_Stream_ID_Is_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		streamID string
	}{
		{name: "blank", streamID: " "},
		{name: "empty", streamID: ""},
		{name: "slash", streamID: "cart/1"},
		{name: "trailing slash", streamID: "cart/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// setup
			ctx := context.Background()
			engine, store, _ := buildFlakyEngine(t)

			// act
			err := engine.HandleInlineProjections(ctx,
				readEventsFrom("cart", 0, emptyEvent(t, "Added")),
				[]projections.Projection{buildCounterProjection(t, "counter", "Added")},
				tt.streamID,
			)

			// assert
			assert.ErrorIs(t, err, projections.ErrInvalidStreamID)
			assert.Empty(t, store.Accesses())
		})
	}
}

func Test_ApplyProjection_When_Stream_ID_Is_Invalid(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, _ := buildFlakyEngine(t)

	// act
	err := engine.ApplyProjection(ctx, buildCounterProjection(t, "counter", "Added"),
		documentstore.MissingSnapshot("projections/counter/cart"), "cart/1",
		readEventsFrom("cart/1", 0, emptyEvent(t, "Added")))

	// assert
	assert.ErrorIs(t, err, projections.ErrInvalidStreamID)
	assert.Empty(t, store.Accesses())
}

func Test_HandleInlineProjections_Batch_Equals_Sequential_Batches(t *testing.T) {
	// setup
	ctx := context.Background()
	batchStore := memoryengine.NewDocumentStore()
	sequentialStore := memoryengine.NewDocumentStore()
	details := []projections.Projection{buildCartDetailsProjection(t)}
	events := readEventsFrom("cart-1", 0,
		productItemEvent(t, productItemAdded, "p-1", 2),
		productItemEvent(t, productItemAdded, "p-2", 1),
		productItemEvent(t, productItemRemoved, "p-1", 1),
		emptyEvent(t, shoppingCartConfirmed),
	)

	// act
	require.NoError(t, projections.HandleInlineProjections(ctx, batchStore, events, details, "cart-1"))
	for _, event := range events {
		require.NoError(t, projections.HandleInlineProjections(ctx, sequentialStore, eventstore.ReadEvents{event}, details, "cart-1"))
	}

	// assert
	batch, err := batchStore.Get(ctx, "projections/carts_details/cart-1")
	require.NoError(t, err)
	sequential, err := sequentialStore.Get(ctx, "projections/carts_details/cart-1")
	require.NoError(t, err)
	assert.JSONEq(t, string(sequential.Raw()), string(batch.Raw()))
	assert.JSONEq(t,
		`{"items":{"p-1":1,"p-2":1},"status":"Confirmed","_metadata":{"streamId":"cart-1","name":"carts_details","schemaVersion":1,"streamPosition":"3"}}`,
		string(batch.Raw()),
	)
}

func Test_HandleInlineProjections_When_A_Projection_Fails(t *testing.T) {
	// setup
	ctx := context.Background()
	errBoom := errors.New("boom")
	engine, store, inner := buildFlakyEngine(t)
	first := buildCounterProjection(t, "first", "Added")
	failing, err := projections.BuildDefinition(projections.DefinitionConfig[counter]{
		Name:      "failing",
		CanHandle: []string{"Added"},
		Evolve: func(*counter, eventstore.ReadEvent) (*counter, error) {
			return nil, errBoom
		},
	})
	require.NoError(t, err)
	last := buildCounterProjection(t, "last", "Added")

	// act
	dispatchErr := engine.HandleInlineProjections(
		ctx,
		readEventsFrom("s-1", 0, emptyEvent(t, "Added")),
		[]projections.Projection{first, failing, last},
		"s-1",
	)

	// assert
	assert.ErrorIs(t, dispatchErr, errBoom)
	assert.ErrorIs(t, dispatchErr, projections.ErrEvolutionFailed)

	firstSnapshot, getErr := inner.Get(ctx, "projections/first/s-1")
	require.NoError(t, getErr)
	assert.True(t, firstSnapshot.Exists(), "earlier projections stay written")
	assert.Equal(t, 0, store.CallsOn(flaky.OperationGet, "projections/last/s-1"), "later projections never run")
}

func Test_HandleInlineProjections_When_Writing_Fails(t *testing.T) {
	// setup
	ctx := context.Background()
	errWrite := errors.New("permission denied")
	engine, store, _ := buildFlakyEngine(t)
	store.FailSetOn("projections/carts_summary/cart-1", errWrite)

	// act
	err := engine.HandleInlineProjections(
		ctx,
		readEventsFrom("cart-1", 0, productItemEvent(t, productItemAdded, "p-1", 1)),
		[]projections.Projection{buildCartSummaryProjection(t), buildCartDetailsProjection(t)},
		"cart-1",
	)

	// assert
	assert.ErrorIs(t, err, projections.ErrWritingDocumentFailed)
	assert.ErrorIs(t, err, errWrite)
	assert.Equal(t, 0, store.CallsOn(flaky.OperationGet, "projections/carts_details/cart-1"))
}

func Test_HandleInlineProjections_When_Deleting_Fails(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, _ := buildFlakyEngine(t)
	store.FailDeleteOn("projections/carts_details/cart-1", nil)

	// act
	err := engine.HandleInlineProjections(
		ctx,
		readEventsFrom("cart-1", 0, emptyEvent(t, shoppingCartCancelled)),
		[]projections.Projection{buildCartDetailsProjection(t)},
		"cart-1",
	)

	// assert
	assert.ErrorIs(t, err, projections.ErrDeletingDocumentFailed)
	assert.ErrorIs(t, err, flaky.ErrScripted)
}

func Test_HandleInlineProjections_When_Reading_Is_Exhausted(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, _ := buildFlakyEngine(t)
	store.ScriptGets(flaky.Fail(nil), flaky.Fail(nil), flaky.Fail(nil))

	// act
	err := engine.HandleInlineProjections(
		ctx,
		readEventsFrom("cart-1", 0, productItemEvent(t, productItemAdded, "p-1", 1)),
		[]projections.Projection{buildCartSummaryProjection(t)},
		"cart-1",
	)

	// assert
	assert.ErrorIs(t, err, projections.ErrReadRetriesExhausted)
	assert.Equal(t, 0, store.Calls(flaky.OperationSet))
}

func Test_HandleInlineProjections_Deletes_On_Null_State(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memoryengine.NewDocumentStore()
	details := []projections.Projection{buildCartDetailsProjection(t)}

	// act
	err := projections.HandleInlineProjections(ctx, store, readEventsFrom("cart-1", 0,
		productItemEvent(t, productItemAdded, "p-1", 1),
		emptyEvent(t, shoppingCartCancelled),
	), details, "cart-1")

	// assert
	require.NoError(t, err)
	assert.Empty(t, store.Paths())
}

func Test_HandleInlineProjections_With_Observability(t *testing.T) {
	// setup
	ctx := context.Background()
	metrics := NewMetricsCollectorSpy(true)
	tracing := NewTracingCollectorSpy(true)
	contextualLogger := NewContextualLoggerSpy(true)
	engine, _, _ := buildFlakyEngine(t,
		projections.WithMetrics(metrics),
		projections.WithTracing(tracing),
		projections.WithContextualLogger(contextualLogger),
	)

	// act
	err := engine.HandleInlineProjections(
		ctx,
		readEventsFrom("cart-1", 0,
			productItemEvent(t, productItemAdded, "p-1", 1),
			emptyEvent(t, shoppingCartCancelled),
		),
		[]projections.Projection{buildCartSummaryProjection(t), buildCartDetailsProjection(t)},
		"cart-1",
	)

	// assert
	require.NoError(t, err)
	assert.True(t, metrics.HasDurationRecord("projection_dispatch_duration_seconds"))
	assert.True(t, metrics.HasDurationRecord("projection_apply_duration_seconds"))
	assert.True(t, metrics.HasDurationRecord("projection_read_duration_seconds"))
	assert.Equal(t, 1, metrics.CountCounterRecords("projection_documents_written_total", map[string]string{"projection": "carts_summary"}))
	assert.Equal(t, 1, metrics.CountCounterRecords("projection_documents_deleted_total", map[string]string{"projection": "carts_details"}))
	assert.Equal(t, float64(4), metrics.SumValueRecords("projection_events_applied", nil))

	assert.Equal(t, 1, tracing.CountSpans("projections.dispatch"))
	assert.Equal(t, 2, tracing.CountSpans("projections.apply"))
	assert.True(t, tracing.HasSpanRecordForName("projections.dispatch").
		WithStatus("success").
		WithStartAttribute("stream_id", "cart-1").
		WithEndAttribute("projection_count", "2").
		Assert())
	assert.True(t, tracing.HasSpanRecordForName("projections.apply").
		WithStartAttribute("projection", "carts_summary").
		WithEndAttribute("outcome", "written").
		Assert())

	assert.True(t, contextualLogger.HasInfoLog("projections: dispatch completed"))
	assert.Equal(t, 1, contextualLogger.CountLogs(LevelDebug, "projections: document deleted"))
}

func Test_HandleInlineProjections_Records_Errors(t *testing.T) {
	// setup
	ctx := context.Background()
	metrics := NewMetricsCollectorSpy(true)
	tracing := NewTracingCollectorSpy(true)
	contextualLogger := NewContextualLoggerSpy(true)
	engine, store, _ := buildFlakyEngine(t,
		projections.WithMetrics(metrics),
		projections.WithTracing(tracing),
		projections.WithContextualLogger(contextualLogger),
	)
	store.FailSetOn("projections/carts_summary/cart-1", nil)

	// act
	err := engine.HandleInlineProjections(
		ctx,
		readEventsFrom("cart-1", 0, productItemEvent(t, productItemAdded, "p-1", 1)),
		[]projections.Projection{buildCartSummaryProjection(t)},
		"cart-1",
	)

	// assert
	require.Error(t, err)
	assert.Equal(t, 1, metrics.CountCounterRecords("projection_errors_total", map[string]string{"operation": "apply", "error_type": "write"}))
	assert.Equal(t, 1, metrics.CountCounterRecords("projection_errors_total", map[string]string{"operation": "dispatch", "error_type": "write"}))
	assert.True(t, tracing.HasSpanRecordForName("projections.dispatch").WithStatus("error").WithEndAttribute("error_type", "write").Assert())
	assert.True(t, contextualLogger.HasErrorLog("projections: dispatch failed"))
}
