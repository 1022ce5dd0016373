package projections_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore/memoryengine"
	"github.com/emmett-community/emmett-google-realtime-db/projections"
	"github.com/emmett-community/emmett-google-realtime-db/testutil/documentstore/flaky"
	. "github.com/emmett-community/emmett-google-realtime-db/testutil/observability/testdoubles"
)

const readPath = "projections/counter/s-1"

func buildFlakyEngine(t *testing.T, options ...projections.Option) (*projections.Engine, *flaky.Store, *memoryengine.DocumentStore) {
	t.Helper()

	inner := memoryengine.NewDocumentStore()
	store := flaky.New(inner)

	defaults := []projections.Option{
		projections.WithReadTimeouts(30*time.Millisecond, 30*time.Millisecond, 30*time.Millisecond),
		projections.WithReadBackoff(time.Millisecond),
	}

	engine, err := projections.NewEngine(store, append(defaults, options...)...)
	require.NoError(t, err)

	return engine, store, inner
}

func Test_NewEngine_When_Options_Are_Invalid(t *testing.T) {
	store := memoryengine.NewDocumentStore()

	tests := []struct {
		name        string
		store       *memoryengine.DocumentStore
		options     []projections.Option
		expectedErr error
	}{
		{name: "nil store", store: nil, expectedErr: projections.ErrNilDocumentStore},
		{name: "no timeouts", store: store, options: []projections.Option{projections.WithReadTimeouts()}, expectedErr: projections.ErrEmptyReadTimeouts},
		{name: "zero timeout", store: store, options: []projections.Option{projections.WithReadTimeouts(time.Second, 0)}, expectedErr: projections.ErrNonPositiveReadTimeout},
		{name: "negative backoff", store: store, options: []projections.Option{projections.WithReadBackoff(-time.Millisecond)}, expectedErr: projections.ErrNegativeBackoff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.store == nil {
				_, err = projections.NewEngine(nil, tt.options...)
			} else {
				_, err = projections.NewEngine(tt.store, tt.options...)
			}

			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func Test_NewEngine_Uses_The_Default_Retry_Policy(t *testing.T) {
	// act
	engine, err := projections.NewEngine(memoryengine.NewDocumentStore())

	// assert
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second, 8 * time.Second, 12 * time.Second}, engine.RetryPolicy().Timeouts)
	assert.Equal(t, 500*time.Millisecond, engine.RetryPolicy().BaseDelay)
}

func Test_Reader_Read_When_First_Attempt_Succeeds(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, inner := buildFlakyEngine(t)
	require.NoError(t, inner.Set(ctx, readPath, []byte(`{"count":1}`)))

	// act
	snapshot, err := engine.Reader().Read(ctx, readPath)

	// assert
	require.NoError(t, err)
	assert.True(t, snapshot.Exists())
	assert.JSONEq(t, `{"count":1}`, string(snapshot.Raw()))
	assert.Equal(t, 1, store.Calls(flaky.OperationGet))
	assert.Equal(t, 0, store.Calls(flaky.OperationDisconnect))
}

func Test_Reader_Read_When_Two_Attempts_Time_Out(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, inner := buildFlakyEngine(t)
	require.NoError(t, inner.Set(ctx, readPath, []byte(`{"count":1}`)))
	store.ScriptGets(flaky.Hang(), flaky.Hang(), flaky.Pass())

	// act
	snapshot, err := engine.Reader().Read(ctx, readPath)

	// assert
	require.NoError(t, err)
	assert.True(t, snapshot.Exists())
	assert.Equal(t, 3, store.Calls(flaky.OperationGet))
	assert.Equal(t, 2, store.Calls(flaky.OperationDisconnect))
	assert.Equal(t, 2, store.Calls(flaky.OperationReconnect))
}

func Test_Reader_Read_When_The_Store_Ignores_The_Deadline(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, _ := buildFlakyEngine(t)
	store.ScriptGets(flaky.Stall(200*time.Millisecond), flaky.Pass())

	// act
	start := time.Now()
	snapshot, err := engine.Reader().Read(ctx, readPath)

	// assert
	require.NoError(t, err)
	assert.False(t, snapshot.Exists())
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, 1, store.Calls(flaky.OperationReconnect))
}

func Test_Reader_Read_When_All_Attempts_Time_Out(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, _ := buildFlakyEngine(t)
	store.ScriptGets(flaky.Hang(), flaky.Hang(), flaky.Hang())

	// act
	_, err := engine.Reader().Read(ctx, readPath)

	// assert
	assert.ErrorIs(t, err, projections.ErrReadRetriesExhausted)
	assert.ErrorIs(t, err, projections.ErrReadTimeout)
	assert.Equal(t, 3, store.Calls(flaky.OperationGet))
	assert.Equal(t, 2, store.Calls(flaky.OperationReconnect), "no reset after the last attempt")
}

func Test_Reader_Read_When_All_Attempts_Fail(t *testing.T) {
	// setup
	ctx := context.Background()
	errUnavailable := errors.New("unavailable")
	engine, store, _ := buildFlakyEngine(t)
	store.ScriptGets(flaky.Fail(errUnavailable), flaky.Fail(errUnavailable), flaky.Fail(errUnavailable))

	// act
	_, err := engine.Reader().Read(ctx, readPath)

	// assert
	assert.ErrorIs(t, err, projections.ErrReadRetriesExhausted)
	assert.ErrorIs(t, err, projections.ErrReadFailed)
	assert.ErrorIs(t, err, errUnavailable)
	assert.Equal(t, 3, store.Calls(flaky.OperationGet))
	assert.Equal(t, 0, store.Calls(flaky.OperationDisconnect), "only timeouts reset the connection")
}

func Test_Reader_Read_Backs_Off_Linearly(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, _ := buildFlakyEngine(t, projections.WithReadBackoff(40*time.Millisecond))
	store.ScriptGets(flaky.Fail(nil), flaky.Fail(nil), flaky.Pass())

	// act
	start := time.Now()
	_, err := engine.Reader().Read(ctx, readPath)

	// assert
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond, "1×40ms + 2×40ms")
}

func Test_Reader_Read_When_Context_Is_Cancelled(t *testing.T) {
	// setup
	ctx, cancel := context.WithCancel(context.Background())
	engine, store, _ := buildFlakyEngine(t, projections.WithReadTimeouts(time.Second, time.Second, time.Second))
	store.ScriptGets(flaky.Hang(), flaky.Hang(), flaky.Hang())

	// act
	time.AfterFunc(20*time.Millisecond, cancel)
	start := time.Now()
	_, err := engine.Reader().Read(ctx, readPath)

	// assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, store.Calls(flaky.OperationGet))
	assert.Equal(t, 0, store.Calls(flaky.OperationDisconnect))
}

func Test_Reader_Read_When_Disconnect_Fails(t *testing.T) {
	// setup
	ctx := context.Background()
	logHandler := NewLogHandlerSpy(false)
	metrics := NewMetricsCollectorSpy(true)
	engine, store, _ := buildFlakyEngine(t,
		projections.WithLogger(slog.New(logHandler)),
		projections.WithMetrics(metrics),
	)
	store.ScriptGets(flaky.Hang(), flaky.Pass()).FailDisconnect(nil)

	// act
	_, err := engine.Reader().Read(ctx, readPath)

	// assert
	require.NoError(t, err)
	assert.True(t, logHandler.HasWarnLog("projections: disconnecting the document store failed"))
	assert.True(t, logHandler.HasLogWithMessage(slog.LevelWarn, "projections: read failed, retrying").WithAttr("attempt").Assert())
	assert.Equal(t, 1, metrics.CountCounterRecords("projection_reconnects_total", map[string]string{"status": "error"}))
	assert.Equal(t, 1, metrics.CountCounterRecords("projection_read_retries_total", map[string]string{"error_type": "read_timeout"}))
	assert.Equal(t, 1, store.Calls(flaky.OperationReconnect))
}

func Test_Reader_Read_When_Disconnect_Fails_Still_Reconnects_The_Store(t *testing.T) {
	// setup
	ctx := context.Background()
	engine, store, inner := buildFlakyEngine(t)
	require.NoError(t, inner.Set(ctx, readPath, []byte(`{"count":3}`)))
	require.NoError(t, inner.Disconnect(ctx))
	store.ScriptGets(flaky.Hang(), flaky.Pass()).FailDisconnect(nil)

	// act
	snapshot, err := engine.Reader().Read(ctx, readPath)

	// assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":3}`, string(snapshot.Raw()))
	assert.Equal(t, 1, store.Calls(flaky.OperationDisconnect))
	assert.Equal(t, 1, store.Calls(flaky.OperationReconnect))
}

func Test_Reader_Read_When_Disconnect_And_Reconnect_Fail(t *testing.T) {
	// setup
	ctx := context.Background()
	logHandler := NewLogHandlerSpy(false)
	metrics := NewMetricsCollectorSpy(true)
	engine, store, _ := buildFlakyEngine(t,
		projections.WithLogger(slog.New(logHandler)),
		projections.WithMetrics(metrics),
	)
	store.ScriptGets(flaky.Hang(), flaky.Pass()).FailDisconnect(nil).FailReconnect(nil)

	// act
	_, err := engine.Reader().Read(ctx, readPath)

	// assert
	require.NoError(t, err)
	assert.True(t, logHandler.HasWarnLog("projections: disconnecting the document store failed"))
	assert.True(t, logHandler.HasWarnLog("projections: reconnecting the document store failed"))
	assert.Equal(t, 1, metrics.CountCounterRecords("projection_reconnects_total", map[string]string{"status": "error"}))
	assert.Equal(t, 0, metrics.CountCounterRecords("projection_reconnects_total", map[string]string{"status": "success"}))
}
