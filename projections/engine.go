package projections

import (
	"context"
	"errors"
	"time"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

var ErrNilDocumentStore = errors.New("document store must not be nil")

// Engine runs inline projections against a document store.
// It is safe for concurrent use; dispatches do not coordinate with each other.
type Engine struct {
	store            documentstore.Store
	reader           *Reader
	retryPolicy      RetryPolicy
	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector
}

// NewEngine creates an Engine that reads and writes projection documents through store.
// Observability defaults to no-op implementations.
func NewEngine(store documentstore.Store, options ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilDocumentStore
	}

	engine := &Engine{
		store:            store,
		retryPolicy:      DefaultRetryPolicy(),
		logger:           eventstore.NoopLogger{},
		contextualLogger: eventstore.NoopLogger{},
		metricsCollector: eventstore.NoopMetricsCollector{},
		tracingCollector: eventstore.NoopTracingCollector{},
	}

	for _, option := range options {
		if err := option(engine); err != nil {
			return nil, err
		}
	}

	engine.reader = &Reader{engine: engine, policy: engine.retryPolicy}

	return engine, nil
}

// Reader returns the retrying reader the engine loads prior documents with.
func (e *Engine) Reader() *Reader {
	return e.reader
}

// RetryPolicy returns the resolved read retry policy.
func (e *Engine) RetryPolicy() RetryPolicy {
	return e.retryPolicy
}

// HandleInlineProjections runs every projection whose interest set intersects the event types of events.
//
// Matching projections run sequentially in the given order: read the document at
// projections/{name}/{streamID}, fold all events onto it, persist the result.
// The first failure aborts the dispatch; documents written by earlier projections stay written.
func (e *Engine) HandleInlineProjections(
	ctx context.Context,
	events eventstore.ReadEvents,
	projections []Projection,
	streamID string,
) error {

	if len(events) == 0 || len(projections) == 0 {
		return nil
	}

	if err := ValidateStreamID(streamID); err != nil {
		return err
	}

	matching := e.matchingProjections(events, projections)
	if len(matching) == 0 {
		return nil
	}

	tracer, ctx := e.startDispatchTracing(ctx, streamID, len(events), len(matching))
	metrics := e.startDispatchMetrics(ctx)
	start := time.Now()

	for _, projection := range matching {
		if err := e.runProjection(ctx, projection, streamID, events); err != nil {
			duration := time.Since(start)
			metrics.recordError(errorTypeOf(err), duration)
			tracer.finishError(errorTypeOf(err), duration)
			e.logError(ctx, logMsgDispatchFailed, err,
				logAttrProjection, projection.Name(),
				logAttrStreamID, streamID,
			)

			return err
		}
	}

	duration := time.Since(start)
	metrics.recordSuccess(len(events), duration)
	tracer.finishSuccess(len(matching), duration)
	e.logInfo(ctx, logMsgDispatchCompleted,
		logAttrStreamID, streamID,
		logAttrProjectionCount, len(matching),
		logAttrEventCount, len(events),
		logAttrDurationMS, toMilliseconds(duration),
	)

	return nil
}

// HandleInlineProjections builds an Engine over store with options and dispatches events to projections.
func HandleInlineProjections(
	ctx context.Context,
	store documentstore.Store,
	events eventstore.ReadEvents,
	projections []Projection,
	streamID string,
	options ...Option,
) error {

	engine, err := NewEngine(store, options...)
	if err != nil {
		return err
	}

	return engine.HandleInlineProjections(ctx, events, projections, streamID)
}

func (e *Engine) matchingProjections(events eventstore.ReadEvents, projections []Projection) []Projection {
	eventTypes := make(map[eventstore.EventTypeString]struct{}, len(events))
	for _, event := range events {
		eventTypes[event.Type] = struct{}{}
	}

	matching := make([]Projection, 0, len(projections))
	for _, projection := range projections {
		for eventType := range eventTypes {
			if projection.Handles(eventType) {
				matching = append(matching, projection)
				break
			}
		}
	}

	return matching
}

func (e *Engine) runProjection(
	ctx context.Context,
	projection Projection,
	streamID string,
	events eventstore.ReadEvents,
) error {

	stored, err := e.reader.Read(ctx, DocumentPath(projection.Name(), streamID))
	if err != nil {
		return err
	}

	return e.ApplyProjection(ctx, projection, stored, streamID, events)
}
