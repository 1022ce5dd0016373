package projections

import (
	"context"
	"errors"
	"time"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

var ErrWritingDocumentFailed = errors.New("writing the projection document failed")
var ErrDeletingDocumentFailed = errors.New("deleting the projection document failed")

// ApplyProjection folds events onto the stored snapshot and persists the outcome at
// projections/{name}/{streamID}: Set for a non-null state, Delete for the null document.
// Empty events are a no-op.
func (e *Engine) ApplyProjection(
	ctx context.Context,
	projection Projection,
	stored documentstore.Snapshot,
	streamID string,
	events eventstore.ReadEvents,
) error {

	if len(events) == 0 {
		return nil
	}

	if err := ValidateStreamID(streamID); err != nil {
		return err
	}

	path := DocumentPath(projection.Name(), streamID)
	tracer, ctx := e.startApplyTracing(ctx, projection.Name(), streamID, len(events))
	metrics := e.startApplyMetrics(ctx, projection.Name())
	start := time.Now()

	result, err := projection.Fold(stored, streamID, events)
	if err != nil {
		duration := time.Since(start)
		metrics.recordError(errorTypeOf(err), duration)
		tracer.finishError(errorTypeOf(err), duration)

		return err
	}

	if result.NoOp {
		tracer.finishOutcome(outcomeNoOp, time.Since(start))
		return nil
	}

	outcome := outcomeWritten
	if result.Deleted {
		outcome = outcomeDeleted
		err = e.deleteDocument(ctx, path)
	} else {
		err = e.writeDocument(ctx, path, result.Document)
	}

	duration := time.Since(start)
	if err != nil {
		metrics.recordError(errorTypeOf(err), duration)
		tracer.finishError(errorTypeOf(err), duration)

		return err
	}

	metrics.recordSuccess(len(events), duration)
	metrics.recordOutcome(outcome)
	tracer.finishOutcome(outcome, duration)

	return nil
}

func (e *Engine) writeDocument(ctx context.Context, path string, document []byte) error {
	if err := e.store.Set(ctx, path, document); err != nil {
		return errors.Join(ErrWritingDocumentFailed, err)
	}

	e.logDebug(ctx, logMsgDocumentWritten, logAttrPath, path)

	return nil
}

func (e *Engine) deleteDocument(ctx context.Context, path string) error {
	if err := e.store.Delete(ctx, path); err != nil {
		return errors.Join(ErrDeletingDocumentFailed, err)
	}

	e.logDebug(ctx, logMsgDocumentDeleted, logAttrPath, path)

	return nil
}
