package projections

import (
	"context"
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

// StoredProjection is a projection document split into its state and its metadata.
type StoredProjection[S any] struct {
	State    S
	Metadata Metadata
}

// ApplyProjectionForTest reads the current document with a single plain Get and applies events on top of it.
// It bypasses the dispatcher (no interest set filtering) and the retrying reader.
// Empty events are a no-op and read nothing.
func ApplyProjectionForTest(
	ctx context.Context,
	store documentstore.Store,
	projection Projection,
	streamID string,
	events eventstore.ReadEvents,
) error {

	engine, err := NewEngine(store)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	if err := ValidateStreamID(streamID); err != nil {
		return err
	}

	stored, err := store.Get(ctx, DocumentPath(projection.Name(), streamID))
	if err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	return engine.ApplyProjection(ctx, projection, stored, streamID, events)
}

// ReadProjectionState returns the stored document of projectionName for streamID, nil if there is none.
func ReadProjectionState[S any](
	ctx context.Context,
	store documentstore.Store,
	projectionName string,
	streamID string,
) (*StoredProjection[S], error) {

	if store == nil {
		return nil, ErrNilDocumentStore
	}

	if err := ValidateStreamID(streamID); err != nil {
		return nil, err
	}

	snapshot, err := store.Get(ctx, DocumentPath(projectionName, streamID))
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}

	if !snapshot.Exists() {
		return nil, nil
	}

	stateJSON, metadata, err := splitMetadata(snapshot.Raw())
	if err != nil {
		return nil, err
	}

	if stateJSON == nil {
		return nil, nil
	}

	stored := &StoredProjection[S]{}
	if unmarshalErr := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(stateJSON, &stored.State); unmarshalErr != nil {
		return nil, errors.Join(ErrDecodingStateFailed, unmarshalErr)
	}

	if metadata != nil {
		stored.Metadata = *metadata
	}

	return stored, nil
}

// ClearProjection deletes the document of projectionName for streamID.
// An empty streamID deletes every document of the projection.
func ClearProjection(ctx context.Context, store documentstore.Store, projectionName, streamID string) error {
	if store == nil {
		return ErrNilDocumentStore
	}

	path := ProjectionPath(projectionName)
	if streamID != "" {
		if err := ValidateStreamID(streamID); err != nil {
			return err
		}
		path = DocumentPath(projectionName, streamID)
	}

	if err := store.Delete(ctx, path); err != nil {
		return errors.Join(ErrDeletingDocumentFailed, err)
	}

	return nil
}

// ClearAllProjections deletes every projection document.
func ClearAllProjections(ctx context.Context, store documentstore.Store) error {
	if store == nil {
		return ErrNilDocumentStore
	}

	if err := store.Delete(ctx, RootPath); err != nil {
		return errors.Join(ErrDeletingDocumentFailed, err)
	}

	return nil
}
