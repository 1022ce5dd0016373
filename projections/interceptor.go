package projections

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

var ErrNilEventStore = errors.New("event store must not be nil")
var ErrNilProjection = errors.New("projection must not be nil")
var ErrDuplicateProjectionName = errors.New("projection names must be unique")
var ErrMissingStreamVersion = errors.New("append result carries no stream version")
var ErrInconsistentStreamVersion = errors.New("stream version is lower than the number of appended events")

// WiringConfig is the input of WireRealtimeDBProjections.
type WiringConfig struct {
	EventStore    eventstore.EventStore
	DocumentStore documentstore.Store
	Projections   []Projection
}

// ProjectingEventStore decorates an event store: every successful append is followed by the inline
// projections of the appended batch. Everything except AppendToStream is the wrapped store's.
type ProjectingEventStore struct {
	eventstore.EventStore
	engine      *Engine
	projections []Projection
}

// WireRealtimeDBProjections wraps config.EventStore so that appends run config.Projections against
// config.DocumentStore before they return.
func WireRealtimeDBProjections(config WiringConfig, options ...Option) (*ProjectingEventStore, error) {
	if config.EventStore == nil {
		return nil, ErrNilEventStore
	}

	seen := make(map[string]struct{}, len(config.Projections))
	for _, projection := range config.Projections {
		if projection == nil {
			return nil, ErrNilProjection
		}

		if _, duplicate := seen[projection.Name()]; duplicate {
			return nil, errors.Join(ErrDuplicateProjectionName, fmt.Errorf("projection %q", projection.Name()))
		}
		seen[projection.Name()] = struct{}{}
	}

	engine, err := NewEngine(config.DocumentStore, options...)
	if err != nil {
		return nil, err
	}

	return &ProjectingEventStore{
		EventStore:  config.EventStore,
		engine:      engine,
		projections: slices.Clone(config.Projections),
	}, nil
}

// Engine returns the engine that runs the projections.
func (s *ProjectingEventStore) Engine() *Engine {
	return s.engine
}

// AppendToStream appends through the wrapped store and then runs the inline projections.
//
// The wrapped store's result is always returned as it came. A failed append is returned without
// running any projection. A projection failure is returned together with the result of the
// append, which stays durable.
func (s *ProjectingEventStore) AppendToStream(
	ctx context.Context,
	streamName string,
	events eventstore.Events,
	options ...eventstore.AppendOption,
) (eventstore.AppendResult, error) {

	result, err := s.EventStore.AppendToStream(ctx, streamName, events, options...)
	if err != nil {
		return result, err
	}

	readEvents, err := ReadEventsFromAppend(streamName, events, result)
	if err != nil {
		return result, err
	}

	if err := s.engine.HandleInlineProjections(ctx, readEvents, s.projections, streamName); err != nil {
		return result, err
	}

	return result, nil
}

// ReadEventsFromAppend reconstructs the read view of a batch from the post-append stream version V:
// the i-th of N events sits at position V − N + 1 + i.
func ReadEventsFromAppend(
	streamName string,
	events eventstore.Events,
	result eventstore.AppendResult,
) (eventstore.ReadEvents, error) {

	if len(events) == 0 {
		return eventstore.ReadEvents{}, nil
	}

	version, ok := result.Version()
	if !ok {
		return nil, ErrMissingStreamVersion
	}

	count := uint64(len(events))
	if version+1 < count {
		return nil, errors.Join(
			ErrInconsistentStreamVersion,
			fmt.Errorf("stream version %d, %d events appended", version, count),
		)
	}

	first := version + 1 - count
	readEvents := make(eventstore.ReadEvents, 0, len(events))
	for i, event := range events {
		readEvents = append(readEvents, event.ToReadEvent(streamName, first+uint64(i)))
	}

	return readEvents, nil
}
