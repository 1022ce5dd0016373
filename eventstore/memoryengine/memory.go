// Package memoryengine provides an in-process implementation of eventstore.EventStore.
//
// Streams are kept in a map guarded by a mutex. Positions are zero-based and strictly consecutive
// per stream, and the optimistic concurrency check runs under the same lock as the append.
package memoryengine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

// EventStore is a thread-safe in-memory event store.
type EventStore struct {
	mu                 sync.RWMutex
	streams            map[string]eventstore.ReadEvents
	legacyAppendResult bool
}

// Option defines a functional option for EventStore.
type Option func(*EventStore)

// WithLegacyAppendResult makes AppendToStream report the post-append version only in
// AppendResult.StreamVersion, the way older stores do.
func WithLegacyAppendResult() Option {
	return func(s *EventStore) {
		s.legacyAppendResult = true
	}
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore(options ...Option) *EventStore {
	s := &EventStore{
		streams: make(map[string]eventstore.ReadEvents),
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// AppendToStream appends events to streamName and returns the position of the last appended event.
func (s *EventStore) AppendToStream(
	ctx context.Context,
	streamName string,
	events eventstore.Events,
	options ...eventstore.AppendOption,
) (eventstore.AppendResult, error) {

	if streamName == "" {
		return eventstore.AppendResult{}, eventstore.ErrEmptyStreamName
	}

	if len(events) == 0 {
		return eventstore.AppendResult{}, eventstore.ErrNoEventsSupplied
	}

	if err := ctx.Err(); err != nil {
		return eventstore.AppendResult{}, errors.Join(eventstore.ErrAppendingEventFailed, err)
	}

	expectation := eventstore.ResolveAppendOptions(options...)

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamName]
	exists := len(stream) > 0
	var current eventstore.StreamPosition
	if exists {
		current = stream[len(stream)-1].StreamMetadata.StreamPosition
	}

	if !expectation.Matches(current, exists) {
		return eventstore.AppendResult{}, errors.Join(
			eventstore.ErrConcurrencyConflict,
			fmt.Errorf("stream %q is at %d events, expectation %+v not met", streamName, len(stream), expectation),
		)
	}

	next := eventstore.StreamPosition(len(stream))
	for i, event := range events {
		stored := event
		stored.Data = slices.Clone(event.Data)
		stored.Metadata = slices.Clone(event.Metadata)
		stream = append(stream, stored.ToReadEvent(streamName, next+eventstore.StreamPosition(i)))
	}
	s.streams[streamName] = stream

	version := stream[len(stream)-1].StreamMetadata.StreamPosition
	if s.legacyAppendResult {
		return eventstore.AppendResult{StreamVersion: &version}, nil
	}

	return eventstore.BuildAppendResult(version), nil
}

// ReadStream returns all events of streamName in position order. A missing stream yields no events.
func (s *EventStore) ReadStream(ctx context.Context, streamName string) (eventstore.ReadEvents, error) {
	if streamName == "" {
		return nil, eventstore.ErrEmptyStreamName
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Join(eventstore.ErrReadingStreamFailed, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.streams[streamName]), nil
}

var _ eventstore.EventStore = (*EventStore)(nil)
