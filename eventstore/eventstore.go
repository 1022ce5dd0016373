package eventstore

import (
	"context"
)

// EventStore is the stream-oriented append/read contract the projection engine sits on.
//
// Implementations must assign strictly consecutive positions to the events of a single append,
// starting at 0 for a new stream.
type EventStore interface {
	AppendToStream(ctx context.Context, streamName string, events Events, options ...AppendOption) (AppendResult, error)
	ReadStream(ctx context.Context, streamName string) (ReadEvents, error)
}

// AppendResult describes the stream after a successful append.
//
// NextExpectedStreamVersion is the current field; StreamVersion is the older name for the same value
// (the position of the last appended event). Stores may fill either or both.
type AppendResult struct {
	NextExpectedStreamVersion *StreamPosition
	StreamVersion             *StreamPosition
}

// Version returns the post-append stream version, preferring NextExpectedStreamVersion.
// The second return value is false if the result carries neither field.
func (r AppendResult) Version() (StreamPosition, bool) {
	if r.NextExpectedStreamVersion != nil {
		return *r.NextExpectedStreamVersion, true
	}

	if r.StreamVersion != nil {
		return *r.StreamVersion, true
	}

	return 0, false
}

// BuildAppendResult returns an AppendResult that carries version in the current field.
func BuildAppendResult(version StreamPosition) AppendResult {
	return AppendResult{NextExpectedStreamVersion: &version}
}

// ExpectedVersionKind tells the store which optimistic concurrency check to apply.
type ExpectedVersionKind int

const (
	// ExpectAnyVersion disables the optimistic concurrency check.
	ExpectAnyVersion ExpectedVersionKind = iota

	// ExpectNoStream requires that the stream has no events yet.
	ExpectNoStream

	// ExpectStreamVersion requires that the last event of the stream sits at AppendOptions.ExpectedVersion.
	ExpectStreamVersion
)

// AppendOptions holds the resolved options of one append call.
type AppendOptions struct {
	ExpectedKind    ExpectedVersionKind
	ExpectedVersion StreamPosition
}

// AppendOption configures a single append call.
type AppendOption func(*AppendOptions)

// WithExpectedStreamVersion requires the stream to be at version before the append.
func WithExpectedStreamVersion(version StreamPosition) AppendOption {
	return func(o *AppendOptions) {
		o.ExpectedKind = ExpectStreamVersion
		o.ExpectedVersion = version
	}
}

// WithExpectedNoStream requires the stream to be empty before the append.
func WithExpectedNoStream() AppendOption {
	return func(o *AppendOptions) {
		o.ExpectedKind = ExpectNoStream
	}
}

// ResolveAppendOptions applies options onto the defaults (no concurrency check).
func ResolveAppendOptions(options ...AppendOption) AppendOptions {
	resolved := AppendOptions{ExpectedKind: ExpectAnyVersion}
	for _, option := range options {
		option(&resolved)
	}

	return resolved
}

// Matches reports whether a stream whose last event sits at current (exists=false for an empty stream)
// satisfies the expectation.
func (o AppendOptions) Matches(current StreamPosition, exists bool) bool {
	switch o.ExpectedKind {
	case ExpectNoStream:
		return !exists

	case ExpectStreamVersion:
		return exists && current == o.ExpectedVersion

	default:
		return true
	}
}
