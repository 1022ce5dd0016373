package eventstore

import (
	"errors"
)

var ErrEmptyEventsTableName = errors.New("events table name must not be empty")
var ErrEmptyStreamName = errors.New("stream name must not be empty")
var ErrNoEventsSupplied = errors.New("at least one event must be supplied")
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrConcurrencyConflict = errors.New("concurrency error, the stream version did not match the expectation")
var ErrAppendingEventFailed = errors.New("appending the event failed")
var ErrReadingStreamFailed = errors.New("reading the stream failed")
var ErrBuildingQueryFailed = errors.New("building the query failed")
var ErrScanningDBRowFailed = errors.New("scanning the database row failed")
var ErrCreatingTableFailed = errors.New("creating the events table failed")

// StreamPosition is the zero-based position of an event inside its stream.
type StreamPosition = uint64
