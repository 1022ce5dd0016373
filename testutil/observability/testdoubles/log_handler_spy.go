package testdoubles

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// LogHandlerSpy is a slog.Handler implementation that captures log records for testing.
type LogHandlerSpy struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewLogHandlerSpy creates a new LogHandlerSpy.
// Switchable to log to stdout, which can be useful for debugging tests by seeing the actual log output.
func NewLogHandlerSpy(logToStdOut bool) *LogHandlerSpy {
	return &LogHandlerSpy{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdOut,
	}
}

// Handle implements slog.Handler interface.
func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record.Clone())

	if s.logToStdout {
		jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
		_ = jsonHandler.Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler interface.
func (s *LogHandlerSpy) Enabled(_ context.Context, _ slog.Level) bool {
	return true // Always enabled for testing
}

// WithAttrs implements slog.Handler interface.
func (s *LogHandlerSpy) WithAttrs(_ []slog.Attr) slog.Handler {
	return s
}

// WithGroup implements slog.Handler interface.
func (s *LogHandlerSpy) WithGroup(_ string) slog.Handler {
	return s
}

// GetRecordCount returns the number of captured log records.
func (s *LogHandlerSpy) GetRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// Reset clears all captured log records.
func (s *LogHandlerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}

// HasDebugLog checks if there's a debug-level log record with the specified message.
func (s *LogHandlerSpy) HasDebugLog(message string) bool {
	return s.HasLogWithMessage(slog.LevelDebug, message).Assert()
}

// HasInfoLog checks if there's an info-level log record with the specified message.
func (s *LogHandlerSpy) HasInfoLog(message string) bool {
	return s.HasLogWithMessage(slog.LevelInfo, message).Assert()
}

// HasWarnLog checks if there's a warn-level log record with the specified message.
func (s *LogHandlerSpy) HasWarnLog(message string) bool {
	return s.HasLogWithMessage(slog.LevelWarn, message).Assert()
}

// HasErrorLog checks if there's an error-level log record with the specified message.
func (s *LogHandlerSpy) HasErrorLog(message string) bool {
	return s.HasLogWithMessage(slog.LevelError, message).Assert()
}

// SpyLogRecordMatcher provides a fluent interface for checking log record attributes.
type SpyLogRecordMatcher struct {
	record *slog.Record
	found  bool
}

// HasLogWithMessage starts a fluent chain to check the first log record of level with message.
func (s *LogHandlerSpy) HasLogWithMessage(level slog.Level, message string) *SpyLogRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].Level == level && s.records[i].Message == message {
			record := s.records[i]
			return &SpyLogRecordMatcher{record: &record, found: true}
		}
	}

	return &SpyLogRecordMatcher{found: false}
}

// WithAttr checks if the log record carries an attribute with the given key.
func (m *SpyLogRecordMatcher) WithAttr(key string) *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	hasAttr := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			hasAttr = true
			return false // Stop iteration
		}

		return true // Continue iteration
	})

	if !hasAttr {
		m.found = false
	}

	return m
}

// WithStringAttr checks if the log record carries key with exactly value.
func (m *SpyLogRecordMatcher) WithStringAttr(key, value string) *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	matches := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key && attr.Value.String() == value {
			matches = true
			return false
		}

		return true
	})

	if !matches {
		m.found = false
	}

	return m
}

// WithDurationMS checks if the log record has a duration_ms attribute with a non-negative value.
func (m *SpyLogRecordMatcher) WithDurationMS() *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	hasDurationMS := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key != "duration_ms" {
			return true
		}

		switch attr.Value.Kind() {
		case slog.KindInt64:
			hasDurationMS = attr.Value.Int64() >= 0

		case slog.KindFloat64:
			hasDurationMS = attr.Value.Float64() >= 0

		default:
			// Other types are not supported for duration
		}

		return false
	})

	if !hasDurationMS {
		m.found = false
	}

	return m
}

// Assert returns true if all conditions in the fluent chain were met.
func (m *SpyLogRecordMatcher) Assert() bool {
	return m.found
}

var _ slog.Handler = (*LogHandlerSpy)(nil)
