package oteladapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

// SlogBridgeLogger implements eventstore.Logger and eventstore.ContextualLogger with a *slog.Logger.
// Built with NewSlogBridgeLogger it logs through the OpenTelemetry slog bridge, which adds the trace
// and span ids of the context to every record.
type SlogBridgeLogger struct {
	logger *slog.Logger
}

// NewSlogBridgeLogger creates a logger on the global OpenTelemetry LoggerProvider.
func NewSlogBridgeLogger(name string) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: otelslog.NewLogger(name)}
}

// NewSlogBridgeLoggerWithHandler creates a logger on handler, without the OpenTelemetry bridge.
func NewSlogBridgeLoggerWithHandler(handler slog.Handler) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: slog.New(handler)}
}

func (l *SlogBridgeLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *SlogBridgeLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *SlogBridgeLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *SlogBridgeLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *SlogBridgeLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

func (l *SlogBridgeLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

func (l *SlogBridgeLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

func (l *SlogBridgeLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

// OTelLogger implements eventstore.ContextualLogger on the OpenTelemetry log API.
// Key-value args become typed log attributes; values without a matching log type are formatted with %v.
type OTelLogger struct {
	logger log.Logger
}

// NewOTelLogger wraps logger, usually obtained from a LoggerProvider.
func NewOTelLogger(logger log.Logger) *OTelLogger {
	return &OTelLogger{logger: logger}
}

func (l *OTelLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityDebug, "DEBUG", msg, args)
}

func (l *OTelLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityInfo, "INFO", msg, args)
}

func (l *OTelLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityWarn, "WARN", msg, args)
}

func (l *OTelLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityError, "ERROR", msg, args)
}

func (l *OTelLogger) emit(ctx context.Context, severity log.Severity, severityText, msg string, args []any) {
	if !l.logger.Enabled(ctx, log.EnabledParameters{Severity: severity}) {
		return
	}

	record := log.Record{}
	record.SetTimestamp(time.Now())
	record.SetSeverity(severity)
	record.SetSeverityText(severityText)
	record.SetBody(log.StringValue(msg))

	// args come in slog style key-value pairs; a dangling key is dropped
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		record.AddAttributes(keyValue(key, args[i+1]))
	}

	l.logger.Emit(ctx, record)
}

func keyValue(key string, value any) log.KeyValue {
	switch v := value.(type) {
	case string:
		return log.String(key, v)
	case int:
		return log.Int(key, v)
	case int64:
		return log.Int64(key, v)
	case float64:
		return log.Float64(key, v)
	case bool:
		return log.Bool(key, v)
	case time.Duration:
		return log.Int64(key, v.Milliseconds())
	case error:
		return log.String(key, v.Error())
	default:
		return log.String(key, fmt.Sprintf("%v", v))
	}
}

var (
	_ eventstore.Logger           = (*SlogBridgeLogger)(nil)
	_ eventstore.ContextualLogger = (*SlogBridgeLogger)(nil)
	_ eventstore.ContextualLogger = (*OTelLogger)(nil)
)
