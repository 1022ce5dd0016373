package projections

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

const (
	logMsgDispatchCompleted = "projections: dispatch completed"
	logMsgDispatchFailed    = "projections: dispatch failed"
	logMsgDocumentRead      = "projections: document read"
	logMsgDocumentWritten   = "projections: document written"
	logMsgDocumentDeleted   = "projections: document deleted"
	logMsgReadRetried       = "projections: read failed, retrying"
	logMsgDisconnectFailed  = "projections: disconnecting the document store failed"
	logMsgReconnectFailed   = "projections: reconnecting the document store failed"
	logMsgReconnected       = "projections: document store reconnected"
	logAttrError            = "error"
	logAttrProjection       = "projection"
	logAttrProjectionCount  = "projection_count"
	logAttrStreamID         = "stream_id"
	logAttrEventCount       = "event_count"
	logAttrDurationMS       = "duration_ms"
	logAttrPath             = "path"
	logAttrExists           = "exists"
	logAttrAttempt          = "attempt"
)

const (
	spanNameDispatch          = "projections.dispatch"
	spanNameApply             = "projections.apply"
	spanAttrOperation         = "operation"
	spanAttrProjection        = "projection"
	spanAttrStreamID          = "stream_id"
	spanAttrEventCount        = "event_count"
	spanAttrProjectionCount   = "projection_count"
	spanAttrOutcome           = "outcome"
	spanAttrErrorType         = "error_type"
	spanAttrDurationMS        = "duration_ms"
	metricDispatchDuration    = "projection_dispatch_duration_seconds"
	metricApplyDuration       = "projection_apply_duration_seconds"
	metricReadDuration        = "projection_read_duration_seconds"
	metricReadRetries         = "projection_read_retries_total"
	metricReconnects          = "projection_reconnects_total"
	metricDocumentsWritten    = "projection_documents_written_total"
	metricDocumentsDeleted    = "projection_documents_deleted_total"
	metricErrors              = "projection_errors_total"
	metricEventsApplied       = "projection_events_applied"
	metricLabelStatus         = "status"
	metricLabelAttempt        = "attempt"
	operationDispatch         = "dispatch"
	operationApply            = "apply"
	operationRead             = "read"
	statusSuccess             = "success"
	statusError               = "error"
	outcomeWritten            = "written"
	outcomeDeleted            = "deleted"
	outcomeNoOp               = "noop"
	errorTypeReadTimeout      = "read_timeout"
	errorTypeReadFailed       = "read_failed"
	errorTypeRetriesExhausted = "read_retries_exhausted"
	errorTypeEvolution        = "evolution"
	errorTypeEncoding         = "encoding"
	errorTypeDecoding         = "decoding"
	errorTypeWrite            = "write"
	errorTypeDelete           = "delete"
	errorTypeContextCanceled  = "context_canceled"
	errorTypeContextDeadline  = "context_deadline"
	errorTypeOther            = "other"
)

// errorTypeOf classifies err for metric labels and span attributes.
func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, ErrReadRetriesExhausted):
		return errorTypeRetriesExhausted
	case errors.Is(err, ErrReadTimeout):
		return errorTypeReadTimeout
	case errors.Is(err, ErrReadFailed):
		return errorTypeReadFailed
	case errors.Is(err, ErrEvolutionFailed):
		return errorTypeEvolution
	case errors.Is(err, ErrEncodingStateFailed), errors.Is(err, ErrStateNotAnObject):
		return errorTypeEncoding
	case errors.Is(err, ErrDecodingStateFailed):
		return errorTypeDecoding
	case errors.Is(err, ErrWritingDocumentFailed):
		return errorTypeWrite
	case errors.Is(err, ErrDeletingDocumentFailed):
		return errorTypeDelete
	case errors.Is(err, context.Canceled):
		return errorTypeContextCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeContextDeadline
	default:
		return errorTypeOther
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// === Logging ===
// Every message goes to both the plain and the contextual logger; either may be the no-op default.

func (e *Engine) logDebug(ctx context.Context, message string, args ...any) {
	e.logger.Debug(message, args...)
	e.contextualLogger.DebugContext(ctx, message, args...)
}

func (e *Engine) logInfo(ctx context.Context, message string, args ...any) {
	e.logger.Info(message, args...)
	e.contextualLogger.InfoContext(ctx, message, args...)
}

func (e *Engine) logWarn(ctx context.Context, message string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)
	e.logger.Warn(message, allArgs...)
	e.contextualLogger.WarnContext(ctx, message, allArgs...)
}

func (e *Engine) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)
	e.logger.Error(message, allArgs...)
	e.contextualLogger.ErrorContext(ctx, message, allArgs...)
}

// === Metrics ===

// recordDuration records a duration with context if the collector supports it.
func (e *Engine) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if contextualCollector, ok := e.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	e.metricsCollector.RecordDuration(metric, duration, labels)
}

// incrementCounter increments a counter with context if the collector supports it.
func (e *Engine) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if contextualCollector, ok := e.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	e.metricsCollector.IncrementCounter(metric, labels)
}

// recordValue records a value with context if the collector supports it.
func (e *Engine) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if contextualCollector, ok := e.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	e.metricsCollector.RecordValue(metric, value, labels)
}

func (e *Engine) recordReadDuration(ctx context.Context, duration time.Duration, status string) {
	e.recordDuration(ctx, metricReadDuration, duration, map[string]string{
		spanAttrOperation: operationRead,
		metricLabelStatus: status,
	})
}

func (e *Engine) recordReadRetry(ctx context.Context, attempt int, errorType string) {
	e.incrementCounter(ctx, metricReadRetries, map[string]string{
		metricLabelAttempt: strconv.Itoa(attempt),
		spanAttrErrorType:  errorType,
	})
}

func (e *Engine) recordReconnect(ctx context.Context, status string) {
	e.incrementCounter(ctx, metricReconnects, map[string]string{metricLabelStatus: status})
}

type operationMetricsObserver struct {
	e              *Engine
	ctx            context.Context
	operation      string
	projection     string
	durationMetric string
}

func (e *Engine) startDispatchMetrics(ctx context.Context) *operationMetricsObserver {
	return &operationMetricsObserver{
		e:              e,
		ctx:            ctx,
		operation:      operationDispatch,
		durationMetric: metricDispatchDuration,
	}
}

func (e *Engine) startApplyMetrics(ctx context.Context, projectionName string) *operationMetricsObserver {
	return &operationMetricsObserver{
		e:              e,
		ctx:            ctx,
		operation:      operationApply,
		projection:     projectionName,
		durationMetric: metricApplyDuration,
	}
}

func (mo *operationMetricsObserver) labels(status string) map[string]string {
	labels := map[string]string{
		spanAttrOperation: mo.operation,
		metricLabelStatus: status,
	}

	if mo.projection != "" {
		labels[spanAttrProjection] = mo.projection
	}

	return labels
}

// recordSuccess records all metrics for a successful operation.
func (mo *operationMetricsObserver) recordSuccess(eventCount int, duration time.Duration) {
	mo.e.recordDuration(mo.ctx, mo.durationMetric, duration, mo.labels(statusSuccess))

	if mo.operation == operationApply {
		mo.e.recordValue(mo.ctx, metricEventsApplied, float64(eventCount), mo.labels(statusSuccess))
	}
}

// recordError records all metrics for a failed operation.
func (mo *operationMetricsObserver) recordError(errorType string, duration time.Duration) {
	mo.e.recordDuration(mo.ctx, mo.durationMetric, duration, mo.labels(statusError))

	labels := mo.labels(statusError)
	labels[spanAttrErrorType] = errorType
	mo.e.incrementCounter(mo.ctx, metricErrors, labels)
}

// recordOutcome counts the persisted write or delete of an applied projection.
func (mo *operationMetricsObserver) recordOutcome(outcome string) {
	metric := metricDocumentsWritten
	if outcome == outcomeDeleted {
		metric = metricDocumentsDeleted
	}

	mo.e.incrementCounter(mo.ctx, metric, map[string]string{spanAttrProjection: mo.projection})
}

// === Tracing ===

// operationTracingObserver encapsulates the span lifecycle of one dispatch or apply.
type operationTracingObserver struct {
	e    *Engine
	span eventstore.SpanContext
}

func (e *Engine) startTraceSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (*operationTracingObserver, context.Context) {

	newCtx, span := e.tracingCollector.StartSpan(ctx, name, attrs)
	if newCtx == nil {
		newCtx = ctx
	}

	return &operationTracingObserver{e: e, span: span}, newCtx
}

func (e *Engine) startDispatchTracing(
	ctx context.Context,
	streamID string,
	eventCount int,
	projectionCount int,
) (*operationTracingObserver, context.Context) {

	return e.startTraceSpan(ctx, spanNameDispatch, map[string]string{
		spanAttrOperation:       operationDispatch,
		spanAttrStreamID:        streamID,
		spanAttrEventCount:      strconv.Itoa(eventCount),
		spanAttrProjectionCount: strconv.Itoa(projectionCount),
	})
}

func (e *Engine) startApplyTracing(
	ctx context.Context,
	projectionName string,
	streamID string,
	eventCount int,
) (*operationTracingObserver, context.Context) {

	return e.startTraceSpan(ctx, spanNameApply, map[string]string{
		spanAttrOperation:  operationApply,
		spanAttrProjection: projectionName,
		spanAttrStreamID:   streamID,
		spanAttrEventCount: strconv.Itoa(eventCount),
	})
}

// finishSuccess completes a dispatch span.
func (to *operationTracingObserver) finishSuccess(projectionCount int, duration time.Duration) {
	to.finish(statusSuccess, map[string]string{
		spanAttrProjectionCount: strconv.Itoa(projectionCount),
		spanAttrDurationMS:      formatDuration(duration),
	})
}

// finishOutcome completes an apply span with the persisted outcome.
func (to *operationTracingObserver) finishOutcome(outcome string, duration time.Duration) {
	to.finish(statusSuccess, map[string]string{
		spanAttrOutcome:    outcome,
		spanAttrDurationMS: formatDuration(duration),
	})
}

// finishError completes the span with error details.
func (to *operationTracingObserver) finishError(errorType string, duration time.Duration) {
	to.finish(statusError, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: formatDuration(duration),
	})
}

func (to *operationTracingObserver) finish(status string, attrs map[string]string) {
	if to.span == nil {
		return
	}

	to.span.SetStatus(status)
	to.e.tracingCollector.FinishSpan(to.span, status, attrs)
}

func formatDuration(duration time.Duration) string {
	return fmt.Sprintf("%.2f", toMilliseconds(duration))
}
