package postgresengine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

const (
	spanNameRead                 = "eventstore.read_stream"
	spanNameAppend               = "eventstore.append_to_stream"
	spanAttrOperation            = "operation"
	spanAttrStreamName           = "stream_name"
	spanAttrEventCount           = "event_count"
	spanAttrEventType            = "event_type"
	spanAttrExpectedKind         = "expected_kind"
	spanAttrErrorType            = "error_type"
	spanAttrDurationMS           = "duration_ms"
	metricReadDuration           = "eventstore_read_duration_seconds"
	metricAppendDuration         = "eventstore_append_duration_seconds"
	metricEventsRead             = "eventstore_events_read_total"
	metricEventsAppended         = "eventstore_events_appended_total"
	metricDatabaseErrors         = "eventstore_database_errors_total"
	metricConcurrencyConflicts   = "eventstore_concurrency_conflicts_total"
	metricLabelStatus            = "status"
	metricLabelConflictType      = "conflict_type"
	operationRead                = "read"
	operationAppend              = "append"
	statusSuccess                = "success"
	statusError                  = "error"
	errorTypeBuildQuery          = "build_query"
	errorTypeDatabaseQuery       = "database_query"
	errorTypeDatabaseExec        = "database_exec"
	errorTypeRowScan             = "row_scan"
	errorTypeConcurrencyConflict = "concurrency_conflict"
)

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (es *EventStore) logQueryWithDuration(
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, es.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (es *EventStore) logOperation(action string, args ...any) {
	if es.logger != nil {
		es.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level if the logger is configured.
func (es *EventStore) logError(
	message string,
	err error,
	args ...any,
) {
	if es.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		es.logger.Error(message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es *EventStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// === Contextual Logging ===

// logQueryWithDurationContext logs SQL queries with execution time and context correlation.
func (es *EventStore) logQueryWithDurationContext(
	ctx context.Context,
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	if es.contextualLogger != nil {
		es.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, es.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperationContext logs operational information with context correlation.
func (es *EventStore) logOperationContext(ctx context.Context, action string, args ...any) {
	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logErrorContext logs error information with context correlation.
func (es *EventStore) logErrorContext(
	ctx context.Context,
	message string,
	err error,
	args ...any,
) {
	if es.contextualLogger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		es.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// === Metrics ===

// recordDurationMetricsContext records duration metrics with context if the collector supports it.
func (es *EventStore) recordDurationMetricsContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	operation, status string,
) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		metricLabelStatus: status,
	}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
		return
	}

	es.metricsCollector.RecordDuration(metricName, duration, labels)
}

// recordValueMetricsContext records value metrics with context if the collector supports it.
func (es *EventStore) recordValueMetricsContext(
	ctx context.Context,
	metricName string,
	value float64,
	operation, status string,
) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		metricLabelStatus: status,
	}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metricName, value, labels)
		return
	}

	es.metricsCollector.RecordValue(metricName, value, labels)
}

// recordErrorMetricsContext records error metrics with context if the collector supports it.
func (es *EventStore) recordErrorMetricsContext(ctx context.Context, operation, errorType string) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		metricLabelStatus: statusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricDatabaseErrors, labels)
		return
	}

	es.metricsCollector.IncrementCounter(metricDatabaseErrors, labels)
}

// recordConcurrencyConflictMetrics records concurrency conflict metrics if the collector is configured.
func (es *EventStore) recordConcurrencyConflictMetrics(operation string) {
	if es.metricsCollector != nil {
		labels := map[string]string{
			spanAttrOperation:       operation,
			metricLabelConflictType: "concurrency",
		}
		es.metricsCollector.IncrementCounter(metricConcurrencyConflicts, labels)
	}
}

type operationMetricsObserver struct {
	es             *EventStore
	ctx            context.Context
	operation      string
	durationMetric string
	countMetric    string
}

func (es *EventStore) startReadMetrics(ctx context.Context) *operationMetricsObserver {
	return &operationMetricsObserver{
		es:             es,
		ctx:            ctx,
		operation:      operationRead,
		durationMetric: metricReadDuration,
		countMetric:    metricEventsRead,
	}
}

func (es *EventStore) startAppendMetrics(ctx context.Context) *operationMetricsObserver {
	return &operationMetricsObserver{
		es:             es,
		ctx:            ctx,
		operation:      operationAppend,
		durationMetric: metricAppendDuration,
		countMetric:    metricEventsAppended,
	}
}

// recordSuccess records all metrics for a successful operation.
func (mo *operationMetricsObserver) recordSuccess(eventCount int, duration time.Duration) {
	mo.es.recordDurationMetricsContext(mo.ctx, mo.durationMetric, duration, mo.operation, statusSuccess)
	mo.es.recordValueMetricsContext(mo.ctx, mo.countMetric, float64(eventCount), mo.operation, statusSuccess)
}

// recordError records all metrics for a failed operation.
func (mo *operationMetricsObserver) recordError(errorType string, duration time.Duration) {
	mo.es.recordDurationMetricsContext(mo.ctx, mo.durationMetric, duration, mo.operation, statusError)
	mo.es.recordErrorMetricsContext(mo.ctx, mo.operation, errorType)
}

func (mo *operationMetricsObserver) recordConcurrencyConflict() {
	mo.es.recordConcurrencyConflictMetrics(mo.operation)
}

// === Tracing ===

// operationTracingObserver encapsulates the span lifecycle of one read or append.
type operationTracingObserver struct {
	es   *EventStore
	span eventstore.SpanContext
}

func (es *EventStore) startTraceSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (*operationTracingObserver, context.Context) {
	if es.tracingCollector == nil {
		return &operationTracingObserver{es: es}, ctx
	}

	newCtx, span := es.tracingCollector.StartSpan(ctx, name, attrs)

	return &operationTracingObserver{es: es, span: span}, newCtx
}

func (es *EventStore) startReadTracing(ctx context.Context, streamName string) (*operationTracingObserver, context.Context) {
	return es.startTraceSpan(ctx, spanNameRead, map[string]string{
		spanAttrOperation:  operationRead,
		spanAttrStreamName: streamName,
	})
}

func (es *EventStore) startAppendTracing(
	ctx context.Context,
	streamName string,
	events eventstore.Events,
	expectation eventstore.AppendOptions,
) (*operationTracingObserver, context.Context) {

	attrs := map[string]string{
		spanAttrOperation:    operationAppend,
		spanAttrStreamName:   streamName,
		spanAttrEventCount:   strconv.Itoa(len(events)),
		spanAttrExpectedKind: strconv.Itoa(int(expectation.ExpectedKind)),
	}

	if len(events) > 0 {
		attrs[spanAttrEventType] = events[0].Type
	}

	return es.startTraceSpan(ctx, spanNameAppend, attrs)
}

// finishSuccess completes the span for a successful operation.
func (to *operationTracingObserver) finishSuccess(eventCount int, duration time.Duration) {
	if to.span == nil {
		return
	}

	attrs := map[string]string{
		spanAttrEventCount: strconv.Itoa(eventCount),
		spanAttrDurationMS: to.formatDuration(duration),
	}

	to.span.SetStatus(statusSuccess)
	to.es.tracingCollector.FinishSpan(to.span, statusSuccess, attrs)
}

// finishError completes the span with error details.
func (to *operationTracingObserver) finishError(errorType string, duration time.Duration) {
	if to.span == nil {
		return
	}

	attrs := map[string]string{spanAttrErrorType: errorType}
	if duration > 0 {
		attrs[spanAttrDurationMS] = to.formatDuration(duration)
	}

	to.span.SetStatus(statusError)
	to.es.tracingCollector.FinishSpan(to.span, statusError, attrs)
}

func (to *operationTracingObserver) formatDuration(duration time.Duration) string {
	return fmt.Sprintf("%.2f", to.es.toMilliseconds(duration))
}
