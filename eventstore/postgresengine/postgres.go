package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/internal/adapters"
)

const (
	defaultEventTableName        = "events"
	logMsgBuildSelectQueryFailed = "failed to build select query"
	logMsgBuildAppendQueryFailed = "failed to build append query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgDBExecFailed           = "database execution failed during event append"
	logMsgStreamRead             = "stream read"
	logMsgEventsAppended         = "events appended"
	logMsgConcurrencyConflict    = "concurrency conflict detected"
	logMsgTableCreated           = "events table created"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "eventstore operation: "
	logAttrError                 = "error"
	logAttrQuery                 = "query"
	logAttrStreamName            = "stream_name"
	logAttrEventCount            = "event_count"
	logAttrDurationMS            = "duration_ms"
	logAttrStreamVersion         = "stream_version"
	logAttrExpectedKind          = "expected_kind"
	logAttrExpectedVersion       = "expected_version"
	logActionRead                = "read"
	logActionAppend              = "append"
	logActionCreateTable         = "create_table"
	colStreamName                = "stream_name"
	colStreamPosition            = "stream_position"
	colEventType                 = "event_type"
	colPayload                   = "payload"
	colMetadata                  = "metadata"
	colOffset                    = "batch_offset"
	cteContext                   = "context"
	cteVals                      = "vals"
	dialectPostgres              = "postgres"
	aliasMaxPos                  = "max_pos"
	castText                     = "?::text"
	castJsonb                    = "?::jsonb"
	castBigint                   = "?::bigint"
	exprNextPosition             = "COALESCE(" + cteContext + "." + aliasMaxPos + ", -1) + 1 + " + cteVals + "." + colOffset
)

const createEventsTableSQLFormatter = `CREATE TABLE IF NOT EXISTS %[1]s (
	global_position BIGSERIAL PRIMARY KEY,
	stream_name     TEXT        NOT NULL,
	stream_position BIGINT      NOT NULL,
	event_type      TEXT        NOT NULL,
	payload         JSONB       NOT NULL,
	metadata        JSONB,
	occurred_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (stream_name, stream_position)
)`

type (
	sqlQueryString = string
	queryDuration  = time.Duration
)

// EventStore is a stream-oriented event store on a single PostgreSQL table.
// Each append runs as one INSERT ... SELECT statement that checks the expected stream version
// and assigns consecutive stream positions, so appends are atomic without an explicit transaction.
type EventStore struct {
	db               adapters.DBAdapter
	eventTableName   string
	logger           eventstore.Logger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector
	contextualLogger eventstore.ContextualLogger
}

type readRow struct {
	streamPosition int64
	eventType      string
	payload        []byte
	metadata       []byte
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return build(adapters.NewPGXAdapter(db), options)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return build(adapters.NewSQLAdapter(db), options)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return build(adapters.NewSQLXAdapter(db), options)
}

func build(db adapters.DBAdapter, options []Option) (*EventStore, error) {
	es := &EventStore{
		db:             db,
		eventTableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// TableName returns the name of the events table.
func (es *EventStore) TableName() string {
	return es.eventTableName
}

// CreateTable creates the events table if it does not exist yet.
func (es *EventStore) CreateTable(ctx context.Context) error {
	sqlQuery := fmt.Sprintf(createEventsTableSQLFormatter, es.eventTableName)

	start := time.Now()
	_, err := es.db.Exec(ctx, sqlQuery)
	es.logQueryWithDuration(sqlQuery, logActionCreateTable, time.Since(start))

	if err != nil {
		es.logError(logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		es.logErrorContext(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)

		return errors.Join(eventstore.ErrCreatingTableFailed, err)
	}

	es.logOperation(logMsgTableCreated)
	es.logOperationContext(ctx, logMsgTableCreated)

	return nil
}

// ReadStream returns all events of streamName in stream position order.
func (es *EventStore) ReadStream(ctx context.Context, streamName string) (eventstore.ReadEvents, error) {
	if streamName == "" {
		return nil, eventstore.ErrEmptyStreamName
	}

	tracer, ctx := es.startReadTracing(ctx, streamName)
	metrics := es.startReadMetrics(ctx)

	sqlQuery, buildQueryErr := es.buildSelectQuery(streamName)
	if buildQueryErr != nil {
		es.logError(logMsgBuildSelectQueryFailed, buildQueryErr)
		es.logErrorContext(ctx, logMsgBuildSelectQueryFailed, buildQueryErr)
		tracer.finishError(errorTypeBuildQuery, 0)
		metrics.recordError(errorTypeBuildQuery, 0)

		return nil, buildQueryErr
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	es.logQueryWithDuration(sqlQuery, logActionRead, time.Since(start))
	es.logQueryWithDurationContext(ctx, sqlQuery, logActionRead, time.Since(start))

	if queryErr != nil {
		es.logError(logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		es.logErrorContext(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		tracer.finishError(errorTypeDatabaseQuery, time.Since(start))
		metrics.recordError(errorTypeDatabaseQuery, time.Since(start))

		return nil, errors.Join(eventstore.ErrReadingStreamFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	events, scanErr := es.processReadResults(ctx, rows, streamName)
	duration := time.Since(start)
	if scanErr != nil {
		tracer.finishError(errorTypeRowScan, duration)
		metrics.recordError(errorTypeRowScan, duration)

		return nil, scanErr
	}

	es.logOperation(
		logMsgStreamRead,
		logAttrStreamName, streamName,
		logAttrEventCount, len(events),
		logAttrDurationMS, es.toMilliseconds(duration),
	)
	es.logOperationContext(
		ctx,
		logMsgStreamRead,
		logAttrStreamName, streamName,
		logAttrEventCount, len(events),
		logAttrDurationMS, es.toMilliseconds(duration),
	)
	tracer.finishSuccess(len(events), duration)
	metrics.recordSuccess(len(events), duration)

	return events, nil
}

// processReadResults converts database rows into read events.
func (es *EventStore) processReadResults(
	ctx context.Context,
	rows adapters.DBRows,
	streamName string,
) (eventstore.ReadEvents, error) {

	events := make(eventstore.ReadEvents, 0)
	row := readRow{}

	for rows.Next() {
		if rowScanErr := rows.Scan(&row.streamPosition, &row.eventType, &row.payload, &row.metadata); rowScanErr != nil {
			es.logError(logMsgScanRowFailed, rowScanErr)
			es.logErrorContext(ctx, logMsgScanRowFailed, rowScanErr)

			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, rowScanErr)
		}

		event := eventstore.Event{
			Type:     row.eventType,
			Data:     append([]byte(nil), row.payload...),
			Metadata: nullableBytes(row.metadata),
		}
		events = append(events, event.ToReadEvent(streamName, eventstore.StreamPosition(row.streamPosition)))
	}

	if err := rows.Err(); err != nil {
		es.logError(logMsgScanRowFailed, err)
		es.logErrorContext(ctx, logMsgScanRowFailed, err)

		return nil, errors.Join(eventstore.ErrScanningDBRowFailed, err)
	}

	return events, nil
}

// AppendToStream appends events to streamName.
//
// The positions of the new events are consecutive and start right after the current stream version.
// If the expectation given via options is not met, or another writer won the race for the same positions,
// ErrConcurrencyConflict is returned and nothing is written.
func (es *EventStore) AppendToStream(
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

	expectation := eventstore.ResolveAppendOptions(options...)
	tracer, ctx := es.startAppendTracing(ctx, streamName, events, expectation)
	metrics := es.startAppendMetrics(ctx)

	sqlQuery, buildQueryErr := es.buildAppendQuery(streamName, events, expectation)
	if buildQueryErr != nil {
		es.logError(logMsgBuildAppendQueryFailed, buildQueryErr, logAttrEventCount, len(events))
		es.logErrorContext(ctx, logMsgBuildAppendQueryFailed, buildQueryErr, logAttrEventCount, len(events))
		tracer.finishError(errorTypeBuildQuery, 0)
		metrics.recordError(errorTypeBuildQuery, 0)

		return eventstore.AppendResult{}, buildQueryErr
	}

	positions, duration, execErr := es.executeAppendQuery(ctx, sqlQuery)
	if execErr != nil {
		if errors.Is(execErr, eventstore.ErrConcurrencyConflict) {
			es.logConcurrencyConflict(ctx, streamName, expectation)
			tracer.finishError(errorTypeConcurrencyConflict, duration)
			metrics.recordConcurrencyConflict()

			return eventstore.AppendResult{}, execErr
		}

		tracer.finishError(errorTypeDatabaseExec, duration)
		metrics.recordError(errorTypeDatabaseExec, duration)

		return eventstore.AppendResult{}, execErr
	}

	if len(positions) < len(events) {
		es.logConcurrencyConflict(ctx, streamName, expectation)
		tracer.finishError(errorTypeConcurrencyConflict, duration)
		metrics.recordConcurrencyConflict()

		return eventstore.AppendResult{}, eventstore.ErrConcurrencyConflict
	}

	version := positions[0]
	for _, position := range positions[1:] {
		version = max(version, position)
	}

	es.logOperation(
		logMsgEventsAppended,
		logAttrStreamName, streamName,
		logAttrEventCount, len(events),
		logAttrStreamVersion, version,
		logAttrDurationMS, es.toMilliseconds(duration),
	)
	es.logOperationContext(
		ctx,
		logMsgEventsAppended,
		logAttrStreamName, streamName,
		logAttrEventCount, len(events),
		logAttrStreamVersion, version,
		logAttrDurationMS, es.toMilliseconds(duration),
	)
	tracer.finishSuccess(len(events), duration)
	metrics.recordSuccess(len(events), duration)

	return eventstore.BuildAppendResult(version), nil
}

// executeAppendQuery executes the append statement and returns the stream positions it inserted.
func (es *EventStore) executeAppendQuery(ctx context.Context, sqlQuery string) (
	[]eventstore.StreamPosition,
	queryDuration,
	error,
) {

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		duration := time.Since(start)
		es.logQueryWithDuration(sqlQuery, logActionAppend, duration)

		return nil, duration, es.appendError(ctx, sqlQuery, queryErr)
	}
	defer es.closeRows(ctx, rows)

	positions := make([]eventstore.StreamPosition, 0)
	for rows.Next() {
		var position int64
		if scanErr := rows.Scan(&position); scanErr != nil {
			return nil, time.Since(start), errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}
		positions = append(positions, eventstore.StreamPosition(position))
	}

	duration := time.Since(start)
	es.logQueryWithDuration(sqlQuery, logActionAppend, duration)
	es.logQueryWithDurationContext(ctx, sqlQuery, logActionAppend, duration)

	if err := rows.Err(); err != nil {
		return nil, duration, es.appendError(ctx, sqlQuery, err)
	}

	return positions, duration, nil
}

// appendError maps a failed append statement to the matching sentinel.
// A unique violation on (stream_name, stream_position) means another writer took the positions first.
func (es *EventStore) appendError(ctx context.Context, sqlQuery string, err error) error {
	if adapters.IsUniqueViolation(err) {
		return errors.Join(eventstore.ErrConcurrencyConflict, err)
	}

	es.logError(logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
	es.logErrorContext(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)

	return errors.Join(eventstore.ErrAppendingEventFailed, err)
}

// closeRows safely closes database rows and logs any errors.
func (es *EventStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if es.logger != nil {
			es.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}

		if es.contextualLogger != nil {
			es.contextualLogger.WarnContext(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

func (es *EventStore) logConcurrencyConflict(
	ctx context.Context,
	streamName string,
	expectation eventstore.AppendOptions,
) {

	args := []any{
		logAttrStreamName, streamName,
		logAttrExpectedKind, expectation.ExpectedKind,
		logAttrExpectedVersion, expectation.ExpectedVersion,
	}

	es.logOperation(logMsgConcurrencyConflict, args...)
	es.logOperationContext(ctx, logMsgConcurrencyConflict, args...)
}

func (es *EventStore) buildSelectQuery(streamName string) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(colStreamPosition, colEventType, colPayload, colMetadata).
		Where(goqu.C(colStreamName).Eq(streamName)).
		Order(goqu.I(colStreamPosition).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildAppendQuery builds
//
//	WITH context AS (SELECT MAX(stream_position) AS max_pos FROM events WHERE stream_name = ...),
//	     vals AS (SELECT ... UNION ALL SELECT ...)
//	INSERT INTO events (...) SELECT ... FROM context, vals WHERE <expectation> RETURNING stream_position
func (es *EventStore) buildAppendQuery(
	streamName string,
	events eventstore.Events,
	expectation eventstore.AppendOptions,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	cteStmt := builder.
		From(es.eventTableName).
		Select(goqu.MAX(colStreamPosition).As(aliasMaxPos)).
		Where(goqu.C(colStreamName).Eq(streamName))

	unionStatements := make([]*goqu.SelectDataset, len(events))
	for i, event := range events {
		unionStatements[i] = builder.
			Select(
				goqu.L(castText, event.Type).As(colEventType),
				goqu.L(castJsonb, string(event.Data)).As(colPayload),
				goqu.L(castJsonb, nullableJSON(event.Metadata)).As(colMetadata),
				goqu.L(castBigint, i).As(colOffset),
			)
	}

	valuesStmt := unionStatements[0]
	for i := 1; i < len(unionStatements); i++ {
		valuesStmt = valuesStmt.UnionAll(unionStatements[i])
	}

	selectStmt := builder.
		From(cteContext, cteVals).
		Select(
			goqu.V(streamName),
			goqu.L(exprNextPosition),
			goqu.I(cteVals+"."+colEventType),
			goqu.I(cteVals+"."+colPayload),
			goqu.I(cteVals+"."+colMetadata),
		)

	if condition := expectationCondition(expectation); condition != nil {
		selectStmt = selectStmt.Where(condition)
	}

	insertStmt := builder.
		Insert(es.eventTableName).
		Cols(colStreamName, colStreamPosition, colEventType, colPayload, colMetadata).
		With(cteContext, cteStmt).
		With(cteVals, valuesStmt).
		FromQuery(selectStmt).
		Returning(colStreamPosition)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func expectationCondition(expectation eventstore.AppendOptions) goqu.Expression {
	switch expectation.ExpectedKind {
	case eventstore.ExpectNoStream:
		return goqu.I(cteContext + "." + aliasMaxPos).IsNull()

	case eventstore.ExpectStreamVersion:
		return goqu.I(cteContext + "." + aliasMaxPos).Eq(int64(expectation.ExpectedVersion)) //nolint:gosec // stream versions stay far below MaxInt64

	default:
		return nil
	}
}

// nullableJSON makes goqu render an absent JSON document as NULL instead of an empty string.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}

	return string(raw)
}

func nullableBytes(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}

	return append([]byte(nil), raw...)
}

var _ eventstore.EventStore = (*EventStore)(nil)
