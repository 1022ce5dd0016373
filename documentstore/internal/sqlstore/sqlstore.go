// Package sqlstore implements documentstore.Store on top of a single SQL table keyed by path.
// The Postgres and SQLite engines differ only in their Dialect.
package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/internal/adapters"
)

const (
	DefaultTableName = "projection_documents"

	colPath      = "path"
	colDocument  = "document"
	colUpdatedAt = "updated_at"

	logMsgBuildQueryFailed = "failed to build document query"
	logMsgDBQueryFailed    = "document query execution failed"
	logMsgDBExecFailed     = "document statement execution failed"
	logMsgCloseRowsFailed  = "failed to close database rows"
	logMsgScanRowFailed    = "failed to scan document row"
	logMsgSQLExecuted      = "executed sql for: "
	logMsgDisconnectFailed = "disconnecting from the database failed"
	logMsgReconnectFailed  = "reconnecting to the database failed"
	logMsgTableCreated     = "documents table created"
	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrPath            = "path"
	logAttrDurationMS      = "duration_ms"
	logActionGet           = "get"
	logActionSet           = "set"
	logActionDelete        = "delete"
	logActionPruneSubtree  = "prune_subtree"
)

// Dialect holds what differs between the SQL databases.
type Dialect struct {
	// GoquDialect is the registered goqu dialect name.
	GoquDialect string

	// CreateTableSQL returns the DDL for the documents table.
	CreateTableSQL func(tableName string) string

	// SelectDocument selects the document column as text.
	SelectDocument exp.Expression

	// DocumentValue converts the JSON text into an insertable value.
	DocumentValue func(documentJSON string) any

	// Now is the current-timestamp expression.
	Now exp.Expression

	// StrictlyBelow matches every row whose path lies strictly below path.
	StrictlyBelow func(path string) exp.Expression
}

// Config is the resolved configuration of a Store.
type Config struct {
	TableName        string
	Logger           eventstore.Logger
	ContextualLogger eventstore.ContextualLogger
}

// Store is a documentstore.Store over a DBAdapter.
type Store struct {
	db               adapters.DBAdapter
	dialect          Dialect
	tableName        string
	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
}

// New creates a Store.
func New(db adapters.DBAdapter, dialect Dialect, config Config) *Store {
	tableName := config.TableName
	if tableName == "" {
		tableName = DefaultTableName
	}

	return &Store{
		db:               db,
		dialect:          dialect,
		tableName:        tableName,
		logger:           config.Logger,
		contextualLogger: config.ContextualLogger,
	}
}

// TableName returns the configured table name.
func (s *Store) TableName() string {
	return s.tableName
}

// CreateTable creates the documents table if it does not exist yet.
func (s *Store) CreateTable(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, s.dialect.CreateTableSQL(s.tableName)); err != nil {
		s.logError(ctx, logMsgDBExecFailed, err)
		return errors.Join(documentstore.ErrCreatingTableFailed, err)
	}

	s.logInfo(ctx, logMsgTableCreated, "table", s.tableName)

	return nil
}

// Get returns a snapshot of the document at path.
func (s *Store) Get(ctx context.Context, path string) (documentstore.Snapshot, error) {
	if err := documentstore.ValidatePath(path); err != nil {
		return documentstore.Snapshot{}, err
	}

	sqlQuery, _, toSQLErr := goqu.Dialect(s.dialect.GoquDialect).
		From(s.tableName).
		Select(s.dialect.SelectDocument).
		Where(goqu.C(colPath).Eq(path)).
		ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr, logAttrPath, path)
		return documentstore.Snapshot{}, errors.Join(documentstore.ErrGettingDocumentFailed, toSQLErr)
	}

	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	s.logQuery(ctx, sqlQuery, logActionGet, time.Since(start))
	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return documentstore.Snapshot{}, errors.Join(documentstore.ErrGettingDocumentFailed, queryErr)
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			s.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
			return documentstore.Snapshot{}, errors.Join(documentstore.ErrGettingDocumentFailed, rowsErr)
		}

		return documentstore.MissingSnapshot(path), nil
	}

	var document string
	if scanErr := rows.Scan(&document); scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr, logAttrPath, path)
		return documentstore.Snapshot{}, errors.Join(documentstore.ErrGettingDocumentFailed, scanErr)
	}

	return documentstore.BuildSnapshot(path, []byte(document)), nil
}

// Set replaces the document at path and removes everything stored below it.
func (s *Store) Set(ctx context.Context, path string, value []byte) error {
	if err := documentstore.ValidatePath(path); err != nil {
		return err
	}

	if err := documentstore.ValidateDocument(value); err != nil {
		return err
	}

	if err := s.pruneBelow(ctx, path); err != nil {
		return errors.Join(documentstore.ErrSettingDocumentFailed, err)
	}

	builder := goqu.Dialect(s.dialect.GoquDialect)
	sqlQuery, _, toSQLErr := builder.
		Insert(s.tableName).
		Rows(goqu.Record{
			colPath:      path,
			colDocument:  s.dialect.DocumentValue(string(value)),
			colUpdatedAt: s.dialect.Now,
		}).
		OnConflict(goqu.DoUpdate(colPath, goqu.Record{
			colDocument:  goqu.L("EXCLUDED." + colDocument),
			colUpdatedAt: goqu.L("EXCLUDED." + colUpdatedAt),
		})).
		ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr, logAttrPath, path)
		return errors.Join(documentstore.ErrSettingDocumentFailed, toSQLErr)
	}

	if err := s.exec(ctx, sqlQuery, logActionSet); err != nil {
		return errors.Join(documentstore.ErrSettingDocumentFailed, err)
	}

	return nil
}

// Delete removes the document at path and everything below it.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := documentstore.ValidatePath(path); err != nil {
		return err
	}

	sqlQuery, _, toSQLErr := goqu.Dialect(s.dialect.GoquDialect).
		Delete(s.tableName).
		Where(goqu.Or(
			goqu.C(colPath).Eq(path),
			s.dialect.StrictlyBelow(path),
		)).
		ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr, logAttrPath, path)
		return errors.Join(documentstore.ErrDeletingDocumentFailed, toSQLErr)
	}

	if err := s.exec(ctx, sqlQuery, logActionDelete); err != nil {
		return errors.Join(documentstore.ErrDeletingDocumentFailed, err)
	}

	return nil
}

// Disconnect drops the pooled connections.
func (s *Store) Disconnect(ctx context.Context) error {
	if err := s.db.Disconnect(ctx); err != nil {
		s.logError(ctx, logMsgDisconnectFailed, err)
		return err
	}

	return nil
}

// Reconnect re-establishes connectivity.
func (s *Store) Reconnect(ctx context.Context) error {
	if err := s.db.Reconnect(ctx); err != nil {
		s.logError(ctx, logMsgReconnectFailed, err)
		return err
	}

	return nil
}

func (s *Store) pruneBelow(ctx context.Context, path string) error {
	sqlQuery, _, toSQLErr := goqu.Dialect(s.dialect.GoquDialect).
		Delete(s.tableName).
		Where(s.dialect.StrictlyBelow(path)).
		ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr, logAttrPath, path)
		return toSQLErr
	}

	return s.exec(ctx, sqlQuery, logActionPruneSubtree)
}

func (s *Store) exec(ctx context.Context, sqlQuery string, action string) error {
	start := time.Now()
	_, execErr := s.db.Exec(ctx, sqlQuery)
	s.logQuery(ctx, sqlQuery, action, time.Since(start))

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return execErr
	}

	return nil
}

func (s *Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.contextualLogger != nil {
			s.contextualLogger.WarnContext(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		} else if s.logger != nil {
			s.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// logQuery logs SQL statements with execution time at debug level if a logger is configured.
func (s *Store) logQuery(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	ms := float64(duration.Microseconds()) / 1000
	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, ms, logAttrQuery, sqlQuery)
	}

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, ms, logAttrQuery, sqlQuery)
	}
}

func (s *Store) logInfo(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
	}

	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (s *Store) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}
}

var _ documentstore.Store = (*Store)(nil)
