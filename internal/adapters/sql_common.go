package adapters

import (
	"context"
	"database/sql"
)

// stdRows wraps standard library sql.Rows to implement DBRows interface
type stdRows struct {
	rows *sql.Rows
}

func (s *stdRows) Next() bool {
	return s.rows.Next()
}

func (s *stdRows) Scan(dest ...any) error {
	return s.rows.Scan(dest...)
}

func (s *stdRows) Err() error {
	return s.rows.Err()
}

func (s *stdRows) Close() error {
	return s.rows.Close()
}

// stdResult wraps standard library sql.Result to implement DBResult interface
type stdResult struct {
	result sql.Result
}

func (s *stdResult) RowsAffected() (int64, error) {
	return s.result.RowsAffected()
}

// disconnectStdDB closes idle connections; SetMaxIdleConns(0) closes them synchronously.
func disconnectStdDB(db *sql.DB) error {
	db.SetMaxIdleConns(0)

	return nil
}

func reconnectStdDB(ctx context.Context, db *sql.DB, maxIdleConns int) error {
	db.SetMaxIdleConns(maxIdleConns)

	return db.PingContext(ctx)
}
