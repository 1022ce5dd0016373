package adapters

import (
	"context"
	"database/sql"
)

// DefaultMaxIdleConnections is what Reconnect restores when the caller did not say otherwise.
const DefaultMaxIdleConnections = 2

// SQLAdapter implements DBAdapter for sql.DB
type SQLAdapter struct {
	db           *sql.DB
	maxIdleConns int
}

// NewSQLAdapter creates a new SQL adapter
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, maxIdleConns: DefaultMaxIdleConnections}
}

// NewSQLAdapterWithMaxIdleConns creates a new SQL adapter that restores maxIdleConns on Reconnect.
func NewSQLAdapterWithMaxIdleConns(db *sql.DB, maxIdleConns int) *SQLAdapter {
	return &SQLAdapter{db: db, maxIdleConns: maxIdleConns}
}

func (s *SQLAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stdRows{rows: rows}, nil
}

func (s *SQLAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stdResult{result: result}, nil
}

// Disconnect closes all idle connections by shrinking the idle pool to zero.
func (s *SQLAdapter) Disconnect(_ context.Context) error {
	return disconnectStdDB(s.db)
}

// Reconnect restores the idle pool size and pings the database.
func (s *SQLAdapter) Reconnect(ctx context.Context) error {
	return reconnectStdDB(ctx, s.db, s.maxIdleConns)
}
