package adapters

import "context"

// DBAdapter defines the interface for database operations needed by the SQL engines.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)

	// Disconnect drops the pooled connections; the adapter stays usable and dials again on demand.
	Disconnect(ctx context.Context) error

	// Reconnect re-establishes connectivity and verifies it with a ping.
	Reconnect(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
