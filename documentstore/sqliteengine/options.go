package sqliteengine

import (
	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/documentstore/internal/sqlstore"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/internal/adapters"
)

// Option defines a functional option for configuring DocumentStore.
type Option func(*sqlstore.Config) error

// WithTableName sets the table name for the DocumentStore.
func WithTableName(tableName string) Option {
	return func(config *sqlstore.Config) error {
		if tableName == "" {
			return documentstore.ErrEmptyDocumentsTableName
		}

		if err := adapters.ValidateTableName(tableName); err != nil {
			return err
		}

		config.TableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the DocumentStore.
//
// Debug level: SQL statements with execution timing (development use)
// Info level: schema creation
// Warn level: non-critical issues like cleanup failures
// Error level: failures that make the operation fail.
func WithLogger(logger eventstore.Logger) Option {
	return func(config *sqlstore.Config) error {
		config.Logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the DocumentStore.
// It receives the same messages as the Logger, with the operation's context attached.
func WithContextualLogger(logger eventstore.ContextualLogger) Option {
	return func(config *sqlstore.Config) error {
		config.ContextualLogger = logger
		return nil
	}
}
