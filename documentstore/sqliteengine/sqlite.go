// Package sqliteengine provides a SQLite implementation of documentstore.Store.
//
// It uses the cgo-free modernc.org/sqlite driver (registered as "sqlite") and stores one JSON
// document per path in a TEXT column. Use a file-backed database: Disconnect closes the idle
// connections, which would throw away a pure in-memory database.
package sqliteengine

import (
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // driver registration

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/documentstore/internal/sqlstore"
	"github.com/emmett-community/emmett-google-realtime-db/internal/adapters"
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

const dialectSQLite = "sqlite3"

var dialect = sqlstore.Dialect{
	GoquDialect: dialectSQLite,
	CreateTableSQL: func(tableName string) string {
		return fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
				path       TEXT PRIMARY KEY,
				document   TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			tableName,
		)
	},
	SelectDocument: goqu.C("document"),
	DocumentValue: func(documentJSON string) any {
		return documentJSON
	},
	Now: goqu.L("strftime('%Y-%m-%dT%H:%M:%fZ', 'now')"),
	StrictlyBelow: func(path string) goqu.Expression {
		return goqu.L("instr(path, ?) = 1", path+"/")
	},
}

// DocumentStore is a documentstore.Store backed by a SQLite table.
type DocumentStore struct {
	*sqlstore.Store
}

// NewDocumentStoreFromSQLDB creates a new DocumentStore using a sql.DB opened with DriverName.
func NewDocumentStoreFromSQLDB(db *sql.DB, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, documentstore.ErrNilDatabaseConnection
	}

	return build(adapters.NewSQLAdapter(db), options)
}

// NewDocumentStoreFromSQLX creates a new DocumentStore using a sqlx.DB opened with DriverName.
func NewDocumentStoreFromSQLX(db *sqlx.DB, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, documentstore.ErrNilDatabaseConnection
	}

	return build(adapters.NewSQLXAdapter(db), options)
}

func build(db adapters.DBAdapter, options []Option) (*DocumentStore, error) {
	config := sqlstore.Config{TableName: sqlstore.DefaultTableName}

	for _, option := range options {
		if err := option(&config); err != nil {
			return nil, err
		}
	}

	return &DocumentStore{Store: sqlstore.New(db, dialect, config)}, nil
}

var _ documentstore.Store = (*DocumentStore)(nil)
