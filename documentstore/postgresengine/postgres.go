package postgresengine

import (
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/documentstore/internal/sqlstore"
	"github.com/emmett-community/emmett-google-realtime-db/internal/adapters"
)

const dialectPostgres = "postgres"

var dialect = sqlstore.Dialect{
	GoquDialect: dialectPostgres,
	CreateTableSQL: func(tableName string) string {
		return fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
				path       TEXT PRIMARY KEY,
				document   JSONB NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			tableName,
		)
	},
	SelectDocument: goqu.L("document::text"),
	DocumentValue: func(documentJSON string) any {
		return goqu.L("?::jsonb", documentJSON)
	},
	Now: goqu.L("NOW()"),
	StrictlyBelow: func(path string) goqu.Expression {
		return goqu.L("starts_with(path, ?)", path+"/")
	},
}

// DocumentStore is a documentstore.Store backed by a Postgres table with one JSONB document per path.
type DocumentStore struct {
	*sqlstore.Store
}

// NewDocumentStoreFromPGXPool creates a new DocumentStore using a pgx Pool with optional configuration.
func NewDocumentStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, documentstore.ErrNilDatabaseConnection
	}

	return build(adapters.NewPGXAdapter(db), options)
}

// NewDocumentStoreFromSQLDB creates a new DocumentStore using a sql.DB with optional configuration.
func NewDocumentStoreFromSQLDB(db *sql.DB, options ...Option) (*DocumentStore, error) {
	if db == nil {
		return nil, documentstore.ErrNilDatabaseConnection
	}

	return build(adapters.NewSQLAdapter(db), options)
}

// NewDocumentStoreFromSQLX creates a new DocumentStore using a sqlx.DB with optional configuration.
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
