package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	docengine "github.com/emmett-community/emmett-google-realtime-db/documentstore/postgresengine"
	esengine "github.com/emmett-community/emmett-google-realtime-db/eventstore/postgresengine"
	"github.com/emmett-community/emmett-google-realtime-db/testutil/postgresengine/config"
)

// Engine type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// Options configures the stores a Wrapper creates.
type Options struct {
	EventStoreOptions    []esengine.Option
	DocumentStoreOptions []docengine.Option
}

// Wrapper gives access to both PostgreSQL stores on one connection, whatever adapter is in use.
type Wrapper interface {
	EventStore() *esengine.EventStore
	DocumentStore() *docengine.DocumentStore
	Exec(ctx context.Context, query string) error
	Close()
}

type wrapper struct {
	eventStore    *esengine.EventStore
	documentStore *docengine.DocumentStore
	exec          func(ctx context.Context, query string) error
	close         func()
}

func (w *wrapper) EventStore() *esengine.EventStore {
	return w.eventStore
}

func (w *wrapper) DocumentStore() *docengine.DocumentStore {
	return w.documentStore
}

func (w *wrapper) Exec(ctx context.Context, query string) error {
	return w.exec(ctx, query)
}

func (w *wrapper) Close() {
	w.close()
}

// AdapterType returns the adapter selected by ADAPTER_TYPE, defaulting to pgx.pool.
func AdapterType() string {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))
	if engineTypeFromEnv == "" {
		return typePGXPool
	}

	return engineTypeFromEnv
}

// CreateWrapperWithTestConfig connects to the test database, creates both tables, and returns the Wrapper.
// The test is skipped if the database cannot be reached.
func CreateWrapperWithTestConfig(t testing.TB, options ...Options) Wrapper {
	t.Helper()

	ctx := context.Background()
	var opts Options
	if len(options) > 0 {
		opts = options[0]
	}

	var w *wrapper

	switch AdapterType() {
	case typePGXPool:
		pool, err := config.PostgresPGXPool(ctx)
		if err != nil {
			t.Skipf("postgres test database not reachable: %v", err)
		}

		w = &wrapper{
			exec: func(ctx context.Context, query string) error {
				_, execErr := pool.Exec(ctx, query)
				return execErr
			},
			close: pool.Close,
		}
		w.eventStore, err = esengine.NewEventStoreFromPGXPool(pool, opts.EventStoreOptions...)
		require.NoError(t, err, "error creating event store")
		w.documentStore, err = docengine.NewDocumentStoreFromPGXPool(pool, opts.DocumentStoreOptions...)
		require.NoError(t, err, "error creating document store")

	case typeSQLDB:
		db, err := config.PostgresSQLDBTestConfig(ctx)
		if err != nil {
			t.Skipf("postgres test database not reachable: %v", err)
		}

		w = &wrapper{exec: execStd(db), close: func() { _ = db.Close() }}
		w.eventStore, err = esengine.NewEventStoreFromSQLDB(db, opts.EventStoreOptions...)
		require.NoError(t, err, "error creating event store")
		w.documentStore, err = docengine.NewDocumentStoreFromSQLDB(db, opts.DocumentStoreOptions...)
		require.NoError(t, err, "error creating document store")

	case typeSQLXDB:
		db, err := config.PostgresSQLXTestConfig(ctx)
		if err != nil {
			t.Skipf("postgres test database not reachable: %v", err)
		}

		w = &wrapper{exec: execStd(db.DB), close: func() { _ = db.Close() }}
		w.eventStore, err = esengine.NewEventStoreFromSQLX(db, opts.EventStoreOptions...)
		require.NoError(t, err, "error creating event store")
		w.documentStore, err = docengine.NewDocumentStoreFromSQLX(db, opts.DocumentStoreOptions...)
		require.NoError(t, err, "error creating document store")

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", AdapterType()))
	}

	require.NoError(t, w.eventStore.CreateTable(ctx), "error creating the events table")
	require.NoError(t, w.documentStore.CreateTable(ctx), "error creating the documents table")

	return w
}

// CleanUp empties the events and documents tables of the given wrapper.
func CleanUp(t testing.TB, w Wrapper) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, w.Exec(ctx, "TRUNCATE TABLE "+w.EventStore().TableName()+" RESTART IDENTITY"), "error cleaning up the events table")
	require.NoError(t, w.Exec(ctx, "TRUNCATE TABLE "+w.DocumentStore().TableName()), "error cleaning up the documents table")
}

func execStd(db *sql.DB) func(ctx context.Context, query string) error {
	return func(ctx context.Context, query string) error {
		_, err := db.ExecContext(ctx, query)
		return err
	}
}
