package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // postgres driver

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	docmemory "github.com/emmett-community/emmett-google-realtime-db/documentstore/memoryengine"
	docpostgres "github.com/emmett-community/emmett-google-realtime-db/documentstore/postgresengine"
	"github.com/emmett-community/emmett-google-realtime-db/documentstore/sqliteengine"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore/memoryengine"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore/postgresengine"
)

// stores bundles what the demo appends to and projects into.
type stores struct {
	events    eventstore.EventStore
	documents documentstore.Store
	closers   []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg Config, logger eventstore.Logger) (*stores, error) {
	switch cfg.Store {
	case StorePostgres:
		return openPostgresStores(ctx, cfg, logger)

	case StoreSQLite:
		return openSQLiteStores(ctx, cfg, logger)

	default:
		return &stores{
			events:    memoryengine.NewEventStore(),
			documents: docmemory.NewDocumentStore(),
		}, nil
	}
}

// openPostgresStores keeps the events in a pgx pool and the documents behind database/sql with lib/pq.
func openPostgresStores(ctx context.Context, cfg Config, logger eventstore.Logger) (*stores, error) {
	result := &stores{}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	result.closers = append(result.closers, pool.Close)

	if pingErr := pool.Ping(ctx); pingErr != nil {
		result.close()
		return nil, fmt.Errorf("failed to connect to database: %w", pingErr)
	}

	eventStore, err := postgresengine.NewEventStoreFromPGXPool(pool, postgresengine.WithLogger(logger))
	if err != nil {
		result.close()
		return nil, err
	}

	if createErr := eventStore.CreateTable(ctx); createErr != nil {
		result.close()
		return nil, createErr
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		result.close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	result.closers = append(result.closers, func() { _ = db.Close() })

	documentStore, err := docpostgres.NewDocumentStoreFromSQLDB(db, docpostgres.WithLogger(logger))
	if err != nil {
		result.close()
		return nil, err
	}

	if createErr := documentStore.CreateTable(ctx); createErr != nil {
		result.close()
		return nil, createErr
	}

	result.events = eventStore
	result.documents = documentStore

	return result, nil
}

// openSQLiteStores keeps the events in memory and the documents in a SQLite file.
func openSQLiteStores(ctx context.Context, cfg Config, logger eventstore.Logger) (*stores, error) {
	db, err := sql.Open(sqliteengine.DriverName, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	result := &stores{closers: []func(){func() { _ = db.Close() }}}

	documentStore, err := sqliteengine.NewDocumentStoreFromSQLDB(db, sqliteengine.WithLogger(logger))
	if err != nil {
		result.close()
		return nil, err
	}

	if createErr := documentStore.CreateTable(ctx); createErr != nil {
		result.close()
		return nil, createErr
	}

	result.events = memoryengine.NewEventStore()
	result.documents = documentStore

	return result, nil
}
