// Package postgresengine provides a PostgreSQL implementation of eventstore.EventStore.
//
// Events live in one table with a unique (stream_name, stream_position) constraint. An append is a single
// INSERT ... SELECT statement that reads the current stream version in a CTE, checks the caller's expectation,
// and inserts the batch at consecutive positions. Two writers racing for the same positions cannot both win:
// the loser gets eventstore.ErrConcurrencyConflict.
//
// Supported database adapters: pgx.Pool, sql.DB (lib/pq), sqlx.DB.
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		db,
//		postgresengine.WithTableName("cart_events"),
//		postgresengine.WithLogger(slog.Default()),
//	)
//	_ = store.CreateTable(ctx)
//
//	result, err := store.AppendToStream(ctx, "shopping_cart-42", events, eventstore.WithExpectedStreamVersion(3))
//	events, err := store.ReadStream(ctx, "shopping_cart-42")
package postgresengine
