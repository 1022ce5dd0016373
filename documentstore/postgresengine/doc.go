// Package postgresengine provides a PostgreSQL implementation of documentstore.Store.
//
// Every document is one row of a table (default "projection_documents") with the path as primary
// key and the document as JSONB. Writes are upserts; deleting a path also deletes every row whose
// path lies below it, which mirrors how hierarchical document stores behave.
//
// Supported connection types: pgxpool.Pool, sql.DB (lib/pq) and sqlx.DB.
//
//	store, err := postgresengine.NewDocumentStoreFromPGXPool(pool, postgresengine.WithTableName("read_models"))
//	if err != nil {
//		// handle error
//	}
//
//	if err := store.CreateTable(ctx); err != nil {
//		// handle error
//	}
package postgresengine
