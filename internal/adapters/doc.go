// Package adapters provide the database adapter implementations shared by the SQL engines of this module.
//
// The adapter pattern lets the event store and the document stores work with pgxpool.Pool, sql.DB
// (lib/pq, modernc.org/sqlite) and sqlx.DB through one DBAdapter interface. Besides query execution
// the adapters expose a coarse Disconnect/Reconnect pair, which the projection engine uses to recover
// from reads that time out on a stale connection.
package adapters
