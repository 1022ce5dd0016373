// Package documentstore provides the collaborator contract for the key/document store that holds
// projection documents.
//
// Documents are JSON objects addressed by slash-separated paths such as
// "projections/shopping_cart_details/shopping_cart-42". Reads follow a snapshot-then-extract
// model: Get returns a Snapshot which either does not exist or can be decoded with Value.
// Delete removes the addressed document together with everything stored below its path,
// so deleting "projections" clears every projection document at once.
//
// Engines:
//   - memoryengine: in-process map, used by tests and the demo
//   - postgresengine: JSONB table keyed by path (pgxpool, sql.DB or sqlx.DB)
//   - sqliteengine: TEXT table keyed by path (modernc.org/sqlite)
package documentstore
