// Package postgreswrapper provides test utilities for abstracting over the supported PostgreSQL adapters.
//
// The adapter (pgx.pool, sql.db, sqlx.db) is selected by the ADAPTER_TYPE environment variable, so the
// same integration tests run against every driver. When the test database is not reachable the calling
// test is skipped.
//
// Usage:
//
//	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
//	defer wrapper.Close()
//
//	postgreswrapper.CleanUp(t, wrapper)
//	eventStore := wrapper.EventStore()
//	documentStore := wrapper.DocumentStore()
package postgreswrapper
