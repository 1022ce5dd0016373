// Package config provides PostgreSQL connection factories for the integration tests.
//
// The DSN is read from the environment (POSTGRES_TEST_DSN) and defaults to the docker-compose test
// database. Every factory returns an error instead of exiting, so callers can skip their tests when
// no database is reachable.
package config
