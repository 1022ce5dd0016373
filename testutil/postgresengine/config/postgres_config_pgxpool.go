package config

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPGXPoolTestConfig creates a pgxpool.Config for the test database.
func PostgresPGXPoolTestConfig() (*pgxpool.Config, error) {
	const defaultMinConnections = int32(2)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute

	cfg, err := LoadTestDatabaseConfig()
	if err != nil {
		return nil, err
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	dbConfig.MaxConns = cfg.MaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	return dbConfig, nil
}

// PostgresPGXPool creates a pgxpool.Pool for the test database and checks that it is reachable.
func PostgresPGXPool(ctx context.Context) (*pgxpool.Pool, error) {
	dbConfig, err := PostgresPGXPoolTestConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbConfig.ConnConfig.ConnectTimeout)
	defer cancel()

	if pingErr := pool.Ping(pingCtx); pingErr != nil {
		pool.Close()
		return nil, pingErr
	}

	return pool, nil
}
