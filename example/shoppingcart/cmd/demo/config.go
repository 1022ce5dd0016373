package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store modes.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

var ErrUnknownStoreMode = errors.New("unknown store mode")
var ErrMissingPostgresDSN = errors.New("CART_DEMO_POSTGRES_DSN is required in postgres mode")

// Config is read from the environment.
type Config struct {
	Store        string          `env:"CART_DEMO_STORE" envDefault:"memory"`
	PostgresDSN  string          `env:"CART_DEMO_POSTGRES_DSN"`
	SQLitePath   string          `env:"CART_DEMO_SQLITE_PATH" envDefault:"cart-demo.db"`
	ReadTimeouts []time.Duration `env:"CART_DEMO_READ_TIMEOUTS" envDefault:"5s,8s,12s"`
	ReadBackoff  time.Duration   `env:"CART_DEMO_READ_BACKOFF" envDefault:"500ms"`
	LogLevel     slog.Level      `env:"CART_DEMO_LOG_LEVEL" envDefault:"info"`
}

func loadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	switch cfg.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, ErrMissingPostgresDSN
		}
	default:
		return Config{}, errors.Join(ErrUnknownStoreMode, fmt.Errorf("store %q", cfg.Store))
	}

	return cfg, nil
}
