package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Config selects and configures the KV driver.
type Config struct {
	// Driver is one of "memory", "file" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// Validate checks the driver has what it needs.
func (c Config) Validate() error {
	switch c.Driver {
	case "memory":
	case "file":
		if c.Dir == "" {
			return fmt.Errorf("store.dir is required for the file driver")
		}
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Driver)
	}
	return nil
}

// Open builds the configured KV. The returned close function is always non-nil.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (KV, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case "memory":
		return NewMemory(), noop, nil
	case "file":
		f, err := NewFile(cfg.Dir, logger)
		if err != nil {
			return nil, noop, err
		}
		return f, noop, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create connection pool: %w", err)
		}
		pg, err := NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return pg, pool.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
