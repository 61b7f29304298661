// Package postgres implements the persistence contracts on PostgreSQL via
// pgx. All repositories share one pgxpool and map missing rows to the
// domain's not-found error.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds the PostgreSQL connection settings.
type Config struct {
	DSN             string `json:"dsn"`
	MaxConns        int32  `json:"max_conns"`
	ApplySchema     bool   `json:"apply_schema"`
	StatementTimout int    `json:"statement_timeout_ms"`
}

// Connect opens a pgx pool and verifies the connection with a ping.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if cfg.ApplySchema {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}
