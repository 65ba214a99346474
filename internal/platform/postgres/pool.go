// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

// Package postgres opens the PostgreSQL pool backing the credential store.
//
// # Architecture
//
// Only the pool lives here. Repositories take a *pgxpool.Pool and own their
// queries, so this package stays free of domain types.
package postgres

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the pool. Zero fields fall back to [DefaultPoolOptions].
type PoolOptions struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration

	// StatementTimeout is applied per connection so a stuck query cannot
	// hold a login request open.
	StatementTimeout time.Duration
}

// DefaultPoolOptions suits a single API instance serving auth traffic.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:          25,
		MinConns:          2,
		MaxConnLifetime:   60 * time.Minute,
		MaxConnIdleTime:   10 * time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    5 * time.Second,
		StatementTimeout:  30 * time.Second,
	}
}

const pingTimeout = 2 * time.Second

// NewPool creates and validates a new PostgreSQL connection pool.
//
// # Parameters
//   - context: Context for the initial connection attempt.
//   - dsn: A libpq-compatible connection string or postgres:// URL.
//   - options: Pool tuning.
//   - logger: Structured logger for pool-level events.
func NewPool(context stdctx.Context, dsn string, options PoolOptions, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	options = options.withDefaults()
	poolConfig.MaxConns = options.MaxConns
	poolConfig.MinConns = options.MinConns
	poolConfig.MaxConnLifetime = options.MaxConnLifetime
	poolConfig.MaxConnIdleTime = options.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = options.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = options.ConnectTimeout

	statementTimeout := fmt.Sprintf("SET statement_timeout = %d", options.StatementTimeout.Milliseconds())
	poolConfig.AfterConnect = func(ctx stdctx.Context, connection *pgx.Conn) error {
		_, err := connection.Exec(ctx, statementTimeout)
		return err
	}

	pool, err := pgxpool.NewWithConfig(context, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	if err := Ping(context, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres_pool_connected",
		slog.String("database", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", int(poolConfig.MaxConns)),
	)

	return pool, nil
}

// Ping verifies that the PostgreSQL connection pool is healthy.
func Ping(context stdctx.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}
	return nil
}

func (options PoolOptions) withDefaults() PoolOptions {
	defaults := DefaultPoolOptions()
	if options.MaxConns <= 0 {
		options.MaxConns = defaults.MaxConns
	}
	if options.MinConns < 0 || options.MinConns > options.MaxConns {
		options.MinConns = defaults.MinConns
	}
	if options.MaxConnLifetime <= 0 {
		options.MaxConnLifetime = defaults.MaxConnLifetime
	}
	if options.MaxConnIdleTime <= 0 {
		options.MaxConnIdleTime = defaults.MaxConnIdleTime
	}
	if options.HealthCheckPeriod <= 0 {
		options.HealthCheckPeriod = defaults.HealthCheckPeriod
	}
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = defaults.ConnectTimeout
	}
	if options.StatementTimeout <= 0 {
		options.StatementTimeout = defaults.StatementTimeout
	}
	return options
}
