package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions overrides what the database URL carries. Zero values keep
// the URL's (or pgx's) setting.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	// SearchPath pins every connection to one schema, so a migrated schema
	// other than public can be served without qualifying table names.
	SearchPath string
	// PingTimeout bounds the startup ping. Defaults to five seconds.
	PingTimeout time.Duration
}

// PoolConfig builds the pgxpool config NewPool would connect with.
func PoolConfig(databaseURL string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.SearchPath != "" {
		if !schemaPattern.MatchString(opts.SearchPath) {
			return nil, fmt.Errorf("invalid search path %q", opts.SearchPath)
		}
		cfg.ConnConfig.RuntimeParams["search_path"] = opts.SearchPath
	}
	return cfg, nil
}

// NewPool connects and pings. The pool is closed again when the ping fails.
func NewPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := PoolConfig(databaseURL, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
