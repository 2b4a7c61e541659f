// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config describes a pool. Path is required.
type Config struct {
	// Path is the database file. It is created if missing; the parent
	// directory must exist. ":memory:" is accepted with PoolSize 1.
	Path string

	// PoolSize defaults to max(runtime.NumCPU(), 4).
	PoolSize int

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	// OnConnect runs once per connection after the pragmas, typically
	// to create the schema. An error discards the connection and is
	// returned from Take.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size set of prepared connections. It is safe for
// concurrent use.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA cache_size=-16384",
	"PRAGMA mmap_size=268435456",
	"PRAGMA temp_store=MEMORY",
}

// Open creates the pool. Connections are opened lazily by Take.
func Open(config Config) (*Pool, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}

	onConnect := config.OnConnect
	inner, err := sqlitex.NewPool(config.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
				}
			}
			if onConnect != nil {
				if err := onConnect(conn); err != nil {
					return fmt.Errorf("sqlitepool: OnConnect: %w", err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", config.Path, err)
	}

	logger.Info("sqlite pool opened", "path", config.Path, "pool_size", poolSize)
	return &Pool{inner: inner, logger: logger, path: config.Path}, nil
}

// Take borrows a connection, blocking until one is free or ctx is
// done. Every successful Take must be paired with a Put.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Put(nil) is a no-op.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Do runs fn with a borrowed connection and returns it afterwards.
func (p *Pool) Do(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := p.Take(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)
	return fn(conn)
}

// Path returns the database path the pool was opened with.
func (p *Pool) Path() string {
	return p.path
}

// Close waits for borrowed connections to come back and closes them
// all.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close failed", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}
