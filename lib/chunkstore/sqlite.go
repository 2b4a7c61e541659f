// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package chunkstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/hopper-foundation/hopper/lib/anvil"
	"github.com/hopper-foundation/hopper/lib/clock"
	"github.com/hopper-foundation/hopper/lib/codec"
	"github.com/hopper-foundation/hopper/lib/sqlitepool"
)

// SQLiteConfig holds the parameters for opening a SQLite store.
type SQLiteConfig struct {
	// Path is the database file. The parent directory must exist.
	Path string

	// PoolSize is the number of connections. Defaults to 4.
	PoolSize int

	// Manifest is the world configuration the caller is serving. The
	// first open records it; later opens compare against it.
	Manifest Manifest

	// AllowManifestChange replaces a differing recorded manifest
	// instead of failing with ErrManifestMismatch.
	AllowManifestChange bool

	// Clock stamps rows with their write time. Required.
	Clock clock.Clock

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// SQLite is a Store backed by one SQLite database file.
//
// Chunks live in a single table keyed by world coordinates, with the
// region coordinates denormalized so ListRegions is an index scan.
// Save is an upsert. The meta table holds the world manifest and its
// fingerprint.
type SQLite struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

var (
	_ Store        = (*SQLite)(nil)
	_ RegionLister = (*SQLite)(nil)
)

const schema = `
	CREATE TABLE IF NOT EXISTS chunks (
		x          INTEGER NOT NULL,
		z          INTEGER NOT NULL,
		region_x   INTEGER NOT NULL,
		region_z   INTEGER NOT NULL,
		data       BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (x, z)
	) WITHOUT ROWID;
	CREATE INDEX IF NOT EXISTS idx_chunks_region ON chunks(region_x, region_z);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	) WITHOUT ROWID;
`

const (
	metaManifest    = "manifest"
	metaFingerprint = "manifest_fingerprint"
)

// OpenSQLite opens or creates the database, creates the schema, and
// reconciles the recorded manifest. Failures to reach the database
// wrap ErrUnavailable; a manifest conflict is ErrManifestMismatch.
func OpenSQLite(ctx context.Context, config SQLiteConfig) (*SQLite, error) {
	if config.Clock == nil {
		return nil, fmt.Errorf("sqlite store: Clock is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     config.Path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	store := &SQLite{pool: pool, clock: config.Clock, logger: logger}
	if err := store.reconcileManifest(ctx, config.Manifest, config.AllowManifestChange); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLite) reconcileManifest(ctx context.Context, configured Manifest, allowChange bool) (err error) {
	encoded, fingerprint, err := configured.Encode()
	if err != nil {
		return err
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrUnavailable, err)
	}
	defer endTransaction(&err)

	recorded := make(map[string][]byte, 2)
	err = sqlitex.Execute(conn, `SELECT key, value FROM meta WHERE key IN (?, ?)`, &sqlitex.ExecOptions{
		Args: []any{metaManifest, metaFingerprint},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, value)
			recorded[stmt.ColumnText(0)] = value
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("%w: reading manifest: %w", ErrUnavailable, err)
	}

	previous, exists := recorded[metaFingerprint]
	switch {
	case !exists:
		s.logger.Info("recording world manifest", "path", s.pool.Path(), "fingerprint", fingerprint.String())
	case bytes.Equal(previous, fingerprint[:]):
		return nil
	default:
		described := "unreadable recorded manifest"
		if old, decodeErr := DecodeManifest(recorded[metaManifest]); decodeErr == nil {
			described = strings.Join(old.Differences(configured), ", ")
		} else if diagnostic, diagErr := codec.Diagnose(recorded[metaManifest]); diagErr == nil {
			described += " " + diagnostic
		}
		if !allowChange {
			return fmt.Errorf("%w: %s (set store.allow_manifest_change to accept)", ErrManifestMismatch, described)
		}
		s.logger.Warn("world manifest changed; chunks persisted under the previous configuration are kept",
			"changes", described,
			"fingerprint", fingerprint.String(),
		)
	}

	const upsert = `INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	if err = sqlitex.Execute(conn, upsert, &sqlitex.ExecOptions{Args: []any{metaManifest, encoded}}); err != nil {
		return fmt.Errorf("%w: writing manifest: %w", ErrUnavailable, err)
	}
	if err = sqlitex.Execute(conn, upsert, &sqlitex.ExecOptions{Args: []any{metaFingerprint, fingerprint[:]}}); err != nil {
		return fmt.Errorf("%w: writing manifest fingerprint: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, x, z int32) ([]byte, bool, error) {
	var blob []byte
	found := false
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT data FROM chunks WHERE x = ? AND z = ?`, &sqlitex.ExecOptions{
			Args: []any{int64(x), int64(z)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				blob = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, blob)
				found = true
				return nil
			},
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: load chunk (%d, %d): %w", ErrUnavailable, x, z, err)
	}
	return blob, found, nil
}

func (s *SQLite) Save(ctx context.Context, x, z int32, blob []byte) error {
	region := anvil.ChunkCoord{X: x, Z: z}.Region()
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO chunks (x, z, region_x, region_z, data, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (x, z) DO UPDATE SET
				data = excluded.data,
				updated_at = excluded.updated_at`,
			&sqlitex.ExecOptions{
				Args: []any{
					int64(x),
					int64(z),
					int64(region.X),
					int64(region.Z),
					blob,
					s.clock.Now().UnixMilli(),
				},
			})
	})
	if err != nil {
		return fmt.Errorf("%w: save chunk (%d, %d): %w", ErrUnavailable, x, z, err)
	}
	return nil
}

func (s *SQLite) TotalSize(ctx context.Context) (uint64, error) {
	var total int64
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT COALESCE(SUM(length(data)), 0) FROM chunks`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				total = stmt.ColumnInt64(0)
				return nil
			},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%w: total size: %w", ErrUnavailable, err)
	}
	return uint64(total), nil
}

// ListRegions returns regions in ascending (x, z) order.
func (s *SQLite) ListRegions(ctx context.Context) ([]anvil.RegionCoord, error) {
	var regions []anvil.RegionCoord
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT DISTINCT region_x, region_z FROM chunks
			ORDER BY region_x, region_z`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					regions = append(regions, anvil.RegionCoord{
						X: int32(stmt.ColumnInt64(0)),
						Z: int32(stmt.ColumnInt64(1)),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list regions: %w", ErrUnavailable, err)
	}
	return regions, nil
}

// Close waits for in-flight operations and closes the database.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}
