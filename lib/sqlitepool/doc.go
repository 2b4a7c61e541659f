// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool is the connection pool behind hopper's SQLite
// chunk store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and prepares every
// connection with the same pragmas:
//
//   - journal_mode=WAL so FUSE reads loading chunks never wait on a
//     chunk being saved.
//   - synchronous=NORMAL: a committed chunk survives a process crash
//     but not a power loss.
//   - busy_timeout=5000 so concurrent savers queue instead of failing
//     with SQLITE_BUSY.
//   - cache_size=-16384 (16 MiB per connection) and a 256 MiB mmap
//     window, sized for blobs of tens of kilobytes read at random.
//   - temp_store=MEMORY.
//
// Callers either Take and Put connections themselves or hand a
// function to [Pool.Do]:
//
//	err := pool.Do(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{...})
//	})
//
// Connections are not safe for concurrent use; each goroutine holds
// its own for the duration of its work.
package sqlitepool
