// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunkstore persists chunk envelopes outside the process.
//
// A [Store] maps world chunk coordinates to the framed envelope bytes
// served in a region slot. Two backends exist: [Memory], which lives
// and dies with the process, and [SQLite], which survives restarts and
// records a world [Manifest] so that chunks generated under one world
// configuration are never served under another.
//
// Every operation is retry-safe. Backend failures are reported wrapped
// in [ErrUnavailable]; callers on the read path treat them as absence
// and fall back to generation. Only the bootstrap loop in [Connect]
// turns persistent unavailability into a fatal error.
package chunkstore

import (
	"context"
	"errors"

	"github.com/hopper-foundation/hopper/lib/anvil"
)

// ErrUnavailable wraps every backend failure.
var ErrUnavailable = errors.New("chunk store unavailable")

// ErrManifestMismatch is returned when a database was written under a
// different world configuration.
var ErrManifestMismatch = errors.New("world manifest mismatch")

// Store is a persistent map from chunk coordinates to envelope bytes.
// Implementations are safe for concurrent use.
type Store interface {
	// Load returns the stored blob for a chunk. A missing chunk is
	// (nil, false, nil).
	Load(ctx context.Context, x, z int32) ([]byte, bool, error)

	// Save inserts or replaces the blob for a chunk.
	Save(ctx context.Context, x, z int32, blob []byte) error

	// TotalSize is the sum of stored blob lengths.
	TotalSize(ctx context.Context) (uint64, error)

	Close() error
}

// RegionLister is implemented by stores that can enumerate the regions
// holding at least one persisted chunk.
type RegionLister interface {
	ListRegions(ctx context.Context) ([]anvil.RegionCoord, error)
}
