// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics collects counters from the chunk pipeline and the
// filesystem adapter.
//
// Components report through the [Observer] interface and never depend
// on a concrete sink. [Nop] discards everything and is the default;
// [Counters] aggregates with atomics and renders a summary for logs.
package metrics

import (
	"time"
)

// Observer receives pipeline events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	// ChunkGenerated reports a synthesized chunk with its NBT size and
	// its framed, compressed size.
	ChunkGenerated(elapsed time.Duration, rawBytes, compressedBytes int)

	// ChunkLoaded reports a chunk found in the persistent store.
	ChunkLoaded(elapsed time.Duration)

	// ChunkSaved reports a chunk written to the persistent store.
	ChunkSaved(elapsed time.Duration)

	CacheHit()
	CacheMiss()

	// StoreError reports a failed store operation ("load", "save",
	// "size") that was absorbed.
	StoreError(operation string)

	// GenerationFailed reports a chunk whose synthesis failed.
	GenerationFailed()

	// PrefetchDropped reports a prefetch skipped because every worker
	// was busy.
	PrefetchDropped()

	// Read reports one filesystem read request and the bytes returned.
	Read(elapsed time.Duration, bytes int)

	// Write reports one filesystem write request and whether its
	// content was kept.
	Write(bytes int, persisted bool)
}

// Nop is an Observer that discards every event.
type Nop struct{}

var _ Observer = Nop{}

func (Nop) ChunkGenerated(time.Duration, int, int) {}
func (Nop) ChunkLoaded(time.Duration)              {}
func (Nop) ChunkSaved(time.Duration)               {}
func (Nop) CacheHit()                              {}
func (Nop) CacheMiss()                             {}
func (Nop) StoreError(string)                      {}
func (Nop) GenerationFailed()                      {}
func (Nop) PrefetchDropped()                       {}
func (Nop) Read(time.Duration, int)                {}
func (Nop) Write(int, bool)                        {}
