// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package virtualfile maps byte ranges of a virtual region file onto
// the header geometry and the chunk provider.
//
// A region file is never materialized. The location table is computed
// from the slot geometry, the timestamp table is zero, and each slot
// holds one chunk envelope followed by zero padding. A read touching
// several slots resolves each chunk independently, so a chunk that
// cannot be produced zero-fills its own slot and nothing else.
package virtualfile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hopper-foundation/hopper/lib/anvil"
	"github.com/hopper-foundation/hopper/lib/clock"
	"github.com/hopper-foundation/hopper/lib/metrics"
)

// Chunks is the part of chunkcache.Provider the engine uses.
type Chunks interface {
	Get(ctx context.Context, coord anvil.ChunkCoord) ([]byte, error)
	Put(ctx context.Context, coord anvil.ChunkCoord, blob []byte) error
	Prefetch(center anvil.ChunkCoord)
}

// Options configures an Engine. Chunks and Clock are required.
type Options struct {
	Geometry anvil.Geometry
	Chunks   Chunks

	// WriteBack routes whole-envelope slot writes to Chunks.Put. When
	// false every write is acknowledged and dropped.
	WriteBack bool

	// Observer defaults to metrics.Nop.
	Observer metrics.Observer

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	Clock clock.Clock
}

// Engine serves reads and writes against virtual region files. It
// holds no chunk data and is safe for concurrent use.
type Engine struct {
	geometry  anvil.Geometry
	chunks    Chunks
	writeBack bool
	observer  metrics.Observer
	logger    *slog.Logger
	clock     clock.Clock
}

// New creates an Engine.
func New(options Options) (*Engine, error) {
	if options.Chunks == nil {
		return nil, fmt.Errorf("virtualfile: Chunks is required")
	}
	if options.Clock == nil {
		return nil, fmt.Errorf("virtualfile: Clock is required")
	}
	if err := options.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("virtualfile: %w", err)
	}
	observer := options.Observer
	if observer == nil {
		observer = metrics.Nop{}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		geometry:  options.Geometry,
		chunks:    options.Chunks,
		writeBack: options.WriteBack,
		observer:  observer,
		logger:    logger,
		clock:     options.Clock,
	}, nil
}

// Geometry returns the slot layout the engine serves.
func (e *Engine) Geometry() anvil.Geometry {
	return e.geometry
}

// WriteBack reports whether slot writes are persisted.
func (e *Engine) WriteBack() bool {
	return e.writeBack
}

// ReadAt returns exactly length bytes of the region file starting at
// offset. Bytes past the end of the file, and bytes of slots whose
// chunk could not be produced, are zero.
func (e *Engine) ReadAt(ctx context.Context, region anvil.RegionCoord, offset uint64, length int) []byte {
	if length <= 0 {
		return []byte{}
	}
	start := e.clock.Now()
	out := make([]byte, length)

	end := offset + uint64(length)
	if end < offset {
		end = ^uint64(0)
	}
	e.geometry.ReadHeader(out, offset)

	fileSize := e.geometry.FileSize()
	slotSize := e.geometry.SlotSize()
	var served []anvil.ChunkCoord
	for position := max(offset, anvil.HeaderSize); position < end && position < fileSize; {
		index, _ := e.geometry.SlotIndex(position)
		slotStart := anvil.HeaderSize + uint64(index)*slotSize
		pieceEnd := min(end, slotStart+slotSize)

		coord := region.Chunk(index)
		if blob, ok := e.chunk(ctx, coord); ok {
			within := position - slotStart
			if within < uint64(len(blob)) {
				copy(out[position-offset:pieceEnd-offset], blob[within:])
			}
			served = append(served, coord)
		}
		position = pieceEnd
	}

	for _, coord := range served {
		e.chunks.Prefetch(coord)
	}
	e.observer.Read(clock.Since(e.clock, start), length)
	return out
}

// chunk resolves one slot's envelope. Failures are logged and reported
// as absent so the slot reads as zeros.
func (e *Engine) chunk(ctx context.Context, coord anvil.ChunkCoord) ([]byte, bool) {
	blob, err := e.chunks.Get(ctx, coord)
	if err != nil {
		e.logger.Warn("chunk unavailable, serving an empty slot", "chunk", coord, "error", err)
		return nil, false
	}
	if uint64(len(blob)) > e.geometry.SlotSize() {
		e.logger.Error("chunk envelope exceeds its slot and is truncated; raise region.sectors_per_chunk",
			"chunk", coord,
			"size", len(blob),
			"slot_size", e.geometry.SlotSize(),
		)
	}
	return blob, true
}

// WriteAt accepts a write to a region file and always reports every
// byte written. With write-back enabled, a write that starts at a slot
// boundary and carries a complete, well-formed envelope that fits the
// slot replaces that chunk; every other write is dropped.
func (e *Engine) WriteAt(ctx context.Context, region anvil.RegionCoord, offset uint64, data []byte) int {
	persisted := e.writeBack && e.persist(ctx, region, offset, data)
	e.observer.Write(len(data), persisted)
	return len(data)
}

func (e *Engine) persist(ctx context.Context, region anvil.RegionCoord, offset uint64, data []byte) bool {
	index, ok := e.geometry.SlotIndex(offset)
	if !ok || offset != anvil.HeaderSize+uint64(index)*e.geometry.SlotSize() {
		return false
	}
	envelope, err := anvil.ParseEnvelope(data)
	if err != nil {
		e.logger.Debug("dropping slot write without a complete envelope", "region", region, "slot", index, "error", err)
		return false
	}
	if uint64(envelope.Size()) > e.geometry.SlotSize() {
		e.logger.Warn("dropping chunk write larger than its slot", "region", region, "slot", index, "size", envelope.Size())
		return false
	}

	coord := region.Chunk(index)
	blob := slices.Clone(data[:envelope.Size()])
	if err := e.chunks.Put(ctx, coord, blob); err != nil {
		// The provider still serves the written chunk from memory.
		e.logger.Warn("chunk write not persisted", "chunk", coord, "error", err)
	}
	return true
}
