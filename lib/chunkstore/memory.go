// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package chunkstore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/hopper-foundation/hopper/lib/anvil"
)

// Memory is an in-process Store. Blobs are copied on the way in and
// out so callers may reuse their buffers.
type Memory struct {
	mu     sync.RWMutex
	chunks map[anvil.ChunkCoord][]byte
	size   uint64
}

var (
	_ Store        = (*Memory)(nil)
	_ RegionLister = (*Memory)(nil)
)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{chunks: make(map[anvil.ChunkCoord][]byte)}
}

func (m *Memory) Load(_ context.Context, x, z int32) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.chunks[anvil.ChunkCoord{X: x, Z: z}]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(blob), true, nil
}

func (m *Memory) Save(_ context.Context, x, z int32, blob []byte) error {
	coord := anvil.ChunkCoord{X: x, Z: z}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size -= uint64(len(m.chunks[coord]))
	m.chunks[coord] = slices.Clone(blob)
	m.size += uint64(len(blob))
	return nil
}

func (m *Memory) TotalSize(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size, nil
}

// ListRegions returns regions in ascending (x, z) order.
func (m *Memory) ListRegions(context.Context) ([]anvil.RegionCoord, error) {
	m.mu.RLock()
	seen := make(map[anvil.RegionCoord]struct{})
	for coord := range m.chunks {
		seen[coord.Region()] = struct{}{}
	}
	m.mu.RUnlock()

	regions := make([]anvil.RegionCoord, 0, len(seen))
	for region := range seen {
		regions = append(regions, region)
	}
	slices.SortFunc(regions, compareRegions)
	return regions, nil
}

func compareRegions(a, b anvil.RegionCoord) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Z, b.Z)
}

// Len returns the number of stored chunks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func (m *Memory) Close() error { return nil }
