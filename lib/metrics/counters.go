// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hopper-foundation/hopper/lib/clock"
)

// Counters is an Observer that accumulates totals with atomic adds.
// The zero value is not usable; call NewCounters.
type Counters struct {
	clock   clock.Clock
	started time.Time

	generated          atomic.Uint64
	generationNanos    atomic.Uint64
	maxGenerationNanos atomic.Uint64
	generatedRaw       atomic.Uint64
	generatedFramed    atomic.Uint64
	generationFailures atomic.Uint64

	loaded     atomic.Uint64
	loadNanos  atomic.Uint64
	saved      atomic.Uint64
	saveNanos  atomic.Uint64
	loadErrors atomic.Uint64
	saveErrors atomic.Uint64
	sizeErrors atomic.Uint64

	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64
	prefetchDropped atomic.Uint64

	reads        atomic.Uint64
	readNanos    atomic.Uint64
	bytesRead    atomic.Uint64
	writes       atomic.Uint64
	bytesWritten atomic.Uint64
	writesKept   atomic.Uint64
}

var _ Observer = (*Counters)(nil)

// NewCounters starts a counter set. Uptime is measured from now on c.
func NewCounters(c clock.Clock) *Counters {
	return &Counters{clock: c, started: c.Now()}
}

func nanos(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d)
}

func storeMax(target *atomic.Uint64, value uint64) {
	for {
		current := target.Load()
		if value <= current || target.CompareAndSwap(current, value) {
			return
		}
	}
}

func (c *Counters) ChunkGenerated(elapsed time.Duration, rawBytes, compressedBytes int) {
	c.generated.Add(1)
	c.generationNanos.Add(nanos(elapsed))
	storeMax(&c.maxGenerationNanos, nanos(elapsed))
	c.generatedRaw.Add(uint64(rawBytes))
	c.generatedFramed.Add(uint64(compressedBytes))
}

func (c *Counters) ChunkLoaded(elapsed time.Duration) {
	c.loaded.Add(1)
	c.loadNanos.Add(nanos(elapsed))
}

func (c *Counters) ChunkSaved(elapsed time.Duration) {
	c.saved.Add(1)
	c.saveNanos.Add(nanos(elapsed))
}

func (c *Counters) CacheHit()  { c.cacheHits.Add(1) }
func (c *Counters) CacheMiss() { c.cacheMisses.Add(1) }

func (c *Counters) StoreError(operation string) {
	switch operation {
	case "load":
		c.loadErrors.Add(1)
	case "save":
		c.saveErrors.Add(1)
	default:
		c.sizeErrors.Add(1)
	}
}

func (c *Counters) GenerationFailed() { c.generationFailures.Add(1) }
func (c *Counters) PrefetchDropped()  { c.prefetchDropped.Add(1) }

func (c *Counters) Read(elapsed time.Duration, bytes int) {
	c.reads.Add(1)
	c.readNanos.Add(nanos(elapsed))
	c.bytesRead.Add(uint64(bytes))
}

func (c *Counters) Write(bytes int, persisted bool) {
	c.writes.Add(1)
	c.bytesWritten.Add(uint64(bytes))
	if persisted {
		c.writesKept.Add(1)
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Uptime time.Duration

	ChunksGenerated    uint64
	GenerationTime     time.Duration
	MaxGenerationTime  time.Duration
	GeneratedRawBytes  uint64
	GeneratedBlobBytes uint64
	GenerationFailures uint64

	ChunksLoaded uint64
	LoadTime     time.Duration
	ChunksSaved  uint64
	SaveTime     time.Duration
	LoadErrors   uint64
	SaveErrors   uint64
	SizeErrors   uint64

	CacheHits       uint64
	CacheMisses     uint64
	PrefetchDropped uint64

	Reads        uint64
	ReadTime     time.Duration
	BytesRead    uint64
	Writes       uint64
	BytesWritten uint64
	WritesKept   uint64
}

// Snapshot copies the counters. Individual fields are read atomically
// but not as one transaction.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Uptime:             clock.Since(c.clock, c.started),
		ChunksGenerated:    c.generated.Load(),
		GenerationTime:     time.Duration(c.generationNanos.Load()),
		MaxGenerationTime:  time.Duration(c.maxGenerationNanos.Load()),
		GeneratedRawBytes:  c.generatedRaw.Load(),
		GeneratedBlobBytes: c.generatedFramed.Load(),
		GenerationFailures: c.generationFailures.Load(),
		ChunksLoaded:       c.loaded.Load(),
		LoadTime:           time.Duration(c.loadNanos.Load()),
		ChunksSaved:        c.saved.Load(),
		SaveTime:           time.Duration(c.saveNanos.Load()),
		LoadErrors:         c.loadErrors.Load(),
		SaveErrors:         c.saveErrors.Load(),
		SizeErrors:         c.sizeErrors.Load(),
		CacheHits:          c.cacheHits.Load(),
		CacheMisses:        c.cacheMisses.Load(),
		PrefetchDropped:    c.prefetchDropped.Load(),
		Reads:              c.reads.Load(),
		ReadTime:           time.Duration(c.readNanos.Load()),
		BytesRead:          c.bytesRead.Load(),
		Writes:             c.writes.Load(),
		BytesWritten:       c.bytesWritten.Load(),
		WritesKept:         c.writesKept.Load(),
	}
}

func average(total time.Duration, count uint64) time.Duration {
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

// HitRatio is hits over lookups, or 0 before the first lookup.
func (s Snapshot) HitRatio() float64 {
	lookups := s.CacheHits + s.CacheMisses
	if lookups == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(lookups)
}

// CompressionRatio is framed bytes over raw NBT bytes for generated
// chunks, or 0 before the first generation.
func (s Snapshot) CompressionRatio() float64 {
	if s.GeneratedRawBytes == 0 {
		return 0
	}
	return float64(s.GeneratedBlobBytes) / float64(s.GeneratedRawBytes)
}

// Report renders a multi-line human summary.
func (s Snapshot) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "uptime %v\n", s.Uptime.Round(time.Second))
	fmt.Fprintf(&b, "generation: %d chunks, avg %v, max %v, %d failed, compression %.1f%%\n",
		s.ChunksGenerated, average(s.GenerationTime, s.ChunksGenerated), s.MaxGenerationTime,
		s.GenerationFailures, s.CompressionRatio()*100)
	fmt.Fprintf(&b, "store: %d loaded (avg %v), %d saved (avg %v), errors load=%d save=%d size=%d\n",
		s.ChunksLoaded, average(s.LoadTime, s.ChunksLoaded), s.ChunksSaved, average(s.SaveTime, s.ChunksSaved),
		s.LoadErrors, s.SaveErrors, s.SizeErrors)
	fmt.Fprintf(&b, "cache: %d hits, %d misses, hit ratio %.1f%%, %d prefetches dropped\n",
		s.CacheHits, s.CacheMisses, s.HitRatio()*100, s.PrefetchDropped)
	fmt.Fprintf(&b, "filesystem: %d reads (avg %v, %d bytes), %d writes (%d bytes, %d kept)",
		s.Reads, average(s.ReadTime, s.Reads), s.BytesRead, s.Writes, s.BytesWritten, s.WritesKept)
	return b.String()
}

// LogValue renders the snapshot as structured log attributes.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("uptime", s.Uptime),
		slog.Uint64("chunks_generated", s.ChunksGenerated),
		slog.Duration("generation_avg", average(s.GenerationTime, s.ChunksGenerated)),
		slog.Duration("generation_max", s.MaxGenerationTime),
		slog.Uint64("generation_failures", s.GenerationFailures),
		slog.Uint64("chunks_loaded", s.ChunksLoaded),
		slog.Uint64("chunks_saved", s.ChunksSaved),
		slog.Uint64("store_errors", s.LoadErrors+s.SaveErrors+s.SizeErrors),
		slog.Uint64("cache_hits", s.CacheHits),
		slog.Uint64("cache_misses", s.CacheMisses),
		slog.Float64("hit_ratio", s.HitRatio()),
		slog.Uint64("prefetch_dropped", s.PrefetchDropped),
		slog.Uint64("reads", s.Reads),
		slog.Uint64("bytes_read", s.BytesRead),
		slog.Uint64("writes", s.Writes),
		slog.Uint64("writes_kept", s.WritesKept),
	)
}
