// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package chunkcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hopper-foundation/hopper/lib/anvil"
	"github.com/hopper-foundation/hopper/lib/chunkstore"
	"github.com/hopper-foundation/hopper/lib/clock"
	"github.com/hopper-foundation/hopper/lib/metrics"
	"github.com/hopper-foundation/hopper/lib/testutil"
	"github.com/hopper-foundation/hopper/lib/worldgen"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// countingGenerator returns the coordinates as a two-byte payload and
// counts calls per chunk.
type countingGenerator struct {
	mu    sync.Mutex
	calls map[anvil.ChunkCoord]int

	// gate, when non-nil, blocks every call until it is closed.
	gate    chan struct{}
	entered chan anvil.ChunkCoord
	fail    bool
}

func newCountingGenerator() *countingGenerator {
	return &countingGenerator{calls: make(map[anvil.ChunkCoord]int)}
}

func (g *countingGenerator) GenerateChunk(x, z int32) ([]byte, error) {
	coord := anvil.ChunkCoord{X: x, Z: z}
	g.mu.Lock()
	g.calls[coord]++
	fail := g.fail
	g.mu.Unlock()

	if g.entered != nil {
		g.entered <- coord
	}
	if g.gate != nil {
		<-g.gate
	}
	if fail {
		return nil, fmt.Errorf("synthetic failure at %v", coord)
	}
	return []byte{byte(x), byte(z)}, nil
}

func (g *countingGenerator) count(coord anvil.ChunkCoord) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[coord]
}

func (g *countingGenerator) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}

func newTestProvider(t *testing.T, generator worldgen.Generator, adjust func(*Options)) (*Provider, *metrics.Counters) {
	t.Helper()
	counters := metrics.NewCounters(clock.Fake(epoch))
	options := Options{
		Generator:   generator,
		Compression: anvil.CompressionNone,
		MaxChunks:   64,
		LoadTimeout: time.Second,
		Observer:    counters,
		Clock:       clock.Fake(epoch),
	}
	if adjust != nil {
		adjust(&options)
	}
	provider, err := New(options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(provider.Close)
	return provider, counters
}

func envelopeFor(x, z int32) []byte {
	return anvil.Frame([]byte{byte(x), byte(z)}, anvil.CompressionNone)
}

func TestGetGeneratesAndCaches(t *testing.T) {
	generator := newCountingGenerator()
	provider, counters := newTestProvider(t, generator, nil)
	ctx := context.Background()
	coord := anvil.ChunkCoord{X: 3, Z: -2}

	first, err := provider.Get(ctx, coord)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(first, envelopeFor(3, -2)) {
		t.Errorf("Get = %x, want %x", first, envelopeFor(3, -2))
	}
	second, err := provider.Get(ctx, coord)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("cached blob differs from the generated one")
	}
	if generator.count(coord) != 1 {
		t.Errorf("generated %d times, want 1", generator.count(coord))
	}

	snapshot := counters.Snapshot()
	if snapshot.CacheMisses != 1 || snapshot.CacheHits != 1 || snapshot.ChunksGenerated != 1 {
		t.Errorf("misses %d, hits %d, generated %d; want 1, 1, 1",
			snapshot.CacheMisses, snapshot.CacheHits, snapshot.ChunksGenerated)
	}
}

func TestConcurrentGetsShareOneGeneration(t *testing.T) {
	generator := newCountingGenerator()
	generator.gate = make(chan struct{})
	generator.entered = make(chan anvil.ChunkCoord, 1)
	provider, _ := newTestProvider(t, generator, nil)
	coord := anvil.ChunkCoord{X: 100, Z: 100}

	const readers = 32
	results := make(chan []byte, readers)
	var waitGroup sync.WaitGroup
	for range readers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			blob, err := provider.Get(context.Background(), coord)
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			results <- blob
		}()
	}

	testutil.RequireReceive(t, generator.entered, 5*time.Second, "generator never called")
	close(generator.gate)
	waitGroup.Wait()
	close(results)

	var first []byte
	for blob := range results {
		if first == nil {
			first = blob
		} else if !bytes.Equal(blob, first) {
			t.Errorf("readers observed different blobs: %x vs %x", blob, first)
		}
	}
	if generator.count(coord) != 1 {
		t.Errorf("generated %d times, want exactly 1", generator.count(coord))
	}
}

func TestLRUEviction(t *testing.T) {
	generator := newCountingGenerator()
	provider, _ := newTestProvider(t, generator, func(o *Options) { o.MaxChunks = 3 })
	ctx := context.Background()

	a, b, c, d := anvil.ChunkCoord{X: 0}, anvil.ChunkCoord{X: 1}, anvil.ChunkCoord{X: 2}, anvil.ChunkCoord{X: 3}
	for _, coord := range []anvil.ChunkCoord{a, b, c, a, d} {
		if _, err := provider.Get(ctx, coord); err != nil {
			t.Fatalf("Get(%v): %v", coord, err)
		}
	}
	if provider.Len() != 3 {
		t.Fatalf("Len = %d, want 3", provider.Len())
	}

	// b was least recently used when d arrived.
	if _, err := provider.Get(ctx, b); err != nil {
		t.Fatalf("Get(b): %v", err)
	}
	if generator.count(b) != 2 {
		t.Errorf("b generated %d times, want 2 (evicted once)", generator.count(b))
	}
	if generator.count(a) != 1 {
		t.Errorf("a generated %d times, want 1 (recently used)", generator.count(a))
	}
}

func TestStoreHitSkipsGeneration(t *testing.T) {
	generator := newCountingGenerator()
	store := chunkstore.NewMemory()
	stored := anvil.Frame([]byte("persisted"), anvil.CompressionNone)
	if err := store.Save(context.Background(), 7, 8, stored); err != nil {
		t.Fatalf("Save: %v", err)
	}
	provider, counters := newTestProvider(t, generator, func(o *Options) { o.Store = store })

	blob, err := provider.Get(context.Background(), anvil.ChunkCoord{X: 7, Z: 8})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(blob, stored) {
		t.Errorf("Get = %x, want the stored blob", blob)
	}
	if generator.total() != 0 {
		t.Errorf("generator called %d times, want 0", generator.total())
	}
	if counters.Snapshot().ChunksLoaded != 1 {
		t.Errorf("ChunksLoaded = %d, want 1", counters.Snapshot().ChunksLoaded)
	}
}

// failingStore fails every operation.
type failingStore struct{ loads atomic.Int32 }

func (s *failingStore) Load(context.Context, int32, int32) ([]byte, bool, error) {
	s.loads.Add(1)
	return nil, false, fmt.Errorf("%w: disk on fire", chunkstore.ErrUnavailable)
}

func (s *failingStore) Save(context.Context, int32, int32, []byte) error {
	return fmt.Errorf("%w: disk on fire", chunkstore.ErrUnavailable)
}

func (s *failingStore) TotalSize(context.Context) (uint64, error) {
	return 0, fmt.Errorf("%w: disk on fire", chunkstore.ErrUnavailable)
}

func (s *failingStore) Close() error { return nil }

func TestStoreFailureFallsBackToGeneration(t *testing.T) {
	generator := newCountingGenerator()
	store := &failingStore{}
	provider, counters := newTestProvider(t, generator, func(o *Options) {
		o.Store = store
		o.PersistGenerated = true
	})

	blob, err := provider.Get(context.Background(), anvil.ChunkCoord{X: 1, Z: 2})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(blob, envelopeFor(1, 2)) {
		t.Errorf("Get = %x", blob)
	}
	snapshot := counters.Snapshot()
	if snapshot.LoadErrors != 1 || snapshot.SaveErrors != 1 {
		t.Errorf("load errors %d, save errors %d; want 1, 1", snapshot.LoadErrors, snapshot.SaveErrors)
	}

	if _, err := provider.TotalPersistedSize(context.Background()); !errors.Is(err, chunkstore.ErrUnavailable) {
		t.Errorf("TotalPersistedSize err = %v, want ErrUnavailable", err)
	}
}

func TestMalformedStoredBlobIsRegenerated(t *testing.T) {
	generator := newCountingGenerator()
	store := chunkstore.NewMemory()
	store.Save(context.Background(), 0, 0, []byte{0, 0, 0, 9, 2})
	provider, _ := newTestProvider(t, generator, func(o *Options) { o.Store = store })

	blob, err := provider.Get(context.Background(), anvil.ChunkCoord{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(blob, envelopeFor(0, 0)) {
		t.Errorf("Get = %x, want the generated blob", blob)
	}
}

func TestGenerationFailureIsNotCached(t *testing.T) {
	generator := newCountingGenerator()
	generator.fail = true
	provider, counters := newTestProvider(t, generator, nil)
	coord := anvil.ChunkCoord{X: -5, Z: 5}

	for range 2 {
		_, err := provider.Get(context.Background(), coord)
		if !errors.Is(err, ErrGeneration) {
			t.Fatalf("err = %v, want ErrGeneration", err)
		}
	}
	if generator.count(coord) != 2 {
		t.Errorf("generated %d times, want 2", generator.count(coord))
	}
	if provider.Len() != 0 {
		t.Errorf("Len = %d after failures, want 0", provider.Len())
	}
	if counters.Snapshot().GenerationFailures != 2 {
		t.Errorf("GenerationFailures = %d, want 2", counters.Snapshot().GenerationFailures)
	}
}

func TestPersistGenerated(t *testing.T) {
	store := chunkstore.NewMemory()
	provider, _ := newTestProvider(t, newCountingGenerator(), func(o *Options) {
		o.Store = store
		o.PersistGenerated = true
	})
	if _, err := provider.Get(context.Background(), anvil.ChunkCoord{X: 4, Z: 4}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	blob, found, _ := store.Load(context.Background(), 4, 4)
	if !found || !bytes.Equal(blob, envelopeFor(4, 4)) {
		t.Errorf("stored = %x, found %v", blob, found)
	}
	size, err := provider.TotalPersistedSize(context.Background())
	if err != nil || size != uint64(len(envelopeFor(4, 4))) {
		t.Errorf("TotalPersistedSize = %d, %v", size, err)
	}
}

func TestPutIsVisible(t *testing.T) {
	generator := newCountingGenerator()
	store := chunkstore.NewMemory()
	provider, _ := newTestProvider(t, generator, func(o *Options) { o.Store = store })
	ctx := context.Background()
	coord := anvil.ChunkCoord{X: 9, Z: 9}

	if _, err := provider.Get(ctx, coord); err != nil {
		t.Fatalf("Get: %v", err)
	}
	written := anvil.Frame([]byte("from the server"), anvil.CompressionNone)
	if err := provider.Put(ctx, coord, written); err != nil {
		t.Fatalf("Put: %v", err)
	}
	blob, err := provider.Get(ctx, coord)
	if err != nil {
		t.Fatalf("Get after Put: %v", err)
	}
	if !bytes.Equal(blob, written) {
		t.Errorf("Get after Put = %x, want %x", blob, written)
	}
	if stored, found, _ := store.Load(ctx, 9, 9); !found || !bytes.Equal(stored, written) {
		t.Errorf("store holds %x, found %v", stored, found)
	}
}

func TestPutWinsOverInFlightGeneration(t *testing.T) {
	generator := newCountingGenerator()
	generator.gate = make(chan struct{})
	generator.entered = make(chan anvil.ChunkCoord, 1)
	provider, _ := newTestProvider(t, generator, nil)
	coord := anvil.ChunkCoord{X: 1, Z: 1}

	done := make(chan []byte, 1)
	go func() {
		blob, _ := provider.Get(context.Background(), coord)
		done <- blob
	}()
	testutil.RequireReceive(t, generator.entered, 5*time.Second, "generator never called")

	written := anvil.Frame([]byte("written"), anvil.CompressionNone)
	if err := provider.Put(context.Background(), coord, written); err != nil {
		t.Fatalf("Put: %v", err)
	}
	close(generator.gate)

	if blob := testutil.RequireReceive(t, done, 5*time.Second, "Get did not return"); !bytes.Equal(blob, written) {
		t.Errorf("in-flight Get returned %x, want the Put blob", blob)
	}
	blob, _ := provider.Get(context.Background(), coord)
	if !bytes.Equal(blob, written) {
		t.Errorf("cache holds %x after generation finished, want the Put blob", blob)
	}
}

func TestPutStoreFailureStillCaches(t *testing.T) {
	provider, _ := newTestProvider(t, newCountingGenerator(), func(o *Options) { o.Store = &failingStore{} })
	coord := anvil.ChunkCoord{X: 2, Z: 2}
	written := anvil.Frame([]byte("x"), anvil.CompressionNone)

	if err := provider.Put(context.Background(), coord, written); !errors.Is(err, chunkstore.ErrUnavailable) {
		t.Fatalf("Put err = %v, want ErrUnavailable", err)
	}
	if blob, _ := provider.Get(context.Background(), coord); !bytes.Equal(blob, written) {
		t.Errorf("Get = %x, want the Put blob", blob)
	}
}

func TestGetCancelledWhileGenerating(t *testing.T) {
	generator := newCountingGenerator()
	generator.gate = make(chan struct{})
	generator.entered = make(chan anvil.ChunkCoord, 1)
	provider, _ := newTestProvider(t, generator, nil)
	coord := anvil.ChunkCoord{X: 6, Z: 6}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := provider.Get(ctx, coord)
		errs <- err
	}()
	testutil.RequireReceive(t, generator.entered, 5*time.Second, "generator never called")
	cancel()
	if err := testutil.RequireReceive(t, errs, 5*time.Second, "Get did not return"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	// The generation finishes for later readers.
	close(generator.gate)
	blob, err := provider.Get(context.Background(), coord)
	if err != nil || !bytes.Equal(blob, envelopeFor(6, 6)) {
		t.Errorf("Get after cancel = %x, %v", blob, err)
	}
	if generator.count(coord) != 1 {
		t.Errorf("generated %d times, want 1", generator.count(coord))
	}
}

func TestPrefetchWarmsNeighbours(t *testing.T) {
	generator := newCountingGenerator()
	provider, _ := newTestProvider(t, generator, func(o *Options) {
		o.PrefetchRadius = 1
		o.PrefetchWorkers = 8
	})
	center := anvil.ChunkCoord{X: 10, Z: -10}
	if _, err := provider.Get(context.Background(), center); err != nil {
		t.Fatalf("Get: %v", err)
	}
	provider.Prefetch(center)
	provider.Close()

	if provider.Len() != 9 {
		t.Errorf("Len = %d after prefetch, want 9", provider.Len())
	}
	for dz := int32(-1); dz <= 1; dz++ {
		for dx := int32(-1); dx <= 1; dx++ {
			coord := anvil.ChunkCoord{X: center.X + dx, Z: center.Z + dz}
			if generator.count(coord) != 1 {
				t.Errorf("%v generated %d times, want 1", coord, generator.count(coord))
			}
		}
	}

	// Closed providers do not prefetch.
	provider.Prefetch(anvil.ChunkCoord{X: 1000})
	if provider.Len() != 9 {
		t.Errorf("prefetch after Close changed Len to %d", provider.Len())
	}
}

func TestPrefetchDropsWhenBusy(t *testing.T) {
	generator := newCountingGenerator()
	generator.gate = make(chan struct{})
	provider, counters := newTestProvider(t, generator, func(o *Options) {
		o.PrefetchRadius = 1
		o.PrefetchWorkers = 1
	})

	provider.Prefetch(anvil.ChunkCoord{})
	if dropped := counters.Snapshot().PrefetchDropped; dropped != 7 {
		t.Errorf("PrefetchDropped = %d, want 7", dropped)
	}
	close(generator.gate)
	provider.Close()
	if generator.total() != 1 {
		t.Errorf("generator called %d times, want 1", generator.total())
	}
}

func TestPrefetchSkipsWorldEdge(t *testing.T) {
	generator := newCountingGenerator()
	provider, _ := newTestProvider(t, generator, func(o *Options) {
		o.PrefetchRadius = 1
		o.PrefetchWorkers = 8
	})
	provider.Prefetch(anvil.ChunkCoord{X: 2147483647, Z: -2147483648})
	provider.Close()
	if generator.total() != 3 {
		t.Errorf("generator called %d times at the corner, want 3", generator.total())
	}
}

func TestNewValidates(t *testing.T) {
	generator := worldgen.GeneratorFunc(func(int32, int32) ([]byte, error) { return nil, nil })
	tests := []struct {
		name    string
		options Options
	}{
		{"missing generator", Options{MaxChunks: 1, Clock: clock.Real()}},
		{"missing clock", Options{Generator: generator, MaxChunks: 1}},
		{"zero capacity", Options{Generator: generator, Clock: clock.Real()}},
		{"negative radius", Options{Generator: generator, MaxChunks: 1, Clock: clock.Real(), PrefetchRadius: -1}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := New(test.options); err == nil {
				t.Error("New accepted invalid options")
			}
		})
	}
}
