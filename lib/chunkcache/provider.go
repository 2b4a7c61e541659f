// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunkcache resolves world chunks to envelope bytes.
//
// A [Provider] answers from a bounded LRU of recent chunks, then from
// the persistent store, then by running the generator and framing its
// output. Concurrent requests for the same chunk share one resolution.
// Store trouble degrades to generation; generation failures are
// returned for that chunk only and never cached.
package chunkcache

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"log/slog"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/hopper-foundation/hopper/lib/anvil"
	"github.com/hopper-foundation/hopper/lib/chunkstore"
	"github.com/hopper-foundation/hopper/lib/clock"
	"github.com/hopper-foundation/hopper/lib/metrics"
	"github.com/hopper-foundation/hopper/lib/worldgen"
)

// ErrGeneration wraps generator failures.
var ErrGeneration = errors.New("chunk generation failed")

// Options configures a Provider. Generator, MaxChunks, and Clock are
// required.
type Options struct {
	// Store is consulted before generating. Nil means every miss is
	// generated.
	Store chunkstore.Store

	Generator worldgen.Generator

	// Compression frames generated chunks. Defaults to zlib.
	Compression anvil.CompressionTag

	// MaxChunks bounds the cache by entry count.
	MaxChunks int

	// LoadTimeout bounds each store round trip. Defaults to 5s.
	LoadTimeout time.Duration

	// PersistGenerated saves freshly generated chunks to Store.
	PersistGenerated bool

	// PrefetchRadius is the Chebyshev radius warmed around each served
	// chunk. Zero disables prefetching.
	PrefetchRadius int

	// PrefetchWorkers bounds concurrent prefetches. Defaults to 4.
	PrefetchWorkers int

	// Observer defaults to metrics.Nop.
	Observer metrics.Observer

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	Clock clock.Clock
}

// writeStripes serializes writers of the same chunk so that a Put is
// never overwritten by a generation that started before it.
const writeStripes = 64

// Provider is safe for concurrent use. Returned blobs are shared with
// the cache and must not be modified.
type Provider struct {
	store            chunkstore.Store
	generator        worldgen.Generator
	compression      anvil.CompressionTag
	loadTimeout      time.Duration
	persistGenerated bool
	prefetchRadius   int

	cache  *lru.Cache[anvil.ChunkCoord, []byte]
	flight singleflight.Group

	stripeSeed maphash.Seed
	stripes    [writeStripes]sync.Mutex

	// prefetchSlots holds one token per running prefetch.
	prefetchSlots chan struct{}
	lifecycle     sync.RWMutex
	closed        bool
	prefetches    sync.WaitGroup

	observer metrics.Observer
	logger   *slog.Logger
	clock    clock.Clock
}

// New creates a Provider.
func New(options Options) (*Provider, error) {
	if options.Generator == nil {
		return nil, fmt.Errorf("chunkcache: Generator is required")
	}
	if options.Clock == nil {
		return nil, fmt.Errorf("chunkcache: Clock is required")
	}
	if options.MaxChunks < 1 {
		return nil, fmt.Errorf("chunkcache: MaxChunks must be positive, got %d", options.MaxChunks)
	}
	if options.PrefetchRadius < 0 {
		return nil, fmt.Errorf("chunkcache: PrefetchRadius must not be negative, got %d", options.PrefetchRadius)
	}

	cache, err := lru.New[anvil.ChunkCoord, []byte](options.MaxChunks)
	if err != nil {
		return nil, fmt.Errorf("chunkcache: %w", err)
	}

	compression := options.Compression
	if compression == 0 {
		compression = anvil.CompressionZlib
	}
	loadTimeout := options.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = 5 * time.Second
	}
	workers := options.PrefetchWorkers
	if workers <= 0 {
		workers = 4
	}
	observer := options.Observer
	if observer == nil {
		observer = metrics.Nop{}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Provider{
		store:            options.Store,
		generator:        options.Generator,
		compression:      compression,
		loadTimeout:      loadTimeout,
		persistGenerated: options.PersistGenerated,
		prefetchRadius:   options.PrefetchRadius,
		cache:            cache,
		stripeSeed:       maphash.MakeSeed(),
		prefetchSlots:    make(chan struct{}, workers),
		observer:         observer,
		logger:           logger,
		clock:            options.Clock,
	}, nil
}

func flightKey(coord anvil.ChunkCoord) string {
	return strconv.FormatInt(int64(coord.X), 10) + "," + strconv.FormatInt(int64(coord.Z), 10)
}

func (p *Provider) stripe(coord anvil.ChunkCoord) *sync.Mutex {
	return &p.stripes[maphash.Comparable(p.stripeSeed, coord)%writeStripes]
}

// Get returns the envelope for a chunk. If the caller's context ends
// first, Get returns its error while the resolution continues for
// other waiters.
func (p *Provider) Get(ctx context.Context, coord anvil.ChunkCoord) ([]byte, error) {
	if blob, ok := p.cache.Get(coord); ok {
		p.observer.CacheHit()
		return blob, nil
	}
	return p.resolve(ctx, coord)
}

func (p *Provider) resolve(ctx context.Context, coord anvil.ChunkCoord) ([]byte, error) {
	detached := context.WithoutCancel(ctx)
	results := p.flight.DoChan(flightKey(coord), func() (any, error) {
		return p.resolveOnce(detached, coord)
	})
	select {
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolveOnce runs at most once per chunk at a time.
func (p *Provider) resolveOnce(ctx context.Context, coord anvil.ChunkCoord) ([]byte, error) {
	if blob, ok := p.cache.Get(coord); ok {
		p.observer.CacheHit()
		return blob, nil
	}
	p.observer.CacheMiss()

	if blob, ok := p.load(ctx, coord); ok {
		return p.admit(coord, blob), nil
	}

	blob, err := p.generate(coord)
	if err != nil {
		return nil, err
	}

	if !p.persistGenerated || p.store == nil {
		return p.admit(coord, blob), nil
	}

	lock := p.stripe(coord)
	lock.Lock()
	defer lock.Unlock()
	if previous, replaced, _ := p.cache.PeekOrAdd(coord, blob); replaced {
		return previous, nil
	}
	p.save(ctx, coord, blob)
	return blob, nil
}

// admit caches blob unless a Put landed first, and returns whichever
// blob the cache now holds.
func (p *Provider) admit(coord anvil.ChunkCoord, blob []byte) []byte {
	lock := p.stripe(coord)
	lock.Lock()
	defer lock.Unlock()
	if previous, replaced, _ := p.cache.PeekOrAdd(coord, blob); replaced {
		return previous
	}
	return blob
}

// load returns a stored blob. Failures, timeouts, and malformed blobs
// are logged and reported as absent.
func (p *Provider) load(ctx context.Context, coord anvil.ChunkCoord) ([]byte, bool) {
	if p.store == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, p.loadTimeout)
	defer cancel()

	start := p.clock.Now()
	blob, found, err := p.store.Load(ctx, coord.X, coord.Z)
	if err != nil {
		p.observer.StoreError("load")
		p.logger.Warn("chunk load failed, generating instead", "chunk", coord, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	if _, err := anvil.ParseEnvelope(blob); err != nil {
		p.observer.StoreError("load")
		p.logger.Warn("stored chunk is malformed, generating instead", "chunk", coord, "error", err)
		return nil, false
	}
	p.observer.ChunkLoaded(clock.Since(p.clock, start))
	return blob, true
}

func (p *Provider) save(ctx context.Context, coord anvil.ChunkCoord, blob []byte) error {
	ctx, cancel := context.WithTimeout(ctx, p.loadTimeout)
	defer cancel()

	start := p.clock.Now()
	if err := p.store.Save(ctx, coord.X, coord.Z, blob); err != nil {
		p.observer.StoreError("save")
		p.logger.Warn("chunk save failed", "chunk", coord, "error", err)
		return err
	}
	p.observer.ChunkSaved(clock.Since(p.clock, start))
	return nil
}

func (p *Provider) generate(coord anvil.ChunkCoord) ([]byte, error) {
	start := p.clock.Now()
	payload, err := p.generator.GenerateChunk(coord.X, coord.Z)
	if err != nil {
		p.observer.GenerationFailed()
		return nil, fmt.Errorf("%w: %v: %w", ErrGeneration, coord, err)
	}
	blob, err := anvil.Wrap(payload, p.compression)
	if err != nil {
		p.observer.GenerationFailed()
		return nil, fmt.Errorf("%w: %v: %w", ErrGeneration, coord, err)
	}
	p.observer.ChunkGenerated(clock.Since(p.clock, start), len(payload), len(blob))
	return blob, nil
}

// Put stores blob for a chunk and makes it visible to every later Get.
// The cache is updated even when the store rejects the write; the
// store error is returned.
func (p *Provider) Put(ctx context.Context, coord anvil.ChunkCoord, blob []byte) error {
	lock := p.stripe(coord)
	lock.Lock()
	defer lock.Unlock()

	var err error
	if p.store != nil {
		err = p.save(context.WithoutCancel(ctx), coord, blob)
	}
	p.cache.Add(coord, blob)
	p.flight.Forget(flightKey(coord))
	if err != nil {
		return fmt.Errorf("chunkcache: put %v: %w", coord, err)
	}
	return nil
}

// TotalPersistedSize is the store's total blob size, or 0 without a
// store.
func (p *Provider) TotalPersistedSize(ctx context.Context) (uint64, error) {
	if p.store == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.loadTimeout)
	defer cancel()
	size, err := p.store.TotalSize(ctx)
	if err != nil {
		p.observer.StoreError("size")
		return 0, fmt.Errorf("chunkcache: total size: %w", err)
	}
	return size, nil
}

// Prefetch warms the chunks within the prefetch radius of center in
// the background. It never blocks: neighbours that find every worker
// busy are skipped.
func (p *Provider) Prefetch(center anvil.ChunkCoord) {
	if p.prefetchRadius == 0 {
		return
	}
	p.lifecycle.RLock()
	defer p.lifecycle.RUnlock()
	if p.closed {
		return
	}

	radius := int64(p.prefetchRadius)
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx == 0 && dz == 0 {
				continue
			}
			x, z := int64(center.X)+dx, int64(center.Z)+dz
			if x != int64(int32(x)) || z != int64(int32(z)) {
				continue
			}
			neighbour := anvil.ChunkCoord{X: int32(x), Z: int32(z)}
			if p.cache.Contains(neighbour) {
				continue
			}

			select {
			case p.prefetchSlots <- struct{}{}:
			default:
				p.observer.PrefetchDropped()
				continue
			}
			p.prefetches.Add(1)
			go func() {
				defer p.prefetches.Done()
				defer func() { <-p.prefetchSlots }()
				if _, err := p.resolve(context.Background(), neighbour); err != nil {
					p.logger.Debug("prefetch failed", "chunk", neighbour, "error", err)
				}
			}()
		}
	}
}

// Len returns the number of cached chunks.
func (p *Provider) Len() int {
	return p.cache.Len()
}

// Close stops new prefetches and waits for running ones. Get and Put
// keep working.
func (p *Provider) Close() {
	p.lifecycle.Lock()
	p.closed = true
	p.lifecycle.Unlock()
	p.prefetches.Wait()
}
