// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hopper-foundation/hopper/lib/chunkcache"
	"github.com/hopper-foundation/hopper/lib/chunkstore"
	"github.com/hopper-foundation/hopper/lib/clock"
	"github.com/hopper-foundation/hopper/lib/config"
	"github.com/hopper-foundation/hopper/lib/metrics"
	"github.com/hopper-foundation/hopper/lib/virtualfile"
	"github.com/hopper-foundation/hopper/lib/worldgen"
)

// Options carries the process-wide dependencies.
type Options struct {
	// Clock is required.
	Clock clock.Clock

	// Observer defaults to metrics.Nop.
	Observer metrics.Observer

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	// OpenStore replaces the configured backend. Tests use it to
	// inject a store.
	OpenStore func(context.Context) (chunkstore.Store, error)
}

// Pipeline is a started chunk pipeline. Close releases it.
type Pipeline struct {
	Store    chunkstore.Store
	Provider *chunkcache.Provider
	Engine   *virtualfile.Engine

	// Regions enumerates persisted regions. Nil when the store cannot.
	Regions chunkstore.RegionLister
}

// Start validates cfg and builds the pipeline it describes. The store
// connection is retried per store.connect_attempts before giving up.
func Start(ctx context.Context, cfg *config.Config, options Options) (*Pipeline, error) {
	if options.Clock == nil {
		return nil, fmt.Errorf("bootstrap: Clock is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	observer := options.Observer
	if observer == nil {
		observer = metrics.Nop{}
	}

	generator, err := worldgen.New(worldgen.Config{
		Name:   cfg.World.Generator,
		Seed:   cfg.World.Seed,
		Format: cfg.ChunkFormat(),
		Logger: logger.With("component", "worldgen"),
	})
	if err != nil {
		return nil, err
	}

	open := options.OpenStore
	if open == nil {
		open = func(ctx context.Context) (chunkstore.Store, error) {
			return openStore(ctx, cfg, options.Clock, logger)
		}
	}
	store, err := chunkstore.Connect(ctx, chunkstore.ConnectConfig{
		Attempts: cfg.Store.ConnectAttempts,
		Backoff:  cfg.Store.ConnectBackoff,
		Clock:    options.Clock,
		Logger:   logger,
	}, open)
	if err != nil {
		return nil, fmt.Errorf("connecting to the chunk store: %w", err)
	}

	provider, err := chunkcache.New(chunkcache.Options{
		Store:            store,
		Generator:        generator,
		Compression:      cfg.CompressionTag(),
		MaxChunks:        cfg.Cache.MaxChunks,
		LoadTimeout:      cfg.Cache.LoadTimeout,
		PersistGenerated: cfg.Cache.PersistGenerated,
		PrefetchRadius:   cfg.Cache.PrefetchRadius,
		PrefetchWorkers:  cfg.Cache.PrefetchWorkers,
		Observer:         observer,
		Logger:           logger.With("component", "chunkcache"),
		Clock:            options.Clock,
	})
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	engine, err := virtualfile.New(virtualfile.Options{
		Geometry:  cfg.Geometry(),
		Chunks:    provider,
		WriteBack: cfg.Mount.WriteBack,
		Observer:  observer,
		Logger:    logger.With("component", "virtualfile"),
		Clock:     options.Clock,
	})
	if err != nil {
		provider.Close()
		return nil, errors.Join(err, store.Close())
	}

	pipeline := &Pipeline{Store: store, Provider: provider, Engine: engine}
	if lister, ok := store.(chunkstore.RegionLister); ok {
		pipeline.Regions = lister
	}

	logger.Info("chunk pipeline ready",
		"generator", cfg.World.Generator,
		"seed", cfg.World.Seed,
		"store", cfg.Store.Backend,
		"compression", cfg.CompressionTag(),
		"max_chunks", cfg.Cache.MaxChunks,
		"prefetch_radius", cfg.Cache.PrefetchRadius,
	)
	return pipeline, nil
}

// Close waits for background prefetches, then closes the store.
func (p *Pipeline) Close() error {
	p.Provider.Close()
	return p.Store.Close()
}

// Manifest is the world manifest recorded in a persistent store for
// cfg. Chunks saved under one manifest are not served under another.
func Manifest(cfg *config.Config) chunkstore.Manifest {
	format := cfg.ChunkFormat()
	return chunkstore.Manifest{
		Generator:       cfg.World.Generator,
		Seed:            cfg.World.Seed,
		DataVersion:     format.DataVersion,
		Status:          format.Status,
		MinSection:      format.MinSection,
		SectionCount:    format.SectionCount,
		Biome:           format.Biome,
		SectorsPerChunk: cfg.Region.SectorsPerChunk,
	}
}

func openStore(ctx context.Context, cfg *config.Config, c clock.Clock, logger *slog.Logger) (chunkstore.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return chunkstore.NewMemory(), nil
	case config.BackendSQLite:
		store, err := chunkstore.OpenSQLite(ctx, chunkstore.SQLiteConfig{
			Path:                cfg.Store.Path,
			PoolSize:            cfg.Store.PoolSize,
			Manifest:            Manifest(cfg),
			AllowManifestChange: cfg.Store.AllowManifestChange,
			Clock:               c,
			Logger:              logger.With("component", "chunkstore"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
