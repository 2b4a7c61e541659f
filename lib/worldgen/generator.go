// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package worldgen produces the NBT payload of chunks that have never
// been persisted. Generators are pure functions of their configuration
// and the chunk coordinates: the same inputs always produce the same
// bytes, which is what allows the chunk cache to drop generated chunks
// and regenerate them later.
package worldgen

import (
	"fmt"
	"log/slog"

	"github.com/hopper-foundation/hopper/lib/chunk"
)

// Generator synthesizes the uncompressed NBT payload for the chunk at
// world chunk coordinates (x, z). Implementations must be safe for
// concurrent use and deterministic for a fixed configuration.
type Generator interface {
	GenerateChunk(x, z int32) ([]byte, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(x, z int32) ([]byte, error)

// GenerateChunk calls f(x, z).
func (f GeneratorFunc) GenerateChunk(x, z int32) ([]byte, error) {
	return f(x, z)
}

// Generator names accepted by New.
const (
	NameFlat    = "flat"
	NameTerrain = "terrain"
)

// Config selects and parameterizes a generator.
type Config struct {
	// Name is NameFlat or NameTerrain.
	Name string

	// Seed drives the terrain generator. The flat generator ignores it.
	Seed int64

	// Format is passed to every chunk builder.
	Format chunk.Format

	// Logger receives production-mode packing reports. Nil discards.
	Logger *slog.Logger
}

// New returns the generator named by config.Name.
func New(config Config) (Generator, error) {
	if err := config.Format.Validate(); err != nil {
		return nil, fmt.Errorf("chunk format: %w", err)
	}
	switch config.Name {
	case NameFlat:
		return NewFlat(config.Format, config.Logger), nil
	case NameTerrain:
		return NewTerrain(config.Seed, config.Format, config.Logger), nil
	default:
		return nil, fmt.Errorf("unknown generator %q (want %q or %q)", config.Name, NameFlat, NameTerrain)
	}
}
