// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package worldgen

import (
	"log/slog"

	"github.com/hopper-foundation/hopper/lib/chunk"
)

// Flat builds the same column for every chunk: bedrock at the bottom of
// the world, dirt at Y=-3..-1 under a grass surface at Y=0, and a
// stone pillar at the chunk center so orientation is visible in game.
type Flat struct {
	format chunk.Format
	logger *slog.Logger
}

// NewFlat returns a flat generator.
func NewFlat(format chunk.Format, logger *slog.Logger) *Flat {
	return &Flat{format: format, logger: logger}
}

// GenerateChunk implements Generator.
func (g *Flat) GenerateChunk(x, z int32) ([]byte, error) {
	builder := chunk.NewBuilder(g.format, g.logger)
	g.column(builder)
	return builder.Encode(x, z)
}

func (g *Flat) column(builder *chunk.Builder) {
	builder.FillLayer(int(g.format.MinY()), "minecraft:bedrock")
	builder.FillRange(-3, 0, "minecraft:dirt")
	builder.FillLayer(0, "minecraft:grass_block")
	for y := 0; y < 10; y++ {
		builder.SetBlock(8, y, 8, "minecraft:stone")
	}
}
