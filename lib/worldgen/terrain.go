// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package worldgen

import (
	"encoding/binary"
	"log/slog"
	"math"

	"github.com/zeebo/blake3"

	"github.com/hopper-foundation/hopper/lib/chunk"
)

const (
	// SeaLevel is the Y of the highest water block.
	SeaLevel = 62

	baseHeight = 64

	// dirtDepth is the number of dirt (or sand) blocks under the
	// surface block.
	dirtDepth = 3
)

// octave is one layer of value noise: lattice points every cellSize
// blocks, each contributing up to amplitude blocks of height.
type octave struct {
	cellSize  float64
	amplitude float64
}

var terrainOctaves = []octave{
	{cellSize: 128, amplitude: 14},
	{cellSize: 32, amplitude: 6},
	{cellSize: 8, amplitude: 1.5},
}

// terrainDomainKey separates terrain seed derivation from any other
// keyed hash. ASCII "hopper.worldgen.terrain", zero-padded.
var terrainDomainKey = [32]byte{
	'h', 'o', 'p', 'p', 'e', 'r', '.', 'w', 'o', 'r', 'l', 'd', 'g', 'e', 'n', '.',
	't', 'e', 'r', 'r', 'a', 'i', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Terrain builds rolling hills from smoothed value noise. Columns below
// sea level are flooded and get a sand surface; the rest get grass over
// dirt over stone. There are no caves, ores, or biomes.
type Terrain struct {
	format chunk.Format
	logger *slog.Logger
	key    uint64
}

// NewTerrain returns a terrain generator. Every seed value, including
// zero, yields a distinct world.
func NewTerrain(seed int64, format chunk.Format, logger *slog.Logger) *Terrain {
	return &Terrain{format: format, logger: logger, key: deriveKey(seed)}
}

func deriveKey(seed int64) uint64 {
	hasher, err := blake3.NewKeyed(terrainDomainKey[:])
	if err != nil {
		panic("worldgen: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var encoded [8]byte
	binary.LittleEndian.PutUint64(encoded[:], uint64(seed))
	hasher.Write(encoded[:])
	return binary.LittleEndian.Uint64(hasher.Sum(nil)[:8])
}

// GenerateChunk implements Generator.
func (g *Terrain) GenerateChunk(x, z int32) ([]byte, error) {
	minY := int(g.format.MinY())
	maxY := int(g.format.MaxY())

	var heights [chunk.SectionWidth][chunk.SectionWidth]int
	lowest := math.MaxInt
	for localZ := range chunk.SectionWidth {
		for localX := range chunk.SectionWidth {
			worldX := int64(x)*chunk.SectionWidth + int64(localX)
			worldZ := int64(z)*chunk.SectionWidth + int64(localZ)
			height := min(max(g.Height(worldX, worldZ), minY+dirtDepth+2), maxY-1)
			heights[localX][localZ] = height
			lowest = min(lowest, height)
		}
	}

	builder := chunk.NewBuilder(g.format, g.logger)
	builder.FillLayer(minY, "minecraft:bedrock")
	solidTop := lowest - dirtDepth
	builder.FillRange(minY+1, solidTop, "minecraft:stone")

	for localZ := range chunk.SectionWidth {
		for localX := range chunk.SectionWidth {
			surface := heights[localX][localZ]
			underwater := surface < SeaLevel

			for y := solidTop; y < surface-dirtDepth; y++ {
				builder.SetBlock(localX, y, localZ, "minecraft:stone")
			}
			soil, top := "minecraft:dirt", "minecraft:grass_block"
			if underwater {
				soil, top = "minecraft:sand", "minecraft:sand"
			}
			for y := surface - dirtDepth; y < surface; y++ {
				builder.SetBlock(localX, y, localZ, soil)
			}
			builder.SetBlock(localX, surface, localZ, top)
			for y := surface + 1; y <= SeaLevel && y < maxY; y++ {
				builder.SetBlock(localX, y, localZ, "minecraft:water")
			}
		}
	}
	return builder.Encode(x, z)
}

// Height returns the surface Y of the column at world block
// coordinates (x, z), before clamping to the world's vertical extent.
func (g *Terrain) Height(x, z int64) int {
	total := float64(baseHeight)
	for i, layer := range terrainOctaves {
		total += layer.amplitude * g.valueNoise(uint64(i), float64(x)/layer.cellSize, float64(z)/layer.cellSize)
	}
	return int(math.Floor(total))
}

// valueNoise interpolates lattice values around (x, z) with a
// smoothstep curve. The result is in [-1, 1].
func (g *Terrain) valueNoise(layer uint64, x, z float64) float64 {
	cellX, cellZ := math.Floor(x), math.Floor(z)
	fracX, fracZ := smoothstep(x-cellX), smoothstep(z-cellZ)
	ix, iz := int64(cellX), int64(cellZ)

	v00 := g.lattice(layer, ix, iz)
	v10 := g.lattice(layer, ix+1, iz)
	v01 := g.lattice(layer, ix, iz+1)
	v11 := g.lattice(layer, ix+1, iz+1)

	near := v00 + (v10-v00)*fracX
	far := v01 + (v11-v01)*fracX
	return near + (far-near)*fracZ
}

// lattice returns a value in [-1, 1) for one lattice point.
func (g *Terrain) lattice(layer uint64, ix, iz int64) float64 {
	h := mix64(g.key ^ layer*0x9E3779B97F4A7C15)
	h = mix64(h ^ uint64(ix)*0xBF58476D1CE4E5B9)
	h = mix64(h ^ uint64(iz)*0x94D049BB133111EB)
	return float64(h>>11)/(1<<53)*2 - 1
}

// mix64 is the splitmix64 finalizer.
func mix64(h uint64) uint64 {
	h ^= h >> 30
	h *= 0xBF58476D1CE4E5B9
	h ^= h >> 27
	h *= 0x94D049BB133111EB
	h ^= h >> 31
	return h
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}
