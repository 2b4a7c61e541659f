// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"log/slog"
)

const (
	// SectionWidth is the horizontal size of a chunk and of each of
	// its sections.
	SectionWidth = 16

	// SectionHeight is the vertical size of a section.
	SectionHeight = 16

	// SectionVolume is the number of voxels in one section.
	SectionVolume = SectionWidth * SectionWidth * SectionHeight

	// Air is the block every unset voxel resolves to.
	Air = "minecraft:air"
)

type voxel struct {
	x, z uint8
	y    int32
}

// Builder accumulates the voxels of one chunk. Whole horizontal layers
// are stored as a single name; individual voxels are stored sparsely
// and take precedence over the layer at their Y.
//
// A Builder is not safe for concurrent use. Generators create one per
// chunk.
type Builder struct {
	format    Format
	logger    *slog.Logger
	layers    map[int32]string
	overrides map[voxel]string
}

// NewBuilder returns an empty builder for the given format. A nil
// logger discards the production-mode invariant reports.
func NewBuilder(format Format, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{
		format:    format,
		logger:    logger,
		layers:    make(map[int32]string),
		overrides: make(map[voxel]string),
	}
}

// Format returns the format the builder was created with.
func (b *Builder) Format() Format {
	return b.format
}

// SetBlock sets the voxel at chunk-local (x, z) and world y. Positions
// outside [0,16) horizontally are ignored.
func (b *Builder) SetBlock(x, y, z int, name string) {
	if x < 0 || x >= SectionWidth || z < 0 || z >= SectionWidth {
		return
	}
	b.overrides[voxel{x: uint8(x), z: uint8(z), y: int32(y)}] = name
}

// FillLayer sets every voxel at world y. Voxels set at y before the
// fill are replaced by it; voxels set afterwards override it.
func (b *Builder) FillLayer(y int, name string) {
	b.layers[int32(y)] = name
	for key := range b.overrides {
		if key.y == int32(y) {
			delete(b.overrides, key)
		}
	}
}

// FillRange fills every layer in [from, to).
func (b *Builder) FillRange(from, to int, name string) {
	for y := from; y < to; y++ {
		b.FillLayer(y, name)
	}
}

// Block returns the block at chunk-local (x, z) and world y.
func (b *Builder) Block(x, y, z int) string {
	if name, ok := b.overrides[voxel{x: uint8(x), z: uint8(z), y: int32(y)}]; ok {
		return name
	}
	if name, ok := b.layers[int32(y)]; ok {
		return name
	}
	return Air
}

// Build assembles the chunk at world chunk coordinates (x, z).
func (b *Builder) Build(x, z int32) *Root {
	root := &Root{
		DataVersion: b.format.DataVersion,
		XPos:        x,
		YPos:        int32(b.format.MinSection),
		ZPos:        z,
		Status:      b.format.Status,
		Sections:    make([]Section, 0, b.format.SectionCount),
	}
	for i := range b.format.SectionCount {
		sectionY := int(b.format.MinSection) + i
		root.Sections = append(root.Sections, b.buildSection(x, z, int8(sectionY)))
	}
	return root
}

// Encode builds the chunk and serializes it to NBT.
func (b *Builder) Encode(x, z int32) ([]byte, error) {
	return Marshal(b.Build(x, z))
}

func (b *Builder) buildSection(chunkX, chunkZ int32, sectionY int8) Section {
	baseY := int32(sectionY) * SectionHeight
	section := Section{
		Y:      sectionY,
		Biomes: &Biomes{Palette: []string{b.format.Biome}},
	}
	if !b.occupied(baseY) {
		return section
	}

	var (
		palette []string
		lookup  = make(map[string]uint16)
		indices = make([]uint16, 0, SectionVolume)
	)
	for y := range SectionHeight {
		for z := range SectionWidth {
			for x := range SectionWidth {
				name := b.Block(x, int(baseY)+y, z)
				index, ok := lookup[name]
				if !ok {
					index = uint16(len(palette))
					lookup[name] = index
					palette = append(palette, name)
				}
				indices = append(indices, index)
			}
		}
	}

	states := &BlockStates{Palette: make([]BlockState, len(palette))}
	for i, name := range palette {
		states.Palette[i] = BlockState{Name: name}
	}
	section.BlockStates = states
	if len(palette) == 1 {
		return section
	}

	width := BitsPerEntry(len(palette))
	words, violations := Pack(indices, width, b.format.Strict)
	if violations > 0 {
		b.logger.Error("palette index overflow replaced with first palette entry",
			"chunk_x", chunkX,
			"chunk_z", chunkZ,
			"section", sectionY,
			"width", width,
			"violations", violations,
		)
	}
	states.Data = words
	return section
}

// occupied reports whether any layer or override falls inside the
// section starting at baseY.
func (b *Builder) occupied(baseY int32) bool {
	for y := baseY; y < baseY+SectionHeight; y++ {
		if _, ok := b.layers[y]; ok {
			return true
		}
	}
	for key := range b.overrides {
		if key.y >= baseY && key.y < baseY+SectionHeight {
			return true
		}
	}
	return false
}
