// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"fmt"
	"math"
)

// Format fixes the parts of a chunk that do not depend on its content:
// the data version stamped into every chunk, the status marker, the
// vertical extent, and the biome. Two builders with the same Format and
// the same voxels produce byte-identical chunks.
type Format struct {
	// DataVersion is the game data version written to every chunk.
	DataVersion int32

	// Status is the generation status marker, for example
	// "minecraft:features". The server finishes any generation steps
	// after this one when it loads the chunk.
	Status string

	// MinSection is the Y index of the lowest section. Section i
	// covers world Y [16*i, 16*i+16).
	MinSection int8

	// SectionCount is the number of sections from MinSection upward.
	SectionCount int

	// Biome fills every section's biome palette.
	Biome string

	// Strict turns packing invariant violations into panics. Enabled
	// in development; production replaces the offending index with
	// palette entry 0 and logs.
	Strict bool
}

// DefaultFormat matches a 1.21 overworld: Y -64..319, data version
// 4671, status "minecraft:features", plains everywhere.
var DefaultFormat = Format{
	DataVersion:  4671,
	Status:       "minecraft:features",
	MinSection:   -4,
	SectionCount: 24,
	Biome:        "minecraft:plains",
}

// Validate checks that the vertical extent fits in section indices and
// that the names are set.
func (f Format) Validate() error {
	if f.SectionCount < 1 {
		return fmt.Errorf("section count must be positive, got %d", f.SectionCount)
	}
	if int(f.MinSection)+f.SectionCount-1 > math.MaxInt8 {
		return fmt.Errorf("sections %d..%d exceed the section index range",
			f.MinSection, int(f.MinSection)+f.SectionCount-1)
	}
	if f.Status == "" {
		return fmt.Errorf("status is required")
	}
	if f.Biome == "" {
		return fmt.Errorf("biome is required")
	}
	return nil
}

// MinY is the lowest world Y covered by the format.
func (f Format) MinY() int32 {
	return int32(f.MinSection) * SectionHeight
}

// MaxY is one past the highest world Y covered by the format.
func (f Format) MaxY() int32 {
	return f.MinY() + int32(f.SectionCount)*SectionHeight
}
