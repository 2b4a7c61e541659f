// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package anvil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RegionWidth is the number of chunks along each side of a region.
const RegionWidth = 32

// ChunksPerRegion is the number of chunk slots in one region file.
const ChunksPerRegion = RegionWidth * RegionWidth

// Region coordinates are limited so that every chunk inside the region
// has int32 world coordinates.
const (
	MinRegionCoord = math.MinInt32 >> 5
	MaxRegionCoord = math.MaxInt32 >> 5
)

// RegionCoord identifies one region file.
type RegionCoord struct {
	X int32
	Z int32
}

// ChunkCoord is an absolute world chunk position.
type ChunkCoord struct {
	X int32
	Z int32
}

// Valid reports whether every chunk of the region has representable
// world coordinates.
func (r RegionCoord) Valid() bool {
	return r.X >= MinRegionCoord && r.X <= MaxRegionCoord &&
		r.Z >= MinRegionCoord && r.Z <= MaxRegionCoord
}

// Chunk returns the world coordinates of the chunk stored in slot
// index (0..1023) of this region. Slots are laid out x-major within a
// row: index = localX + localZ*32.
func (r RegionCoord) Chunk(index int) ChunkCoord {
	localX := int32(index % RegionWidth)
	localZ := int32(index / RegionWidth)
	return ChunkCoord{
		X: r.X*RegionWidth + localX,
		Z: r.Z*RegionWidth + localZ,
	}
}

// FileName returns the canonical file name for this region, for
// example "r.-1.3.mca".
func (r RegionCoord) FileName(extension string) string {
	return "r." + strconv.FormatInt(int64(r.X), 10) + "." +
		strconv.FormatInt(int64(r.Z), 10) + "." + extension
}

func (r RegionCoord) String() string {
	return fmt.Sprintf("region(%d, %d)", r.X, r.Z)
}

// Region returns the region containing this chunk. Negative chunk
// coordinates round toward negative infinity.
func (c ChunkCoord) Region() RegionCoord {
	return RegionCoord{X: c.X >> 5, Z: c.Z >> 5}
}

// Index returns the slot index of this chunk within its region.
func (c ChunkCoord) Index() int {
	return int(c.X&(RegionWidth-1)) + int(c.Z&(RegionWidth-1))*RegionWidth
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("chunk(%d, %d)", c.X, c.Z)
}

// ParseRegionName parses a region file name of the form
// "r.<x>.<z>.<ext>". Only canonical decimal spellings are accepted
// ("r.05.0.mca" and "r.+5.0.mca" are rejected) so that exactly one
// name maps to each region. The extension is returned for the caller
// to check against the extensions it serves.
func ParseRegionName(name string) (RegionCoord, string, bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 4 || parts[0] != "r" || parts[3] == "" {
		return RegionCoord{}, "", false
	}

	x, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return RegionCoord{}, "", false
	}
	z, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return RegionCoord{}, "", false
	}

	region := RegionCoord{X: int32(x), Z: int32(z)}
	if !region.Valid() || region.FileName(parts[3]) != name {
		return RegionCoord{}, "", false
	}
	return region, parts[3], true
}
