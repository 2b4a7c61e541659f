// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package anvil

import "fmt"

const (
	// SectorSize is the allocation unit of a region file.
	SectorSize = 4096

	// LocationTableSize is the size of the location table that opens
	// every region file.
	LocationTableSize = 4096

	// TimestampTableSize is the size of the timestamp table that
	// follows the location table.
	TimestampTableSize = 4096

	// HeaderSize covers both tables. Chunk slots start here.
	HeaderSize = LocationTableSize + TimestampTableSize

	// DefaultSectorsPerChunk gives each chunk a 256 KiB slot and each
	// region file a fixed size of 256 MiB plus the header.
	DefaultSectorsPerChunk = 64

	// locationEntrySize is 3 bytes of sector offset plus 1 byte of
	// sector count.
	locationEntrySize = 4

	// headerSectors is the number of sectors occupied by the header.
	headerSectors = HeaderSize / SectorSize

	// maxSectorOffset is the largest value a 3-byte location entry
	// can hold.
	maxSectorOffset = 1<<24 - 1
)

// Geometry fixes the slot size of the virtual region files. All
// regions served by one mount share a geometry.
type Geometry struct {
	// SectorsPerChunk is the number of 4 KiB sectors reserved for
	// each chunk slot. Zero means DefaultSectorsPerChunk.
	SectorsPerChunk int

	// SlotOffsets makes location entry i carry the sector where slot i
	// starts. When false entry i carries sector 2+i.
	SlotOffsets bool
}

// DefaultGeometry is the geometry used when none is configured.
var DefaultGeometry = Geometry{SectorsPerChunk: DefaultSectorsPerChunk}

// Validate reports whether the geometry can be expressed in the
// location table.
func (g Geometry) Validate() error {
	sectors := g.sectorsPerChunk()
	if sectors < 1 {
		return fmt.Errorf("sectors per chunk must be positive, got %d", sectors)
	}
	if !g.SlotOffsets {
		return nil
	}
	last := headerSectors + (ChunksPerRegion-1)*sectors
	if last > maxSectorOffset {
		return fmt.Errorf("sectors per chunk %d puts the last slot at sector %d, beyond the 24-bit location table limit",
			sectors, last)
	}
	return nil
}

func (g Geometry) sectorsPerChunk() int {
	if g.SectorsPerChunk == 0 {
		return DefaultSectorsPerChunk
	}
	return g.SectorsPerChunk
}

// SlotSize is the number of bytes reserved for one chunk.
func (g Geometry) SlotSize() uint64 {
	return uint64(g.sectorsPerChunk()) * SectorSize
}

// FileSize is the apparent size of every region file.
func (g Geometry) FileSize() uint64 {
	return HeaderSize + ChunksPerRegion*g.SlotSize()
}

// ChunkFileOffset returns the file offset of the slot holding the
// chunk at region-local coordinates (localX, localZ). Only the low
// five bits of each coordinate are used, so world coordinates may be
// passed directly.
func (g Geometry) ChunkFileOffset(localX, localZ int32) uint64 {
	index := uint64(localX&(RegionWidth-1)) + uint64(localZ&(RegionWidth-1))*RegionWidth
	return HeaderSize + index*g.SlotSize()
}

// SlotIndex returns the slot containing offset. ok is false for
// offsets inside the header or past the last slot.
func (g Geometry) SlotIndex(offset uint64) (index int, ok bool) {
	if offset < HeaderSize {
		return 0, false
	}
	slot := (offset - HeaderSize) / g.SlotSize()
	if slot >= ChunksPerRegion {
		return 0, false
	}
	return int(slot), true
}

// ChunkCoordsFromOffset is the inverse of ChunkFileOffset: any offset
// inside a slot maps to that slot's region-local coordinates.
func (g Geometry) ChunkCoordsFromOffset(offset uint64) (localX, localZ int32, ok bool) {
	index, ok := g.SlotIndex(offset)
	if !ok {
		return 0, 0, false
	}
	return int32(index % RegionWidth), int32(index / RegionWidth), true
}

// LocationEntry returns the location table entry for slot index: a
// 3-byte big-endian sector offset followed by a sector count of 1. The
// offset is 2+index unless SlotOffsets is set.
func (g Geometry) LocationEntry(index int) [locationEntrySize]byte {
	sector := uint32(headerSectors + index)
	if g.SlotOffsets {
		sector = uint32(headerSectors + index*g.sectorsPerChunk())
	}
	return [locationEntrySize]byte{
		byte(sector >> 16),
		byte(sector >> 8),
		byte(sector),
		1,
	}
}

// ReadHeader copies the header bytes covering [offset, offset+len(dest))
// into dest. Bytes of dest that fall outside the header are left
// untouched. It returns the number of header bytes written.
func (g Geometry) ReadHeader(dest []byte, offset uint64) int {
	if offset >= HeaderSize || len(dest) == 0 {
		return 0
	}
	end := offset + uint64(len(dest))
	if end > HeaderSize {
		end = HeaderSize
	}

	// Location table. Entries are produced only for the bytes asked
	// for; the timestamp table is all zero.
	for position := offset; position < end && position < LocationTableSize; {
		index := int(position / locationEntrySize)
		entry := g.LocationEntry(index)
		within := position % locationEntrySize
		for ; within < locationEntrySize && position < end; within++ {
			dest[position-offset] = entry[within]
			position++
		}
	}
	for position := max(offset, LocationTableSize); position < end; position++ {
		dest[position-offset] = 0
	}
	return int(end - offset)
}

// Header returns the full 8192-byte header.
func (g Geometry) Header() []byte {
	header := make([]byte, HeaderSize)
	g.ReadHeader(header, 0)
	return header
}
