// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package nodeid maps region coordinates and auxiliary file names to
// the 64-bit node identifiers handed to the kernel.
//
// Identifiers are self-describing: a region node carries its own
// coordinates, so decoding is the inverse of encoding and no inode
// table is kept anywhere. The top two bits partition the space:
//
//	bit 63      region flag
//	bit 62      generic flag (hashed auxiliary names)
//	bits 31..61 region x, biased by 2^30
//	bits 0..30  region z, biased by 2^30
//
// Root is reserved for the mount root and is never produced by either
// encoder, since every encoded identifier has bit 62 or bit 63 set.
package nodeid

import "hash/fnv"

// ID is a kernel-visible node identifier.
type ID uint64

const (
	// Root is the identifier of the mount root directory. FUSE fixes
	// the root at 1.
	Root ID = 1

	// RegionFlag marks identifiers that carry region coordinates.
	RegionFlag ID = 1 << 63

	// GenericFlag marks identifiers derived from a name hash.
	GenericFlag ID = 1 << 62

	fieldBits = 31
	fieldMask = 1<<fieldBits - 1
	bias      = 1 << (fieldBits - 1)

	// MinCoord and MaxCoord bound the region coordinates that round
	// trip through Encode and Decode. Minecraft's world border sits
	// at about 58,600 regions, far inside this range.
	MinCoord = -bias
	MaxCoord = bias - 1

	genericMask = uint64(GenericFlag) - 1
)

// InRange reports whether (x, z) can be encoded without loss.
func InRange(x, z int32) bool {
	return x >= MinCoord && x <= MaxCoord && z >= MinCoord && z <= MaxCoord
}

// Encode returns the region node identifier for region (x, z).
// Coordinates outside [MinCoord, MaxCoord] wrap and will not decode
// back to the same values; callers validate with InRange first.
func Encode(x, z int32) ID {
	xField := uint64(int64(x)+bias) & fieldMask
	zField := uint64(int64(z)+bias) & fieldMask
	return RegionFlag | ID(xField<<fieldBits) | ID(zField)
}

// Decode returns the region coordinates carried by id. ok is false
// when id is not a region identifier.
func Decode(id ID) (x, z int32, ok bool) {
	if !IsRegion(id) {
		return 0, 0, false
	}
	xField := int64((uint64(id) >> fieldBits) & fieldMask)
	zField := int64(uint64(id) & fieldMask)
	return int32(xField - bias), int32(zField - bias), true
}

// EncodeGeneric returns a stable identifier for an arbitrary file
// name: the 64-bit FNV-1a hash of name, masked below the flag bits,
// with GenericFlag set. The same name always yields the same id.
func EncodeGeneric(name string) ID {
	hasher := fnv.New64a()
	hasher.Write([]byte(name))
	return GenericFlag | ID(hasher.Sum64()&genericMask)
}

// IsRegion reports whether id carries region coordinates.
func IsRegion(id ID) bool {
	return id&RegionFlag != 0
}

// IsGeneric reports whether id was produced by EncodeGeneric.
func IsGeneric(id ID) bool {
	return id&RegionFlag == 0 && id&GenericFlag != 0
}
