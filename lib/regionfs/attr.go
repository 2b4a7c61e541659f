// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package regionfs

import (
	"errors"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hopper-foundation/hopper/lib/anvil"
	"github.com/hopper-foundation/hopper/lib/nodeid"
)

const (
	rootMode   = syscall.S_IFDIR | 0o755
	regionMode = syscall.S_IFREG | 0o644

	// blockSize is reported as the preferred I/O size: one sector.
	blockSize = anvil.SectorSize
)

// ErrNotFound reports a name or node identifier that no file answers
// to. It becomes ENOENT at the kernel boundary.
var ErrNotFound = errors.New("no such file")

// toErrno maps an error to the status returned to the kernel.
func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound):
		return syscall.ENOENT
	default:
		return syscall.EIO
	}
}

// Attributes returns the attributes of the node with the given id
// under geometry. ok is false for identifiers that name nothing.
// Ownership and timestamps are left for the caller to fill.
func Attributes(id nodeid.ID, geometry anvil.Geometry) (attr fuse.Attr, ok bool) {
	switch {
	case id == nodeid.Root:
		attr.Mode = rootMode
		attr.Nlink = 2
	case nodeid.IsRegion(id):
		attr.Mode = regionMode
		attr.Nlink = 1
		attr.Size = geometry.FileSize()
		// The file is sparse: only the header and the chunk envelopes
		// hold data, so no blocks are reported as allocated.
	case nodeid.IsGeneric(id):
		attr.Mode = regionMode
		attr.Nlink = 1
	default:
		return fuse.Attr{}, false
	}
	attr.Ino = uint64(id)
	attr.Blksize = blockSize
	return attr, true
}

// resolveRegion maps a directory entry name to a region. Only
// canonical names with a served extension resolve.
func resolveRegion(name string, extensions []string) (anvil.RegionCoord, bool) {
	region, extension, ok := anvil.ParseRegionName(name)
	if !ok || !nodeid.InRange(region.X, region.Z) {
		return anvil.RegionCoord{}, false
	}
	for _, served := range extensions {
		if extension == served {
			return region, true
		}
	}
	return anvil.RegionCoord{}, false
}

// readWindow clamps a read of length bytes at off to a file of size
// bytes, returning the number of bytes to serve.
func readWindow(off int64, length int, size uint64) int {
	if off < 0 || uint64(off) >= size || length <= 0 {
		return 0
	}
	return int(min(uint64(length), size-uint64(off)))
}
