// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package regionfs

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/hopper-foundation/hopper/lib/anvil"
	"github.com/hopper-foundation/hopper/lib/nodeid"
)

func TestAttributes(t *testing.T) {
	geometry := anvil.DefaultGeometry

	root, ok := Attributes(nodeid.Root, geometry)
	if !ok || root.Mode != syscall.S_IFDIR|0o755 || root.Ino != 1 {
		t.Errorf("root = %+v, %v", root, ok)
	}

	region, ok := Attributes(nodeid.Encode(-3, 7), geometry)
	if !ok {
		t.Fatal("region id has no attributes")
	}
	if region.Mode != syscall.S_IFREG|0o644 {
		t.Errorf("region mode = %o", region.Mode)
	}
	if want := uint64(8192 + 1024*64*4096); region.Size != want {
		t.Errorf("region size = %d, want %d", region.Size, want)
	}
	if region.Ino != uint64(nodeid.Encode(-3, 7)) {
		t.Errorf("region ino = %#x", region.Ino)
	}

	small, _ := Attributes(nodeid.Encode(0, 0), anvil.Geometry{SectorsPerChunk: 1})
	if small.Size != 8192+1024*4096 {
		t.Errorf("one-sector region size = %d", small.Size)
	}

	scratch, ok := Attributes(nodeid.EncodeGeneric("session.lock"), geometry)
	if !ok || scratch.Size != 0 || scratch.Mode != syscall.S_IFREG|0o644 {
		t.Errorf("scratch = %+v, %v", scratch, ok)
	}

	for _, id := range []nodeid.ID{0, 2, 12345} {
		if _, ok := Attributes(id, geometry); ok {
			t.Errorf("Attributes(%d) reported a node", id)
		}
	}
}

func TestResolveRegion(t *testing.T) {
	extensions := []string{"mca", "mcc"}
	tests := []struct {
		name   string
		region anvil.RegionCoord
		ok     bool
	}{
		{"r.0.0.mca", anvil.RegionCoord{X: 0, Z: 0}, true},
		{"r.-1.5.mca", anvil.RegionCoord{X: -1, Z: 5}, true},
		{"r.12.-40.mcc", anvil.RegionCoord{X: 12, Z: -40}, true},
		{"r.0.0.mcr", anvil.RegionCoord{}, false},
		{"r.00.0.mca", anvil.RegionCoord{}, false},
		{"r.0.mca", anvil.RegionCoord{}, false},
		{"level.dat", anvil.RegionCoord{}, false},
		{"r.0.0.mca.tmp", anvil.RegionCoord{}, false},
		{"r.99999999.0.mca", anvil.RegionCoord{}, false},
	}
	for _, test := range tests {
		region, ok := resolveRegion(test.name, extensions)
		if ok != test.ok || region != test.region {
			t.Errorf("resolveRegion(%q) = %v, %v; want %v, %v", test.name, region, ok, test.region, test.ok)
		}
	}
}

func TestReadWindow(t *testing.T) {
	tests := []struct {
		off    int64
		length int
		size   uint64
		want   int
	}{
		{0, 4096, 100000, 4096},
		{99000, 4096, 100000, 1000},
		{100000, 4096, 100000, 0},
		{200000, 4096, 100000, 0},
		{-1, 4096, 100000, 0},
		{0, 0, 100000, 0},
	}
	for _, test := range tests {
		if got := readWindow(test.off, test.length, test.size); got != test.want {
			t.Errorf("readWindow(%d, %d, %d) = %d, want %d", test.off, test.length, test.size, got, test.want)
		}
	}
}

func TestToErrno(t *testing.T) {
	tests := []struct {
		err  error
		want syscall.Errno
	}{
		{nil, 0},
		{ErrNotFound, syscall.ENOENT},
		{fmt.Errorf("%q: %w", "level.dat", ErrNotFound), syscall.ENOENT},
		{errors.New("store exploded"), syscall.EIO},
	}
	for _, test := range tests {
		if got := toErrno(test.err); got != test.want {
			t.Errorf("toErrno(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}
