// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package chunkstore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/hopper-foundation/hopper/lib/anvil"
	"github.com/hopper-foundation/hopper/lib/clock"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testManifest() Manifest {
	return Manifest{
		Generator:       "flat",
		Seed:            7,
		DataVersion:     4671,
		Status:          "minecraft:features",
		MinSection:      -4,
		SectionCount:    24,
		Biome:           "minecraft:plains",
		SectorsPerChunk: 64,
	}
}

func openTestSQLite(t *testing.T, path string, manifest Manifest, allowChange bool) (*SQLite, error) {
	t.Helper()
	store, err := OpenSQLite(context.Background(), SQLiteConfig{
		Path:                path,
		PoolSize:            2,
		Manifest:            manifest,
		AllowManifestChange: allowChange,
		Clock:               clock.Fake(epoch),
	})
	if err == nil {
		t.Cleanup(func() { store.Close() })
	}
	return store, err
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		store, err := openTestSQLite(t, filepath.Join(t.TempDir(), "chunks.db"), testManifest(), false)
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		fn(t, store)
	})
}

func TestLoadMissing(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		blob, found, err := store.Load(context.Background(), 3, -9)
		if err != nil || found || blob != nil {
			t.Errorf("Load(missing) = %v, %v, %v; want nil, false, nil", blob, found, err)
		}
	})
}

func TestSaveLoadUpsert(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		first := []byte{0, 0, 0, 2, 3, 0xAA}
		if err := store.Save(ctx, -1, 40, first); err != nil {
			t.Fatalf("Save: %v", err)
		}
		// The store must not alias the caller's buffer.
		first[5] = 0xFF

		blob, found, err := store.Load(ctx, -1, 40)
		if err != nil || !found {
			t.Fatalf("Load = found %v, err %v", found, err)
		}
		if !bytes.Equal(blob, []byte{0, 0, 0, 2, 3, 0xAA}) {
			t.Errorf("Load = %x", blob)
		}

		replacement := []byte{0, 0, 0, 1, 3}
		if err := store.Save(ctx, -1, 40, replacement); err != nil {
			t.Fatalf("Save (replace): %v", err)
		}
		blob, _, _ = store.Load(ctx, -1, 40)
		if !bytes.Equal(blob, replacement) {
			t.Errorf("Load after upsert = %x, want %x", blob, replacement)
		}

		size, err := store.TotalSize(ctx)
		if err != nil {
			t.Fatalf("TotalSize: %v", err)
		}
		if size != uint64(len(replacement)) {
			t.Errorf("TotalSize = %d, want %d", size, len(replacement))
		}
	})
}

func TestTotalSizeSums(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if size, err := store.TotalSize(ctx); err != nil || size != 0 {
			t.Fatalf("empty TotalSize = %d, %v", size, err)
		}
		for i := range int32(10) {
			if err := store.Save(ctx, i, i*3, make([]byte, 100+i)); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}
		size, err := store.TotalSize(ctx)
		if err != nil {
			t.Fatalf("TotalSize: %v", err)
		}
		if size != 1045 {
			t.Errorf("TotalSize = %d, want 1045", size)
		}
	})
}

func TestListRegions(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for _, coord := range []anvil.ChunkCoord{
			{X: 0, Z: 0}, {X: 31, Z: 31}, {X: -1, Z: 0}, {X: 32, Z: -33}, {X: -32, Z: -1},
		} {
			if err := store.Save(ctx, coord.X, coord.Z, []byte{1}); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}
		regions, err := store.(RegionLister).ListRegions(ctx)
		if err != nil {
			t.Fatalf("ListRegions: %v", err)
		}
		want := []anvil.RegionCoord{{X: -1, Z: -1}, {X: -1, Z: 0}, {X: 0, Z: 0}, {X: 1, Z: -2}}
		if !slices.Equal(regions, want) {
			t.Errorf("ListRegions = %v, want %v", regions, want)
		}
	})
}

func TestConcurrentSaves(t *testing.T) {
	backends(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		var waitGroup sync.WaitGroup
		for i := range int32(16) {
			waitGroup.Add(1)
			go func() {
				defer waitGroup.Done()
				if err := store.Save(ctx, i, 0, []byte{byte(i)}); err != nil {
					t.Errorf("Save(%d): %v", i, err)
				}
			}()
		}
		waitGroup.Wait()
		for i := range int32(16) {
			blob, found, err := store.Load(ctx, i, 0)
			if err != nil || !found || blob[0] != byte(i) {
				t.Errorf("Load(%d) = %v, %v, %v", i, blob, found, err)
			}
		}
	})
}

func TestSQLitePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	store, err := openTestSQLite(t, path, testManifest(), false)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := store.Save(context.Background(), 5, 6, []byte("envelope")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := openTestSQLite(t, path, testManifest(), false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	blob, found, err := reopened.Load(context.Background(), 5, 6)
	if err != nil || !found || string(blob) != "envelope" {
		t.Errorf("Load after reopen = %q, %v, %v", blob, found, err)
	}
}

func TestSQLiteManifestMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	store, err := openTestSQLite(t, path, testManifest(), false)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	store.Close()

	changed := testManifest()
	changed.Generator = "terrain"
	changed.Seed = 8

	_, err = openTestSQLite(t, path, changed, false)
	if !errors.Is(err, ErrManifestMismatch) {
		t.Fatalf("open with a different manifest: err = %v, want ErrManifestMismatch", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("manifest mismatch must not be reported as unavailability")
	}
	for _, fragment := range []string{"generator: flat -> terrain", "seed: 7 -> 8"} {
		if !bytes.Contains([]byte(err.Error()), []byte(fragment)) {
			t.Errorf("error lacks %q: %v", fragment, err)
		}
	}

	accepted, err := openTestSQLite(t, path, changed, true)
	if err != nil {
		t.Fatalf("open with AllowManifestChange: %v", err)
	}
	accepted.Close()

	// The new manifest is now the recorded one.
	if _, err := openTestSQLite(t, path, changed, false); err != nil {
		t.Errorf("reopen with the accepted manifest: %v", err)
	}
}

func TestSQLiteRequiresClock(t *testing.T) {
	_, err := OpenSQLite(context.Background(), SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db")})
	if err == nil {
		t.Fatal("OpenSQLite without a clock succeeded")
	}
}

func TestSQLiteUnreachablePath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), SQLiteConfig{
		Path:     filepath.Join(t.TempDir(), "missing", "dir", "chunks.db"),
		Manifest: testManifest(),
		Clock:    clock.Fake(epoch),
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
