// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package worldgen

import (
	"bytes"
	"testing"

	"github.com/hopper-foundation/hopper/lib/chunk"
)

func TestNewSelectsByName(t *testing.T) {
	flat, err := New(Config{Name: NameFlat, Format: chunk.DefaultFormat})
	if err != nil {
		t.Fatalf("New(flat): %v", err)
	}
	if _, ok := flat.(*Flat); !ok {
		t.Errorf("New(flat) returned %T", flat)
	}

	terrain, err := New(Config{Name: NameTerrain, Seed: 7, Format: chunk.DefaultFormat})
	if err != nil {
		t.Fatalf("New(terrain): %v", err)
	}
	if _, ok := terrain.(*Terrain); !ok {
		t.Errorf("New(terrain) returned %T", terrain)
	}

	if _, err := New(Config{Name: "vanilla", Format: chunk.DefaultFormat}); err == nil {
		t.Error("unknown generator name accepted")
	}
	if _, err := New(Config{Name: NameFlat}); err == nil {
		t.Error("zero format accepted")
	}
}

func TestFlatColumn(t *testing.T) {
	payload, err := NewFlat(chunk.DefaultFormat, nil).GenerateChunk(-3, 12)
	if err != nil {
		t.Fatalf("GenerateChunk: %v", err)
	}
	root, err := chunk.Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if root.XPos != -3 || root.ZPos != 12 {
		t.Errorf("position = (%d, %d), want (-3, 12)", root.XPos, root.ZPos)
	}

	names := func(y int8) []string {
		for _, section := range root.Sections {
			if section.Y != y || section.BlockStates == nil {
				continue
			}
			var result []string
			for _, state := range section.BlockStates.Palette {
				result = append(result, state.Name)
			}
			return result
		}
		return nil
	}

	if got := names(-4); len(got) != 2 || got[0] != "minecraft:bedrock" {
		t.Errorf("section -4 palette = %v, want bedrock then air", got)
	}
	if got := names(-1); len(got) != 2 || got[0] != chunk.Air || got[1] != "minecraft:dirt" {
		t.Errorf("section -1 palette = %v, want air then dirt", got)
	}
	if got := names(0); len(got) != 3 {
		t.Errorf("section 0 palette = %v, want grass, air, and stone", got)
	}
	if got := names(5); got != nil {
		t.Errorf("section 5 palette = %v, want empty section", got)
	}
}

func TestFlatDirtReachesSurface(t *testing.T) {
	flat := NewFlat(chunk.DefaultFormat, nil)
	builder := chunk.NewBuilder(chunk.DefaultFormat, nil)
	flat.column(builder)

	tests := []struct {
		y    int
		want string
	}{
		{-64, "minecraft:bedrock"},
		{-4, chunk.Air},
		{-3, "minecraft:dirt"},
		{-2, "minecraft:dirt"},
		{-1, "minecraft:dirt"},
		{0, "minecraft:grass_block"},
		{1, chunk.Air},
	}
	for _, test := range tests {
		if got := builder.Block(0, test.y, 0); got != test.want {
			t.Errorf("Block(0, %d, 0) = %q, want %q", test.y, got, test.want)
		}
	}
}

func TestGeneratorsDeterministic(t *testing.T) {
	generators := map[string]Generator{
		"flat":    NewFlat(chunk.DefaultFormat, nil),
		"terrain": NewTerrain(42, chunk.DefaultFormat, nil),
	}
	for name, generator := range generators {
		t.Run(name, func(t *testing.T) {
			first, err := generator.GenerateChunk(10, -20)
			if err != nil {
				t.Fatalf("GenerateChunk: %v", err)
			}
			second, err := generator.GenerateChunk(10, -20)
			if err != nil {
				t.Fatalf("GenerateChunk: %v", err)
			}
			if !bytes.Equal(first, second) {
				t.Error("two generations of the same chunk differ")
			}
		})
	}
}

func TestTerrainSeedsDiffer(t *testing.T) {
	a := NewTerrain(1, chunk.DefaultFormat, nil)
	b := NewTerrain(2, chunk.DefaultFormat, nil)

	differ := false
	for x := int64(0); x < 1024 && !differ; x += 16 {
		if a.Height(x, x) != b.Height(x, x) {
			differ = true
		}
	}
	if !differ {
		t.Error("seeds 1 and 2 produced identical heights along the diagonal")
	}
}

func TestTerrainHeightIsSmooth(t *testing.T) {
	terrain := NewTerrain(99, chunk.DefaultFormat, nil)
	low, high := 1<<30, -1<<30
	for x := int64(-500); x < 500; x++ {
		current := terrain.Height(x, 37)
		next := terrain.Height(x+1, 37)
		if diff := next - current; diff > 3 || diff < -3 {
			t.Fatalf("height jumps from %d to %d between x=%d and x=%d", current, next, x, x+1)
		}
		low, high = min(low, current), max(high, current)
	}
	if low < 64-22 || high > 64+22 {
		t.Errorf("heights span %d..%d, outside the noise amplitude", low, high)
	}
}

func TestTerrainChunkParses(t *testing.T) {
	terrain := NewTerrain(5, chunk.DefaultFormat, nil)
	payload, err := terrain.GenerateChunk(0, 0)
	if err != nil {
		t.Fatalf("GenerateChunk: %v", err)
	}
	root, err := chunk.Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bottom := root.Sections[0]
	if bottom.BlockStates == nil || bottom.BlockStates.Palette[0].Name != "minecraft:bedrock" {
		t.Errorf("bottom section palette = %+v, want bedrock first", bottom.BlockStates)
	}
}

func TestGeneratorFunc(t *testing.T) {
	var generator Generator = GeneratorFunc(func(x, z int32) ([]byte, error) {
		return []byte{byte(x), byte(z)}, nil
	})
	got, err := generator.GenerateChunk(1, 2)
	if err != nil || !bytes.Equal(got, []byte{1, 2}) {
		t.Errorf("GenerateChunk = (%v, %v)", got, err)
	}
}
