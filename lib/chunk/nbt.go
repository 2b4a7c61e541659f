// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"bytes"
	"fmt"

	"github.com/Tnze/go-mc/nbt"
)

// Root is the top-level compound of a chunk as the server stores it in
// a region file. Field order is fixed by the struct, which keeps the
// encoded bytes deterministic.
type Root struct {
	DataVersion int32     `nbt:"DataVersion"`
	XPos        int32     `nbt:"xPos"`
	YPos        int32     `nbt:"yPos"`
	ZPos        int32     `nbt:"zPos"`
	Status      string    `nbt:"Status"`
	LastUpdate  int64     `nbt:"LastUpdate"`
	Sections    []Section `nbt:"sections"`
}

// Section is one 16x16x16 cube. A nil BlockStates means all air.
type Section struct {
	Y           int8         `nbt:"Y"`
	BlockStates *BlockStates `nbt:"block_states,omitempty"`
	Biomes      *Biomes      `nbt:"biomes,omitempty"`
}

// BlockStates is a paletted block container. Data is empty when the
// palette has a single entry.
type BlockStates struct {
	Palette []BlockState `nbt:"palette"`
	Data    []int64      `nbt:"data,omitempty"`
}

// BlockState names a block. Properties are not produced.
type BlockState struct {
	Name string `nbt:"Name"`
}

// Biomes is a paletted biome container. Data is empty when the palette
// has a single entry.
type Biomes struct {
	Palette []string `nbt:"palette"`
	Data    []int64  `nbt:"data,omitempty"`
}

// Marshal encodes root as an uncompressed NBT compound with an empty
// root name.
func Marshal(root *Root) ([]byte, error) {
	var buffer bytes.Buffer
	if err := nbt.NewEncoder(&buffer).Encode(root, ""); err != nil {
		return nil, fmt.Errorf("encoding chunk (%d, %d): %w", root.XPos, root.ZPos, err)
	}
	return buffer.Bytes(), nil
}

// Parse decodes an uncompressed NBT chunk payload.
func Parse(payload []byte) (*Root, error) {
	var root Root
	if _, err := nbt.NewDecoder(bytes.NewReader(payload)).Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding chunk: %w", err)
	}
	return &root, nil
}
