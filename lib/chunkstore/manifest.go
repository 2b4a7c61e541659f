// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package chunkstore

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/hopper-foundation/hopper/lib/codec"
)

// Manifest records the world configuration that determines chunk
// content. Compression is deliberately absent: every envelope carries
// its own tag, so blobs stay valid when the configured algorithm
// changes.
type Manifest struct {
	Generator       string `cbor:"generator"`
	Seed            int64  `cbor:"seed"`
	DataVersion     int32  `cbor:"data_version"`
	Status          string `cbor:"status"`
	MinSection      int8   `cbor:"min_section"`
	SectionCount    int    `cbor:"section_count"`
	Biome           string `cbor:"biome"`
	SectorsPerChunk int    `cbor:"sectors_per_chunk"`
}

// Fingerprint is the keyed BLAKE3 hash of a manifest's deterministic
// CBOR encoding.
type Fingerprint [32]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// manifestDomainKey is the ASCII domain name zero-padded to 32 bytes.
// Changing it invalidates every recorded fingerprint.
var manifestDomainKey = [32]byte{
	'h', 'o', 'p', 'p', 'e', 'r', '.', 'c', 'h', 'u', 'n', 'k', 's', 't', 'o', 'r',
	'e', '.', 'm', 'a', 'n', 'i', 'f', 'e', 's', 't', 0, 0, 0, 0, 0, 0,
}

// Encode returns the manifest's CBOR encoding and its fingerprint.
func (m Manifest) Encode() ([]byte, Fingerprint, error) {
	data, err := codec.Marshal(m)
	if err != nil {
		return nil, Fingerprint{}, fmt.Errorf("encoding manifest: %w", err)
	}
	hasher, err := blake3.NewKeyed(manifestDomainKey[:])
	if err != nil {
		return nil, Fingerprint{}, fmt.Errorf("manifest hasher: %w", err)
	}
	hasher.Write(data)
	var fingerprint Fingerprint
	copy(fingerprint[:], hasher.Sum(nil))
	return data, fingerprint, nil
}

// DecodeManifest parses an encoding produced by Encode.
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := codec.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, nil
}

// Differences describes each field that differs between m (recorded)
// and other (configured), as "field: recorded -> configured".
func (m Manifest) Differences(other Manifest) []string {
	var differences []string
	add := func(field string, recorded, configured any) {
		if recorded != configured {
			differences = append(differences, fmt.Sprintf("%s: %v -> %v", field, recorded, configured))
		}
	}
	add("generator", m.Generator, other.Generator)
	add("seed", m.Seed, other.Seed)
	add("data_version", m.DataVersion, other.DataVersion)
	add("status", m.Status, other.Status)
	add("min_section", m.MinSection, other.MinSection)
	add("section_count", m.SectionCount, other.SectionCount)
	add("biome", m.Biome, other.Biome)
	add("sectors_per_chunk", m.SectorsPerChunk, other.SectorsPerChunk)
	return differences
}
