// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunk turns voxels into the NBT payload of a region file
// chunk.
//
// A [Builder] collects block names for one 16-wide column of sections.
// [Builder.Build] walks each section in y, z, x order, assigns palette
// indices in first-seen order, and packs the indices into 64-bit words
// (see [Pack]). Sections with no content are emitted without block
// states; sections with a single block are emitted with a one-entry
// palette and no index data. [Marshal] serializes the result with the
// go-mc NBT encoder. Compression and framing are handled by the anvil
// package.
package chunk
