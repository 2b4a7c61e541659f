// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package anvil describes the byte layout of a Minecraft Anvil region
// file as served by hopper, and the envelope that wraps a single
// chunk inside it.
//
// A region covers a 32x32 grid of chunks. Its virtual file is
//
//	[0, 4096)        location table, 1024 four-byte entries
//	[4096, 8192)     timestamp table, always zero
//	[8192, end)      1024 fixed-size slots, SectorsPerChunk sectors each
//
// Every region file has the same size whether or not any of its
// chunks have ever been generated. A chunk's envelope occupies the
// head of its slot and the rest of the slot reads as zero.
//
// The envelope is the on-disk chunk framing used by the game:
//
//	[u32 big-endian length][u8 compression tag][compressed payload]
//
// where length counts the tag byte plus the payload. The payload is
// an uncompressed NBT document before compression.
//
// Nothing in this package does I/O or holds state; everything is a
// function of the geometry and the input bytes.
package anvil
