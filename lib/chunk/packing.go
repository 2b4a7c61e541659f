// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"fmt"
	"math/bits"
)

// MinBitsPerEntry is the narrowest index field the block container
// format allows.
const MinBitsPerEntry = 4

// BitsPerEntry returns the index width for a palette of n entries:
// ceil(log2(n)), but never less than MinBitsPerEntry.
func BitsPerEntry(n int) int {
	if n <= 1 {
		return MinBitsPerEntry
	}
	return max(bits.Len(uint(n-1)), MinBitsPerEntry)
}

// PackedWords returns the number of 64-bit words needed to hold count
// indices of the given width. Indices never straddle a word boundary,
// so each word holds 64/width of them and any leftover high bits stay
// zero.
func PackedWords(count, width int) int {
	perWord := 64 / width
	return (count + perWord - 1) / perWord
}

// InvariantViolation describes an index that does not fit its field.
// It is the panic value in strict mode.
type InvariantViolation struct {
	Position int
	Index    uint16
	Width    int
}

func (v InvariantViolation) Error() string {
	return fmt.Sprintf("palette index %d at position %d does not fit in %d bits", v.Index, v.Position, v.Width)
}

// Pack writes indices into 64-bit words, width bits per index, with
// index i at word i/(64/width) and bit offset (i%(64/width))*width.
//
// An index wider than width violates the packing invariant. In strict
// mode Pack panics with an InvariantViolation. Otherwise the index is
// replaced by 0 and the number of replacements is returned so the
// caller can report it.
func Pack(indices []uint16, width int, strict bool) (words []int64, violations int) {
	perWord := 64 / width
	mask := uint64(1)<<width - 1
	packed := make([]uint64, PackedWords(len(indices), width))

	for position, index := range indices {
		value := uint64(index)
		if value&^mask != 0 {
			if strict {
				panic(InvariantViolation{Position: position, Index: index, Width: width})
			}
			violations++
			value = 0
		}
		packed[position/perWord] |= value << ((position % perWord) * width)
	}

	words = make([]int64, len(packed))
	for i, word := range packed {
		words[i] = int64(word)
	}
	return words, violations
}

// Unpack is the inverse of Pack for count indices.
func Unpack(words []int64, width, count int) []uint16 {
	perWord := 64 / width
	mask := uint64(1)<<width - 1
	indices := make([]uint16, count)
	for position := range indices {
		word := uint64(words[position/perWord])
		indices[position] = uint16(word >> ((position % perWord) * width) & mask)
	}
	return indices
}
