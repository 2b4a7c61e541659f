// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Records decoded here are small and flat. The limits reject anything
// else before it is allocated.
const (
	maxNestedLevels  = 8
	maxArrayElements = 1024
	maxMapPairs      = 256
)

type modes struct {
	encode cbor.EncMode
	decode cbor.DecMode
}

var loadModes = sync.OnceValue(func() modes {
	encode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building CBOR encoder: %v", err))
	}
	// Unknown fields are ignored so an older binary can read a record
	// written by a newer one. Duplicate keys and indefinite lengths
	// never come out of the encoder, so they are rejected.
	decode, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxNestedLevels:  maxNestedLevels,
		MaxArrayElements: maxArrayElements,
		MaxMapPairs:      maxMapPairs,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building CBOR decoder: %v", err))
	}
	return modes{encode: encode, decode: decode}
})

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return loadModes().encode.Marshal(v)
}

// Unmarshal decodes a record written by Marshal into v.
func Unmarshal(data []byte, v any) error {
	return loadModes().decode.Unmarshal(data, v)
}

// Diagnose renders data in CBOR diagnostic notation (RFC 8949 §8).
// Used to describe a stored record that no longer decodes.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
