// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is hopper's CBOR configuration.
//
// CBOR is used for small internal records that must hash the same on
// every run, such as the world manifest kept beside persisted chunks.
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, shortest integer forms, no indefinite lengths. The same
// value always encodes to the same bytes, so a digest of the encoding
// identifies the value.
//
// Types encoded here carry `cbor` struct tags.
package codec
