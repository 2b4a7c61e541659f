// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package anvil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// CompressionTag is the byte that follows the length prefix of a
// chunk envelope. The values are fixed by the region file format.
type CompressionTag uint8

const (
	// CompressionGzip marks a gzip (RFC 1952) payload.
	CompressionGzip CompressionTag = 1

	// CompressionZlib marks a zlib (RFC 1950) payload. This is what
	// the game writes and what hopper produces by default.
	CompressionZlib CompressionTag = 2

	// CompressionNone marks an uncompressed payload.
	CompressionNone CompressionTag = 3
)

// EnvelopeHeaderSize is the length prefix plus the tag byte.
const EnvelopeHeaderSize = 5

// ErrMalformedEnvelope is returned when a blob does not frame a
// complete envelope.
var ErrMalformedEnvelope = errors.New("malformed chunk envelope")

// String returns the configuration name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseCompressionTag parses a configuration name produced by String.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "gzip":
		return CompressionGzip, nil
	case "zlib":
		return CompressionZlib, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want gzip, zlib, or none)", name)
	}
}

// zlibWriters recycles zlib writers; their internal tables are large
// relative to a typical chunk.
var zlibWriters = sync.Pool{
	New: func() any {
		writer, err := zlib.NewWriterLevel(io.Discard, zlib.DefaultCompression)
		if err != nil {
			panic("anvil: zlib writer initialization failed: " + err.Error())
		}
		return writer
	},
}

// Compress compresses payload with the algorithm named by tag at the
// default compression level.
func Compress(payload []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return payload, nil

	case CompressionZlib:
		var buffer bytes.Buffer
		writer := zlibWriters.Get().(*zlib.Writer)
		defer zlibWriters.Put(writer)
		writer.Reset(&buffer)
		if _, err := writer.Write(payload); err != nil {
			return nil, fmt.Errorf("zlib compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("zlib compress: %w", err)
		}
		return buffer.Bytes(), nil

	case CompressionGzip:
		var buffer bytes.Buffer
		writer, err := gzip.NewWriterLevel(&buffer, gzip.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		if _, err := writer.Write(payload); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		return buffer.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported compression tag %d", uint8(tag))
	}
}

// Decompress reverses Compress.
func Decompress(compressed []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return compressed, nil

	case CompressionZlib:
		reader, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("zlib decompress: %w", err)
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("zlib decompress: %w", err)
		}
		return data, nil

	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag %d", uint8(tag))
	}
}

// Frame wraps an already-compressed payload in the envelope.
func Frame(compressed []byte, tag CompressionTag) []byte {
	blob := make([]byte, EnvelopeHeaderSize+len(compressed))
	binary.BigEndian.PutUint32(blob[0:4], uint32(len(compressed)+1))
	blob[4] = byte(tag)
	copy(blob[EnvelopeHeaderSize:], compressed)
	return blob
}

// Wrap compresses an NBT payload and frames it.
func Wrap(payload []byte, tag CompressionTag) ([]byte, error) {
	compressed, err := Compress(payload, tag)
	if err != nil {
		return nil, err
	}
	return Frame(compressed, tag), nil
}

// Envelope is a parsed, still-compressed chunk envelope.
type Envelope struct {
	Tag        CompressionTag
	Compressed []byte
}

// ParseEnvelope validates the framing of blob. Trailing bytes beyond
// the declared length (slot padding) are ignored. The returned
// Compressed slice aliases blob.
func ParseEnvelope(blob []byte) (Envelope, error) {
	if len(blob) < EnvelopeHeaderSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes is shorter than the envelope header", ErrMalformedEnvelope, len(blob))
	}
	length := binary.BigEndian.Uint32(blob[0:4])
	if length < 1 {
		return Envelope{}, fmt.Errorf("%w: zero length", ErrMalformedEnvelope)
	}
	if uint64(length)+4 > uint64(len(blob)) {
		return Envelope{}, fmt.Errorf("%w: declared length %d exceeds %d available bytes",
			ErrMalformedEnvelope, length, len(blob)-4)
	}
	tag := CompressionTag(blob[4])
	switch tag {
	case CompressionGzip, CompressionZlib, CompressionNone:
	default:
		return Envelope{}, fmt.Errorf("%w: unknown compression tag %d", ErrMalformedEnvelope, blob[4])
	}
	return Envelope{Tag: tag, Compressed: blob[EnvelopeHeaderSize : 4+length]}, nil
}

// Size is the number of bytes the envelope occupies in a slot.
func (e Envelope) Size() int {
	return EnvelopeHeaderSize + len(e.Compressed)
}

// Unwrap parses blob and returns the decompressed NBT payload.
func Unwrap(blob []byte) ([]byte, CompressionTag, error) {
	envelope, err := ParseEnvelope(blob)
	if err != nil {
		return nil, 0, err
	}
	payload, err := Decompress(envelope.Compressed, envelope.Tag)
	if err != nil {
		return nil, envelope.Tag, err
	}
	return payload, envelope.Tag, nil
}
