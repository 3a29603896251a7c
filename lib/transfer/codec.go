// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a stream compression format usable as a transform.
type Codec uint8

const (
	// CodecNone passes bytes through unchanged.
	CodecNone Codec = iota

	// CodecZstd is a zstd frame stream.
	CodecZstd

	// CodecLZ4 is an LZ4 frame stream.
	CodecLZ4

	// CodecDeflate is a raw deflate stream, as stored in zip entries.
	CodecDeflate
)

// String returns the name accepted by ParseCodec.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	case CodecDeflate:
		return "deflate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec parses a codec name.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none", "":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	case "deflate":
		return CodecDeflate, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", name)
	}
}

// Decoder returns a transform that decompresses codec. CodecNone
// returns nil, which Transfer treats as a verbatim copy.
func Decoder(codec Codec) (TransformFunc, error) {
	switch codec {
	case CodecNone:
		return nil, nil
	case CodecZstd:
		return decodeZstd, nil
	case CodecLZ4:
		return decodeLZ4, nil
	case CodecDeflate:
		return decodeDeflate, nil
	default:
		return nil, fmt.Errorf("unsupported codec %d", codec)
	}
}

// Encoder returns a transform that compresses with codec.
func Encoder(codec Codec) (TransformFunc, error) {
	switch codec {
	case CodecNone:
		return nil, nil
	case CodecZstd:
		return encodeZstd, nil
	case CodecLZ4:
		return encodeLZ4, nil
	case CodecDeflate:
		return encodeDeflate, nil
	default:
		return nil, fmt.Errorf("unsupported codec %d", codec)
	}
}

// Zstd: one decoder goroutine per transfer. The transform stage
// already overlaps decoding with I/O.

func decodeZstd(dst io.Writer, src io.Reader) error {
	decoder, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("zstd decoder: %w", err)
	}
	defer decoder.Close()
	if _, err := io.Copy(dst, decoder); err != nil {
		return fmt.Errorf("zstd decode: %w", err)
	}
	return nil
}

func encodeZstd(dst io.Writer, src io.Reader) error {
	encoder, err := zstd.NewWriter(dst,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}
	if _, err := io.Copy(encoder, src); err != nil {
		encoder.Close()
		return fmt.Errorf("zstd encode: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("zstd encode: %w", err)
	}
	return nil
}

// LZ4: frame format, so streams carry their own block checksums and
// end marker.

func decodeLZ4(dst io.Writer, src io.Reader) error {
	if _, err := io.Copy(dst, lz4.NewReader(src)); err != nil {
		return fmt.Errorf("lz4 decode: %w", err)
	}
	return nil
}

func encodeLZ4(dst io.Writer, src io.Reader) error {
	encoder := lz4.NewWriter(dst)
	if _, err := io.Copy(encoder, src); err != nil {
		encoder.Close()
		return fmt.Errorf("lz4 encode: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("lz4 encode: %w", err)
	}
	return nil
}

// Deflate: raw streams without a zlib or gzip wrapper.

func decodeDeflate(dst io.Writer, src io.Reader) error {
	decoder := flate.NewReader(src)
	defer decoder.Close()
	if _, err := io.Copy(dst, decoder); err != nil {
		return fmt.Errorf("deflate decode: %w", err)
	}
	return nil
}

func encodeDeflate(dst io.Writer, src io.Reader) error {
	encoder, err := flate.NewWriter(dst, flate.DefaultCompression)
	if err != nil {
		return fmt.Errorf("deflate encoder: %w", err)
	}
	if _, err := io.Copy(encoder, src); err != nil {
		return fmt.Errorf("deflate encode: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("deflate encode: %w", err)
	}
	return nil
}
