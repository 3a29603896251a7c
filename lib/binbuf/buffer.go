// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package binbuf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Buffer is an append and seek capable byte buffer. The zero value is
// an empty buffer ready for use. Buffer implements io.Writer,
// io.WriterAt and io.Seeker.
type Buffer struct {
	data   []byte
	offset int64
}

// New returns a buffer with capacity preallocated for size bytes.
func New(size int) *Buffer {
	return &Buffer{data: make([]byte, 0, size)}
}

// Bytes returns the buffer contents. The slice aliases the buffer and
// is valid until the next write.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes written (the highest offset reached).
func (b *Buffer) Len() int64 { return int64(len(b.data)) }

// Tell returns the cursor position.
func (b *Buffer) Tell() int64 { return b.offset }

// Write copies p at the cursor and advances it.
func (b *Buffer) Write(p []byte) (int, error) {
	n, err := b.WriteAt(p, b.offset)
	b.offset += int64(n)
	return n, err
}

// WriteAt copies p at offset without moving the cursor. Writing beyond
// the end grows the buffer, zero-filling any gap.
func (b *Buffer) WriteAt(p []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, errors.New("binbuf: negative offset")
	}
	end := offset + int64(len(p))
	b.grow(end)
	return copy(b.data[offset:end], p), nil
}

// Seek moves the cursor. Seeking past the end does not grow the buffer
// until the next write.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var position int64
	switch whence {
	case io.SeekStart:
		position = offset
	case io.SeekCurrent:
		position = b.offset + offset
	case io.SeekEnd:
		position = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("binbuf: invalid whence %d", whence)
	}
	if position < 0 {
		return 0, errors.New("binbuf: seek before start")
	}
	b.offset = position
	return position, nil
}

// Pad zero-fills from the end of the buffer up to the next multiple of
// alignment and moves the cursor to the new end. Returns the new length.
func (b *Buffer) Pad(alignment int64) int64 {
	b.grow(AlignUp(int64(len(b.data)), alignment))
	b.offset = int64(len(b.data))
	return b.offset
}

// WriteStruct encodes value little-endian at the cursor using
// encoding/binary. value must be a fixed-size type.
func (b *Buffer) WriteStruct(value any) error {
	var encoded bytes.Buffer
	if err := binary.Write(&encoded, binary.LittleEndian, value); err != nil {
		return fmt.Errorf("binbuf: encoding %T: %w", value, err)
	}
	_, err := b.Write(encoded.Bytes())
	return err
}

// PutUint16At stores v little-endian at offset.
func (b *Buffer) PutUint16At(offset int64, v uint16) {
	b.grow(offset + 2)
	binary.LittleEndian.PutUint16(b.data[offset:], v)
}

// PutUint32At stores v little-endian at offset.
func (b *Buffer) PutUint32At(offset int64, v uint32) {
	b.grow(offset + 4)
	binary.LittleEndian.PutUint32(b.data[offset:], v)
}

// PutUint64At stores v little-endian at offset.
func (b *Buffer) PutUint64At(offset int64, v uint64) {
	b.grow(offset + 8)
	binary.LittleEndian.PutUint64(b.data[offset:], v)
}

// grow extends the buffer with zeros so that it is at least size
// bytes long.
func (b *Buffer) grow(size int64) {
	if size <= int64(len(b.data)) {
		return
	}
	if size <= int64(cap(b.data)) {
		previous := len(b.data)
		b.data = b.data[:size]
		clear(b.data[previous:])
		return
	}
	grown := make([]byte, size, max(size, 2*int64(cap(b.data))))
	copy(grown, b.data)
	b.data = grown
}

// AlignUp rounds value up to a multiple of alignment, which must be a
// power of two.
func AlignUp(value, alignment int64) int64 {
	return (value + alignment - 1) &^ (alignment - 1)
}

// DivCeil returns value / divisor rounded up.
func DivCeil(value, divisor int64) int64 {
	return (value + divisor - 1) / divisor
}
