// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"fmt"
	"io"
)

// ReadAt adapts an io.ReaderAt. io.EOF ends the stream after
// delivering the bytes read with it.
func ReadAt(reader io.ReaderAt) ReadFunc {
	return func(buffer []byte, offset int64) (int, error) {
		return reader.ReadAt(buffer, offset)
	}
}

// ReadSequential adapts an io.Reader that is consumed in order; the
// offset is ignored. Each call fills buffer unless the stream ends.
// Errors from reader, io.ErrUnexpectedEOF included, pass through
// unchanged so callers can tell a truncated stream from a short one.
func ReadSequential(reader io.Reader) ReadFunc {
	return func(buffer []byte, _ int64) (int, error) {
		n := 0
		for n < len(buffer) {
			read, err := reader.Read(buffer[n:])
			n += read
			if err != nil {
				return n, err
			}
		}
		return n, nil
	}
}

// WriteAt adapts an io.WriterAt.
func WriteAt(writer io.WriterAt) WriteFunc {
	return func(buffer []byte, offset int64) error {
		n, err := writer.WriteAt(buffer, offset)
		if err != nil {
			return err
		}
		if n != len(buffer) {
			return fmt.Errorf("short write: %d of %d bytes: %w", n, len(buffer), io.ErrShortWrite)
		}
		return nil
	}
}

// WriteSequential adapts an io.Writer that receives the stream in
// order; the offset is ignored.
func WriteSequential(writer io.Writer) WriteFunc {
	return func(buffer []byte, _ int64) error {
		_, err := writer.Write(buffer)
		return err
	}
}
