// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"io"
)

// ringReader presents the chunks of a ring as a byte stream.
type ringReader struct {
	ring     *ring
	pipeline *pipeline
	current  []byte
}

func (r *ringReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(r.current) == 0 {
		c, ok := r.ring.pop()
		if !ok {
			if r.pipeline.result() != nil {
				return 0, errAborted
			}
			return 0, io.EOF
		}
		r.current = c.data
	}
	n := copy(p, r.current)
	r.current = r.current[n:]
	return n, nil
}

// stagingWriter collects transform output into fixed-size buffers and
// pushes each full buffer to the write ring.
type stagingWriter struct {
	pipeline *pipeline
	size     int
	buffer   []byte
	offset   int64
}

func newStagingWriter(p *pipeline, size int) *stagingWriter {
	return &stagingWriter{pipeline: p, size: size, buffer: make([]byte, 0, size)}
}

func (w *stagingWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), w.size-len(w.buffer))
		w.buffer = append(w.buffer, p[:n]...)
		p = p[n:]
		written += n
		if len(w.buffer) == w.size {
			if err := w.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// flush pushes any staged bytes. The pushed buffer is never touched
// again; staging continues in a fresh one.
func (w *stagingWriter) flush() error {
	if len(w.buffer) == 0 {
		return nil
	}
	if w.pipeline.checkCancelled() {
		return errAborted
	}
	c := chunk{data: w.buffer, offset: w.offset}
	if !w.pipeline.writeRing.push(c) {
		return errAborted
	}
	w.offset += int64(len(c.data))
	w.pipeline.stats.Transformed.Store(w.offset)
	w.buffer = make([]byte, 0, w.size)
	return nil
}

// sequentialReader reads the source on the calling goroutine for a
// single-threaded transform.
type sequentialReader struct {
	pipeline *pipeline
	offset   int64
	current  []byte
	done     bool
	err      error
}

func (r *sequentialReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(r.current) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.done || !r.pipeline.remaining(r.offset) {
			return 0, io.EOF
		}
		if err := r.pipeline.cancellation(); err != nil {
			r.err = err
			return 0, err
		}
		data, last, err := r.pipeline.readChunk(r.offset)
		if err != nil {
			r.err = err
			return 0, err
		}
		if data == nil {
			r.done = true
			return 0, io.EOF
		}
		r.done = last
		r.offset += int64(len(data))
		r.pipeline.stats.Read.Store(r.offset)
		r.current = data
	}
	n := copy(p, r.current)
	r.current = r.current[n:]
	return n, nil
}

// offsetWriter writes transform output straight to the sink on the
// calling goroutine.
type offsetWriter struct {
	pipeline *pipeline
	offset   int64
	err      error
}

func (w *offsetWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := w.pipeline.writeChunk(p, w.offset); err != nil {
		w.err = err
		return 0, err
	}
	w.offset += int64(len(p))
	return len(p), nil
}
