// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/nxpack/nxpack/lib/fault"
)

// Chunk sizes.
const (
	// LargeChunkSize is the default read size.
	LargeChunkSize = 4 << 20

	// SmallChunkSize suits slow storage backends and archive work,
	// where decompression runs in small bursts.
	SmallChunkSize = 512 << 10

	// DefaultRingCapacity is the number of buffers each ring holds.
	DefaultRingCapacity = 2
)

// UnknownSize as a total size reads until the source returns zero
// bytes.
const UnknownSize int64 = -1

// Mode selects how the stages are scheduled.
type Mode int

const (
	// ModeMultiThreaded runs read, transform and write on their own
	// goroutines.
	ModeMultiThreaded Mode = iota

	// ModeSingleThreaded runs one loop on the calling goroutine.
	ModeSingleThreaded

	// ModeSingleThreadedIfSmaller runs single-threaded when the total
	// size is known and fits in one chunk.
	ModeSingleThreadedIfSmaller
)

func (m Mode) String() string {
	switch m {
	case ModeMultiThreaded:
		return "multi_threaded"
	case ModeSingleThreaded:
		return "single_threaded"
	case ModeSingleThreadedIfSmaller:
		return "single_threaded_if_smaller"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMode parses the String form of a Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "multi_threaded":
		return ModeMultiThreaded, nil
	case "single_threaded":
		return ModeSingleThreaded, nil
	case "single_threaded_if_smaller", "":
		return ModeSingleThreadedIfSmaller, nil
	default:
		return 0, fmt.Errorf("unknown transfer mode %q", name)
	}
}

// ReadFunc fills buffer from the source at offset and returns the
// number of bytes read. Returning zero bytes ends the stream; a short
// read is not an error. io.EOF with a positive count delivers the
// bytes and then ends the stream.
type ReadFunc func(buffer []byte, offset int64) (int, error)

// WriteFunc writes all of buffer to the sink at offset. buffer must
// not be retained after WriteFunc returns.
type WriteFunc func(buffer []byte, offset int64) error

// TransformFunc copies src to dst, transforming the bytes. It returns
// when src reports io.EOF or on the first error.
type TransformFunc func(dst io.Writer, src io.Reader) error

// PullFunc drives an external consumer that reads the transformed
// stream from source on the calling goroutine.
type PullFunc func(ctx context.Context, source io.Reader) error

// Stats holds the three stage offsets. Each counter only increases;
// they are safe to read from any goroutine for progress display.
type Stats struct {
	// Read is the number of source bytes read.
	Read atomic.Int64

	// Transformed is the number of bytes the transform stage has
	// handed to the write stage.
	Transformed atomic.Int64

	// Written is the number of bytes written or handed to the pull
	// driver.
	Written atomic.Int64
}

// Options configures a transfer. The zero value runs multi-threaded
// with large chunks and no transform.
type Options struct {
	Mode Mode

	// ChunkSize is the read buffer size. Zero means LargeChunkSize.
	ChunkSize int

	// RingCapacity bounds each ring. Zero means DefaultRingCapacity.
	RingCapacity int

	// Transform, when set, converts the stream between read and
	// write.
	Transform TransformFunc

	// Pull, when set, replaces the write function: the write stage
	// hands buffers to Pull through a single-slot ring. Pull runs on
	// the calling goroutine and forces multi-threaded mode.
	Pull PullFunc

	// Stats receives the stage offsets when non-nil.
	Stats *Stats

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

// Transfer moves totalSize bytes (or, with UnknownSize, everything
// until a zero-byte read) from read to write. It returns the first
// failure of any stage, or a fault.Cancelled error when ctx or
// progress requested cancellation. All goroutines have exited when
// Transfer returns.
func Transfer(ctx context.Context, progress ProgressSink, totalSize int64, read ReadFunc, write WriteFunc, options Options) error {
	if progress == nil {
		progress = NopProgress{}
	}
	if options.Pull == nil && write == nil {
		return fault.New(fault.InvalidArgument, "transfer needs a write function or a pull driver")
	}
	if options.ChunkSize < 0 || options.RingCapacity < 0 {
		return fault.New(fault.InvalidArgument, "transfer chunk size %d and ring capacity %d must not be negative",
			options.ChunkSize, options.RingCapacity)
	}
	p := &pipeline{
		ctx:          ctx,
		progress:     progress,
		total:        totalSize,
		read:         read,
		write:        write,
		transform:    options.Transform,
		chunkSize:    cmp.Or(options.ChunkSize, LargeChunkSize),
		ringCapacity: cmp.Or(options.RingCapacity, DefaultRingCapacity),
		stats:        options.Stats,
		logger:       cmp.Or(options.Logger, slog.Default()),
	}
	if p.stats == nil {
		p.stats = &Stats{}
	}

	single := options.Mode == ModeSingleThreaded ||
		(options.Mode == ModeSingleThreadedIfSmaller && totalSize >= 0 && totalSize <= int64(p.chunkSize))
	if options.Pull != nil {
		single = false
	}

	p.logger.Debug("transfer starting",
		"total", formatSize(totalSize),
		"chunk_size", humanize.IBytes(uint64(p.chunkSize)),
		"single_threaded", single,
		"transform", p.transform != nil,
		"pull", options.Pull != nil,
	)

	var err error
	if single {
		err = p.runSingle()
	} else {
		err = p.runPipeline(options.Pull)
	}

	p.logger.Debug("transfer finished",
		"read", humanize.IBytes(uint64(p.stats.Read.Load())),
		"written", humanize.IBytes(uint64(p.stats.Written.Load())),
		"error", err,
	)
	return err
}

func formatSize(size int64) string {
	if size < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(size))
}

// pipeline is the state of one Transfer call.
type pipeline struct {
	ctx          context.Context
	progress     ProgressSink
	total        int64
	read         ReadFunc
	write        WriteFunc
	transform    TransformFunc
	chunkSize    int
	ringCapacity int
	stats        *Stats
	logger       *slog.Logger

	readRing  *ring
	writeRing *ring
	pullRing  *ring

	mu  sync.Mutex
	err error
}

// errAborted is returned inside the pipeline by ring adapters once
// another stage has failed. It never escapes Transfer.
var errAborted = errors.New("transfer aborted")

// fail records err if it is the first failure and aborts every ring.
func (p *pipeline) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
	for _, r := range []*ring{p.readRing, p.writeRing, p.pullRing} {
		if r != nil {
			r.abort()
		}
	}
}

func (p *pipeline) result() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// checkCancelled fails the pipeline and returns true when cancellation
// was requested.
func (p *pipeline) checkCancelled() bool {
	if err := p.cancellation(); err != nil {
		p.fail(err)
		return true
	}
	return false
}

func (p *pipeline) cancellation() error {
	if err := p.ctx.Err(); err != nil {
		return fault.New(fault.Cancelled, "transfer cancelled: %w", context.Cause(p.ctx))
	}
	if p.progress.ShouldExit() {
		return fault.New(fault.Cancelled, "transfer cancelled by progress sink")
	}
	return nil
}

// readChunk reads the next chunk at offset. It returns a nil buffer at
// end of stream.
func (p *pipeline) readChunk(offset int64) ([]byte, bool, error) {
	size := p.chunkSize
	if p.total >= 0 {
		size = int(min(int64(size), p.total-offset))
	}
	buffer := make([]byte, size)
	n, err := p.read(buffer, offset)
	last := false
	if errors.Is(err, io.EOF) {
		err, last = nil, true
	}
	if err != nil {
		return nil, false, fault.Wrap(fault.IO, fmt.Errorf("reading at offset %d: %w", offset, err))
	}
	if n < 0 || n > size {
		return nil, false, fault.New(fault.IO, "read function returned %d bytes for a %d-byte buffer", n, size)
	}
	if n == 0 {
		return nil, true, nil
	}
	return buffer[:n], last, nil
}

func (p *pipeline) remaining(offset int64) bool {
	return p.total < 0 || offset < p.total
}

func (p *pipeline) writeChunk(data []byte, offset int64) error {
	if err := p.write(data, offset); err != nil {
		return fault.Wrap(fault.IO, fmt.Errorf("writing at offset %d: %w", offset, err))
	}
	written := offset + int64(len(data))
	p.stats.Written.Store(written)
	p.progress.UpdateTransfer(written, p.total)
	return nil
}

// runSingle runs the whole transfer on the calling goroutine.
func (p *pipeline) runSingle() error {
	if p.transform != nil {
		source := &sequentialReader{pipeline: p}
		sink := &offsetWriter{pipeline: p}
		if err := p.transform(sink, source); err != nil {
			if source.err != nil {
				return source.err
			}
			if sink.err != nil {
				return sink.err
			}
			return fault.Wrap(fault.IO, fmt.Errorf("transform: %w", err))
		}
		p.stats.Transformed.Store(sink.offset)
		return nil
	}

	var offset int64
	for p.remaining(offset) {
		if err := p.cancellation(); err != nil {
			return err
		}
		data, last, err := p.readChunk(offset)
		if err != nil {
			return err
		}
		if data == nil {
			return nil
		}
		p.stats.Read.Store(offset + int64(len(data)))
		p.stats.Transformed.Store(offset + int64(len(data)))
		if err := p.writeChunk(data, offset); err != nil {
			return err
		}
		offset += int64(len(data))
		if last {
			return nil
		}
	}
	return nil
}

// runPipeline starts the three stages, runs pull on the calling
// goroutine when set, and joins everything.
func (p *pipeline) runPipeline(pull PullFunc) error {
	p.readRing = newRing(p.ringCapacity)
	p.writeRing = newRing(p.ringCapacity)
	if pull != nil {
		p.pullRing = newRing(1)
	}

	stopContextWatch := context.AfterFunc(p.ctx, func() { p.checkCancelled() })
	defer stopContextWatch()

	var watcher sync.WaitGroup
	finished := make(chan struct{})
	if done := p.progress.Done(); done != nil {
		watcher.Go(func() {
			select {
			case <-done:
				p.checkCancelled()
			case <-finished:
			}
		})
	}

	var stages sync.WaitGroup
	stages.Go(p.readStage)
	stages.Go(p.transformStage)
	stages.Go(p.writeStage)

	if pull != nil {
		err := pull(p.ctx, &ringReader{ring: p.pullRing, pipeline: p})
		if err != nil && !errors.Is(err, errAborted) {
			p.fail(fault.Wrap(fault.IO, fmt.Errorf("pull: %w", err)))
		}
		p.pullRing.closeConsumer()
	}

	stages.Wait()
	close(finished)
	watcher.Wait()
	return p.result()
}
