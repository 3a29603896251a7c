// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"errors"
	"fmt"

	"github.com/nxpack/nxpack/lib/fault"
)

func (p *pipeline) readStage() {
	defer p.readRing.closeProducer()
	var offset int64
	for p.remaining(offset) {
		if p.checkCancelled() {
			return
		}
		data, last, err := p.readChunk(offset)
		if err != nil {
			p.fail(err)
			return
		}
		if data == nil {
			return
		}
		if !p.readRing.push(chunk{data: data, offset: offset}) {
			return
		}
		offset += int64(len(data))
		p.stats.Read.Store(offset)
		if last {
			return
		}
	}
}

func (p *pipeline) transformStage() {
	defer p.writeRing.closeProducer()
	defer p.readRing.closeConsumer()

	if p.transform == nil {
		for {
			c, ok := p.readRing.pop()
			if !ok || p.checkCancelled() {
				return
			}
			if !p.writeRing.push(c) {
				return
			}
			p.stats.Transformed.Store(c.offset + int64(len(c.data)))
		}
	}

	source := &ringReader{ring: p.readRing, pipeline: p}
	sink := newStagingWriter(p, max(p.chunkSize/2, 1))
	err := p.transform(sink, source)
	if err == nil {
		err = sink.flush()
	}
	if err != nil && !errors.Is(err, errAborted) {
		p.fail(fault.Wrap(fault.IO, fmt.Errorf("transform: %w", err)))
	}
}

func (p *pipeline) writeStage() {
	defer p.writeRing.closeConsumer()
	if p.pullRing != nil {
		defer p.pullRing.closeProducer()
	}

	var offset int64
	for {
		c, ok := p.writeRing.pop()
		if !ok || p.checkCancelled() {
			return
		}
		if c.offset != offset {
			p.fail(fault.New(fault.IO, "write stage expected offset %d, got %d", offset, c.offset))
			return
		}
		if p.pullRing != nil {
			if !p.pullRing.push(c) {
				return
			}
			offset += int64(len(c.data))
			p.stats.Written.Store(offset)
			p.progress.UpdateTransfer(offset, p.total)
			continue
		}
		if err := p.writeChunk(c.data, offset); err != nil {
			p.fail(err)
			return
		}
		offset += int64(len(c.data))
	}
}
