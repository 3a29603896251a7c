// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/nxpack/nxpack/lib/clock"
	"github.com/nxpack/nxpack/lib/transfer"
)

const (
	progressInterval = 100 * time.Millisecond
	defaultWidth     = 80
)

// Progress is a [transfer.ProgressSink] that redraws one status line
// on stderr. It requests cancellation when its context is done. When
// stderr is not a terminal it draws nothing.
type Progress struct {
	ctx   context.Context
	w     io.Writer
	label string
	width int
	clock clock.Clock

	mu      sync.Mutex
	started time.Time
	drawn   time.Time
	active  bool
}

var _ transfer.ProgressSink = (*Progress)(nil)

// NewProgress returns a progress line labelled label.
func NewProgress(ctx context.Context, label string) *Progress {
	descriptor := int(os.Stderr.Fd())
	if !term.IsTerminal(descriptor) {
		return newProgress(ctx, io.Discard, label, 0)
	}
	width, _, err := term.GetSize(descriptor)
	if err != nil || width <= 0 {
		width = defaultWidth
	}
	return newProgress(ctx, os.Stderr, label, width)
}

func newProgress(ctx context.Context, w io.Writer, label string, width int) *Progress {
	return &Progress{ctx: ctx, w: w, label: label, width: width, clock: clock.Real()}
}

func (p *Progress) ShouldExit() bool { return p.ctx.Err() != nil }

func (p *Progress) Done() <-chan struct{} { return p.ctx.Done() }

// UpdateTransfer redraws the line at most every progressInterval, and
// always when the transfer completes.
func (p *Progress) UpdateTransfer(current, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if p.started.IsZero() {
		p.started = now
	}
	complete := total >= 0 && current >= total
	if !complete && now.Sub(p.drawn) < progressInterval {
		return
	}
	p.drawn = now
	p.active = true
	fmt.Fprintf(p.w, "\r%s", p.line(current, total, now.Sub(p.started)))
}

// Finish ends the status line. Call it once the transfer returns.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		fmt.Fprintln(p.w)
		p.active = false
	}
}

func (p *Progress) line(current, total int64, elapsed time.Duration) string {
	var status string
	if total >= 0 {
		percent := 100.0
		if total > 0 {
			percent = float64(current) * 100 / float64(total)
		}
		status = fmt.Sprintf("%s %s / %s (%.0f%%)",
			p.label, humanize.IBytes(uint64(current)), humanize.IBytes(uint64(total)), percent)
	} else {
		status = fmt.Sprintf("%s %s", p.label, humanize.IBytes(uint64(current)))
	}
	if seconds := elapsed.Seconds(); seconds > 0 {
		status += fmt.Sprintf(" %s/s", humanize.IBytes(uint64(float64(current)/seconds)))
	}
	if p.width > 0 {
		if len(status) >= p.width {
			status = status[:p.width-1]
		} else {
			status += strings.Repeat(" ", p.width-1-len(status))
		}
	}
	return status
}
