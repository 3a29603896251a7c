// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import "context"

// ProgressSink receives byte counters and is polled for cancellation.
// Implementations must be safe for concurrent use: UpdateTransfer is
// called from the write stage while ShouldExit is called from every
// stage.
type ProgressSink interface {
	// ShouldExit reports whether the transfer should stop.
	ShouldExit() bool

	// UpdateTransfer reports that current of total bytes have been
	// written. total is UnknownSize when the source size is unknown.
	UpdateTransfer(current, total int64)

	// Done returns a channel closed when cancellation is requested,
	// or nil if the sink only supports polling.
	Done() <-chan struct{}
}

// NopProgress ignores updates and never requests cancellation.
type NopProgress struct{}

func (NopProgress) ShouldExit() bool            { return false }
func (NopProgress) UpdateTransfer(int64, int64) {}
func (NopProgress) Done() <-chan struct{}       { return nil }

// ContextProgress requests cancellation when Context is done and
// forwards updates to OnUpdate when it is set.
type ContextProgress struct {
	Context  context.Context
	OnUpdate func(current, total int64)
}

func (p ContextProgress) ShouldExit() bool { return p.Context.Err() != nil }

func (p ContextProgress) UpdateTransfer(current, total int64) {
	if p.OnUpdate != nil {
		p.OnUpdate(current, total)
	}
}

func (p ContextProgress) Done() <-chan struct{} { return p.Context.Done() }
