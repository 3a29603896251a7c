// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package transfer moves bytes from a source to a sink through an
// optional transform, with bounded buffering and cooperative
// cancellation. Every large byte movement in nxpack goes through
// [Transfer]: installing archives into the content store, copying and
// decompressing files, and zip extraction and creation.
//
// # Stages
//
// In multi-threaded mode Transfer runs three goroutines connected by
// two rings:
//
//	read ──► read ring ──► transform ──► write ring ──► write
//	                                                  └─► pull ring ──► Options.Pull
//
// The read stage calls [ReadFunc] into a fresh chunk buffer and pushes
// it with its source offset. The transform stage forwards chunks
// verbatim, or runs a [TransformFunc] whose source reads the read ring
// and whose destination stages output in half-chunk buffers. The write
// stage calls [WriteFunc] at the running output offset, or, when
// [Options.Pull] is set, hands each buffer to the pull driver running
// on the calling goroutine.
//
// Each ring holds at most [Options.RingCapacity] buffers (two by
// default). A producer waits while its ring is full unless the
// consumer has finished; a consumer waits while its ring is empty
// unless the producer has finished. Waits are condition-variable
// waits, never polling. Buffers are handed over, not shared: a stage
// never touches a buffer after pushing it.
//
// # Cancellation and errors
//
// Cancellation is cooperative. Stages check the context and
// [ProgressSink.ShouldExit] between chunks; a cancelled context or a
// closed [ProgressSink.Done] channel also wakes any stage blocked on a
// ring. The first failure from any stage is recorded and every ring is
// aborted so the other stages unwind instead of blocking. Later errors
// caused by the unwind are discarded.
//
// Transfer joins all of its goroutines before returning. Partial
// output is left in place; [CopyFile] shows the temp-file-and-rename
// pattern that discards it.
//
// Errors are classified with lib/fault: read, write and transform
// failures are [fault.IO], cancellation is [fault.Cancelled].
package transfer
