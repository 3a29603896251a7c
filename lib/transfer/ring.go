// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import "sync"

// chunk is one buffer in flight and the stream offset of its first
// byte.
type chunk struct {
	data   []byte
	offset int64
}

// ring is a bounded single-producer single-consumer FIFO of chunks.
type ring struct {
	mu       sync.Mutex
	changed  *sync.Cond
	items    []chunk
	capacity int

	producerDone bool
	consumerDone bool
	aborted      bool
}

func newRing(capacity int) *ring {
	r := &ring{
		items:    make([]chunk, 0, capacity),
		capacity: capacity,
	}
	r.changed = sync.NewCond(&r.mu)
	return r
}

// push appends c, waiting while the ring is full. It returns false
// without storing c when the consumer has finished or the ring was
// aborted.
func (r *ring) push(c chunk) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.items) == r.capacity && !r.consumerDone && !r.aborted {
		r.changed.Wait()
	}
	if r.consumerDone || r.aborted {
		return false
	}
	r.items = append(r.items, c)
	r.changed.Broadcast()
	return true
}

// pop removes the oldest chunk, waiting while the ring is empty. It
// returns false once the producer has finished and the ring is
// drained, or immediately when the ring was aborted.
func (r *ring) pop() (chunk, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.items) == 0 && !r.producerDone && !r.aborted {
		r.changed.Wait()
	}
	if r.aborted || len(r.items) == 0 {
		return chunk{}, false
	}
	c := r.items[0]
	copy(r.items, r.items[1:])
	r.items[len(r.items)-1] = chunk{}
	r.items = r.items[:len(r.items)-1]
	r.changed.Broadcast()
	return c, true
}

// closeProducer marks end of stream.
func (r *ring) closeProducer() {
	r.mu.Lock()
	r.producerDone = true
	r.mu.Unlock()
	r.changed.Broadcast()
}

// closeConsumer tells the producer nothing more will be popped.
func (r *ring) closeConsumer() {
	r.mu.Lock()
	r.consumerDone = true
	r.items = r.items[:0]
	r.mu.Unlock()
	r.changed.Broadcast()
}

// abort wakes every waiter and makes all further operations fail.
func (r *ring) abort() {
	r.mu.Lock()
	r.aborted = true
	r.mu.Unlock()
	r.changed.Broadcast()
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
