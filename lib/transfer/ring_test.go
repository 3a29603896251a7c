// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"testing"
	"time"

	"github.com/nxpack/nxpack/lib/testutil"
)

func TestRingBlocksProducerWhenFull(t *testing.T) {
	r := newRing(2)
	r.push(chunk{offset: 0})
	r.push(chunk{offset: 1})

	pushed := make(chan bool)
	go func() { pushed <- r.push(chunk{offset: 2}) }()

	select {
	case <-pushed:
		t.Fatal("push into a full ring did not block")
	case <-time.After(20 * time.Millisecond):
	}

	first, ok := r.pop()
	if !ok || first.offset != 0 {
		t.Fatalf("pop = %+v, %v; want offset 0", first, ok)
	}
	if !testutil.RequireReceive(t, pushed, 5*time.Second, "blocked push") {
		t.Fatal("push failed after space was made")
	}
	for want := int64(1); want <= 2; want++ {
		c, ok := r.pop()
		if !ok || c.offset != want {
			t.Fatalf("pop = %+v, %v; want offset %d", c, ok, want)
		}
	}
}

func TestRingConsumerSeesEndAfterDrain(t *testing.T) {
	r := newRing(2)
	r.push(chunk{offset: 7})
	r.closeProducer()
	if c, ok := r.pop(); !ok || c.offset != 7 {
		t.Fatalf("pop = %+v, %v; want buffered chunk", c, ok)
	}
	if _, ok := r.pop(); ok {
		t.Fatal("pop succeeded after producer finished and ring drained")
	}
}

func TestRingClosedConsumerReleasesProducer(t *testing.T) {
	r := newRing(1)
	r.push(chunk{})
	pushed := make(chan bool)
	go func() { pushed <- r.push(chunk{}) }()
	r.closeConsumer()
	if testutil.RequireReceive(t, pushed, 5*time.Second, "push after consumer closed") {
		t.Fatal("push reported success after consumer finished")
	}
}

func TestRingAbortWakesConsumer(t *testing.T) {
	r := newRing(2)
	popped := make(chan bool)
	go func() {
		_, ok := r.pop()
		popped <- ok
	}()
	r.abort()
	if testutil.RequireReceive(t, popped, 5*time.Second, "pop after abort") {
		t.Fatal("pop reported success after abort")
	}
	if r.push(chunk{}) {
		t.Fatal("push succeeded after abort")
	}
	if r.len() != 0 {
		t.Fatalf("aborted ring holds %d chunks", r.len())
	}
}
