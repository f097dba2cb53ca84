package epochgc

import "sync/atomic"

// ringSize is the fixed capacity of one staged-object ring (spec §4.3: "size
// fixed, e.g., 512").
const ringSize = 512

// stagedObject is one retired pointer plus the epoch at which it was staged
// (spec §3.1 EpochGcThread.staged_objects_ring_list entries).
type stagedObject struct {
	object any
	epoch  uint64
}

// ring is a bounded single-producer/single-consumer queue: the owning worker
// thread is the sole producer (appends), the collector goroutine is the sole
// consumer (advances the head). Grounded on
// original_source/tests/unit_tests/test-epoch-gc.cpp's use of a bounded SPSC
// ring; see DESIGN.md.
type ring struct {
	buf  [ringSize]stagedObject
	head atomic.Uint64 // consumer-owned
	tail atomic.Uint64 // producer-owned
	next atomic.Pointer[ring]
}

func newRing() *ring { return &ring{} }

// tryPush appends to the ring; returns false if full.
func (r *ring) tryPush(obj any, epoch uint64) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head >= ringSize {
		return false
	}
	r.buf[tail%ringSize] = stagedObject{object: obj, epoch: epoch}
	r.tail.Store(tail + 1)
	return true
}

// peek returns the oldest unconsumed entry without removing it.
func (r *ring) peek() (stagedObject, bool) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head >= tail {
		return stagedObject{}, false
	}
	return r.buf[head%ringSize], true
}

// advance removes the oldest unconsumed entry.
func (r *ring) advance() {
	r.head.Add(1)
}

// drained reports whether every entry has been consumed.
func (r *ring) drained() bool {
	return r.head.Load() >= r.tail.Load()
}
