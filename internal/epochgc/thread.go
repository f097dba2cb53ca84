package epochgc

import (
	"sync/atomic"
)

// GCThread is the per-worker reclamation state: a monotonic epoch counter and
// the list of staged-object rings the worker appends to (spec §3.1
// EpochGcThread). ringHead/ringTail are atomic pointers rather than
// mutex-guarded fields since the owning worker (producer) and the collector
// (consumer) touch them concurrently without a shared lock, matching the
// single-producer/single-consumer discipline spec §5 requires.
type GCThread struct {
	typeID     ObjectTypeID
	epoch      atomic.Uint64
	terminated atomic.Bool

	ringHead atomic.Pointer[ring] // oldest ring, consumed by the collector
	ringTail atomic.Pointer[ring] // newest ring, appended to by this thread
}

// newGCThread constructs a thread's state with one empty ring and epoch 0.
func newGCThread(typeID ObjectTypeID) *GCThread {
	r := newRing()
	t := &GCThread{typeID: typeID}
	t.ringHead.Store(r)
	t.ringTail.Store(r)
	return t
}

// Epoch returns the thread's current epoch.
func (t *GCThread) Epoch() uint64 { return t.epoch.Load() }

// AdvanceEpochByOne bumps the thread's epoch by exactly one tick. Callers
// must not still hold pointers obtained before the advance (spec §4.3): in
// practice this means workers call it between requests, never mid-request.
func (t *GCThread) AdvanceEpochByOne() {
	t.epoch.Add(1)
}

// stage enqueues (object, currentEpoch) into the thread's newest ring,
// appending a fresh ring on overflow (spec §4.3 "Stage"). Only the owning
// worker goroutine may call this.
func (t *GCThread) stage(object any) bool {
	epoch := t.epoch.Load()
	for {
		tail := t.ringTail.Load()
		if tail.tryPush(object, epoch) {
			return true
		}

		fresh := newRing()
		if tail.next.CompareAndSwap(nil, fresh) {
			t.ringTail.CompareAndSwap(tail, fresh)
		}
		// Either we linked fresh, or another producer already did (shouldn't
		// happen under the single-producer contract, but stay defensive) —
		// either way loop and retry the push against the now-current tail.
	}
}

// terminate marks the thread as no longer producing new work; the collector
// drains any remaining staged objects and then unlinks it (spec §3.3, §4.3
// "Thread termination").
func (t *GCThread) terminate() {
	t.terminated.Store(true)
}

// Terminated reports whether the owning worker has shut down.
func (t *GCThread) Terminated() bool { return t.terminated.Load() }
