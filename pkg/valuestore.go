package cache

// valuestore.go backs the uint64 payload internal/hashtable stores per key
// with the real (K, V, handle) bookkeeping a shard needs. The hash table
// itself is generic over nothing but byte keys and opaque uint64 values —
// everything that needs a concrete V lives here, indexed by a
// slotsbitmap-allocated slot number instead of by key.
//
// Fixed addressing matters for the same reason it does in internal/arena:
// once a *clockpro.Handle[K,V] is parked at slot N, N must keep meaning the
// same thing until explicitly released, since the hash table's Slot.value
// field holds N, not a pointer. Growth therefore proceeds by appending whole
// new segments (each with its own slotsbitmap.Bitmap) rather than by
// reallocating a single flat slice, so no existing index is ever
// invalidated by a later allocation.
//
// © 2025 arena-cache authors. MIT License.

import (
	"sync"

	"github.com/Voskan/arena-cache/internal/clockpro"
	"github.com/Voskan/arena-cache/internal/slotsbitmap"
)

// segmentSlots is the number of value-slot indices one segment's bitmap
// manages. Sized to a whole number of slotsbitmap shards.
const segmentSlots = slotsbitmap.ShardSize * 64

type valueSegment[K comparable, V any] struct {
	bitmap *slotsbitmap.Bitmap
	slots  []*clockpro.Handle[K, V]
}

func newValueSegment[K comparable, V any]() *valueSegment[K, V] {
	bm := slotsbitmap.New(segmentSlots)
	return &valueSegment[K, V]{
		bitmap: bm,
		slots:  make([]*clockpro.Handle[K, V], bm.Size()),
	}
}

// valueStore indexes live *clockpro.Handle[K,V] pointers by the uint64 slot
// number the hash table core stores as a key's payload.
type valueStore[K comparable, V any] struct {
	mu       sync.RWMutex
	segments []*valueSegment[K, V]

	// pinStride, when > 1, makes every allocation scan this shard's bitmaps
	// with slotsbitmap.AllocateWithStep, starting at bitmap shard 0 and
	// visiting every pinStride-th shard (WithCPUPinMask). Every allocation
	// uses the same starting shard; alloc runs under mu, so allocations do
	// not run concurrently.
	pinStride uint16
}

func newValueStore[K comparable, V any]() *valueStore[K, V] {
	return &valueStore[K, V]{
		segments:  []*valueSegment[K, V]{newValueSegment[K, V]()},
		pinStride: 1,
	}
}

func newValueStoreWithStride[K comparable, V any](stride uint16) *valueStore[K, V] {
	vs := newValueStore[K, V]()
	if stride > 1 {
		vs.pinStride = stride
	}
	return vs
}

// alloc reserves a fresh slot index for h and returns it. The striped search
// only ever visits every pinStride-th shard of a segment's bitmap, so a
// segment that still has free capacity outside that stride falls back to an
// unstrided scan before alloc gives up on it and grows a new segment —
// striping is a contention hint, not a partition the store depends on for
// correctness.
func (vs *valueStore[K, V]) alloc(h *clockpro.Handle[K, V]) uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	for segIdx, seg := range vs.segments {
		local := seg.bitmap.AllocateWithStep(0, vs.pinStride)
		if local == slotsbitmap.NoSlot && vs.pinStride > 1 {
			local = seg.bitmap.Allocate()
		}
		if local != slotsbitmap.NoSlot {
			seg.slots[local] = h
			return uint64(segIdx)*segmentSlots + local
		}
	}

	seg := newValueSegment[K, V]()
	local := seg.bitmap.AllocateWithStep(0, vs.pinStride)
	segIdx := len(vs.segments)
	vs.segments = append(vs.segments, seg)
	seg.slots[local] = h
	return uint64(segIdx)*segmentSlots + local
}

// get returns the handle parked at idx, or nil if the index is stale or
// out of range.
func (vs *valueStore[K, V]) get(idx uint64) *clockpro.Handle[K, V] {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	segIdx, local := idx/segmentSlots, idx%segmentSlots
	if segIdx >= uint64(len(vs.segments)) {
		return nil
	}
	return vs.segments[segIdx].slots[local]
}

// release returns idx to its segment's free list. Safe to call more than
// once for the same index (the underlying bitmap tolerates double-release).
func (vs *valueStore[K, V]) release(idx uint64) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	segIdx, local := idx/segmentSlots, idx%segmentSlots
	if segIdx >= uint64(len(vs.segments)) {
		return
	}
	seg := vs.segments[segIdx]
	seg.slots[local] = nil
	seg.bitmap.Release(local)
}
