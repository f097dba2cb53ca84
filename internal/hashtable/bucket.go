// Package hashtable implements the concurrent, in-memory, fixed-address,
// neighborhood-probing hash table at the core of arena-cache: open
// addressing with bounded cache-line neighborhoods, half-hash prefilters,
// and an at-most-one-slot-per-key publication protocol that lets many
// goroutines read and write the table without a global lock.
//
// Grounded on original_source/src/hashtable/*.c (cachegrand) and spec §3–§4;
// see DESIGN.md for the per-file ledger.
//
// © 2025 arena-cache authors. MIT License.
package hashtable

import (
	"sync/atomic"

	"github.com/Voskan/arena-cache/internal/hashing"
	"github.com/Voskan/arena-cache/internal/unsafehelpers"
)

// InlineKeyMaxSize is the largest key length stored inline inside a
// BucketSlot; longer keys are stored externally (spec §3.1, boundary
// behavior in spec §8: "23-byte key is inline; 24-byte key is external").
const InlineKeyMaxSize = 23

// Slot flags (spec §3.1 BucketSlot.flags). DELETED and FILLED are mutually
// exclusive in steady state, but the publication protocol briefly sets both
// while retiring a slot (see Delete) before a later Set clears DELETED.
const (
	flagEmpty     uint8 = 0
	flagDeleted   uint8 = 1 << 0
	flagFilled    uint8 = 1 << 1
	flagKeyInline uint8 = 1 << 2
)

// Slot is one position in the bucket array (spec §3.1 BucketSlot). Field
// order follows the teacher's own entry struct
// (pkg/cache.go's `entry[K,V]`) and cachegrand's `hashtable_bucket_key_value`:
// hot fields first, flags published last via a release fence.
type Slot struct {
	flags atomic.Uint32 // only the low byte is meaningful; atomic.Uint32 avoids a 1-byte CAS on platforms without one

	value uint64 // opaque 8-byte payload: a slotsbitmap index into the owning shard's value arena

	keyLen uint32 // length of the real key, inline or external
	extPtr uint64 // external-key arena offset when !inline (0 when inline or empty)

	inlineKey [InlineKeyMaxSize]byte
}

// Flags returns the slot's current flag byte with an acquire fence: per spec
// §5, "a reader that observes flags == FILLED observes all prior writes (key,
// value, half-hash) to that slot."
func (s *Slot) Flags() uint8 {
	return uint8(s.flags.Load())
}

func (s *Slot) isEmpty() bool   { return s.Flags() == flagEmpty }
func (s *Slot) isFilled() bool  { return s.Flags()&flagFilled != 0 }
func (s *Slot) isDeleted() bool { return s.Flags()&flagDeleted != 0 }
func (s *Slot) isInline() bool  { return s.Flags()&flagKeyInline != 0 }

// Value loads the slot's payload. Valid only after the caller has observed
// isFilled() on the same read.
func (s *Slot) Value() uint64 { return atomic.LoadUint64(&s.value) }

// casValue attempts to replace the slot's payload, used by Set's fast path
// (spec §4.1.3 step 1: "attempt a CAS on data to install the new value").
func (s *Slot) casValue(old, new uint64) bool {
	return atomic.CompareAndSwapUint64(&s.value, old, new)
}

// keyBytesInline returns a view over the inline key bytes.
func (s *Slot) keyBytesInline() []byte {
	return s.inlineKey[:s.keyLen]
}

// matchesInlineKey compares key against an inline slot's stored bytes.
func (s *Slot) matchesInlineKey(key []byte) bool {
	if int(s.keyLen) != len(key) {
		return false
	}
	return unsafehelpers.BytesEqual(s.keyBytesInline(), key)
}

// writeInline publishes an inline key into the slot. Must be called only by
// the goroutine holding the owning group's write lock, before the flags
// store that makes the slot visible (spec §3.2 invariant 3).
func (s *Slot) writeInline(key []byte) {
	copy(s.inlineKey[:], key)
	s.keyLen = uint32(len(key))
	s.extPtr = 0
}

// writeExternal publishes an external-key descriptor (offset into the
// owning table's key arena). Same call-site discipline as writeInline.
func (s *Slot) writeExternal(arenaOffset uint64, keyLen int) {
	s.extPtr = arenaOffset
	s.keyLen = uint32(keyLen)
}

// setFlagsRelease stores flags with a preceding release fence, per spec
// invariant 3 ("a release fence preceding the flags store"). Go's
// atomic.Store already carries release semantics on all supported platforms,
// so no additional fence primitive is required.
func (s *Slot) setFlagsRelease(flags uint8) {
	s.flags.Store(uint32(flags))
}

// orFlags atomically ORs extra into the flags byte without ever making a
// FILLED slot appear EMPTY to a concurrent reader (spec §4.1.4: "never
// clearing FILLED in a non-atomic way that would make the slot observably
// empty before readers can re-check").
func (s *Slot) orFlags(extra uint8) uint8 {
	for {
		old := s.flags.Load()
		nv := old | uint32(extra)
		if s.flags.CompareAndSwap(old, nv) {
			return uint8(old)
		}
	}
}

// clearAll resets a slot to EMPTY; only legal during a resize migration or a
// neighborhood GC pass that has already staged the slot's external key for
// reclamation (spec §3.2 invariant 2: DELETED slots return to EMPTY only at
// resize/compaction).
func (s *Slot) clearAll() {
	s.flags.Store(uint32(flagEmpty))
	atomic.StoreUint64(&s.value, 0)
	s.keyLen = 0
	s.extPtr = 0
}

// groupHeader is the per-cacheline-group metadata: an overflow counter
// (nonzero once a key has ever probed past this group), a live-slot count,
// and a single-bit spinlock serializing writers within the group (spec
// §3.1 "16-bit per-line overflow counter plus a 7-bit in-use count and a
// write lock bit").
type groupHeader struct {
	overflow atomic.Uint32 // widened from the spec's 16 bits for simplicity; semantics unchanged
	inUse    atomic.Uint32 // widened from 7 bits for the same reason
	locked   atomic.Bool
}

// lock spins until it acquires the group's write lock. There is no
// non-blocking variant: Set, Delete, retireDuplicate and
// CollectNeighborhoodGC all call lock(), each for a short critical section
// (one slot publication or tombstone, or one group's tombstone sweep).
func (g *groupHeader) lock() {
	for !g.locked.CompareAndSwap(false, true) {
		// brief spin; the critical section under the lock is O(1) (a single
		// slot publication), so contention windows are short.
	}
}

func (g *groupHeader) unlock() {
	g.locked.Store(false)
}

func (g *groupHeader) markOverflow() {
	g.overflow.Add(1)
}

func (g *groupHeader) hasOverflow() bool {
	return g.overflow.Load() > 0
}

func (g *groupHeader) incInUse() { g.inUse.Add(1) }
func (g *groupHeader) decInUse() {
	for {
		v := g.inUse.Load()
		if v == 0 {
			return
		}
		if g.inUse.CompareAndSwap(v, v-1) {
			return
		}
	}
}

// hashing.GroupSize slots share one groupHeader.
const groupSize = hashing.GroupSize
