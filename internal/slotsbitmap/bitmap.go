// Package slotsbitmap implements a shard-partitioned, CAS-only atomic bitmap
// that hands out monotonic, reusable slot indices under heavy multi-thread
// contention. It backs pkg/cache's value store, which maps the slot indices
// the hash table stores per key to cached values.
//
// Grounded on
// original_source/src/data_structures/slots_bitmap_mpmc/slots_bitmap_mpmc.c;
// see DESIGN.md.
//
// © 2025 arena-cache authors. MIT License.
package slotsbitmap

import (
	"sync/atomic"
)

// ShardSize is the number of slot indices one shard's atomic word protects:
// 14 bits of "in use" flags, packed alongside a 7-bit used-count in the same
// 64-bit word (spec §3.1/§4.2).
const ShardSize = 14

// usedCountShift places the 7-bit used-count field above the 14 in-use bits.
const usedCountShift = ShardSize

// inUseMask isolates the low 14 bits holding the per-slot occupancy flags.
const inUseMask = uint64(1)<<ShardSize - 1

// NoSlot is the sentinel returned when no free slot could be found.
const NoSlot = ^uint64(0)

// firstFreeBit is a 256-entry lookup table keyed on a byte of the shard's
// in-use field; it accelerates the linear "first zero bit" scan within a
// shard (spec §4.2). Index i -> position of lowest zero bit in i, or 8 if
// i == 0xFF (fully occupied within that byte).
var firstFreeBit [256]uint8

func init() {
	for i := 0; i < 256; i++ {
		b := uint8(i)
		pos := uint8(8)
		for bit := uint8(0); bit < 8; bit++ {
			if b&(1<<bit) == 0 {
				pos = bit
				break
			}
		}
		firstFreeBit[i] = pos
	}
}

// findFirstZero returns the position (0..13) of the first clear bit in the
// 14-bit in-use field of word, or ShardSize if the field is full. The low
// byte is resolved via the lookup table; the remaining 6 high bits (there are
// only ShardSize-8 of them) are checked with a short scalar loop since a
// second 256-entry table would be wasted on 6 bits of range.
func findFirstZero(word uint64) uint8 {
	inUse := word & inUseMask
	low := uint8(inUse & 0xFF)
	if pos := firstFreeBit[low]; pos < 8 {
		return pos
	}
	for bit := uint8(8); bit < ShardSize; bit++ {
		if inUse&(1<<bit) == 0 {
			return bit
		}
	}
	return ShardSize
}

func usedCount(word uint64) uint8 {
	return uint8((word >> usedCountShift) & 0x7F)
}

// Bitmap is a contiguous array of shards, each guarding ShardSize slot
// indices with lock-free CAS operations (spec invariant 6).
type Bitmap struct {
	shards []atomic.Uint64
	size   uint64 // shards*ShardSize, the total addressable slot count
}

// New constructs a bitmap able to allocate `size` slot indices (0..size-1).
// size is rounded up to a whole number of shards.
func New(size uint64) *Bitmap {
	if size == 0 {
		size = 1
	}
	shardCount := (size + ShardSize - 1) / ShardSize
	b := &Bitmap{
		shards: make([]atomic.Uint64, shardCount),
		size:   shardCount * ShardSize,
	}
	return b
}

// Size returns the total number of addressable slot indices.
func (b *Bitmap) Size() uint64 { return b.size }

// Allocate issues a currently-free slot index, or NoSlot if the bitmap is
// full. Equivalent to AllocateWithStep(0, 1).
func (b *Bitmap) Allocate() uint64 {
	return b.AllocateWithStep(0, 1)
}

// AllocateWithStep issues a free slot index, scanning shards starting at
// `start` and advancing by `step` so independent callers (e.g. one per
// worker thread) can stripe their search and reduce contention (spec §4.2).
//
// If a shard is found free but the CAS to claim a bit in it fails (another
// thread won the race), the search does *not* retry that shard — it moves on
// and records that a second full pass is required, converting a potential
// live-lock into bounded extra scans (spec §4.2 "this converts worst-case
// live-lock into bounded extra scans").
func (b *Bitmap) AllocateWithStep(start, step uint16) uint64 {
	if step == 0 {
		step = 1
	}
	shardCount := uint16(len(b.shards))
	if shardCount == 0 {
		return NoSlot
	}

	for pass := 0; pass < 2; pass++ {
		restart := false
		for shardIdx := start; shardIdx < shardCount; shardIdx += step {
			shard := &b.shards[shardIdx]
			word := shard.Load()
			if usedCount(word) >= ShardSize {
				continue
			}
			bit := findFirstZero(word)
			if bit >= ShardSize {
				continue
			}
			newWord := (word | (uint64(1) << bit)) + (1 << usedCountShift)
			if !shard.CompareAndSwap(word, newWord) {
				restart = true
				continue
			}
			return uint64(shardIdx)*ShardSize + uint64(bit)
		}
		if !restart {
			break
		}
	}
	return NoSlot
}

// Release clears the bit for slotIndex, tolerating races: releasing an
// already-clear bit is a no-op (spec §4.2).
func (b *Bitmap) Release(slotIndex uint64) {
	shardIdx := slotIndex / ShardSize
	bit := slotIndex % ShardSize
	if shardIdx >= uint64(len(b.shards)) {
		return
	}
	shard := &b.shards[shardIdx]
	for {
		word := shard.Load()
		if word&(1<<bit) == 0 {
			return // already clear
		}
		newWord := (word &^ (1 << bit)) - (1 << usedCountShift)
		if shard.CompareAndSwap(word, newWord) {
			return
		}
	}
}

// IsSet reports whether slotIndex is currently allocated.
func (b *Bitmap) IsSet(slotIndex uint64) bool {
	shardIdx := slotIndex / ShardSize
	bit := slotIndex % ShardSize
	if shardIdx >= uint64(len(b.shards)) {
		return false
	}
	return b.shards[shardIdx].Load()&(1<<bit) != 0
}

// Iter returns the next set slot index >= from, or NoSlot if none remain.
// Used by snapshotters to walk live slots (spec §4.2 "Iteration").
func (b *Bitmap) Iter(from uint64) uint64 {
	if from >= b.size {
		return NoSlot
	}
	shardIdx := from / ShardSize
	bitStart := from % ShardSize
	for ; shardIdx < uint64(len(b.shards)); shardIdx++ {
		word := b.shards[shardIdx].Load()
		for bit := bitStart; bit < ShardSize; bit++ {
			if word&(1<<bit) != 0 {
				return shardIdx*ShardSize + bit
			}
		}
		bitStart = 0
	}
	return NoSlot
}
