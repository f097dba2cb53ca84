package hashtable

import (
	"github.com/Voskan/arena-cache/internal/hashing"
	"github.com/Voskan/arena-cache/internal/unsafehelpers"
)

// keyArena is the minimal external-key storage contract the hash table core
// needs: an append-only byte store addressed by offset, used when a key is
// too long to inline (spec §3.1, §4.1.2 external-key path). internal/arena's
// Arena satisfies this.
type keyArena interface {
	Bytes(offset uint64, length int) []byte
	Append(data []byte) (offset uint64, err error)
}

// groupHalfHashes returns a pointer to the groupSize half-hashes starting at
// the group owning slot index `start` (start must already be group-aligned).
func groupHalfHashes(t *Table, start uint64) *[groupSize]uint32 {
	return (*[groupSize]uint32)(t.halfHashes[start : start+groupSize])
}

// matchesKey compares a candidate slot's stored key against key, resolving
// external storage through arena when the slot isn't inline.
func matchesKey(s *Slot, key []byte, arena keyArena) bool {
	if s.isInline() {
		return s.matchesInlineKey(key)
	}
	if arena == nil || int(s.keyLen) != len(key) {
		return false
	}
	stored := arena.Bytes(s.extPtr, int(s.keyLen))
	return unsafehelpers.BytesEqual(stored, key)
}

// probeFind scans key's neighborhood starting at home for an existing,
// non-deleted match. Returns (slot, index, true) on a hit, or
// (nil, 0, false) if the neighborhood holds no match. Within a group the
// half-hash prefilter runs before key bytes are touched; groups past the
// home group are scanned only when the home group's overflow counter is set.
func probeFind(t *Table, key []byte, half uint32, home uint64, arena keyArena) (*Slot, uint64, bool) {
	groupStart := hashing.RoundDownGroup(home)
	homeGroup := groupStart
	end := t.neighborhoodEnd(home)

	for groupStart < end {
		halves := groupHalfHashes(t, groupStart)
		mask := selectedMatcher.match(halves, half)
		for mask != 0 {
			bit := trailingZeros16(uint16(mask))
			mask &^= matchMask(1) << bit
			idx := groupStart + uint64(bit)
			s := &t.slots[idx]
			if !s.isFilled() || s.isDeleted() {
				continue
			}
			if matchesKey(s, key, arena) {
				return s, idx, true
			}
		}
		if groupStart == homeGroup && !t.groupAt(homeGroup).hasOverflow() {
			return nil, 0, false
		}
		groupStart += groupSize
	}
	return nil, 0, false
}

// probeInsertionPoint scans key's neighborhood for the first EMPTY or
// DELETED slot, preferring the earliest-encountered candidate exactly as
// cachegrand's linear neighborhood scan does (spec §4.1.3 "Set", first
// sub-step). The owning group's overflow counter is marked whenever the
// returned slot lies outside the home bucket's own group, so future
// probeFind calls know they must keep scanning past the home group.
func probeInsertionPoint(t *Table, home uint64) (*Slot, uint64, bool) {
	groupStart := hashing.RoundDownGroup(home)
	end := t.neighborhoodEnd(home)
	homeGroup := groupStart

	for groupStart < end {
		for i := uint64(0); i < groupSize; i++ {
			idx := groupStart + i
			s := &t.slots[idx]
			if s.isEmpty() || s.isDeleted() {
				if groupStart != homeGroup {
					t.groupAt(homeGroup).markOverflow()
				}
				return s, idx, true
			}
		}
		groupStart += groupSize
	}
	return nil, 0, false
}

// trailingZeros16 returns the index of the lowest set bit in v, or 16 if v
// is zero. Kept local and tiny rather than pulling in math/bits for one
// 16-bit use.
func trailingZeros16(v uint16) uint16 {
	if v == 0 {
		return 16
	}
	var n uint16
	for v&1 == 0 {
		v >>= 1
		n++
	}
	return n
}
