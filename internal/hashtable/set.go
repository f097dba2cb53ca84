package hashtable

import "github.com/Voskan/arena-cache/internal/hashing"

// SetOutcome reports which of the three branches Set took (spec §4.1.3
// search_key_or_create_new: "resolves to exactly one of found-and-updated,
// created, or table-full").
type SetOutcome uint8

const (
	// SetOutcomeUpdated means key already existed; its value was swapped.
	SetOutcomeUpdated SetOutcome = iota
	// SetOutcomeCreated means a new slot was installed for key.
	SetOutcomeCreated
	// SetOutcomeFull means key's entire neighborhood is occupied by other
	// keys; the caller (pkg/cache's shard) must trigger a resize.
	SetOutcomeFull
)

// Set installs value under key, or updates it if key is already present.
// Long keys (> InlineKeyMaxSize) are appended to keyArena first; the arena
// write happens before the slot is published so a concurrent reader can
// never observe extPtr pointing at not-yet-committed bytes (spec §4.1.3
// step ordering, §3.2 invariant 3).
//
// The insert path takes the home group's write lock for its
// find-or-create critical section: spec §4.1.3's "verify uniqueness"
// requirement means a second neighborhood scan for key must happen
// atomically with respect to other inserters sharing the same home bucket,
// otherwise two goroutines racing on the same new key could each conclude
// "not found" and each install a duplicate slot.
func (t *Table) Set(key []byte, value uint64, arena keyArena) (SetOutcome, uint64, error) {
	full, half := hashing.Hash(key, t.seed)
	home := t.homeIndex(full)

	if s, _, found := probeFind(t, key, half, home, arena); found {
		for {
			old := s.Value()
			if s.casValue(old, value) {
				return SetOutcomeUpdated, old, nil
			}
		}
	}

	homeGroup := t.groupAt(home)
	homeGroup.lock()
	defer homeGroup.unlock()

	if s, _, found := probeFind(t, key, half, home, arena); found {
		old := s.Value()
		s.casValue(old, value)
		return SetOutcomeUpdated, old, nil
	}

	s, idx, ok := probeInsertionPoint(t, home)
	if !ok {
		return SetOutcomeFull, 0, nil
	}

	// The chosen slot may belong to a neighbor group, not homeGroup itself
	// (overflow placement) — take that group's lock too so a Setter with a
	// different, overlapping home can't publish into the same slot
	// concurrently. probeInsertionPoint only returns slots at or after the
	// home group, so this lock is taken on a later group; when the two
	// coincide it is skipped, since lock() is not reentrant.
	targetGroup := t.groupAt(idx)
	if targetGroup != homeGroup {
		targetGroup.lock()
		defer targetGroup.unlock()
	}

	var flags uint8 = flagFilled
	if len(key) <= InlineKeyMaxSize {
		s.writeInline(key)
		flags |= flagKeyInline
	} else {
		if arena == nil {
			return SetOutcomeFull, 0, errExternalKeyNoArena
		}
		offset, err := arena.Append(key)
		if err != nil {
			return SetOutcomeFull, 0, err
		}
		s.writeExternal(offset, len(key))
	}
	atomicStoreValue(s, value)
	t.halfHashes[idx] = half
	s.setFlagsRelease(flags)
	t.groupAt(idx).incInUse()
	t.filled.Add(1)

	t.verifyUniqueAfterInsert(key, half, home, idx, arena, homeGroup, targetGroup)

	return SetOutcomeCreated, 0, nil
}

func atomicStoreValue(s *Slot, value uint64) {
	for {
		old := s.Value()
		if s.casValue(old, value) {
			return
		}
	}
}

// verifyUniqueAfterInsert re-scans key's neighborhood after publishing a new
// slot at idx and retires every duplicate but the earliest-indexed one (spec
// §4.1.3 step 4 / §9: "the verify step is mandatory, not optional"). This
// catches the window the home-group lock alone does not close: two Set
// calls for the same key but *different* homes, whose neighborhoods
// overlap, can each take their own home group's lock, each find nothing,
// and each publish a slot into the shared overflow region. The earlier
// (lower-index) slot always wins; a later duplicate — even the one this
// call just wrote — is retired.
func (t *Table) verifyUniqueAfterInsert(key []byte, half uint32, home, idx uint64, arena keyArena, homeGroup, targetGroup *groupHeader) {
	groupStart := hashing.RoundDownGroup(home)
	end := t.neighborhoodEnd(home)

	survivor := idx
	var matches []uint64

	for groupStart < end {
		halves := groupHalfHashes(t, groupStart)
		mask := selectedMatcher.match(halves, half)
		for mask != 0 {
			bit := trailingZeros16(uint16(mask))
			mask &^= matchMask(1) << bit
			i := groupStart + uint64(bit)
			s := &t.slots[i]
			if !s.isFilled() || s.isDeleted() {
				continue
			}
			if !matchesKey(s, key, arena) {
				continue
			}
			matches = append(matches, i)
			if i < survivor {
				survivor = i
			}
		}
		groupStart += groupSize
	}

	for _, i := range matches {
		if i != survivor {
			t.retireDuplicate(i, homeGroup, targetGroup)
		}
	}
}

// retireDuplicate tombstones the slot at idx, exactly as Delete does, taking
// idx's own group lock unless the caller already holds it (homeGroup or
// targetGroup, passed in from Set's critical section).
func (t *Table) retireDuplicate(idx uint64, homeGroup, targetGroup *groupHeader) {
	g := t.groupAt(idx)
	if g != homeGroup && g != targetGroup {
		g.lock()
		defer g.unlock()
	}

	s := &t.slots[idx]
	if !s.isFilled() || s.isDeleted() {
		return
	}
	s.setFlagsRelease(flagDeleted)
	s.keyLen = 0
	s.extPtr = 0
	g.decInUse()
	t.filled.Add(-1)
}
