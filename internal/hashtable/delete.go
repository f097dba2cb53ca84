package hashtable

import "github.com/Voskan/arena-cache/internal/hashing"

// Delete removes key, returning its last value and true, or (0, false) if
// key was absent. The slot is left tombstoned (DELETED set, FILLED cleared)
// rather than reset to EMPTY in place, so that other keys sharing this
// key's neighborhood remain reachable by linear probing until a resize or a
// neighborhood GC pass compacts the group (spec §3.2 invariant 2, §4.1.4
// "Delete").
//
// If the deleted slot held an external key, onExternalKeyFreed is invoked
// after the slot has been tombstoned, with the arena offset and length the
// slot held, so the caller can stage that span for epoch-deferred reclamation rather than
// freeing it while a concurrent reader might still be dereferencing it
// (spec §4.3).
func (t *Table) Delete(key []byte, arena keyArena, onExternalKeyFreed func(offset uint64, length int)) (uint64, bool) {
	full, half := hashing.Hash(key, t.seed)
	home := t.homeIndex(full)

	s, idx, found := probeFind(t, key, half, home, arena)
	if !found {
		return 0, false
	}

	group := t.groupAt(idx)
	group.lock()
	defer group.unlock()

	// Re-check under the lock: another deleter could have raced us between
	// the lock-free probe above and acquiring the lock.
	if !s.isFilled() || s.isDeleted() {
		return 0, false
	}

	value := s.Value()
	wasExternal := !s.isInline()
	extPtr, keyLen := s.extPtr, int(s.keyLen)

	s.orFlags(flagDeleted)
	s.setFlagsRelease(flagDeleted)
	s.keyLen = 0
	s.extPtr = 0

	group.decInUse()
	t.filled.Add(-1)

	if wasExternal && onExternalKeyFreed != nil {
		onExternalKeyFreed(extPtr, keyLen)
	}

	return value, true
}
