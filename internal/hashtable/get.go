package hashtable

import "github.com/Voskan/arena-cache/internal/hashing"

// Get returns key's stored value and true, or (0, false) if key is absent
// (spec §4.1.2 "Get"). Lock-free: a single neighborhood scan guarded only by
// the slot's own acquire-fenced Flags() read.
func (t *Table) Get(key []byte, arena keyArena) (uint64, bool) {
	full, half := hashing.Hash(key, t.seed)
	home := t.homeIndex(full)
	s, _, found := probeFind(t, key, half, home, arena)
	if !found {
		return 0, false
	}
	return s.Value(), true
}

// Contains reports whether key is present, without the caller paying for a
// value load.
func (t *Table) Contains(key []byte, arena keyArena) bool {
	full, half := hashing.Hash(key, t.seed)
	home := t.homeIndex(full)
	_, _, found := probeFind(t, key, half, home, arena)
	return found
}
