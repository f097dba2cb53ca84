package hashtable

// IterFunc is called once per live key during Iter. Returning false stops
// the walk early.
type IterFunc func(key []byte, value uint64) bool

// Iter walks every FILLED, non-DELETED slot in address order (spec §6.1
// ht_iter). Because the backing array has a fixed address for the lifetime
// of this Table, the walk needs no snapshot copy — it is "best effort"
// consistent: a key inserted or removed concurrently with the walk may or
// may not be observed, but the walk itself never races or panics.
//
// key for an inline slot aliases the Table's own backing array and must not
// be retained past the callback; key for an external slot aliases whatever
// arena.Bytes returns, under the same restriction.
func (t *Table) Iter(arena keyArena, fn IterFunc) {
	for i := uint64(0); i < t.bucketsCountReal; i++ {
		s := &t.slots[i]
		if !s.isFilled() || s.isDeleted() {
			continue
		}
		var key []byte
		if s.isInline() {
			key = s.keyBytesInline()
		} else if arena != nil {
			key = arena.Bytes(s.extPtr, int(s.keyLen))
		} else {
			continue
		}
		if !fn(key, s.Value()) {
			return
		}
	}
}
