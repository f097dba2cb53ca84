package hashtable

import "github.com/Voskan/arena-cache/internal/hashing"

// CollectNeighborhoodGC resets tombstones (DELETED, not FILLED) back to
// EMPTY in the groups from home's group up to
// hashing.RoundUpGroupPlusOne(home), skipping every group whose own overflow
// counter is set (original_source's hashtable_garbage_collect_neighborhood,
// adapted: the C version walks bucket-by-bucket recomputing each survivor's
// ideal distance; this port clears a group's tombstones whenever that group
// has no overflow marker, whether or not it still holds live keys). Returns
// the number of slots reclaimed.
//
// Nothing on the Get/Set/Delete paths calls it; it runs only when a caller
// invokes it explicitly.
func (t *Table) CollectNeighborhoodGC(home uint64) int {
	start := hashing.RoundDownGroup(home)
	end := hashing.RoundUpGroupPlusOne(home)
	if end > t.bucketsCountReal {
		end = t.bucketsCountReal
	}

	cleared := 0
	for g := start; g < end; g += groupSize {
		group := t.groupAt(g)
		group.lock()
		if !group.hasOverflow() {
			limit := g + groupSize
			if limit > t.bucketsCountReal {
				limit = t.bucketsCountReal
			}
			for i := g; i < limit; i++ {
				s := &t.slots[i]
				if s.isDeleted() && !s.isFilled() {
					s.clearAll()
					t.halfHashes[i] = 0
					cleared++
				}
			}
		}
		group.unlock()
	}
	return cleared
}
