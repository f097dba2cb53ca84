package hashtable

// DefaultGrowLoadFactor is the fill ratio at which NeedsGrow reports true
// (spec §4.1.5 "trigger resize once load factor crosses a configurable
// threshold; default 0.75").
const DefaultGrowLoadFactor = 0.75

// NeedsGrow reports whether this Table has crossed DefaultGrowLoadFactor.
// Building the replacement table and migrating into it are the caller's
// responsibility (pkg/cache's shard) — this package deliberately stops at
// providing the trigger and the migration primitive, not an autonomous
// background resizer (spec §4.1.5 Non-goal: "automatic background
// resizing is out of scope; callers drive resize decisions explicitly").
func (t *Table) NeedsGrow() bool {
	return t.LoadFactor() >= DefaultGrowLoadFactor
}

// GrowTarget returns the minimum capacity NewTable should be called with to
// replace old, doubling its nominal bucket count (spec §4.1.5 "growth
// factor 2x").
func GrowTarget(old *Table) uint64 {
	return old.bucketsCount * 2
}

// Migrate copies every live key from old into fresh, in address order.
// Callers are expected to quiesce writers to old (e.g. via the owning
// shard's resize lock) before calling Migrate and to publish fresh as the
// new current table only after Migrate returns (spec §4.1.5 "stop-the-world
// migration: no partial visibility of the new table").
//
// Inline-sized keys are copied into a local scratch array before
// re-inserting; external keys are passed to fresh.Set as read from arena,
// and fresh.Set appends them to arena again at a new offset.
func Migrate(old, fresh *Table, arena keyArena) error {
	var scratch [InlineKeyMaxSize]byte
	var err error
	old.Iter(arena, func(key []byte, value uint64) bool {
		k := key
		if len(key) <= InlineKeyMaxSize {
			n := copy(scratch[:], key)
			k = scratch[:n]
		}
		if _, _, setErr := fresh.Set(k, value, arena); setErr != nil {
			err = setErr
			return false
		}
		return true
	})
	return err
}
