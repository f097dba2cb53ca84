package hashtable

import (
	"sync/atomic"

	"github.com/Voskan/arena-cache/internal/epochgc"
)

// oldGenerationTypeID is the epochgc object type a Data instance registers
// its own replaced table generations under. Each Data gets its own Registry
// rather than sharing one with the owning shard's value-slot reclamation,
// since the two have nothing in common to batch together — this one only
// ever stages *Table pointers.
const oldGenerationTypeID epochgc.ObjectTypeID = 0

// Data is the resize-aware handle a shard holds: the live table plus, only
// while a migration is in flight, the table being replaced (spec §3.1
// HashtableData's ht_current / ht_old pair; §3.3 "the pre-resize data is
// freed only after all readers have migrated, tracked via the epoch GC").
// Current() and the write paths (Set/Delete/Iter, invoked by the owning
// shard on its own lock) only ever touch current; Get/Contains fall back to
// old so a lock-free reader racing a resize still observes every live key.
//
// A resize never blocks a Get, only a concurrent Set racing the migration's
// own Set calls into fresh (which Migrate serializes itself via the
// destination table's own group locks).
type Data struct {
	current  atomic.Pointer[Table]
	old      atomic.Pointer[Table]
	resizing atomic.Bool

	gc        *epochgc.Registry
	gcThread  *epochgc.GCThread
	collector *epochgc.Collector
}

// NewData constructs a Data with a freshly allocated Table of the given
// minimum capacity.
func NewData(minCapacity, seed uint64) *Data {
	d := &Data{gc: epochgc.NewRegistry()}
	d.current.Store(NewTable(minCapacity, seed))

	d.gc.RegisterObjectType(oldGenerationTypeID, func(objects []any) {
		// Reclaiming a retired *Table means nothing more than letting Go's
		// GC see it as unreachable once every reader that might still be
		// mid-probe against it has had its epoch tick forward; clearing old
		// (and the resizing flag) is what drops the last reference Data
		// itself holds.
		d.old.Store(nil)
		d.resizing.Store(false)
	})
	d.gcThread = d.gc.ThreadInit(oldGenerationTypeID)
	d.collector = epochgc.NewCollector(d.gc, epochgc.DefaultInterval)

	return d
}

// Current returns the live table.
func (d *Data) Current() *Table {
	return d.current.Load()
}

// Old returns the table being migrated away from, or nil once no resize is
// in flight. Exposed mainly for tests.
func (d *Data) Old() *Table {
	return d.old.Load()
}

// Resizing reports whether a migration is currently in flight (old != nil).
func (d *Data) Resizing() bool {
	return d.resizing.Load()
}

// Get probes current first, falling back to old until Collect retires it:
// old is the whole table Replace displaced, so a Get racing a resize still
// sees every key Migrate had not yet copied (spec §3.3). Keys deleted from
// current after Replace stay visible through old until Collect runs.
func (d *Data) Get(key []byte, arena keyArena) (uint64, bool) {
	if v, ok := d.current.Load().Get(key, arena); ok {
		return v, true
	}
	if old := d.old.Load(); old != nil {
		return old.Get(key, arena)
	}
	return 0, false
}

// Contains is Get without the value load.
func (d *Data) Contains(key []byte, arena keyArena) bool {
	if d.current.Load().Contains(key, arena) {
		return true
	}
	if old := d.old.Load(); old != nil {
		return old.Contains(key, arena)
	}
	return false
}

// Replace installs fresh as the live table, publishing it atomically to any
// goroutine that next calls Current/Get. The caller must have already
// completed Migrate(old, fresh, arena) before calling Replace.
//
// The table being replaced is not dropped outright: it is staged through
// epochgc exactly as a shard stages a freed value-slot index, and stays
// reachable through Old()/Get's fallback until a later Collect() call
// retires it. This module's only caller (pkg/cache's shard) already
// quiesces writers and runs Migrate to completion before calling Replace,
// so old is redundant for correctness today — the hooks exist so a future
// incremental (non-stop-the-world) migration can populate old before every
// key has been copied and still have Get/Contains see a consistent view,
// per spec §4.1.5's resize skeleton being "hooks only" at this detail
// floor.
func (d *Data) Replace(fresh *Table) {
	previous := d.current.Swap(fresh)
	d.old.Store(previous)
	d.resizing.Store(true)
	d.gcThread.StageObject(previous)
	d.gcThread.AdvanceEpoch()
}

// Collect runs one synchronous epoch-gc sweep, retiring old once it is safe
// to do so, and returns how many generations it reclaimed (0 or 1). Exposed
// for callers that want deterministic collection (tests, or a caller that
// wants old released promptly) instead of leaving it staged indefinitely.
func (d *Data) Collect() uint64 {
	return d.collector.CollectAll()
}
