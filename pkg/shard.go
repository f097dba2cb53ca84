package cache

// shard.go contains the sharded segment of arena-cache. A Cache is split
// into N independent shards to minimise lock contention. Each shard now
// wraps an internal/hashtable.Data (the lock-free neighborhood-probing
// core) instead of a bare Go map: the table stores key bytes -> a uint64
// slot index, and valueStore resolves that index to the real (K, V,
// *clockpro.Handle) bookkeeping a generic Go value needs.
//
// Every shard operation (get/put/delete/rotate/resize) takes the shard's
// single mutex. This mirrors cachegrand's thread-per-core model: within one
// shard, operations are logically serial, exactly like one worker thread
// processing its connections one at a time; concurrency in this cache comes
// from *across* shards, not within one. That serialization is also what
// makes epochgc meaningful here without needing per-goroutine epoch
// pinning: since only one logical sequence of operations ever touches a
// given shard's GCThread, staging a freed value-slot index at Delete time
// and reclaiming it a tick later (rather than synchronously) guards against
// an external collaborator — e.g. code handed a value by a write-through
// eject callback — that might still be holding a reference briefly after
// Delete returns.
//
// The shard is *not* exposed from the public API: all exported types live in
// pkg/cache.go. Shards are created and managed by the top-level Cache
// object.
//
// © 2025 arena-cache authors. MIT License.

import (
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Voskan/arena-cache/internal/arena"
	"github.com/Voskan/arena-cache/internal/clockpro"
	"github.com/Voskan/arena-cache/internal/epochgc"
	"github.com/Voskan/arena-cache/internal/genring"
	"github.com/Voskan/arena-cache/internal/hashing"
	"github.com/Voskan/arena-cache/internal/hashtable"
	"github.com/Voskan/arena-cache/internal/unsafehelpers"
)

// shard owns all mutable structures for a slice of the key-space.
type shard[K comparable, V any] struct {
	id uint8
	mu sync.Mutex

	table       *hashtable.Data
	extKeyArena *arena.Arena // long-lived, non-rotating: the canonical store for external (>23-byte) keys
	values      *valueStore[K, V]
	clock       *clockpro.Clock[K, V]
	genRing     *genring.Ring[K, V]
	gc          *epochgc.GCThread

	metrics    metricsSink
	autoResize bool

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// newShard constructs an empty shard. It assumes the caller already
// validated all arguments (capBytes > 0, ttl > 0, etc.)
func newShard[K comparable, V any](id uint8, capBytes int64, ttl time.Duration, cfg *config[K, V], gcRegistry *epochgc.Registry, metrics metricsSink) *shard[K, V] {
	s := &shard[K, V]{
		id:          id,
		table:       hashtable.NewData(cfg.initialTableCap, hashing.Seed),
		extKeyArena: arena.New(),
		values:      newValueStoreWithStride[K, V](pinStride(cfg.cpuPinMask)),
		genRing:     genring.New[K, V](capBytes, ttl),
		autoResize:  cfg.autoResize,
		metrics:     metrics,
	}

	weightFn := func(v V) int {
		if w := cfg.weightFn(v); w > 0 {
			return w
		}
		return 1
	}
	ejectCb := func(k K, v V, r clockpro.EvictionReason) {
		s.evictions.Add(1)
		s.metrics.incEvict(s.id)
		if cfg.ejectCb != nil {
			cfg.ejectCb(k, v, EjectReason(r))
		}
	}
	s.clock = clockpro.NewClock[K, V](capBytes, weightFn, ejectCb)
	s.clock.SetPolicy(toClockPolicy(cfg.evictionPolicy))

	gcRegistry.RegisterObjectType(epochgc.ObjectTypeID(id), s.reclaimValueSlots)
	s.gc = gcRegistry.ThreadInit(epochgc.ObjectTypeID(id))

	return s
}

// pinStride turns a CPU affinity mask into a value-store allocation stride:
// one bit set per CPU this shard's goroutines are pinned to, and the count
// becomes the step of valueStore's bitmap search (WithCPUPinMask). A zero
// mask means "no pinning hint", which
// newValueStoreWithStride treats as stride 1 (plain linear search).
func pinStride(mask uint64) uint16 {
	return uint16(bits.OnesCount64(mask))
}

func toClockPolicy(p EvictionPolicy) clockpro.Policy {
	switch p {
	case EvictionPolicyLRU:
		return clockpro.PolicyLRU
	case EvictionPolicyLFU:
		return clockpro.PolicyLFU
	case EvictionPolicyTTL:
		return clockpro.PolicyTTL
	default:
		return clockpro.PolicyDefault
	}
}

// reclaimValueSlots is the epochgc destructor for this shard's object type:
// every staged object is a uint64 value-slot index due for release.
func (s *shard[K, V]) reclaimValueSlots(objects []any) {
	for _, obj := range objects {
		s.values.release(obj.(uint64))
	}
}

// get returns the value stored for key, or (zero, false) on a miss — either
// because the key was never set, or because its entry has aged past its
// generation's TTL and is lazily expired here.
func (s *shard[K, V]) get(key K) (val V, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.gc.AdvanceEpoch()

	keyBytes := unsafehelpers.KeyBytes(key)
	idx, found := s.table.Get(keyBytes, s.extKeyArena)
	if !found {
		s.misses.Add(1)
		s.metrics.incMiss(s.id)
		return val, false
	}

	h := s.values.get(idx)
	if h == nil {
		s.misses.Add(1)
		s.metrics.incMiss(s.id)
		return val, false
	}

	if h.IsGhost() {
		s.removeLocked(keyBytes, idx, h)
		s.misses.Add(1)
		s.metrics.incMiss(s.id)
		return val, false
	}

	h.SetReferenced()
	s.hits.Add(1)
	s.metrics.incHit(s.id)
	return h.Entry().Value, true
}

// put inserts or updates a value under key with the given weight.
func (s *shard[K, V]) put(key K, val V, weight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.gc.AdvanceEpoch()

	keyBytes := unsafehelpers.KeyBytes(key)
	cur := s.table.Current()

	if idx, found := cur.Get(keyBytes, s.extKeyArena); found {
		if oldH := s.values.get(idx); oldH != nil {
			if !oldH.IsGhost() {
				oldH.Entry().Value = val
				s.clock.UpdateWeight(oldH, weight)
				s.maybeRotate(weight)
				return
			}
			// Stale generation: drop the ghost's bookkeeping and fall
			// through to install a fresh entry under the same table slot.
			s.clock.Remove(oldH)
			s.values.release(idx)
		}
	}

	genID := s.genRing.Active().ID()
	h := s.clock.InsertWeighted(key, val, weight, genID)
	idx := s.values.alloc(h)

	outcome, _, err := cur.Set(keyBytes, idx, s.extKeyArena)
	if err != nil {
		s.values.release(idx)
		s.clock.Remove(h)
		return
	}
	if outcome == hashtable.SetOutcomeFull {
		if !s.autoResize {
			s.values.release(idx)
			s.clock.Remove(h)
			return
		}
		s.growLocked()
		cur = s.table.Current()
		if _, _, err := cur.Set(keyBytes, idx, s.extKeyArena); err != nil {
			s.values.release(idx)
			s.clock.Remove(h)
			return
		}
	}

	s.maybeRotate(weight)
}

// delete removes key from the shard, reporting whether it was present.
func (s *shard[K, V]) delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.gc.AdvanceEpoch()

	keyBytes := unsafehelpers.KeyBytes(key)
	cur := s.table.Current()
	idx, found := cur.Delete(keyBytes, s.extKeyArena, nil)
	if !found {
		return false
	}
	if h := s.values.get(idx); h != nil {
		s.clock.Remove(h)
	}
	s.gc.StageObject(idx)
	return true
}

// removeLocked lazily evicts a ghosted entry discovered by get. Caller
// already holds s.mu.
func (s *shard[K, V]) removeLocked(keyBytes []byte, idx uint64, h *clockpro.Handle[K, V]) {
	s.table.Current().Delete(keyBytes, s.extKeyArena, nil)
	s.clock.Remove(h)
	s.gc.StageObject(idx)
}

// maybeRotate checks the active generation's byte budget and rotates if
// exceeded, notifying CLOCK-Pro about whichever generation falls out of the
// TTL window.
func (s *shard[K, V]) maybeRotate(weightDelta int) {
	if !s.genRing.CheckRotationNeeded(int64(weightDelta)) {
		return
	}
	s.rotate()
}

func (s *shard[K, V]) rotate() {
	deadID, ok := s.genRing.Rotate()
	if !ok {
		return
	}
	s.clock.GenerationEvicted(deadID)
	s.metrics.incRotation(s.id)
	s.metrics.setArenaBytes(s.id, s.genRing.LiveBytes())
}

// growLocked doubles the shard's table capacity and migrates every live
// key into the replacement. Caller already holds s.mu.
func (s *shard[K, V]) growLocked() {
	old := s.table.Current()
	fresh := hashtable.NewTable(hashtable.GrowTarget(old), hashing.Seed)
	if err := hashtable.Migrate(old, fresh, s.extKeyArena); err != nil {
		return
	}
	s.table.Replace(fresh)
	// Migrate already copied every live key, so retire the displaced table
	// now rather than letting Get fall back to its stale contents.
	s.table.Collect()
}

// weightOf exposes the shard's configured weight function so Cache.GetOrLoad
// can size a freshly-loaded value before calling put.
func (s *shard[K, V]) weightOf(val V) int {
	return s.clock.WeightOf(val)
}

// len returns the approximate number of live items.
func (s *shard[K, V]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.table.Current().Filled())
}

// sizeBytes approximates the shard's live byte footprint via genring's
// per-generation accounting.
func (s *shard[K, V]) sizeBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.genRing.LiveBytes()
}

// statsSnapshot returns atomic counters for Prometheus / Cache.Stats.
func (s *shard[K, V]) statsSnapshot() (hits, misses, evict uint64) {
	return s.hits.Load(), s.misses.Load(), s.evictions.Load()
}

// iter walks every live key in this shard under the shard's own lock, so a
// Cache-wide Iter never blocks more than one shard's writers at a time.
func (s *shard[K, V]) iter(fn func(key K, value V) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.table.Current().Iter(s.extKeyArena, func(_ []byte, idx uint64) bool {
		h := s.values.get(idx)
		if h == nil || h.IsGhost() {
			return true
		}
		return fn(h.Entry().Key, h.Entry().Value)
	})
}

// close releases shard resources.
func (s *shard[K, V]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gc.Terminate()
	s.extKeyArena.Free()
}
