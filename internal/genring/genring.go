// Package genring maintains a circular buffer ("ring") of *generations* —
// time-bounded arena pairs used by arena-cache to implement O(1) TTL
// expiration and bulk memory release.
//
// A *generation* owns:
//   - a value arena and a key arena, reachable through
//     ActiveValueArena/ActiveKeyArena (pkg/cache's shard stores nothing in
//     them: its values live in its value store and its external keys in a
//     per-shard arena of its own);
//   - accounting of bytes (approximate — the caller's weightFn supplies the
//     numbers);
//   - creation timestamp;
//   - a monotonically increasing ID (uint32) so CLOCK-Pro can track ghosts
//     after the arenas themselves have been freed.
//
// Both arenas of a generation are freed together when Rotate displaces it.
//
// Concurrency model
// -----------------
// genring does not use its own locks — the parent shard already serialises
// access with its mutex. All exported methods therefore assume external
// synchronisation except where atomic is explicitly used (byte counters).
//
// © 2025 arena-cache authors. MIT License.
package genring

import (
	"sync/atomic"
	"time"

	"github.com/Voskan/arena-cache/internal/arena"
)

// generation bundles one rotation epoch's storage.
type generation struct {
	id         uint32
	valueArena *arena.Arena // nil once freed
	keyArena   *arena.Arena // nil once freed
	created    time.Time
	bytes      atomic.Int64 // live bytes recorded via the caller's weightFn heuristic
}

func newGeneration(id uint32) *generation {
	return &generation{
		id:         id,
		valueArena: arena.New(),
		keyArena:   arena.New(),
		created:    created(),
	}
}

func created() time.Time { return time.Now() }

// ID returns the stable identifier for the generation.
func (g *generation) ID() uint32 { return g.id }

// ValueArena exposes the generation's value storage. Valid until the
// generation is rotated out, at which point it becomes nil.
func (g *generation) ValueArena() *arena.Arena { return g.valueArena }

// KeyArena exposes the generation's external-key storage.
func (g *generation) KeyArena() *arena.Arena { return g.keyArena }

func (g *generation) addBytes(n int64) { g.bytes.Add(n) }
func (g *generation) size() int64      { return g.bytes.Load() }

// free releases both arenas' memory. The id remains valid as a ghost
// reference for CLOCK-Pro, but allocations must no longer target this
// generation.
func (g *generation) free() {
	if g.valueArena != nil {
		g.valueArena.Free()
		g.valueArena = nil
	}
	if g.keyArena != nil {
		g.keyArena.Free()
		g.keyArena = nil
	}
}

// Generation is the subset of generation state exposed to callers outside
// this package (pkg/cache's shard, mainly for reading a just-rotated-out
// generation's id before handing it to clockpro.GenerationEvicted).
type Generation interface {
	ID() uint32
}

// Ring is the generation carousel a shard drives directly.
type Ring[K comparable, V any] struct {
	gens        []*generation
	activeIdx   int
	ttl         time.Duration
	perGenBytes int64

	idCtr atomic.Uint32
}

const defaultGenerations = 4

// New constructs a generation ring sized for the given per-shard capacity
// and TTL.
func New[K comparable, V any](capBytes int64, ttl time.Duration) *Ring[K, V] {
	if capBytes <= 0 {
		panic("genring: capBytes must be positive")
	}
	if ttl <= 0 {
		panic("genring: ttl must be positive")
	}

	r := &Ring[K, V]{
		ttl:         ttl,
		perGenBytes: capBytes / defaultGenerations,
	}
	if r.perGenBytes == 0 {
		r.perGenBytes = capBytes // tiny caches: single-generation capacity control
	}
	r.gens = make([]*generation, defaultGenerations)

	r.idCtr.Store(1) // id 0 is reserved for "no generation"
	first := newGeneration(r.idCtr.Load())
	r.gens[0] = first
	r.activeIdx = 0
	return r
}

// Active returns the generation currently used for new allocations.
func (r *Ring[K, V]) Active() Generation {
	return r.gens[r.activeIdx]
}

// ActiveValueArena is a convenience accessor for the shard's hot path.
func (r *Ring[K, V]) ActiveValueArena() *arena.Arena {
	return r.gens[r.activeIdx].valueArena
}

// ActiveKeyArena is a convenience accessor for the shard's hot path.
func (r *Ring[K, V]) ActiveKeyArena() *arena.Arena {
	return r.gens[r.activeIdx].keyArena
}

// CheckRotationNeeded is called on every Set. It adds delta bytes to the
// active generation's accounting and returns true once the per-generation
// byte budget is exceeded.
func (r *Ring[K, V]) CheckRotationNeeded(delta int64) bool {
	g := r.gens[r.activeIdx]
	g.addBytes(delta)
	return g.size() > r.perGenBytes
}

// Rotate advances the ring, creates a fresh generation, and frees the
// arenas of whichever generation falls out of the TTL window. The freed
// generation is returned (as its stable id) so the caller can mark its keys
// as ghosts in CLOCK-Pro before the id is ever reused. ok is false only
// before the ring has made a full revolution, when the slot being
// overwritten was never populated.
func (r *Ring[K, V]) Rotate() (deadID uint32, ok bool) {
	nextIdx := (r.activeIdx + 1) % len(r.gens)

	dead := r.gens[nextIdx]
	if dead != nil {
		deadID, ok = dead.id, true
		dead.free()
	}

	newID := r.idCtr.Add(1)
	r.gens[nextIdx] = newGeneration(newID)
	r.activeIdx = nextIdx
	return deadID, ok
}

// LiveBytes sums approximate sizes across all generations. Cheap enough for
// sporadic calls (metrics scrape, Cache.Stats).
func (r *Ring[K, V]) LiveBytes() int64 {
	var total int64
	for _, g := range r.gens {
		if g != nil {
			total += g.size()
		}
	}
	return total
}
