// Package clockpro implements the CLOCK-Pro replacement policy used to
// decide which cache entries to evict once a shard's byte budget is
// exceeded.
//
// Reference: Qingqing He, Jun Wang, "CLOCK-Pro: An Effective Improvement of
// the CLOCK Replacement", USENIX 2005.
//
// Our flavour is simplified for the arena-cache use-case:
//   - user-supplied "weight" stands in for page size.
//   - Hot/Cold/Test states are folded into a single byte (see state_*
//     consts).
//   - The algorithm runs inside shard-level critical sections, i.e.
//     *external* synchronisation is guaranteed — therefore this package is
//     free of explicit locking and all mutation is single-threaded.
//
// Entries are owned outright by Clock (via Insert, which returns an opaque
// *Handle) rather than reached through an unsafe.Pointer cast of a
// caller-owned struct: earlier revisions stored entries behind
// unsafe.Pointer to share layout with pkg/cache's own bookkeeping struct,
// which meant the eviction callback could never recover a typed V from that
// pointer generically. Holding K and V directly inside Entry[K, V] removes
// the cast and lets callEjectCb pass the real value through.
//
// IMPORTANT: this package is internal and MUST NOT be imported by user
// code.
//
// © 2025 arena-cache authors. MIT License.
package clockpro

// EvictionReason explains why Clock called the user's eviction callback.
type EvictionReason uint8

const (
	ReasonCapacity   EvictionReason = iota + 1 // displaced by CLOCK-Pro
	ReasonGeneration                           // generation TTL expired (ghost)
)

const (
	stateCold uint8 = 0b00
	stateHot  uint8 = 0b01
	stateTest uint8 = 0b10 // ghost: metadata only, value already evicted
	refBit    uint8 = 0b10000000
	freqBit   uint8 = 0b01000000 // PolicyLFU only: "seen referenced once while cold already"
)

// Policy biases the CLOCK-Pro hand's promotion/demotion rule without
// swapping in a different data structure (pkg/cache's WithEvictionPolicy).
type Policy uint8

const (
	// PolicyDefault runs the algorithm exactly as published: a referenced
	// cold entry promotes to hot the first time the hand revisits it.
	PolicyDefault Policy = iota
	// PolicyLRU is an alias for PolicyDefault: CLOCK-Pro's one-touch
	// cold->hot promotion already approximates recency-ordered eviction.
	PolicyLRU
	// PolicyLFU requires an entry to be seen referenced on two separate
	// hand sweeps while cold before it promotes to hot, approximating a
	// frequency count with one extra bit instead of a full counter.
	PolicyLFU
	// PolicyTTL disregards hot/cold/reference state entirely and evicts
	// in ring (insertion) order, treating generation age as the only
	// signal.
	PolicyTTL
)

// Entry is the metadata CLOCK-Pro tracks per live key, plus the value
// itself so eviction can hand it back to the caller's callback.
type Entry[K comparable, V any] struct {
	Hash   uint64
	Key    K
	Value  V
	Weight uint32
	GenID  uint32
	state  uint8
}

type metaNode[K comparable, V any] struct {
	next, prev *metaNode[K, V]
	entry      *Entry[K, V]
}

// Handle is the opaque token Insert returns; pass it back to Remove or
// SetReferenced. It is only valid for the Clock instance that produced it.
type Handle[K comparable, V any] struct {
	node *metaNode[K, V]
}

// SetReferenced marks h's entry as recently accessed, called by the shard
// on every cache hit.
func (h *Handle[K, V]) SetReferenced() {
	h.node.entry.state |= refBit
}

// Entry exposes the live metadata so callers can inspect weight/genID
// without walking the ring themselves.
func (h *Handle[K, V]) Entry() *Entry[K, V] { return h.node.entry }

// IsGhost reports whether h's entry was downgraded by GenerationEvicted:
// its generation has aged out, so the shard should treat a hit against it
// as an expired miss and lazily remove it rather than serving a stale
// value (spec's TTL semantics, enforced by the caller on the next touch
// rather than by an eager background sweep).
func (h *Handle[K, V]) IsGhost() bool {
	return h.node.entry.state&0b11 == stateTest
}

// UpdateWeight adjusts h's accounted weight (e.g. after Put overwrites an
// existing key with a differently-sized value) and re-runs eviction if the
// new total now exceeds capacity.
func (c *Clock[K, V]) UpdateWeight(h *Handle[K, V], newWeight int) {
	c.size += int64(newWeight) - int64(h.node.entry.Weight)
	h.node.entry.Weight = uint32(newWeight)
	c.evictIfNeeded()
}

// Clock is the CLOCK-Pro supervisor for one shard's keyspace.
type Clock[K comparable, V any] struct {
	head     *metaNode[K, V] // circular list; the hand points here
	size     int64           // current "used bytes" (sum of weights of HOT+COLD)
	capacity int64           // byte budget (per shard)

	weightFn func(V) int
	ejectCb  func(K, V, EvictionReason)
	policy   Policy
}

// WeightOf runs the configured weight function, defaulting to 1 when none
// was supplied, so callers outside the ring (e.g. a cache's GetOrLoad) can
// size a value the same way Insert would.
func (c *Clock[K, V]) WeightOf(v V) int {
	if c.weightFn == nil {
		return 1
	}
	return c.weightFn(v)
}

// SetPolicy changes the promotion/demotion bias applied by future
// evictIfNeeded passes. Safe to call at any time since the shard mutator
// already holds the lock that serializes every other Clock method.
func (c *Clock[K, V]) SetPolicy(p Policy) {
	c.policy = p
}

// NewClock constructs the CLOCK-Pro supervisor. weightFn and ejectCb come
// from the shard's configuration.
func NewClock[K comparable, V any](capacity int64, weightFn func(V) int, ejectCb func(K, V, EvictionReason)) *Clock[K, V] {
	return &Clock[K, V]{
		capacity: capacity,
		weightFn: weightFn,
		ejectCb:  ejectCb,
	}
}

func (c *Clock[K, V]) append(e *Entry[K, V]) *metaNode[K, V] {
	n := &metaNode[K, V]{entry: e}
	if c.head == nil {
		n.next, n.prev = n, n
		c.head = n
		return n
	}
	tail := c.head.prev
	tail.next = n
	n.prev = tail
	n.next = c.head
	c.head.prev = n
	return n
}

func (c *Clock[K, V]) remove(n *metaNode[K, V]) {
	if n.next == nil {
		return // already unlinked (e.g. by the hand sweeping a ghost)
	}
	if n.next == n {
		c.head = nil
		n.next, n.prev = nil, nil
		return
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	if c.head == n {
		c.head = n.next
	}
	n.next, n.prev = nil, nil
}

// Insert registers a freshly created key/value pair with CLOCK-Pro, sizing
// it via the configured weightFn, and returns a handle the shard retains
// for SetReferenced/Remove. The shard mutator already holds its lock, so
// eviction runs synchronously if capacity is now exceeded.
func (c *Clock[K, V]) Insert(key K, value V, genID uint32) *Handle[K, V] {
	return c.InsertWeighted(key, value, c.WeightOf(value), genID)
}

// InsertWeighted is Insert with an explicit weight, bypassing weightFn. The
// shard uses this for Put calls that carry a caller-supplied weight rather
// than relying on the configured default (spec §4: Put's weight parameter
// must win over WithWeightFn when both are present).
func (c *Clock[K, V]) InsertWeighted(key K, value V, weight int, genID uint32) *Handle[K, V] {
	e := &Entry[K, V]{
		Key:    key,
		Value:  value,
		Weight: uint32(weight),
		GenID:  genID,
		state:  stateCold,
	}
	n := c.append(e)
	c.size += int64(weight)
	c.evictIfNeeded()
	return &Handle[K, V]{node: n}
}

// Remove deletes h's entry from the metadata ring (called on an explicit
// Cache.Delete). It does not touch arena memory; the caller is responsible
// for reclaiming the value's storage.
func (c *Clock[K, V]) Remove(h *Handle[K, V]) {
	if h == nil || h.node == nil {
		return
	}
	if h.node.entry.state&0b11 != stateTest {
		c.size -= int64(h.node.entry.Weight)
	}
	c.remove(h.node)
}

// GenerationEvicted notifies CLOCK-Pro that every entry referencing genID
// no longer holds live bytes (its generation's arena was freed). Those
// entries are downgraded to the TEST (ghost) state so they still influence
// future admission decisions without accounting for memory they no longer
// occupy.
func (c *Clock[K, V]) GenerationEvicted(genID uint32) {
	if c.head == nil {
		return
	}
	n := c.head
	for {
		if n.entry.GenID == genID && n.entry.state&stateTest == 0 {
			n.entry.state = stateTest
			c.size -= int64(n.entry.Weight)
		}
		n = n.next
		if n == c.head {
			return
		}
	}
}

// evictIfNeeded runs the simplified CLOCK-Pro hand until size is back
// within capacity.
func (c *Clock[K, V]) evictIfNeeded() {
	if c.size <= c.capacity || c.head == nil {
		return
	}
	if c.policy == PolicyTTL {
		c.evictFIFO()
		return
	}
	hand := c.head
	for c.size > c.capacity {
		st := hand.entry.state
		switch st & 0b11 {
		case stateHot:
			if st&refBit != 0 {
				hand.entry.state &^= refBit
			} else {
				hand.entry.state = stateCold
			}
		case stateCold:
			if c.policy == PolicyLFU {
				hand = c.coldStepLFU(hand)
				continue
			}
			if st&refBit != 0 {
				hand.entry.state = stateHot &^ refBit
			} else {
				c.callEjectCb(hand.entry, ReasonCapacity)
				hand.entry.state = stateTest
				c.size -= int64(hand.entry.Weight)
			}
		case stateTest:
			nxt := hand.next
			c.remove(hand)
			hand = nxt
			continue
		}
		hand = hand.next
	}
	c.head = hand
}

// coldStepLFU advances a cold entry under PolicyLFU: a first reference only
// sets freqBit (remembered, stays cold); a second reference (freqBit already
// set) promotes to hot; no reference evicts immediately, same as default.
func (c *Clock[K, V]) coldStepLFU(hand *metaNode[K, V]) *metaNode[K, V] {
	st := hand.entry.state
	switch {
	case st&refBit != 0 && st&freqBit != 0:
		hand.entry.state = (stateHot &^ refBit) &^ freqBit
	case st&refBit != 0:
		hand.entry.state = (st &^ refBit) | freqBit
	default:
		c.callEjectCb(hand.entry, ReasonCapacity)
		hand.entry.state = stateTest
		c.size -= int64(hand.entry.Weight)
	}
	return hand.next
}

// evictFIFO implements PolicyTTL: ignore hot/cold/reference bits and evict
// strictly in ring order, since genring's rotation already drives TTL
// expiry upstream and this policy's only job is to keep capacity eviction
// consistent with that age-based ordering.
func (c *Clock[K, V]) evictFIFO() {
	hand := c.head
	for c.size > c.capacity && hand != nil {
		if hand.entry.state&0b11 == stateTest {
			nxt := hand.next
			c.remove(hand)
			hand = nxt
			continue
		}
		nxt := hand.next
		c.callEjectCb(hand.entry, ReasonCapacity)
		c.size -= int64(hand.entry.Weight)
		c.remove(hand)
		if nxt == hand {
			hand = nil
			break
		}
		hand = nxt
	}
	c.head = hand
}

func (c *Clock[K, V]) callEjectCb(ent *Entry[K, V], reason EvictionReason) {
	if c.ejectCb == nil {
		return
	}
	c.ejectCb(ent.Key, ent.Value, reason)
}
