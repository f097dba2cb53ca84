package cache

// Package config contains configuration options for arena-cache.
// It defines default settings and allows customization.

// config.go defines the internal configuration object and the set of
// functional options that can be passed to New[K,V].  A generic Option is used
// so that callbacks retain full type‑safety with respect to the concrete value
// type V and key type K chosen by the user.
//
// Design notes
// ------------
// • All fields are initialised with sensible defaults in defaultConfig().
// • Options never allocate unless strictly necessary – they just capture
//   pointers to external objects (registry, logger …).
// • We hide the struct from public API: users can only influence behaviour via
//   Option[K,V].  This guarantees forward compatibility.
//
// © 2025 arena-cache authors. MIT License.

import (
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"errors"

	"github.com/Voskan/arena-cache/internal/clockpro"
)

// WeightFn calculates an integer weight for the stored value V. The number is
// abstract – the eviction algorithm treats it as *relative* cost (e.g. bytes,
// points, whatever makes sense for the application).  Must always return a
// positive number, otherwise the value is treated as weight=1.
// The function MUST be pure: side‑effects are not allowed.
//
// Implementers should make the function as cheap as possible – it runs each
// time GetOrLoad stores a loaded value (Put uses its explicit weight).

type WeightFn[V any] func(V) int

// EjectCallback is invoked when an item is evicted (TTL expiration is NOT
// considered an eviction – callback is only for capacity based CLOCK‑Pro
// decisions). The reason enum comes from the internal clockpro package but is
// exported through Option for convenience.

type EjectReason = clockpro.EvictionReason

type EjectCallback[K comparable, V any] func(key K, val V, reason EjectReason)

// EvictionPolicy selects which replacement discipline a shard's clockpro
// supervisor approximates. CLOCK-Pro already interpolates between
// recency (LRU-like) and frequency (LFU-like) admission; this knob just
// biases that interpolation, it does not swap in a different data structure
// (spec §6.4).
type EvictionPolicy uint8

const (
	// EvictionPolicyDefault runs CLOCK-Pro unmodified: cold/hot promotion
	// driven purely by the reference bit, matching the teacher's algorithm.
	EvictionPolicyDefault EvictionPolicy = iota
	// EvictionPolicyLRU behaves exactly like EvictionPolicyDefault: a
	// referenced cold entry is promoted to hot the first time the hand
	// revisits it.
	EvictionPolicyLRU
	// EvictionPolicyLFU biases toward frequency: a cold entry must be found
	// referenced on two separate hand sweeps before it is promoted to hot;
	// hot entries are demoted exactly as under the default policy.
	EvictionPolicyLFU
	// EvictionPolicyTTL ignores CLOCK-Pro recency/frequency state entirely
	// and treats generation age (the genring rotation already driving TTL
	// expiry) as the sole eviction signal.
	EvictionPolicyTTL
)

// Option is the functional option passed to New.  It is generic because some
// options (WeightFn, EjectCallback) refer to concrete K/V types.

type Option[K comparable, V any] func(*config[K, V])

// config bundles every knob that influences cache behaviour.  All fields are
// immutable once the Cache is constructed – we do not support live mutation
// from user land; hot‑reload of TTL etc. would complicate correctness proofs.

type config[K comparable, V any] struct {
	// memory & shards are copied from the New() arguments; kept here just for
	// completeness so that all params live in one object.
	capBytes int64
	ttl      time.Duration
	shards   uint8

	// optional knobs
	registry        *prometheus.Registry
	logger          *zap.Logger
	weightFn        WeightFn[V]
	ejectCb         EjectCallback[K, V]
	partID          int // reserved for future partition‑pinning feature
	initialTableCap uint64
	autoResize      bool
	cpuPinMask      uint64
	evictionPolicy  EvictionPolicy

	// derived / pre‑computed values – filled in applyOptions().
	rotationStep time.Duration
}

/*
   ---------------- Default configuration ----------------
*/

func defaultWeightFn[V any](v V) int {
	w := int(unsafe.Sizeof(v))
	if w <= 0 {
		return 1
	}
	return w
}

// defaultInitialTableCap is the minimum bucket count every shard's first
// internal/hashtable.Table starts with, absent WithInitialTableSize.
const defaultInitialTableCap = 64

func defaultConfig[K comparable, V any](capBytes int64, ttl time.Duration, shards uint8) *config[K, V] {
	return &config[K, V]{
		capBytes:        capBytes,
		ttl:             ttl,
		shards:          shards,
		weightFn:        defaultWeightFn[V],
		logger:          zap.NewNop(),
		registry:        nil, // user must opt‑in to metrics
		initialTableCap: defaultInitialTableCap,
		autoResize:      true,
		evictionPolicy:  EvictionPolicyDefault,
	}
}

/*
   ---------------- Functional options exposed to users ----------------
*/

// WithMetrics enables Prometheus metrics collection for the cache instance.
// Passing nil disables metrics (default).
func WithMetrics[K comparable, V any](reg *prometheus.Registry) Option[K, V] {
	return func(c *config[K, V]) {
		c.registry = reg
	}
}

// WithLogger plugs an external zap.Logger.  The logger is kept in the
// configuration; no cache code path writes to it.
func WithLogger[K comparable, V any](l *zap.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWeightFn overrides the default size‑based weight calculation.
// The provided function must be cheap and deterministic.
func WithWeightFn[K comparable, V any](fn WeightFn[V]) Option[K, V] {
	return func(c *config[K, V]) {
		if fn != nil {
			c.weightFn = fn
		}
	}
}

// WithEjectCallback registers a function that will be invoked whenever an item
// is evicted due to capacity pressure (CLOCK‑Pro).  The callback runs in the
// calling goroutine and **must not block** – otherwise overall latency will
// suffer. Heavy IO should be deferred to another goroutine.
func WithEjectCallback[K comparable, V any](cb EjectCallback[K, V]) Option[K, V] {
	return func(c *config[K, V]) {
		c.ejectCb = cb
	}
}

// WithInitialTableSize sets the minimum bucket count each shard's hash table
// starts with, letting a caller who knows their working-set size up front
// skip the early resize steps. The internal/hashing prime ladder still rounds
// this up to the nearest rung.
func WithInitialTableSize[K comparable, V any](buckets uint64) Option[K, V] {
	return func(c *config[K, V]) {
		if buckets > 0 {
			c.initialTableCap = buckets
		}
	}
}

// WithAutoResize toggles whether a shard grows its hash table on its own
// once internal/hashtable.NeedsGrow trips (spec §4.1.5's resize trigger,
// left as an explicit caller decision by the core package). Disabling this
// is only useful for benchmarks that pre-size with WithInitialTableSize and
// want to measure a fixed-capacity table's SetOutcomeFull behavior.
func WithAutoResize[K comparable, V any](enabled bool) Option[K, V] {
	return func(c *config[K, V]) {
		c.autoResize = enabled
	}
}

// WithCPUPinMask supplies a stride hint consumed by each shard's value-slot
// slotsbitmap.Bitmap allocations (spec §6.4): the mask's popcount becomes
// the step of each allocation's bitmap search. Every search starts at
// bitmap shard 0; no per-goroutine starting offset is applied.
func WithCPUPinMask[K comparable, V any](mask uint64) Option[K, V] {
	return func(c *config[K, V]) {
		c.cpuPinMask = mask
	}
}

// WithEvictionPolicy biases the CLOCK-Pro admission/promotion rule (spec
// §6.4). The default interpolates between recency and frequency purely from
// the reference bit, matching the teacher's algorithm unmodified.
func WithEvictionPolicy[K comparable, V any](p EvictionPolicy) Option[K, V] {
	return func(c *config[K, V]) {
		c.evictionPolicy = p
	}
}

/*
   ---------------- Helper: apply options & validate ----------------
*/

// applyOptions copies user‑supplied options into cfg, validates invariants and
// pre‑computes rotationStep.
func applyOptions[K comparable, V any](cfg *config[K, V], opts []Option[K, V]) error {
	for _, opt := range opts {
		opt(cfg)
	}

	// Validation – bail out early with descriptive error.
	if cfg.capBytes <= 0 {
		return errInvalidCap
	}
	if cfg.ttl <= 0 {
		return errInvalidTTL
	}
	if cfg.shards == 0 || (cfg.shards&(cfg.shards-1)) != 0 {
		return errInvalidShards
	}

	// Derive rotation step: we want at least two generations to coexist, so we
	// split TTL into (#gens) slots where #gens = ceil(capBytes / avgArenaSize).
	// For now we assume 4 generations; in future we might autotune this.
	const generations = 4
	cfg.rotationStep = cfg.ttl / generations
	if cfg.rotationStep < time.Millisecond {
		cfg.rotationStep = time.Millisecond
	}
	return nil
}

/*
   ---------------- Error values ----------------
*/

var (
	errInvalidCap    = errors.New("capacity bytes must be > 0")
	errInvalidTTL    = errors.New("ttl must be > 0")
	errInvalidShards = errors.New("shards must be power‑of‑two and > 0")
)
