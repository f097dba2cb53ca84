// Package cache is the public surface of arena-cache: a sharded,
// generic, in-memory cache backed by a lock-free neighborhood-probing hash
// table (internal/hashtable), CLOCK-Pro admission/eviction
// (internal/clockpro), generation-based TTL rotation (internal/genring) and
// epoch-deferred reclamation (internal/epochgc).
//
// © 2025 arena-cache authors. MIT License.
package cache

import (
	"context"
	"time"

	"github.com/Voskan/arena-cache/internal/epochgc"
	"github.com/Voskan/arena-cache/internal/hashing"
	"github.com/Voskan/arena-cache/internal/unsafehelpers"
)

// Cache is the top-level, sharded cache handle.
type Cache[K comparable, V any] struct {
	shards []*shard[K, V]

	gcRegistry *epochgc.Registry
	collector  *epochgc.Collector
	loaders    *loaderGroup[K, V]
}

// New creates a new cache instance with the specified capacity, TTL, and
// shard count.
func New[K comparable, V any](capBytes int64, ttl time.Duration, shards uint8, opts ...Option[K, V]) (*Cache[K, V], error) {
	if capBytes <= 0 {
		return nil, errInvalidCap
	}
	if ttl <= 0 {
		return nil, errInvalidTTL
	}
	if shards == 0 || (shards&(shards-1)) != 0 {
		return nil, errInvalidShards
	}

	cfg := defaultConfig[K, V](capBytes, ttl, shards)
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	metrics := newMetricsSink(int(shards), cfg.registry)
	gcRegistry := epochgc.NewRegistry()

	c := &Cache[K, V]{
		shards:     make([]*shard[K, V], shards),
		gcRegistry: gcRegistry,
		collector:  epochgc.NewCollector(gcRegistry, epochgc.DefaultInterval),
		loaders:    newLoaderGroup[K, V](),
	}
	for i := range c.shards {
		c.shards[i] = newShard[K, V](uint8(i), capBytes/int64(shards), ttl, cfg, gcRegistry, metrics)
	}
	c.collector.Start()

	return c, nil
}

// Put inserts a value into the cache under key with the given weight.
func (c *Cache[K, V]) Put(ctx context.Context, key K, value V, weight int) {
	c.shards[c.shardIndex(key)].put(key, value, weight)
}

// GetOrLoad retrieves a value from the cache, or loads it via loader on a
// miss. Concurrent GetOrLoad calls for the same key are coalesced through a
// shared singleflight group so only one goroutine ever runs loader at a
// time; every other caller waits on and receives its result (spec's
// thundering-herd protection, wired here instead of left dead as in the
// teacher's loader.go).
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, loader LoaderFunc[K, V]) (V, error) {
	sh := c.shards[c.shardIndex(key)]
	if val, ok := sh.get(key); ok {
		return val, nil
	}

	keyHash, _ := hashing.Hash(unsafehelpers.KeyBytes(key), hashing.Seed)
	val, err, _ := c.loaders.load(ctx, keyHash, key, loader)
	if err != nil {
		var zero V
		return zero, err
	}
	sh.put(key, val, sh.weightOf(val))
	return val, nil
}

// Get retrieves a value without invoking a loader on a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.shards[c.shardIndex(key)].get(key)
}

// Delete removes key, reporting whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	return c.shards[c.shardIndex(key)].delete(key)
}

// Iter walks every live key/value pair across all shards, one shard at a
// time, calling fn for each. fn returning false stops iteration for the
// current shard only — semantically a best-effort snapshot, not a
// cache-wide consistent view: puts/deletes racing a shard not yet visited
// are free to happen before Iter reaches it (spec §6.1 ht_iter).
func (c *Cache[K, V]) Iter(fn func(key K, value V) bool) {
	for _, sh := range c.shards {
		sh.iter(fn)
	}
}

// Len returns the total number of items in the cache.
func (c *Cache[K, V]) Len() int {
	total := 0
	for _, sh := range c.shards {
		total += sh.len()
	}
	return total
}

// SizeBytes returns the total (approximate) size in bytes of the cache.
func (c *Cache[K, V]) SizeBytes() int64 {
	total := int64(0)
	for _, sh := range c.shards {
		total += sh.sizeBytes()
	}
	return total
}

// Stats sums hit/miss/eviction counters across every shard.
func (c *Cache[K, V]) Stats() (hits, misses, evictions uint64) {
	for _, sh := range c.shards {
		h, m, e := sh.statsSnapshot()
		hits += h
		misses += m
		evictions += e
	}
	return
}

// shardIndex calculates the index of the shard for a given key. Shard counts
// are restricted to powers of two (validated in New), so a mask is exact and
// avoids internal/hashing.Mod, which only knows the hash table's own prime
// ladder and silently returns 0 for any other modulus.
func (c *Cache[K, V]) shardIndex(key K) int {
	full, _ := hashing.Hash(unsafehelpers.KeyBytes(key), hashing.Seed)
	return int(full & uint64(len(c.shards)-1))
}

// Close stops the background reclamation collector and releases every
// shard's resources.
func (c *Cache[K, V]) Close() {
	c.collector.Stop()
	for _, sh := range c.shards {
		sh.close()
	}
}
