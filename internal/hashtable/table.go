package hashtable

import (
	"sync/atomic"

	"github.com/Voskan/arena-cache/internal/hashing"
)

// Table is one generation of the bucket array: a fixed-address slice of
// Slots, a parallel half-hash array for the prefilter, and one groupHeader
// per hashing.GroupSize slots (spec §3.1 HashtableData). Table never
// reallocates once constructed — growing the table means building a new
// Table and migrating into it (see resize.go).
type Table struct {
	bucketsCount     uint64 // requested bucket count, a Primes ladder entry
	bucketsCountReal uint64 // bucketsCount rounded up to whole groups plus neighborhood tail
	cachelinesToProbe uint16
	seed             uint64

	slots      []Slot
	halfHashes []uint32
	groups     []groupHeader

	filled atomic.Int64 // live (FILLED, non-DELETED) slot count, for load-factor decisions
}

// NewTable allocates a Table whose bucketsCount is the smallest Primes
// ladder entry >= minCapacity (spec §3.1).
func NewTable(minCapacity uint64, seed uint64) *Table {
	lookup := minCapacity
	if lookup > 0 {
		lookup-- // NextPrime is strictly greater; this keeps an exact ladder entry
	}
	bucketsCount := hashing.NextPrime(lookup)
	if bucketsCount == 0 {
		bucketsCount = hashing.MaxBuckets
	}
	cachelinesToProbe := hashing.CachelinesToProbe(bucketsCount)
	bucketsCountReal := hashing.BucketsCountReal(bucketsCount, cachelinesToProbe)

	t := &Table{
		bucketsCount:      bucketsCount,
		bucketsCountReal:  bucketsCountReal,
		cachelinesToProbe: cachelinesToProbe,
		seed:              seed,
		slots:             make([]Slot, bucketsCountReal),
		halfHashes:        make([]uint32, bucketsCountReal),
		groups:            make([]groupHeader, bucketsCountReal/groupSize),
	}
	return t
}

// BucketsCount returns the nominal (pre-rounding) bucket count.
func (t *Table) BucketsCount() uint64 { return t.bucketsCount }

// BucketsCountReal returns the true backing-array length, including the
// neighborhood tail (spec §3.1 buckets_count_real).
func (t *Table) BucketsCountReal() uint64 { return t.bucketsCountReal }

// Filled returns the current count of live (non-deleted, filled) slots.
func (t *Table) Filled() int64 { return t.filled.Load() }

// LoadFactor returns filled/bucketsCount, the figure resize.go's
// growth-trigger hook consults (spec §4.1.5).
func (t *Table) LoadFactor() float64 {
	if t.bucketsCount == 0 {
		return 0
	}
	return float64(t.filled.Load()) / float64(t.bucketsCount)
}

// homeIndex computes a key's home bucket from its full hash (spec §4.1.1:
// "index = full_hash mod buckets_count").
func (t *Table) homeIndex(fullHash uint64) uint64 {
	return hashing.Mod(fullHash, t.bucketsCount)
}

// groupAt returns the groupHeader owning slot index i.
func (t *Table) groupAt(i uint64) *groupHeader {
	return &t.groups[i/groupSize]
}

// neighborhoodEnd returns the exclusive end of the probe window starting at
// home: cachelinesToProbe groups counting home's own group, clamped to
// bucketsCountReal (spec §4.1.1).
func (t *Table) neighborhoodEnd(home uint64) uint64 {
	start := hashing.RoundDownGroup(home)
	end := start + uint64(t.cachelinesToProbe)*groupSize
	if end > t.bucketsCountReal {
		end = t.bucketsCountReal
	}
	return end
}
