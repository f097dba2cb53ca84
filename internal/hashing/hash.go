package hashing

import (
	"github.com/cespare/xxhash/v2"
)

// emptySentinelMask ensures the stored half-hash is never zero: bit 31 is
// forced set, since half-hash 0 is the table's reserved "empty slot" marker
// (spec invariant 1). cachegrand achieves the same effect by folding the
// upper bits of its t1ha2 output; we substitute xxhash (see DESIGN.md) but
// keep the identical fold.
const emptySentinelMask = uint32(0x8000_0000)

// Seed is the process-wide hash seed. cachegrand treats its t1ha2 seed as a
// compile-time constant (spec §4.4); we do the same so that bucket placement
// is reproducible across runs of the same binary, which property-based tests
// rely on.
const Seed = uint64(0x9E3779B97F4A7C15)

// Hash computes the 64-bit digest used to place key in the bucket array and
// derives the 32-bit half-hash stored per slot for SIMD-style prefiltering.
// full feeds the bucket index (index = full mod bucketsCount); half is the
// value compared against the per-group half-hash array.
func Hash(key []byte, seed uint64) (full uint64, half uint32) {
	full = xxhash.Sum64(key) ^ seed
	half = uint32(full>>32) | emptySentinelMask
	return full, half
}
