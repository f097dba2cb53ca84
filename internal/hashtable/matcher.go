package hashtable

import "golang.org/x/sys/cpu"

// matchMask marks, in its low groupSize bits, every slot position whose
// half-hash equals target. Bit i set means halfHashes[i] == target.
type matchMask uint16

// groupMatcher compares a group's packed half-hashes against a target value
// in one call (spec §4.1.2: "broadcast half into a SIMD register and compare
// for equality against the 14 half-hashes in one instruction"). Go offers no
// portable SIMD intrinsics without hand-written assembly, so every
// implementation here is a scalar comparator; what's preserved from the C
// source is the *dispatch shape* — one implementation selected once at
// startup from detected CPU features, never re-checked on the hot path
// (spec §9 "Dynamic dispatch for SIMD selection ... prefer trait/interface
// dispatch chosen once at startup"). See DESIGN.md.
type groupMatcher interface {
	match(halfHashes *[groupSize]uint32, target uint32) matchMask
}

type scalarLoopMatcher struct{}

func (scalarLoopMatcher) match(halfHashes *[groupSize]uint32, target uint32) matchMask {
	var mask matchMask
	for i := 0; i < groupSize; i++ {
		if halfHashes[i] == target {
			mask |= matchMask(1) << uint(i)
		}
	}
	return mask
}

// unrolledMatcher avoids the loop-carried branch entirely, which is the
// closest scalar analogue to a widened SIMD compare-and-pack; selected when
// the host advertises wider vector units (even though we do not actually
// emit vector instructions) purely to keep the dispatch table meaningfully
// populated, as cachegrand's own table has one entry per instruction set.
type unrolledMatcher struct{}

func (unrolledMatcher) match(halfHashes *[groupSize]uint32, target uint32) matchMask {
	h := halfHashes
	var mask matchMask
	if h[0] == target {
		mask |= 1 << 0
	}
	if h[1] == target {
		mask |= 1 << 1
	}
	if h[2] == target {
		mask |= 1 << 2
	}
	if h[3] == target {
		mask |= 1 << 3
	}
	if h[4] == target {
		mask |= 1 << 4
	}
	if h[5] == target {
		mask |= 1 << 5
	}
	if h[6] == target {
		mask |= 1 << 6
	}
	if h[7] == target {
		mask |= 1 << 7
	}
	if h[8] == target {
		mask |= 1 << 8
	}
	if h[9] == target {
		mask |= 1 << 9
	}
	if h[10] == target {
		mask |= 1 << 10
	}
	if h[11] == target {
		mask |= 1 << 11
	}
	if h[12] == target {
		mask |= 1 << 12
	}
	if h[13] == target {
		mask |= 1 << 13
	}
	return mask
}

// selectedMatcher is chosen once, at package init, exactly as cachegrand
// selects its AVX-512/AVX2/SSE4.2/scalar function pointer table once during
// hashtable setup.
var selectedMatcher = detectMatcher()

func detectMatcher() groupMatcher {
	if cpu.X86.HasAVX2 || cpu.X86.HasAVX512F || cpu.ARM64.HasASIMD {
		return unrolledMatcher{}
	}
	return scalarLoopMatcher{}
}
