package hashing

// GroupSize is the number of slots sharing one 64-byte cacheline of
// half-hashes plus its header (spec §4.1.1: "bucket groups of 14 slots per
// 64-byte line"). A fallback of 8 (half-line) is permitted by the spec but
// this implementation standardizes on the denser 14-slot layout throughout.
const GroupSize = 14

// cachelinesToProbeStep pairs a bucket-count ceiling with the probe depth to
// use at or below it, ported from cachegrand's
// HASHTABLE_CONFIG_CACHELINES_PRIMENUMBERS_MAP.
type cachelinesToProbeStep struct {
	atMost uint64
	probe  uint16
}

var cachelinesToProbeTable = [...]cachelinesToProbeStep{
	{42, 2},
	{3389, 4},
	{7639, 6},
	{17203, 7},
	{26813, 8},
	{40213, 9},
	{458377, 10},
	{2320651, 12},
	{17622551, 16},
	{89214403, 17},
	{133821599, 18},
	{MaxBuckets, 32},
}

// CachelinesToProbe maps a bucket count to the neighborhood depth (in
// cacheline groups) the prober is allowed to scan, per spec §4.1.1.
func CachelinesToProbe(bucketsCount uint64) uint16 {
	for _, step := range cachelinesToProbeTable {
		if bucketsCount <= step.atMost {
			return step.probe
		}
	}
	return 32
}

// RoundDownGroup rounds a slot index down to the start of its cacheline
// group.
func RoundDownGroup(index uint64) uint64 {
	return (index / GroupSize) * GroupSize
}

// RoundUpGroupPlusOne rounds a slot index up to one-past the end of the
// cacheline group immediately following it, i.e. the exclusive end of the
// 2-group window [floor(index), floor(index)+2*GroupSize) used when
// collapsing duplicate keys across a group boundary (see
// hashtable_roundup_to_cacheline_plus_one in original_source).
func RoundUpGroupPlusOne(index uint64) uint64 {
	return RoundDownGroup(index) + 2*GroupSize
}

// BucketsCountReal rounds bucketsCount up to a whole number of cacheline
// groups and adds one full neighborhood's worth of tail slots so that the
// last home bucket's neighborhood never walks off the end of the backing
// array (spec §3.1 buckets_count_real).
func BucketsCountReal(bucketsCount uint64, cachelinesToProbe uint16) uint64 {
	groups := (bucketsCount + GroupSize - 1) / GroupSize
	tailGroups := uint64(cachelinesToProbe)
	return (groups + tailGroups) * GroupSize
}
