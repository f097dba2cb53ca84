package hashing

import "testing"

func TestNextPrime(t *testing.T) {
	cases := []struct {
		in   uint64
		want uint64
	}{
		{0, 42},
		{5, 42},
		{42, 101},
		{100, 101},
		{4294967291, 0},
		{4294967292, 0},
	}
	for _, c := range cases {
		if got := NextPrime(c.in); got != c.want {
			t.Errorf("NextPrime(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestModMatchesGoMod(t *testing.T) {
	for _, p := range Primes {
		for _, n := range []uint64{0, 1, p - 1, p, p + 1, p * 3} {
			if got, want := Mod(n, p), n%p; got != want {
				t.Errorf("Mod(%d, %d) = %d, want %d", n, p, got, want)
			}
		}
	}
}

func TestModUnknownPrimeIsZero(t *testing.T) {
	if got := Mod(123, 999); got != 0 {
		t.Errorf("Mod with unknown prime = %d, want 0", got)
	}
}

func TestCachelinesToProbeSchedule(t *testing.T) {
	cases := []struct {
		size uint64
		want uint16
	}{
		{42, 2},
		{100, 4},
		{3389, 4},
		{3390, 6},
		{17203, 7},
		{133821599, 18},
		{133821600, 32},
		{MaxBuckets, 32},
	}
	for _, c := range cases {
		if got := CachelinesToProbe(c.size); got != c.want {
			t.Errorf("CachelinesToProbe(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestRoundDownGroup(t *testing.T) {
	cases := []struct{ in, want uint64 }{
		{0, 0}, {1, 0}, {13, 0}, {14, 14}, {27, 14}, {28, 28},
	}
	for _, c := range cases {
		if got := RoundDownGroup(c.in); got != c.want {
			t.Errorf("RoundDownGroup(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBucketsCountReal(t *testing.T) {
	// 42 buckets -> 3 groups, plus a 2-group tail when cachelinesToProbe==2.
	got := BucketsCountReal(42, 2)
	want := uint64((3 + 2) * GroupSize)
	if got != want {
		t.Errorf("BucketsCountReal(42,2) = %d, want %d", got, want)
	}
}

func TestHashFoldsNonZero(t *testing.T) {
	// Hunt for a key whose half-hash would be zero before folding, and check
	// the fold still applies (top bit always set, so value is never zero).
	for i := 0; i < 100000; i++ {
		key := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
		_, half := Hash(key, Seed)
		if half == 0 {
			t.Fatalf("half-hash folded to zero for key %v", key)
		}
		if half&emptySentinelMask == 0 {
			t.Fatalf("half-hash missing sentinel bit for key %v: %#x", key, half)
		}
	}
}

func TestHashDeterministic(t *testing.T) {
	full1, half1 := Hash([]byte("cachegrand v2"), Seed)
	full2, half2 := Hash([]byte("cachegrand v2"), Seed)
	if full1 != full2 || half1 != half2 {
		t.Fatal("Hash is not deterministic for identical input")
	}
	fullOther, _ := Hash([]byte("cachegrand v3"), Seed)
	if fullOther == full1 {
		t.Fatal("different keys hashed to the same digest (suspicious)")
	}
}
