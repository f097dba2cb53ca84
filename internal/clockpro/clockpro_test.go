package clockpro

import "testing"

func TestInsertBelowCapacityNeverEvicts(t *testing.T) {
	var evicted []string
	c := NewClock[string, int](100, func(int) int { return 1 }, func(k string, v int, r EvictionReason) {
		evicted = append(evicted, k)
	})
	for i := 0; i < 10; i++ {
		c.Insert(string(rune('a'+i)), i, 1)
	}
	if len(evicted) != 0 {
		t.Fatalf("unexpected evictions: %v", evicted)
	}
}

func TestEvictionCallbackReceivesRealValue(t *testing.T) {
	type payload struct {
		tag string
	}
	var gotKey string
	var gotValue payload
	var gotReason EvictionReason

	c := NewClock[string, payload](1, func(payload) int { return 1 }, func(k string, v payload, r EvictionReason) {
		gotKey, gotValue, gotReason = k, v, r
	})

	c.Insert("first", payload{tag: "A"}, 1)
	c.Insert("second", payload{tag: "B"}, 1) // forces eviction of "first"

	if gotKey != "first" {
		t.Fatalf("evicted key = %q, want %q", gotKey, "first")
	}
	if gotValue.tag != "A" {
		t.Fatalf("evicted value = %+v, want tag A", gotValue)
	}
	if gotReason != ReasonCapacity {
		t.Fatalf("reason = %v, want ReasonCapacity", gotReason)
	}
}

func TestHotEntrySurvivesWhenReferenced(t *testing.T) {
	var evicted []string
	c := NewClock[string, int](2, func(int) int { return 1 }, func(k string, v int, r EvictionReason) {
		evicted = append(evicted, k)
	})
	h1 := c.Insert("keep", 1, 1)
	c.Insert("pad1", 2, 1)
	h1.SetReferenced()
	c.Insert("pad2", 3, 1)
	c.Insert("pad3", 4, 1)

	for _, k := range evicted {
		if k == "keep" {
			t.Fatal("referenced entry was evicted")
		}
	}
}

func TestRemoveDeletesFromRing(t *testing.T) {
	c := NewClock[string, int](100, func(int) int { return 1 }, nil)
	h := c.Insert("x", 1, 1)
	c.Remove(h)
	c.Insert("y", 2, 1) // should not panic walking a corrupted ring
}

func TestGenerationEvictedMarksGhosts(t *testing.T) {
	var evicted int
	c := NewClock[string, int](100, func(int) int { return 1 }, func(string, int, EvictionReason) {
		evicted++
	})
	c.Insert("a", 1, 7)
	c.Insert("b", 2, 7)
	c.Insert("c", 3, 8)

	before := c.size
	c.GenerationEvicted(7)
	if c.size >= before {
		t.Fatalf("expected size to drop after GenerationEvicted, before=%d after=%d", before, c.size)
	}
	if evicted != 0 {
		t.Fatal("GenerationEvicted must not invoke the capacity-eviction callback")
	}
}

func TestIsGhostReflectsGenerationEviction(t *testing.T) {
	c := NewClock[string, int](100, func(int) int { return 1 }, nil)
	h := c.Insert("a", 1, 7)
	if h.IsGhost() {
		t.Fatal("freshly inserted entry reported as ghost")
	}
	c.GenerationEvicted(7)
	if !h.IsGhost() {
		t.Fatal("entry from an evicted generation must report IsGhost() == true")
	}
}

func TestUpdateWeightAdjustsSizeAndCanTriggerEviction(t *testing.T) {
	var evicted []string
	c := NewClock[string, int](4, func(int) int { return 1 }, func(k string, v int, r EvictionReason) {
		evicted = append(evicted, k)
	})
	h := c.Insert("a", 1, 1)
	c.Insert("b", 2, 1)

	c.UpdateWeight(h, 10) // blow past capacity
	if len(evicted) == 0 {
		t.Fatal("UpdateWeight should trigger eviction once size exceeds capacity")
	}
}

func TestWeightOfUsesConfiguredFunctionOrDefaultsToOne(t *testing.T) {
	c := NewClock[string, int](100, func(v int) int { return v * 3 }, nil)
	if got := c.WeightOf(4); got != 12 {
		t.Fatalf("WeightOf(4) = %d, want 12", got)
	}

	noWeightFn := NewClock[string, int](100, nil, nil)
	if got := noWeightFn.WeightOf(99); got != 1 {
		t.Fatalf("WeightOf with nil weightFn = %d, want 1", got)
	}
}

// Under PolicyLFU, an entry needs to be seen referenced on two separate hand
// sweeps while cold before it promotes to hot. "keep" is deliberately
// inserted after a throwaway head entry: the first capacity-triggering
// insert evicts the unreferenced head "a" and stops. "keep" is then
// referenced once, so the next sweep only records that reference
// (cold -> cold+freqBit) instead of promoting or evicting it, and moves on
// to evict the unreferenced "b".
func TestPolicyLFURequiresTwoReferencesToPromote(t *testing.T) {
	var evicted []string
	c := NewClock[string, int](3, func(int) int { return 1 }, func(k string, v int, r EvictionReason) {
		evicted = append(evicted, k)
	})
	c.SetPolicy(PolicyLFU)

	c.Insert("a", 0, 1)
	h := c.Insert("keep", 1, 1)
	c.Insert("b", 2, 1)
	c.Insert("c", 3, 1) // size 4 > capacity 3: the hand starts at "a", unreferenced, and evicts it

	h.SetReferenced()
	c.Insert("d", 4, 1) // size 4 > capacity 3 again: "keep" (ref) gains freqBit and stays; "b" is evicted

	for _, k := range evicted {
		if k == "keep" {
			t.Fatal("entry evicted despite being re-referenced between two hand sweeps")
		}
	}
	if len(evicted) < 2 {
		t.Fatalf("expected two evictions (a, then someone else), got %v", evicted)
	}
}

func TestPolicyTTLEvictsInRingOrderIgnoringReferenceBit(t *testing.T) {
	var evicted []string
	c := NewClock[string, int](2, func(int) int { return 1 }, func(k string, v int, r EvictionReason) {
		evicted = append(evicted, k)
	})
	c.SetPolicy(PolicyTTL)

	h := c.Insert("first", 1, 1)
	h.SetReferenced() // would normally save it under the default policy
	c.Insert("second", 2, 1)
	c.Insert("third", 3, 1) // forces eviction under the 2-unit capacity

	if len(evicted) == 0 {
		t.Fatal("expected PolicyTTL to evict strictly in ring order")
	}
	if evicted[0] != "first" {
		t.Fatalf("first evicted = %q, want %q (oldest, regardless of reference bit)", evicted[0], "first")
	}
}
