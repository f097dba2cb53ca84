package slotsbitmap

import (
	"sync"
	"testing"
)

func TestAllocateSequential(t *testing.T) {
	b := New(14)
	seen := make(map[uint64]bool)
	for i := 0; i < 14; i++ {
		idx := b.Allocate()
		if idx == NoSlot {
			t.Fatalf("unexpected NoSlot at allocation %d", i)
		}
		if seen[idx] {
			t.Fatalf("slot %d allocated twice", idx)
		}
		seen[idx] = true
	}
	if got := b.Allocate(); got != NoSlot {
		t.Fatalf("15th allocation from a 14-slot bitmap = %d, want NoSlot", got)
	}
}

func TestReleaseThenReallocate(t *testing.T) {
	b := New(14)
	idxs := make([]uint64, 14)
	for i := range idxs {
		idxs[i] = b.Allocate()
	}
	b.Release(7)
	if !wasAllocated(idxs, 7) {
		t.Skip("slot 7 was never handed out by this allocation order")
	}
	got := b.Allocate()
	if got != 7 {
		t.Fatalf("after releasing 7, next Allocate() = %d, want 7", got)
	}
}

func wasAllocated(idxs []uint64, target uint64) bool {
	for _, v := range idxs {
		if v == target {
			return true
		}
	}
	return false
}

func TestReleaseIsIdempotent(t *testing.T) {
	b := New(14)
	idx := b.Allocate()
	b.Release(idx)
	b.Release(idx) // no-op, must not panic or corrupt used-count
	got := b.Allocate()
	if got != idx {
		t.Fatalf("Allocate() after double release = %d, want %d", got, idx)
	}
}

func TestIter(t *testing.T) {
	b := New(28)
	a := b.Allocate()
	c := b.Allocate()
	_ = a
	_ = c
	b.Release(0) // may be a no-op depending on allocation order; exercise it regardless
	first := b.Iter(0)
	if first == NoSlot {
		t.Fatal("expected at least one set bit")
	}
	if !b.IsSet(first) {
		t.Fatalf("Iter returned %d but IsSet reports false", first)
	}
}

func TestConcurrentAllocateNoDuplicates(t *testing.T) {
	const slots = 14 * 64
	b := New(slots)
	var wg sync.WaitGroup
	results := make(chan uint64, slots+64)
	for w := uint16(0); w < 8; w++ {
		wg.Add(1)
		go func(start uint16) {
			defer wg.Done()
			for {
				idx := b.AllocateWithStep(start, 8)
				if idx == NoSlot {
					return
				}
				results <- idx
			}
		}(w)
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool)
	for idx := range results {
		if seen[idx] {
			t.Fatalf("slot %d allocated more than once under contention", idx)
		}
		seen[idx] = true
	}
	if uint64(len(seen)) != slots {
		t.Fatalf("allocated %d distinct slots, want %d", len(seen), slots)
	}
}
