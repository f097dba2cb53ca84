package cache

import (
	"testing"

	"github.com/Voskan/arena-cache/internal/clockpro"
)

func newTestHandle(t *testing.T, key, value string) *clockpro.Handle[string, string] {
	t.Helper()
	clock := clockpro.NewClock[string, string](1<<30, nil, nil)
	return clock.Insert(key, value, 1)
}

func TestValueStoreAllocGetRelease(t *testing.T) {
	vs := newValueStore[string, string]()
	h := newTestHandle(t, "k", "v")

	idx := vs.alloc(h)
	got := vs.get(idx)
	if got == nil || got.Entry().Value != "v" {
		t.Fatalf("get(%d) = %v, want handle for v", idx, got)
	}

	vs.release(idx)
	if got := vs.get(idx); got != nil {
		t.Fatalf("get after release = %v, want nil", got)
	}
}

func TestValueStoreGetOutOfRangeIsNil(t *testing.T) {
	vs := newValueStore[string, string]()
	if got := vs.get(999_999); got != nil {
		t.Fatalf("get(out-of-range) = %v, want nil", got)
	}
}

func TestValueStoreReleaseIsIdempotent(t *testing.T) {
	vs := newValueStore[string, string]()
	h := newTestHandle(t, "k", "v")
	idx := vs.alloc(h)

	vs.release(idx)
	vs.release(idx) // must not panic
}

func TestValueStoreGrowsAcrossSegments(t *testing.T) {
	vs := newValueStore[string, string]()

	indices := make([]uint64, 0, segmentSlots+10)
	for i := 0; i < int(segmentSlots)+10; i++ {
		h := newTestHandle(t, "k", "v")
		indices = append(indices, vs.alloc(h))
	}

	if len(vs.segments) < 2 {
		t.Fatalf("expected allocation to span multiple segments, got %d", len(vs.segments))
	}

	for _, idx := range indices {
		if vs.get(idx) == nil {
			t.Fatalf("get(%d) = nil after allocation", idx)
		}
	}
}

func TestValueStoreWithStrideStillAllocatesUniqueSlots(t *testing.T) {
	vs := newValueStoreWithStride[string, string](4)

	seen := map[uint64]bool{}
	for i := 0; i < 50; i++ {
		h := newTestHandle(t, "k", "v")
		idx := vs.alloc(h)
		if seen[idx] {
			t.Fatalf("alloc returned duplicate index %d under a striped search", idx)
		}
		seen[idx] = true
		if vs.get(idx) == nil {
			t.Fatalf("get(%d) = nil right after alloc", idx)
		}
	}
}

func TestValueStoreReusesReleasedSlots(t *testing.T) {
	vs := newValueStore[string, string]()
	h1 := newTestHandle(t, "a", "1")
	idx1 := vs.alloc(h1)
	vs.release(idx1)

	h2 := newTestHandle(t, "b", "2")
	idx2 := vs.alloc(h2)

	if idx2 != idx1 {
		t.Fatalf("alloc after release = %d, want reused slot %d", idx2, idx1)
	}
	if vs.get(idx2).Entry().Value != "2" {
		t.Fatalf("reused slot holds stale handle")
	}
}
