package cache

import (
	"testing"
	"time"

	"github.com/Voskan/arena-cache/internal/epochgc"
)

func newTestShard(t *testing.T, capBytes int64, ttl time.Duration, opts ...Option[string, int]) *shard[string, int] {
	t.Helper()
	cfg := defaultConfig[string, int](capBytes, ttl, 1)
	if err := applyOptions(cfg, opts); err != nil {
		t.Fatalf("applyOptions: %v", err)
	}
	reg := epochgc.NewRegistry()
	s := newShard[string, int](0, capBytes, ttl, cfg, reg, noopMetrics{})
	t.Cleanup(s.close)
	return s
}

func TestShardPutGet(t *testing.T) {
	s := newTestShard(t, 1<<20, time.Minute)
	s.put("k", 42, 1)

	v, ok := s.get("k")
	if !ok || v != 42 {
		t.Fatalf("get(k) = (%d, %v), want (42, true)", v, ok)
	}
}

func TestShardGetMissing(t *testing.T) {
	s := newTestShard(t, 1<<20, time.Minute)
	if _, ok := s.get("nope"); ok {
		t.Fatalf("get(nope) reported a hit on an empty shard")
	}
}

func TestShardDeleteThenGetMisses(t *testing.T) {
	s := newTestShard(t, 1<<20, time.Minute)
	s.put("k", 1, 1)
	if !s.delete("k") {
		t.Fatalf("delete(k) = false, want true")
	}
	if _, ok := s.get("k"); ok {
		t.Fatalf("get(k) after delete reported a hit")
	}
	if n := s.len(); n != 0 {
		t.Fatalf("len() after delete = %d, want 0", n)
	}
}

func TestShardPutOverwriteUpdatesValue(t *testing.T) {
	s := newTestShard(t, 1<<20, time.Minute)
	s.put("k", 1, 1)
	s.put("k", 2, 1)

	v, ok := s.get("k")
	if !ok || v != 2 {
		t.Fatalf("get(k) = (%d, %v), want (2, true)", v, ok)
	}
	if n := s.len(); n != 1 {
		t.Fatalf("len() after overwrite = %d, want 1", n)
	}
}

func TestShardIterVisitsAllLiveKeys(t *testing.T) {
	s := newTestShard(t, 1<<20, time.Minute)
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		s.put(k, v, 1)
	}

	got := map[string]int{}
	s.iter(func(k string, v int) bool {
		got[k] = v
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("iter visited %d keys, want %d", len(got), len(want))
	}
}

func TestShardGrowsBeyondInitialTableSize(t *testing.T) {
	s := newTestShard(t, 1<<20, time.Minute, WithInitialTableSize[string, int](4))

	const n = 200
	for i := 0; i < n; i++ {
		s.put(keyFor(i), i, 1)
	}
	if got := s.len(); got != n {
		t.Fatalf("len() = %d, want %d", got, n)
	}
	for i := 0; i < n; i++ {
		if v, ok := s.get(keyFor(i)); !ok || v != i {
			t.Fatalf("get(%s) = (%d, %v), want (%d, true)", keyFor(i), v, ok, i)
		}
	}
}

func TestShardAutoResizeDisabledStopsInserts(t *testing.T) {
	s := newTestShard(t, 1<<20, time.Minute,
		WithInitialTableSize[string, int](4),
		WithAutoResize[string, int](false))

	inserted := 0
	for i := 0; i < 200; i++ {
		before := s.len()
		s.put(keyFor(i), i, 1)
		if s.len() > before {
			inserted++
		}
	}
	if inserted >= 200 {
		t.Fatalf("expected table-full rejections with auto-resize disabled, got all %d inserts accepted", inserted)
	}
}

func TestShardEvictionUnderCapacityPressure(t *testing.T) {
	var evicted int
	cb := func(key string, val int, reason EjectReason) { evicted++ }

	cfg := defaultConfig[string, int](4, time.Minute, 1)
	cfg.ejectCb = cb
	cfg.weightFn = func(int) int { return 1 }
	reg := epochgc.NewRegistry()
	s := newShard[string, int](0, 4, time.Minute, cfg, reg, noopMetrics{})
	defer s.close()

	for i := 0; i < 20; i++ {
		s.put(keyFor(i), i, 1)
	}
	if evicted == 0 {
		t.Fatalf("expected at least one eviction under 4-byte capacity, got 0")
	}
}

func TestShardTTLRotationGhostsOldGeneration(t *testing.T) {
	cfg := defaultConfig[string, int](1<<20, time.Millisecond, 1)
	cfg.weightFn = func(int) int { return 1 }
	reg := epochgc.NewRegistry()
	s := newShard[string, int](0, 256, time.Millisecond, cfg, reg, noopMetrics{})
	defer s.close()

	s.put("k", 1, 1)
	for i := 0; i < 8; i++ {
		s.rotate()
	}

	// The key's generation should now be a ghost; get() lazily evicts it.
	if _, ok := s.get("k"); ok {
		t.Fatalf("get(k) hit a ghosted generation, want a lazily-expired miss")
	}
}

func keyFor(i int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	if i < len(alphabet) {
		return string(alphabet[i])
	}
	return string(alphabet[i%len(alphabet)]) + string(alphabet[(i/len(alphabet))%len(alphabet)])
}
