package genring

import (
	"testing"
	"time"
)

func TestNewStartsAtGenerationOne(t *testing.T) {
	r := New[string, int](1024, time.Minute)
	g := r.Active()
	if g.ID() != 1 {
		t.Fatalf("initial generation id = %d, want 1", g.ID())
	}
}

func TestRotateFirstPassIsNotOK(t *testing.T) {
	r := New[string, int](1024, time.Minute)
	_, ok := r.Rotate()
	if ok {
		t.Fatal("first rotation should report ok=false: no prior occupant in that slot")
	}
}

func TestRotateEventuallyRecyclesASlot(t *testing.T) {
	r := New[string, int](1024, time.Minute)
	var lastDeadID uint32
	var lastOK bool
	for i := 0; i < defaultGenerations+1; i++ {
		lastDeadID, lastOK = r.Rotate()
	}
	if !lastOK {
		t.Fatal("expected a real generation to be displaced after a full revolution")
	}
	if lastDeadID == 0 {
		t.Fatal("displaced generation id should be nonzero")
	}
}

func TestCheckRotationNeededTripsAtBudget(t *testing.T) {
	r := New[string, int](defaultGenerations*100, time.Minute) // perGenBytes = 100
	if r.CheckRotationNeeded(50) {
		t.Fatal("50/100 bytes should not trip rotation")
	}
	if !r.CheckRotationNeeded(60) {
		t.Fatal("110/100 bytes should trip rotation")
	}
}

func TestActiveArenasAreUsable(t *testing.T) {
	r := New[string, int](1024, time.Minute)
	off, err := r.ActiveValueArena().Append([]byte("value-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if string(r.ActiveValueArena().Bytes(off, len("value-bytes"))) != "value-bytes" {
		t.Fatal("value arena round trip failed")
	}

	koff, err := r.ActiveKeyArena().Append([]byte("external-key"))
	if err != nil {
		t.Fatal(err)
	}
	if string(r.ActiveKeyArena().Bytes(koff, len("external-key"))) != "external-key" {
		t.Fatal("key arena round trip failed")
	}
}

func TestLiveBytesSumsAllGenerations(t *testing.T) {
	r := New[string, int](defaultGenerations*100, time.Minute)
	r.CheckRotationNeeded(30)
	r.Rotate()
	r.CheckRotationNeeded(20)
	total := r.LiveBytes()
	if total != 50 {
		t.Fatalf("LiveBytes = %d, want 50", total)
	}
}
