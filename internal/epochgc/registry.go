// Package epochgc implements the epoch-based garbage collector: deferred
// reclamation of memory (external keys, value arena slots, retired hash
// table snapshots) that may still be observed by concurrent readers.
//
// Grounded on spec §4.3/§6.3 and
// original_source/tests/unit_tests/test-epoch-gc.cpp /
// original_source/src/hashtable/hashtable_gc.c. A Registry is built with
// NewRegistry and each owner (a Cache, a hashtable.Data) holds its own;
// there is no process-wide singleton and no Init/Shutdown.
//
// © 2025 arena-cache authors. MIT License.
package epochgc

import (
	"fmt"
	"sync"
)

// ObjectTypeID identifies a class of reclaimable object (spec §4.3 "Object
// type registry").
type ObjectTypeID uint8

// DestructorBatchSize bounds how many staged records one destructor
// invocation receives at a time (spec §4.3 "BATCH").
const DestructorBatchSize = 32

// DestructorFunc frees up to DestructorBatchSize previously staged objects.
type DestructorFunc func(objects []any)

// objectType holds one registered destructor plus every worker thread that
// has staged objects of this type.
type objectType struct {
	destructor DestructorFunc

	mu      sync.Mutex // guards threads; the collector snapshots under this lock
	threads []*GCThread
}

// Registry is the process-wide object-type registry. The zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	mu    sync.Mutex
	types map[ObjectTypeID]*objectType
}

// NewRegistry constructs an empty registry. Call RegisterObjectType once per
// object class during process init, mirroring cachegrand's
// gc_register_object_type.
func NewRegistry() *Registry {
	return &Registry{types: make(map[ObjectTypeID]*objectType)}
}

// RegisterObjectType installs destructor for typeID. Calling it twice for the
// same typeID is a programmer error and panics, matching the "called once at
// init per object class" contract in spec §6.3.
func (r *Registry) RegisterObjectType(typeID ObjectTypeID, destructor DestructorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[typeID]; exists {
		panic(fmt.Sprintf("epochgc: object type %d already registered", typeID))
	}
	r.types[typeID] = &objectType{destructor: destructor}
}

func (r *Registry) lookup(typeID ObjectTypeID) *objectType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.types[typeID]
}

// ThreadInit creates a new per-worker GCThread registered against typeID and
// attaches it to the registry's global thread list for that type (spec §6.3
// gc_thread_init + gc_thread_register_global).
func (r *Registry) ThreadInit(typeID ObjectTypeID) *GCThread {
	ot := r.lookup(typeID)
	if ot == nil {
		panic(fmt.Sprintf("epochgc: object type %d not registered", typeID))
	}
	thread := newGCThread(typeID)
	ot.mu.Lock()
	ot.threads = append(ot.threads, thread)
	ot.mu.Unlock()
	return thread
}

// StageObject retires ptr under thread's current epoch for later destruction
// (spec §6.3 gc_stage_object).
func (thread *GCThread) StageObject(object any) bool {
	return thread.stage(object)
}

// AdvanceEpoch is the public alias for AdvanceEpochByOne, called by workers
// between requests (spec §6.3 gc_thread_advance_epoch).
func (t *GCThread) AdvanceEpoch() { t.AdvanceEpochByOne() }

// Terminate marks thread as shut down (spec §6.3 gc_thread_terminate). The
// collector finishes draining its staged objects and then unlinks it.
func (t *GCThread) Terminate() { t.terminate() }

// snapshotThreads takes a point-in-time copy of the thread list under the
// object type's lock, matching the collector's discipline in spec §5 and
// test-epoch-gc.cpp's consumer thread.
func (ot *objectType) snapshotThreads() []*GCThread {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	out := make([]*GCThread, len(ot.threads))
	copy(out, ot.threads)
	return out
}

// removeThread unlinks a terminated, fully-drained thread.
func (ot *objectType) removeThread(target *GCThread) {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	for i, th := range ot.threads {
		if th == target {
			ot.threads = append(ot.threads[:i], ot.threads[i+1:]...)
			return
		}
	}
}
