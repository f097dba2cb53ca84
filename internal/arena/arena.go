// Package arena provides a manual, append-only byte heap used to store
// external (> InlineKeyMaxSize) hash table keys outside
// the Go GC heap, with bulk O(1) release at generation rotation.
//
// This replaces the teacher's original wrapper around the standard
// library's experimental `arena` package, which was gated behind
// `//go:build goexperiment.arenas` — an experiment withdrawn from upstream
// Go, so that file silently compiled out of every normal build. The public
// surface (New, Free, NewValue, MakeSlice, AllocBytes) is kept; see
// DESIGN.md for the rationale.
//
// Internally the heap is a list of fixed-size chunks: once a chunk is
// allocated its backing array is never grown or copied, so every pointer
// handed out by NewValue/MakeSlice/AllocBytes/Append stays valid for the
// arena's lifetime — the "fixed address" property the hash table core
// relies on for external key storage (spec §3.1).
//
// Concurrency
// -----------
// Arena is *not* thread-safe; the parent shard serializes access with its
// own lock, exactly as in the teacher's original doc comment.
//
// © 2025 arena-cache authors. MIT License.
package arena

import (
	"fmt"
	"sort"
	"unsafe"
)

// DefaultChunkSize is the size of each backing chunk (64KiB pages are a
// reasonable default for a value/key heap). A single allocation larger than
// this gets its own dedicated oversized chunk.
const DefaultChunkSize = 64 * 1024

type chunk struct {
	buf  []byte
	used uint32
}

// Arena is a thin new-type wrapper so callers never depend on the chunk
// representation directly, matching the teacher's original intent of
// insulating the rest of the module from the allocator's internals.
type Arena struct {
	chunkSize uint64
	chunks    []*chunk
	chunkBase []uint64 // chunkBase[i] is the global offset chunks[i] starts at
	nextBase  uint64
}

// New constructs an empty arena using DefaultChunkSize pages.
func New() *Arena {
	return NewSized(DefaultChunkSize)
}

// NewSized constructs an empty arena with a caller-chosen page size.
// New uses it with DefaultChunkSize; tests call it directly.
func NewSized(chunkSize uint64) *Arena {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	return &Arena{chunkSize: chunkSize}
}

// Free releases every chunk at once. After the call, every pointer and
// slice previously returned by this Arena is invalid; callers must ensure
// nothing still dereferences them. internal/genring frees a generation's
// arenas directly inside Rotate, and pkg/cache's shard frees its
// external-key arena in close.
func (a *Arena) Free() {
	a.chunks = nil
	a.chunkBase = nil
	a.nextBase = 0
}

func (a *Arena) newChunk(size uint64) *chunk {
	c := &chunk{buf: make([]byte, size)}
	a.chunkBase = append(a.chunkBase, a.nextBase)
	a.chunks = append(a.chunks, c)
	a.nextBase += size
	return c
}

// rawReserve bump-allocates n bytes, starting a fresh chunk if the current
// one can't fit the request, and returns the global offset plus a direct
// view over the reserved bytes.
func (a *Arena) rawReserve(n uint64) (uint64, []byte) {
	if n > a.chunkSize {
		c := a.newChunk(n)
		c.used = uint32(n)
		return a.chunkBase[len(a.chunkBase)-1], c.buf
	}

	var c *chunk
	if len(a.chunks) > 0 {
		c = a.chunks[len(a.chunks)-1]
	}
	if c == nil || uint64(c.used)+n > a.chunkSize {
		c = a.newChunk(a.chunkSize)
	}

	start := uint64(c.used)
	c.used += uint32(n)
	base := a.chunkBase[len(a.chunkBase)-1]
	return base + start, c.buf[start : start+n]
}

// chunkFor resolves a global offset back to its owning chunk and the local
// offset within it, via binary search over chunkBase (the list of chunk
// starts is small — one entry per page, not per allocation).
func (a *Arena) chunkFor(offset uint64) (*chunk, uint64) {
	idx := sort.Search(len(a.chunkBase), func(i int) bool { return a.chunkBase[i] > offset }) - 1
	if idx < 0 || idx >= len(a.chunks) {
		panic(fmt.Sprintf("arena: offset %d out of range", offset))
	}
	return a.chunks[idx], offset - a.chunkBase[idx]
}

// Append copies data into the arena and returns its global offset, the
// addressing scheme internal/hashtable's external-key storage relies on
// (spec §3.1, §4.1.2 external-key path).
func (a *Arena) Append(data []byte) (uint64, error) {
	offset, buf := a.rawReserve(uint64(len(data)))
	copy(buf, data)
	return offset, nil
}

// Bytes returns a view over length bytes starting at offset, the read side
// of the Append contract.
func (a *Arena) Bytes(offset uint64, length int) []byte {
	if length == 0 {
		return nil
	}
	c, local := a.chunkFor(offset)
	return c.buf[local : local+uint64(length)]
}

// NewValue allocates a zero-initialized T inside the arena and returns a
// pointer to it. The pointer is valid until Free() on the arena.
func NewValue[T any](a *Arena) *T {
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		return new(T)
	}
	_, buf := a.rawReserve(uint64(size))
	return (*T)(unsafe.Pointer(&buf[0]))
}

// MakeSlice allocates a slice of length==cap==n inside the arena. The
// backing array is owned by the arena and released only on Free().
func MakeSlice[T any](a *Arena, n int) []T {
	if n <= 0 {
		return nil
	}
	var zero T
	elemSize := unsafe.Sizeof(zero)
	_, buf := a.rawReserve(uint64(n) * uint64(elemSize))
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), n)
}

// AllocBytes copies buf into the arena and returns a reference to the new
// memory — a convenience for callers that want a live slice rather than an
// offset/length pair (pkg/cache's value storage).
func AllocBytes(a *Arena, buf []byte) []byte {
	if len(buf) == 0 {
		return nil
	}
	_, dst := a.rawReserve(uint64(len(buf)))
	copy(dst, buf)
	return dst
}

// UnsafePointer converts an arena-backed pointer to unsafe.Pointer so it can
// be stored inside cache metadata. Rare; kept for parity with the teacher's
// original surface.
func UnsafePointer[T any](p *T) unsafe.Pointer { return unsafe.Pointer(p) }
