package marshal

import (
	"runtime"
	"sync"
	"unsafe"
)

const (
	// Pool limits to prevent memory bloat
	arenaMaxKeep  = 256 // max retained allocations per pooled arena
	arenaInitKeep = 8
)

var arenaPool = sync.Pool{
	New: func() any {
		return &Arena{keep: make([]any, 0, arenaInitKeep)}
	},
}

// Arena hands out Go memory that stays pinned, and therefore safe to give to
// native code, until Release. An arena belongs to one native call:
//
//	a := marshal.NewArena()
//	defer a.Release()
//
// Arenas are not safe for concurrent use.
type Arena struct {
	pinner   runtime.Pinner
	keep     []any
	released bool
}

// NewArena returns an empty arena from the pool.
func NewArena() *Arena {
	a := arenaPool.Get().(*Arena)
	a.released = false
	return a
}

// Release unpins everything and returns the arena to the pool. Calling it
// more than once is a no-op.
func (a *Arena) Release() {
	if a == nil || a.released {
		return
	}
	a.released = true
	a.pinner.Unpin()
	if cap(a.keep) > arenaMaxKeep {
		return // reject oversized
	}
	clear(a.keep)
	a.keep = a.keep[:0]
	arenaPool.Put(a)
}

func (a *Arena) pin(p unsafe.Pointer, owner any) {
	if a.released {
		panic("marshal: use of released arena")
	}
	a.pinner.Pin(p)
	a.keep = append(a.keep, owner)
}

// Bytes returns n zeroed bytes aligned to 8. A request for zero bytes still
// returns a one-byte buffer so the data pointer is never nil.
func (a *Arena) Bytes(n int) []byte {
	words := make([]uint64, max(1, (n+7)/8))
	a.pin(unsafe.Pointer(&words[0]), words)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), max(n, 1))[:n:max(n, 1)]
}

// Copy returns a pinned copy of b.
func (a *Arena) Copy(b []byte) []byte {
	dst := a.Bytes(len(b))
	copy(dst, b)
	return dst
}

// Pointer returns the address of b's first byte. b must come from this arena.
func Pointer(b []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b[:cap(b)]))
}

// CString returns a pinned NUL-terminated copy of s.
func (a *Arena) CString(s string) *byte {
	b := a.Bytes(len(s) + 1)
	copy(b, s)
	return &b[0]
}

// CStrings returns a pinned array of pinned C strings.
func (a *Arena) CStrings(ss []string) **byte {
	if len(ss) == 0 {
		return nil
	}
	ptrs := Alloc[*byte](a, len(ss))
	for i, s := range ss {
		ptrs[i] = a.CString(s)
	}
	return &ptrs[0]
}

// Alloc returns a pinned zeroed slice of n values. It returns nil for n == 0.
func Alloc[T any](a *Arena, n int) []T {
	if n == 0 {
		return nil
	}
	s := make([]T, n)
	a.pin(unsafe.Pointer(&s[0]), s)
	return s
}

// Hold pins p, which must point to Go memory, until Release.
func Hold[T any](a *Arena, p *T) *T {
	if p != nil {
		a.pin(unsafe.Pointer(p), p)
	}
	return p
}

// First returns a pointer to the first element, or nil for an empty slice.
func First[T any](s []T) *T {
	if len(s) == 0 {
		return nil
	}
	return &s[0]
}
