package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed = errors.New("token store closed")
	ErrFull   = errors.New("token store full")
)

// Store is the slot storage behind a Table: a slice of entries plus a free
// list, each slot carrying a generation bumped on every release.
type Store struct {
	entries  []entry
	freeList []int
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value  any
	typeID uint32
	gen    uint32
	valid  bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:  make([]entry, 0, 16),
		freeList: make([]int, 0, 16),
	}
}

// Create stores a value and returns a handle.
func (s *Store) Create(typeID uint32, value any) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	if n := len(s.freeList); n > 0 {
		slot := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		e := &s.entries[slot]
		e.typeID = typeID
		e.value = value
		e.valid = true
		return makeHandle(slot, e.gen), nil
	}

	if len(s.entries) >= MaxLive {
		return 0, ErrFull
	}
	s.entries = append(s.entries, entry{typeID: typeID, value: value, valid: true})
	return makeHandle(len(s.entries)-1, 0), nil
}

func (s *Store) lookup(h Handle) *entry {
	slot := h.slot()
	if h == 0 || slot < 0 || slot >= len(s.entries) {
		return nil
	}
	e := &s.entries[slot]
	if !e.valid || e.gen&genMask != h.gen() {
		return nil
	}
	return e
}

// Get retrieves a value by handle.
func (s *Store) Get(h Handle) (any, uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.lookup(h)
	if e == nil {
		return nil, 0, false
	}
	return e.value, e.typeID, true
}

// Drop releases a slot and returns its value.
func (s *Store) Drop(h Handle) (any, uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(h)
	if e == nil {
		return nil, 0, false
	}
	value, typeID := e.value, e.typeID
	e.value = nil
	e.valid = false
	e.gen++
	s.freeList = append(s.freeList, h.slot())
	return value, typeID, true
}

// Len returns the number of live handles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) - len(s.freeList)
}

// Each iterates over live handles.
func (s *Store) Each(fn func(Handle, uint32, any) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, e := range s.entries {
		if e.valid {
			if !fn(makeHandle(i, e.gen), e.typeID, e.value) {
				break
			}
		}
	}
}

// Close drops every value and refuses further inserts.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for i := range s.entries {
		if s.entries[i].valid {
			if d, ok := s.entries[i].value.(Dropper); ok {
				d.Drop()
			}
		}
	}
	s.entries = nil
	s.freeList = nil
	return nil
}
