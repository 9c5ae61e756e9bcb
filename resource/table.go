package resource

import (
	"sync"
)

// Table maps tokens to Go values for the duration of native calls.
type Table struct {
	store     *Store
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		store: NewStore(),
	}
}

// Insert adds a value and returns its handle, or 0 when the table is closed
// or full.
func (t *Table) Insert(typeID uint32, value any) Handle {
	handle, err := t.store.Create(typeID, value)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return handle
}

// Acquire inserts value and returns its handle with a release func. The
// usual shape around a native call is:
//
//	h, release := table.Acquire(kind, v)
//	defer release()
//
// release is safe to call more than once.
func (t *Table) Acquire(typeID uint32, value any) (Handle, func()) {
	h := t.Insert(typeID, value)
	if h == 0 {
		return 0, func() {}
	}
	var once sync.Once
	return h, func() {
		once.Do(func() { t.Remove(h) })
	}
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	v, _, ok := t.store.Get(handle)
	return v, ok
}

// GetTyped retrieves a value only if it was inserted with typeID.
func (t *Table) GetTyped(handle Handle, typeID uint32) (any, bool) {
	v, actual, ok := t.store.Get(handle)
	if !ok || actual != typeID {
		return nil, false
	}
	return v, true
}

// Remove drops a handle and returns (value, true) if it was live.
func (t *Table) Remove(handle Handle) (any, bool) {
	value, typeID, ok := t.store.Drop(handle)
	if !ok {
		return nil, false
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	return t.store.Len()
}

// Close drops all values and stops accepting inserts.
func (t *Table) Close() error {
	return t.store.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

// Typed is a type-safe view over a Table for one type id.
type Typed[T any] struct {
	table  *Table
	typeID uint32
}

// NewTyped creates a typed view.
func NewTyped[T any](table *Table, typeID uint32) Typed[T] {
	return Typed[T]{table: table, typeID: typeID}
}

// Insert adds v until it is removed from the table explicitly.
func (t Typed[T]) Insert(v T) Handle {
	return t.table.Insert(t.typeID, v)
}

// Acquire inserts v for the duration of a call.
func (t Typed[T]) Acquire(v T) (Handle, func()) {
	return t.table.Acquire(t.typeID, v)
}

// Get resolves a handle to its value.
func (t Typed[T]) Get(h Handle) (T, bool) {
	v, ok := t.table.GetTyped(h, t.typeID)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Resolve recovers the value behind callback user data.
func (t Typed[T]) Resolve(ud uintptr) (T, bool) {
	return t.Get(FromUserData(ud))
}
