package symbol

import (
	"sync"
)

// Library is one loaded provider of entry points.
type Library interface {
	// Path identifies the library (file path for shared objects).
	Path() string

	// Lookup returns the entry point as the Go type its catalog entry names.
	Lookup(name string) (any, bool)

	// Close releases the library. Functions obtained from it must not be
	// called afterwards.
	Close() error
}

// Binder is implemented by libraries that need entry points provided by
// other libraries. Bind runs once, after the final table is built.
type Binder interface {
	Bind(t *Table) error
}

// Funcs is an in-process library backed by Go functions. Tests use it in
// place of a shared object; the guest package builds its wasm entry points
// on it.
type Funcs struct {
	funcs   map[string]any
	onClose func() error
	name    string
	mu      sync.RWMutex
	closed  bool
}

// NewFuncs creates an empty in-process library.
func NewFuncs(name string) *Funcs {
	return &Funcs{
		name:  name,
		funcs: make(map[string]any),
	}
}

// Set registers fn under the entry point name. The value must have the Go
// type of the catalog entry or it is rejected at resolution time.
func (f *Funcs) Set(name string, fn any) *Funcs {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funcs[name] = fn
	return f
}

// Unset removes an entry point.
func (f *Funcs) Unset(name string) *Funcs {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.funcs, name)
	return f
}

// OnClose registers a func run once when the library is closed.
func (f *Funcs) OnClose(fn func() error) *Funcs {
	f.onClose = fn
	return f
}

// Path returns the library name.
func (f *Funcs) Path() string {
	return f.name
}

// Lookup returns a registered function.
func (f *Funcs) Lookup(name string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, false
	}
	fn, ok := f.funcs[name]
	return fn, ok
}

// Names returns the registered entry point names.
func (f *Funcs) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.funcs))
	for name := range f.funcs {
		names = append(names, name)
	}
	return names
}

// Closed reports whether Close has run.
func (f *Funcs) Closed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

// Close marks the library closed and runs the OnClose hook once.
func (f *Funcs) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	hook := f.onClose
	f.mu.Unlock()

	if hook != nil {
		return hook()
	}
	return nil
}
