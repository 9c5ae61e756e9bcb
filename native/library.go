package native

import (
	"maps"
	"slices"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
)

// Library is a runtime shared library opened with the platform loader. Entry
// points are bound on first lookup and cached until Close.
//
// System implementations, reload callbacks and the trap handler cannot carry
// user data through C, so each library routes them through one callback of
// its own. Those callbacks stay allocated for the life of the process.
type Library struct {
	path   string
	handle uintptr

	mu     sync.Mutex
	funcs  map[string]any
	closed bool

	implMu    sync.RWMutex
	impls     map[abi.SystemLikeID]abi.SystemExecutionImpl
	implOnce  sync.Once
	implCB    uintptr
	contextID func(ctx uintptr) int32

	reloadMu sync.Mutex
	reloads  map[uintptr]abi.ReloadCallback
	reloadCB uintptr

	trapMu sync.RWMutex
	trap   abi.TrapHandler
	trapCB uintptr
}

// Open loads the shared library at path.
func Open(path string) (*Library, error) {
	if path == "" {
		return nil, errors.LoadFailure(path, errors.InvalidInput(errors.PhaseLoad, "empty path"))
	}
	handle, err := dlopen(path)
	if err != nil {
		return nil, errors.LoadFailure(path, err)
	}
	Logger().Debug("library opened", zap.String("path", path))
	return &Library{
		path:    path,
		handle:  handle,
		funcs:   make(map[string]any),
		impls:   make(map[abi.SystemLikeID]abi.SystemExecutionImpl),
		reloads: make(map[uintptr]abi.ReloadCallback),
	}, nil
}

// Path returns the path the library was opened from.
func (l *Library) Path() string { return l.path }

// Lookup returns the named entry point adapted to its catalog type. It
// reports false for names outside the catalog, for symbols the library does
// not export and after Close.
func (l *Library) Lookup(name string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, false
	}
	if fn, ok := l.funcs[name]; ok {
		return fn, true
	}
	bind, ok := adapters[name]
	if !ok {
		return nil, false
	}
	addr, ok := l.symbol(name)
	if !ok {
		return nil, false
	}
	fn := bind(l, addr)
	l.funcs[name] = fn
	return fn, true
}

// Exports lists the catalog entry points the library exports.
func (l *Library) Exports() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	var names []string
	for _, e := range abi.Catalog {
		if _, ok := l.symbol(e.Name); ok {
			names = append(names, e.Name)
		}
	}
	return names
}

func (l *Library) symbol(name string) (uintptr, bool) {
	addr, err := dlsym(l.handle, name)
	if err != nil || addr == 0 {
		return 0, false
	}
	return addr, true
}

// Close unloads the library. Bound functions must not be called afterwards.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	clear(l.funcs)
	if err := dlclose(l.handle); err != nil {
		return errors.New(errors.PhaseLoad, errors.KindNativeFailure).
			Value(l.path).
			Detail("close %s", l.path).
			Cause(err).
			Build()
	}
	Logger().Debug("library closed", zap.String("path", l.path))
	return nil
}

// implCallback returns the C pointer that runs Go system implementations,
// or 0 when the library cannot tell contexts apart.
func (l *Library) implCallback() uintptr {
	l.implOnce.Do(func() {
		addr, ok := l.symbol(abi.SymContextID)
		if !ok {
			Logger().Warn("library has no context id entry point, Go system implementations disabled",
				zap.String("library", l.path))
			return
		}
		purego.RegisterFunc(&l.contextID, addr)
		l.implCB = purego.NewCallback(l.runImpl)
	})
	return l.implCB
}

func (l *Library) runImpl(ctx uintptr) uintptr {
	defer recoverCallback("system impl")
	id := abi.SystemLikeID(l.contextID(ctx))
	l.implMu.RLock()
	impl := l.impls[id]
	l.implMu.RUnlock()
	if impl == nil {
		Logger().Warn("no implementation for system", zap.Int32("system", int32(id)))
		return 0
	}
	impl(abi.ExecutionContext(ctx))
	return 0
}

// setImpl records impl for id. A nil impl clears it.
func (l *Library) setImpl(id abi.SystemLikeID, impl abi.SystemExecutionImpl) {
	l.implMu.Lock()
	defer l.implMu.Unlock()
	if impl == nil {
		delete(l.impls, id)
		return
	}
	l.impls[id] = impl
}

func implPointer(l *Library, impl abi.SystemExecutionImpl) uintptr {
	if impl == nil {
		return 0
	}
	return l.implCallback()
}

// addReload registers cb under ud. It returns the library's reload callback
// and whether cb is the first subscriber.
func (l *Library) addReload(cb abi.ReloadCallback, ud uintptr) (uintptr, bool) {
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()
	if l.reloadCB == 0 {
		l.reloadCB = purego.NewCallback(l.runReload)
	}
	first := len(l.reloads) == 0
	l.reloads[ud] = cb
	return l.reloadCB, first
}

// removeReload drops ud. It returns the library's reload callback and
// whether no subscriber is left.
func (l *Library) removeReload(ud uintptr) (uintptr, bool) {
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()
	if _, ok := l.reloads[ud]; !ok {
		return l.reloadCB, false
	}
	delete(l.reloads, ud)
	return l.reloadCB, len(l.reloads) == 0
}

func (l *Library) runReload(uintptr) uintptr {
	defer recoverCallback("static reload")
	l.reloadMu.Lock()
	uds := slices.Sorted(maps.Keys(l.reloads))
	cbs := maps.Clone(l.reloads)
	l.reloadMu.Unlock()
	for _, ud := range uds {
		cbs[ud](ud)
	}
	return 0
}

func (l *Library) setTrap(h abi.TrapHandler) uintptr {
	l.trapMu.Lock()
	defer l.trapMu.Unlock()
	l.trap = h
	if h == nil {
		return 0
	}
	if l.trapCB == 0 {
		l.trapCB = purego.NewCallback(l.runTrap)
	}
	return l.trapCB
}

func (l *Library) runTrap(system uintptr, message unsafe.Pointer) uintptr {
	defer recoverCallback("wasm trap")
	l.trapMu.RLock()
	h := l.trap
	l.trapMu.RUnlock()
	if h != nil {
		h(abi.SystemID(int32(system)), marshal.GoString(message))
	}
	return 0
}
