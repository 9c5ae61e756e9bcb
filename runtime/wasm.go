package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/symbol"
)

// WasmBinding binds a guest export to the system it implements.
type WasmBinding struct {
	Export string
	System abi.SystemID
}

// TrapHandler receives faults raised inside guest systems.
type TrapHandler func(system abi.SystemID, message string)

// Wasm loads guest (wasm) modules as system implementations.
//
// When the runtime resolves a trap handler setter, a handler that logs the
// fault and notifies OnTrap subscribers is installed at load. Traps never
// stop other systems.
type Wasm struct {
	rt        *Runtime
	onTrap    subscribers[TrapHandler]
	installed bool
}

func newWasm(rt *Runtime) *Wasm {
	return &Wasm{rt: rt}
}

func (w *Wasm) installTrapHandler() {
	set, ok := symbol.Bind[abi.WasmSetTrapHandlerFunc](w.rt.table, abi.SymWasmSetTrapHandler)
	if !ok {
		return
	}
	w.rt.metrics.NativeCall(abi.SymWasmSetTrapHandler)
	set(w.trap)
	w.installed = true
}

// TrapHandlerInstalled reports whether traps are being reported.
func (w *Wasm) TrapHandlerInstalled() bool { return w.installed }

// OnTrap subscribes fn to guest faults.
func (w *Wasm) OnTrap(fn TrapHandler) func() {
	return w.onTrap.add(fn)
}

func (w *Wasm) trap(system abi.SystemID, message string) {
	w.rt.metrics.GuestTrap(system)
	w.rt.log.Error("guest system trapped",
		zap.Int32("system", int32(system)),
		zap.String("message", message))

	defer w.rt.events.recoverHandler("trap")
	for _, s := range w.onTrap.snapshot() {
		s.fn(system, message)
	}
}

// Load compiles a guest module and installs the bound exports as system
// implementations.
func (w *Wasm) Load(wasm []byte, bindings ...WasmBinding) error {
	if len(wasm) == 0 {
		return errors.InvalidInput(errors.PhaseGuest, "empty module")
	}
	systems, exports, err := splitBindings(bindings)
	if err != nil {
		return err
	}
	fn, err := need[abi.WasmLoadFunc](w.rt, abi.SymWasmLoad)
	if err != nil {
		return err
	}
	return w.result(abi.SymWasmLoad, "", fn(wasm, systems, exports))
}

// LoadFile is Load reading the module from path.
func (w *Wasm) LoadFile(path string, bindings ...WasmBinding) error {
	if path == "" {
		return errors.InvalidInput(errors.PhaseGuest, "empty path")
	}
	systems, exports, err := splitBindings(bindings)
	if err != nil {
		return err
	}
	fn, err := need[abi.WasmLoadFileFunc](w.rt, abi.SymWasmLoadFile)
	if err != nil {
		return err
	}
	return w.result(abi.SymWasmLoadFile, path, fn(path, systems, exports))
}

func (w *Wasm) result(symbol, path string, code abi.WasmError) error {
	if code == abi.WasmOK {
		w.rt.log.Debug("guest module loaded", zap.String("path", path))
		return nil
	}
	err := errors.GuestLoad(int32(code), code.String())
	err.Symbol = symbol
	if path != "" {
		err.Detail = path + ": " + err.Detail
	}
	return err
}

func splitBindings(bindings []WasmBinding) ([]abi.SystemID, []string, error) {
	if len(bindings) == 0 {
		return nil, nil, errors.InvalidInput(errors.PhaseGuest, "no system bindings")
	}
	systems := make([]abi.SystemID, len(bindings))
	exports := make([]string, len(bindings))
	for i, b := range bindings {
		if b.Export == "" {
			return nil, nil, errors.InvalidInput(errors.PhaseGuest, "binding with empty export name")
		}
		systems[i] = b.System
		exports[i] = b.Export
	}
	return systems, exports, nil
}
