package guest

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/internal/memruntime"
	"github.com/wippyai/ecsact-runtime/marshal"
	"github.com/wippyai/ecsact-runtime/runtime"
	"github.com/wippyai/ecsact-runtime/symbol"
)

// Minimal binary module assembly for tests.

func leb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func name(s string) []byte { return append(leb(uint32(len(s))), s...) }

func vec(items ...[]byte) []byte {
	out := leb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, payload []byte) []byte {
	return append(append([]byte{id}, leb(uint32(len(payload)))...), payload...)
}

func funcType(params, results int) []byte {
	p := make([][]byte, params)
	r := make([][]byte, results)
	for i := range p {
		p[i] = []byte{0x7f}
	}
	for i := range r {
		r[i] = []byte{0x7f}
	}
	return append(append([]byte{0x60}, vec(p...)...), vec(r...)...)
}

func importFunc(module, field string, typ uint32) []byte {
	return append(append(append(name(module), name(field)...), 0x00), leb(typ)...)
}

func exportFunc(field string, idx uint32) []byte {
	return append(append(name(field), 0x00), leb(idx)...)
}

func code(parts ...[]byte) []byte {
	body := []byte{0x00}
	for _, p := range parts {
		body = append(body, p...)
	}
	body = append(body, 0x0b)
	return append(leb(uint32(len(body))), body...)
}

func localGet(i uint32) []byte { return append([]byte{0x20}, leb(i)...) }
func i32Const(v int32) []byte  { return append([]byte{0x41}, sleb(v)...) }
func call(i uint32) []byte     { return append([]byte{0x10}, leb(i)...) }

var (
	i32Load     = []byte{0x28, 0x02, 0x00}
	i32Store    = []byte{0x36, 0x02, 0x00}
	i32Add      = []byte{0x6a}
	unreachable = []byte{0x00}
)

type module struct {
	types   [][]byte
	imports [][]byte
	funcs   []uint32
	memory  bool
	exports [][]byte
	bodies  [][]byte
}

func (m module) bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, vec(m.types...))...)
	if len(m.imports) > 0 {
		out = append(out, section(2, vec(m.imports...))...)
	}
	funcs := make([][]byte, len(m.funcs))
	for i, t := range m.funcs {
		funcs[i] = leb(t)
	}
	out = append(out, section(3, vec(funcs...))...)
	if m.memory {
		out = append(out, section(5, vec([]byte{0x00, 0x01}))...)
	}
	out = append(out, section(7, vec(m.exports...))...)
	return append(out, section(10, vec(m.bodies...))...)
}

// stepModule adds one to the i32 component on every execution.
func stepModule(component abi.ComponentID) []byte {
	c := int32(component)
	imports := [][]byte{
		importFunc(HostModule, abi.SymContextGet, 0),
		importFunc(HostModule, abi.SymContextUpdate, 0),
	}
	body := code(
		localGet(0), i32Const(c), i32Const(0), call(0),
		i32Const(0), i32Const(0), i32Load, i32Const(1), i32Add, i32Store,
		localGet(0), i32Const(c), i32Const(0), call(1),
	)
	return module{
		types:   [][]byte{funcType(3, 0), funcType(1, 0)},
		imports: imports,
		funcs:   []uint32{1},
		memory:  true,
		exports: [][]byte{exportFunc("step", 2)},
		bodies:  [][]byte{body},
	}.bytes()
}

// stampModule writes the executing system id into the component.
func stampModule(component abi.ComponentID) []byte {
	c := int32(component)
	imports := [][]byte{
		importFunc(HostModule, abi.SymContextUpdate, 0),
		importFunc(HostModule, abi.SymContextID, 1),
	}
	body := code(
		i32Const(0), localGet(0), call(1), i32Store,
		localGet(0), i32Const(c), i32Const(0), call(0),
	)
	return module{
		types:   [][]byte{funcType(3, 0), funcType(1, 1), funcType(1, 0)},
		imports: imports,
		funcs:   []uint32{2},
		memory:  true,
		exports: [][]byte{exportFunc("stamp", 2)},
		bodies:  [][]byte{body},
	}.bytes()
}

func trapModule() []byte {
	return module{
		types:   [][]byte{funcType(1, 0)},
		funcs:   []uint32{0},
		exports: [][]byte{exportFunc("run", 0)},
		bodies:  [][]byte{code(unreachable)},
	}.bytes()
}

type Counter struct {
	N int32
}

type fixture struct {
	rt      *runtime.Runtime
	guest   *Library
	counter abi.ComponentID
	reg     abi.RegistryID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := New(context.Background())
	rt, err := runtime.New([]symbol.Library{memruntime.New().Library("mem"), g})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	counter, err := rt.Dynamic().CreateComponent("Counter", 4, nil)
	require.NoError(t, err)
	require.NoError(t, marshal.RegisterComponent[Counter](rt.Registry(), counter))
	reg, err := rt.Core().CreateRegistry("guest")
	require.NoError(t, err)
	return &fixture{rt: rt, guest: g, counter: counter, reg: reg}
}

func (f *fixture) system(t *testing.T, name string) abi.SystemID {
	t.Helper()
	id, err := f.rt.Dynamic().CreateSystem(name, abi.InvalidID,
		[]abi.Capability{{Component: f.counter, Flags: abi.CapReadWrite}}, nil)
	require.NoError(t, err)
	return id
}

func (f *fixture) entity(t *testing.T, n int32) abi.EntityID {
	t.Helper()
	e, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)
	require.NoError(t, runtime.Add(f.rt, f.reg, e, Counter{N: n}))
	return e
}

func TestLibraryProvidesWasmGroup(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, abi.Symbols(abi.GroupWasm), f.rt.Available(abi.GroupWasm))
	assert.True(t, f.rt.Wasm().TrapHandlerInstalled())
	assert.Equal(t, "guest", f.rt.Origin(abi.SymWasmLoad))
}

func TestGuestSystemUpdatesComponent(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, 41)
	sys := f.system(t, "step")
	require.NoError(t, f.rt.Wasm().Load(stepModule(f.counter), runtime.WasmBinding{Export: "step", System: sys}))
	assert.Equal(t, 1, f.guest.Modules())

	var updates []Counter
	_, err := runtime.OnUpdate(f.rt, func(_ abi.EntityID, c Counter) { updates = append(updates, c) })
	require.NoError(t, err)

	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))

	got, err := runtime.Get[Counter](f.rt, f.reg, e)
	require.NoError(t, err)
	assert.Equal(t, int32(43), got.N)
	assert.Equal(t, []Counter{{N: 42}, {N: 43}}, updates)
	assert.Zero(t, f.guest.handles.Len(), "context handles are released after each call")
}

func TestGuestReadsSystemID(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, 0)
	f.system(t, "first")
	sys := f.system(t, "stamp")
	require.NoError(t, f.rt.Wasm().Load(stampModule(f.counter), runtime.WasmBinding{Export: "stamp", System: sys}))

	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))
	got, err := runtime.Get[Counter](f.rt, f.reg, e)
	require.NoError(t, err)
	assert.Equal(t, int32(sys), got.N)
}

func TestGuestTrapIsReported(t *testing.T) {
	f := newFixture(t)
	f.entity(t, 0)
	bad := f.system(t, "bad")

	var runs int
	_, err := f.rt.Dynamic().CreateSystem("good", abi.InvalidID, nil, func(*runtime.ExecutionContext) { runs++ })
	require.NoError(t, err)
	require.NoError(t, f.rt.Wasm().Load(trapModule(), runtime.WasmBinding{Export: "run", System: bad}))

	var traps []abi.SystemID
	var messages []string
	f.rt.Wasm().OnTrap(func(system abi.SystemID, msg string) {
		traps = append(traps, system)
		messages = append(messages, msg)
	})

	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))
	assert.Equal(t, []abi.SystemID{bad}, traps)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "unreachable")
	assert.Equal(t, 1, runs, "other systems keep running")
}

func loadCode(t *testing.T, err error) abi.WasmError {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.KindGuestLoad), err.Error())
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	return abi.WasmError(e.Value.(int32))
}

func TestGuestLoadFailures(t *testing.T) {
	f := newFixture(t)
	sys := f.system(t, "s")
	bind := func(export string) runtime.WasmBinding {
		return runtime.WasmBinding{Export: export, System: sys}
	}

	err := f.rt.Wasm().Load([]byte("not wasm"), bind("run"))
	assert.Equal(t, abi.WasmErrCompileFail, loadCode(t, err))

	err = f.rt.Wasm().Load(trapModule(), bind("missing"))
	assert.Equal(t, abi.WasmErrExportNotFound, loadCode(t, err))

	noParams := module{
		types:   [][]byte{funcType(0, 0)},
		funcs:   []uint32{0},
		exports: [][]byte{exportFunc("run", 0)},
		bodies:  [][]byte{code()},
	}.bytes()
	err = f.rt.Wasm().Load(noParams, bind("run"))
	assert.Equal(t, abi.WasmErrExportInvalid, loadCode(t, err))

	foreign := module{
		types:   [][]byte{funcType(1, 0)},
		imports: [][]byte{importFunc("wasi_snapshot_preview1", "proc_exit", 0)},
		funcs:   []uint32{0},
		exports: [][]byte{exportFunc("run", 1)},
		bodies:  [][]byte{code()},
	}.bytes()
	err = f.rt.Wasm().Load(foreign, bind("run"))
	assert.Equal(t, abi.WasmErrGuestImportUnknown, loadCode(t, err))

	assert.Zero(t, f.guest.Modules())
}

func TestGuestLoadFile(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, 1)
	sys := f.system(t, "step")

	err := f.rt.Wasm().LoadFile(filepath.Join(t.TempDir(), "absent.wasm"), runtime.WasmBinding{Export: "step", System: sys})
	assert.Equal(t, abi.WasmErrOpenFail, loadCode(t, err))

	path := filepath.Join(t.TempDir(), "step.wasm")
	require.NoError(t, os.WriteFile(path, stepModule(f.counter), 0o600))
	require.NoError(t, f.rt.Wasm().LoadFile(path, runtime.WasmBinding{Export: "step", System: sys}))

	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))
	got, err := runtime.Get[Counter](f.rt, f.reg, e)
	require.NoError(t, err)
	assert.Equal(t, int32(2), got.N)
}

func TestUnboundLibraryRefusesLoad(t *testing.T) {
	g := New(context.Background())
	defer g.Close()

	fn, ok := g.Lookup(abi.SymWasmLoad)
	require.True(t, ok)
	load := fn.(abi.WasmLoadFunc)
	assert.Equal(t, abi.WasmErrInstantiateFail, load(trapModule(), []abi.SystemID{0}, []string{"run"}))
}

func TestUnknownContextHandleTraps(t *testing.T) {
	g := New(context.Background())
	defer g.Close()

	assert.Panics(t, func() { g.native(12345) })
}
