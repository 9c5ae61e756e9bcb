package guest

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/resource"
	"github.com/wippyai/ecsact-runtime/symbol"
)

// HostModule is the import module name guests use for context functions.
const HostModule = "env"

// Library loads guest modules as system implementations. It is a
// symbol.Library and a symbol.Binder: the context and impl entry points it
// relies on are taken from the resolved table.
type Library struct {
	*symbol.Funcs

	ctx     context.Context
	runtime wazero.Runtime
	host    api.Module
	modules []api.Module

	entry    entryPoints
	bound    bool
	trap     abi.TrapHandler
	handles  *resource.Table
	contexts resource.Typed[abi.ExecutionContext]
	frames   []*frame

	mu sync.Mutex
}

// entryPoints are the resolved functions guest calls are forwarded to.
type entryPoints struct {
	setImpl       abi.SetSystemImplFunc
	componentSize abi.ComponentSizeFunc
	actionSize    abi.ActionSizeFunc
	get           abi.ContextGetFunc
	update        abi.ContextUpdateFunc
	add           abi.ContextAddFunc
	remove        abi.ContextRemoveFunc
	has           abi.ContextHasFunc
	action        abi.ContextActionFunc
	id            abi.ContextIDFunc
	parent        abi.ContextParentFunc
	same          abi.ContextSameFunc
}

// Config holds configuration for a Library.
type Config struct {
	// Name is the library path reported to the symbol table.
	Name string

	// MemoryLimitPages caps guest memory in 64KB pages. 0 keeps the wazero
	// default.
	MemoryLimitPages uint32
}

const contextHandle uint32 = 1

// New creates a Library with default configuration.
func New(ctx context.Context) *Library {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a Library.
func NewWithConfig(ctx context.Context, cfg *Config) *Library {
	runtimeCfg := wazero.NewRuntimeConfig()
	name := "guest"
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.Name != "" {
			name = cfg.Name
		}
	}

	handles := resource.NewTable()
	l := &Library{
		ctx:      ctx,
		runtime:  wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		handles:  handles,
		contexts: resource.NewTyped[abi.ExecutionContext](handles, contextHandle),
	}
	l.Funcs = symbol.NewFuncs(name).
		Set(abi.SymWasmLoad, abi.WasmLoadFunc(l.load)).
		Set(abi.SymWasmLoadFile, abi.WasmLoadFileFunc(l.loadFile)).
		Set(abi.SymWasmSetTrapHandler, abi.WasmSetTrapHandlerFunc(l.setTrapHandler)).
		OnClose(l.close)
	return l
}

// Bind takes the entry points guest modules need from the resolved table.
// Missing context functions make the matching host import a no-op.
func (l *Library) Bind(t *symbol.Table) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := &l.entry
	e.setImpl, _ = symbol.Bind[abi.SetSystemImplFunc](t, abi.SymSetSystemExecutionImpl)
	e.componentSize, _ = symbol.Bind[abi.ComponentSizeFunc](t, abi.SymMetaComponentSize)
	e.actionSize, _ = symbol.Bind[abi.ActionSizeFunc](t, abi.SymMetaActionSize)
	e.get, _ = symbol.Bind[abi.ContextGetFunc](t, abi.SymContextGet)
	e.update, _ = symbol.Bind[abi.ContextUpdateFunc](t, abi.SymContextUpdate)
	e.add, _ = symbol.Bind[abi.ContextAddFunc](t, abi.SymContextAdd)
	e.remove, _ = symbol.Bind[abi.ContextRemoveFunc](t, abi.SymContextRemove)
	e.has, _ = symbol.Bind[abi.ContextHasFunc](t, abi.SymContextHas)
	e.action, _ = symbol.Bind[abi.ContextActionFunc](t, abi.SymContextAction)
	e.id, _ = symbol.Bind[abi.ContextIDFunc](t, abi.SymContextID)
	e.parent, _ = symbol.Bind[abi.ContextParentFunc](t, abi.SymContextParent)
	e.same, _ = symbol.Bind[abi.ContextSameFunc](t, abi.SymContextSame)
	l.bound = true

	if e.setImpl == nil {
		Logger().Warn("no system impl setter resolved, guest modules cannot be loaded",
			zap.String("library", l.Path()))
	}
	return nil
}

func (l *Library) setTrapHandler(h abi.TrapHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trap = h
}

// Modules returns how many guest modules are instantiated.
func (l *Library) Modules() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.modules)
}

func (l *Library) loadFile(path string, systems []abi.SystemID, exports []string) abi.WasmError {
	wasm, err := os.ReadFile(path)
	if err != nil {
		Logger().Warn("guest module read failed", zap.String("path", path), zap.Error(err))
		if stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, fs.ErrPermission) {
			return abi.WasmErrOpenFail
		}
		return abi.WasmErrReadFail
	}
	return l.load(wasm, systems, exports)
}

func (l *Library) load(wasm []byte, systems []abi.SystemID, exports []string) abi.WasmError {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.bound || l.entry.setImpl == nil || len(systems) != len(exports) {
		return abi.WasmErrInstantiateFail
	}

	compiled, err := l.runtime.CompileModule(l.ctx, wasm)
	if err != nil {
		Logger().Warn("guest module compile failed", zap.Error(err))
		return abi.WasmErrCompileFail
	}

	if code := checkImports(compiled); code != abi.WasmOK {
		compiled.Close(l.ctx)
		return code
	}
	defs := compiled.ExportedFunctions()
	for _, name := range exports {
		def, ok := defs[name]
		if !ok {
			compiled.Close(l.ctx)
			Logger().Warn("guest export not found", zap.String("export", name))
			return abi.WasmErrExportNotFound
		}
		if !systemSignature(def) {
			compiled.Close(l.ctx)
			Logger().Warn("guest export has wrong signature", zap.String("export", name))
			return abi.WasmErrExportInvalid
		}
	}

	if err := l.ensureHost(); err != nil {
		compiled.Close(l.ctx)
		Logger().Error("host module instantiation failed", zap.Error(err))
		return abi.WasmErrInstantiateFail
	}
	mod, err := l.runtime.InstantiateModule(l.ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		compiled.Close(l.ctx)
		Logger().Warn("guest module instantiation failed", zap.Error(err))
		return abi.WasmErrInstantiateFail
	}
	l.modules = append(l.modules, mod)

	for i, name := range exports {
		l.entry.setImpl(abi.SystemLikeID(systems[i]), l.impl(systems[i], name, mod.ExportedFunction(name)))
	}
	Logger().Debug("guest module loaded", zap.Strings("exports", exports))
	return abi.WasmOK
}

func checkImports(compiled wazero.CompiledModule) abi.WasmError {
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != HostModule || !hostFunction(name) {
			Logger().Warn("guest imports unknown function",
				zap.String("module", module),
				zap.String("name", name))
			return abi.WasmErrGuestImportUnknown
		}
	}
	for _, def := range compiled.ImportedMemories() {
		module, name, _ := def.Import()
		Logger().Warn("guest imports memory",
			zap.String("module", module),
			zap.String("name", name))
		return abi.WasmErrGuestImportUnknown
	}
	return abi.WasmOK
}

func systemSignature(def api.FunctionDefinition) bool {
	params := def.ParamTypes()
	return len(params) == 1 && params[0] == api.ValueTypeI32 && len(def.ResultTypes()) == 0
}

// impl adapts a guest export to a system execution impl.
func (l *Library) impl(system abi.SystemID, export string, fn api.Function) abi.SystemExecutionImpl {
	return func(native abi.ExecutionContext) {
		f := l.push()
		defer l.pop(f)

		h := f.handle(l, native)
		if h == 0 {
			l.raise(system, "execution context table exhausted")
			return
		}
		if _, err := fn.Call(l.ctx, api.EncodeU32(uint32(h))); err != nil {
			Logger().Debug("guest export failed",
				zap.String("export", export),
				zap.Int32("system", int32(system)),
				zap.Error(err))
			l.raise(system, err.Error())
		}
	}
}

func (l *Library) raise(system abi.SystemID, message string) {
	l.mu.Lock()
	h := l.trap
	l.mu.Unlock()
	if h == nil {
		Logger().Error("guest system trapped",
			zap.Int32("system", int32(system)),
			zap.String("message", message))
		return
	}
	h(system, message)
}

func (l *Library) close() error {
	err := l.runtime.Close(l.ctx)
	l.handles.Close()
	l.mu.Lock()
	l.modules = nil
	l.host = nil
	l.mu.Unlock()
	return err
}
