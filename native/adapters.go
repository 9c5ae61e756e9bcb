package native

import (
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/marshal"
)

// binder turns a symbol address into a value of the entry point's catalog
// type.
type binder func(l *Library, addr uintptr) any

// adapters covers every catalog entry. Entry points whose arguments are ids,
// strings, booleans and plain pointers bind directly; the rest go through a
// C-shaped function and a Go wrapper that pins memory, splits slices into
// pointer and length, and routes callbacks through the trampolines.
var adapters = map[string]binder{
	abi.SymCreateRegistry:  direct[abi.CreateRegistryFunc],
	abi.SymDestroyRegistry: direct[abi.DestroyRegistryFunc],
	abi.SymClearRegistry:   direct[abi.ClearRegistryFunc],
	abi.SymCreateEntity:    direct[abi.CreateEntityFunc],
	abi.SymEnsureEntity:    direct[abi.EnsureEntityFunc],
	abi.SymEntityExists:    direct[abi.EntityExistsFunc],
	abi.SymDestroyEntity:   direct[abi.DestroyEntityFunc],
	abi.SymCountEntities:   direct[abi.CountEntitiesFunc],
	abi.SymGetEntities:     getEntities,
	abi.SymAddComponent:    direct[abi.AddComponentFunc],
	abi.SymHasComponent:    direct[abi.HasComponentFunc],
	abi.SymGetComponent:    direct[abi.GetComponentFunc],
	abi.SymEachComponent:   eachComponent,
	abi.SymCountComponents: direct[abi.CountComponentsFunc],
	abi.SymGetComponents:   getComponents,
	abi.SymUpdateComponent: direct[abi.UpdateComponentFunc],
	abi.SymRemoveComponent: direct[abi.RemoveComponentFunc],
	abi.SymExecuteSystems:  executeSystems,

	abi.SymContextAction:          direct[abi.ContextActionFunc],
	abi.SymContextAdd:             direct[abi.ContextAddFunc],
	abi.SymContextRemove:          direct[abi.ContextRemoveFunc],
	abi.SymContextGet:             direct[abi.ContextGetFunc],
	abi.SymContextUpdate:          direct[abi.ContextUpdateFunc],
	abi.SymContextHas:             direct[abi.ContextHasFunc],
	abi.SymContextGenerate:        contextGenerate,
	abi.SymContextParent:          direct[abi.ContextParentFunc],
	abi.SymContextSame:            direct[abi.ContextSameFunc],
	abi.SymContextID:              direct[abi.ContextIDFunc],
	abi.SymCreateSystem:           createSystem,
	abi.SymSetSystemExecutionImpl: setSystemImpl,
	abi.SymCreateAction:           createAction,
	abi.SymResizeAction:           resizeAction,
	abi.SymCreateComponent:        createComponent,
	abi.SymResizeComponent:        resizeComponent,
	abi.SymDestroyComponent:       direct[abi.DestroyComponentFunc],
	abi.SymAddSystemCapability:    direct[abi.SetCapabilityFunc],
	abi.SymUpdateSystemCapability: direct[abi.SetCapabilityFunc],
	abi.SymRemoveSystemCapability: direct[abi.RemoveCapabilityFunc],
	abi.SymAddSystemGenerateSet:   addGenerateSet,
	abi.SymRegisterComponent:      direct[abi.RegisterComponentFunc],
	abi.SymRegisterSystem:         direct[abi.RegisterSystemFunc],
	abi.SymRegisterAction:         direct[abi.RegisterActionFunc],

	abi.SymMetaRegistryName:       direct[abi.RegistryNameFunc],
	abi.SymMetaComponentSize:      direct[abi.ComponentSizeFunc],
	abi.SymMetaComponentName:      direct[abi.ComponentNameFunc],
	abi.SymMetaActionSize:         direct[abi.ActionSizeFunc],
	abi.SymMetaActionName:         direct[abi.ActionNameFunc],
	abi.SymMetaSystemName:         direct[abi.SystemNameFunc],
	abi.SymMetaSystemCapsCount:    direct[abi.SystemCapabilitiesCountFunc],
	abi.SymMetaSystemCapabilities: systemCapabilities,

	abi.SymSerializeActionSize:    direct[abi.SerializeActionSizeFunc],
	abi.SymSerializeComponentSize: direct[abi.SerializeComponentSizeFunc],
	abi.SymSerializeAction:        serializeAction,
	abi.SymSerializeComponent:     serializeComponent,
	abi.SymDeserializeAction:      deserializeAction,
	abi.SymDeserializeComponent:   deserializeComponent,

	abi.SymStaticComponents: staticComponentsAdapter,
	abi.SymStaticSystems:    staticSystemsAdapter,
	abi.SymStaticActions:    staticActionsAdapter,
	abi.SymStaticOnReload:   onReload,
	abi.SymStaticOffReload:  offReload,

	abi.SymAsyncConnect:         direct[abi.AsyncConnectFunc],
	abi.SymAsyncDisconnect:      direct[abi.AsyncDisconnectFunc],
	abi.SymAsyncExecuteAction:   direct[abi.AsyncExecuteActionFunc],
	abi.SymAsyncExecuteActionAt: direct[abi.AsyncExecuteActionAtFunc],
	abi.SymAsyncFlushEvents:     flushEvents,

	abi.SymWasmLoad:           wasmLoad,
	abi.SymWasmLoadFile:       wasmLoadFile,
	abi.SymWasmSetTrapHandler: setTrapHandler,
}

// direct binds the symbol straight into F. purego converts strings to C
// strings for the call and reads returned C strings back.
func direct[F any](_ *Library, addr uintptr) any {
	var fn F
	purego.RegisterFunc(&fn, addr)
	return fn
}

func getEntities(_ *Library, addr uintptr) any {
	var raw func(reg abi.RegistryID, max int32, out *abi.EntityID, count *int32)
	purego.RegisterFunc(&raw, addr)
	return abi.GetEntitiesFunc(func(reg abi.RegistryID, out []abi.EntityID) int32 {
		c := newCall()
		defer c.end()

		count := marshal.Hold(c.arena, new(int32))
		raw(reg, int32(len(out)), pinned(c, out), count)
		return min(*count, int32(len(out)))
	})
}

func eachComponent(_ *Library, addr uintptr) any {
	var raw func(reg abi.RegistryID, entity abi.EntityID, cb, ud uintptr)
	purego.RegisterFunc(&raw, addr)
	return abi.EachComponentFunc(func(reg abi.RegistryID, entity abi.EntityID, cb abi.EachComponentCallback, ud uintptr) {
		if cb == nil {
			return
		}
		c := newCall()
		defer c.end()

		raw(reg, entity, shared().each, acquire(c, eachTargets, eachTarget{cb: cb, ud: ud}))
	})
}

func getComponents(_ *Library, addr uintptr) any {
	var raw func(reg abi.RegistryID, entity abi.EntityID, max int32, ids *abi.ComponentID, data *unsafe.Pointer, count *int32)
	purego.RegisterFunc(&raw, addr)
	return abi.GetComponentsFunc(func(reg abi.RegistryID, entity abi.EntityID, outIDs []abi.ComponentID, outData []unsafe.Pointer) int32 {
		n := min(len(outIDs), len(outData))
		c := newCall()
		defer c.end()

		count := marshal.Hold(c.arena, new(int32))
		raw(reg, entity, int32(n), pinned(c, outIDs[:n]), pinned(c, outData[:n]), count)
		return min(*count, int32(n))
	})
}

func eventsCollector(c *call, events *abi.EventsCollector) *cEventsCollector {
	if events == nil {
		return nil
	}
	t := shared()
	token := acquire(c, eventTargets, events)
	out := new(cEventsCollector)
	if events.Init != nil {
		out.initCb, out.initUd = t.event, token
	}
	if events.Update != nil {
		out.updateCb, out.updateUd = t.event, token
	}
	if events.Remove != nil {
		out.removeCb, out.removeUd = t.event, token
	}
	return marshal.Hold(c.arena, out)
}

func asyncCollector(c *call, events *abi.AsyncEventsCollector) *cAsyncEventsCollector {
	if events == nil {
		return nil
	}
	t := shared()
	token := acquire(c, asyncTargets, events)
	out := new(cAsyncEventsCollector)
	if events.Error != nil {
		out.errorCb, out.errorUd = t.asyncError, token
	}
	if events.Connect != nil {
		out.connectCb, out.connectUd = t.asyncConnect, token
	}
	if events.ActionCommitted != nil {
		out.committedCb, out.committedUd = t.committed, token
	}
	return marshal.Hold(c.arena, out)
}

func executeSystems(_ *Library, addr uintptr) any {
	var raw func(reg abi.RegistryID, count int32, options *abi.ExecutionOptions, events *cEventsCollector) abi.ExecuteError
	purego.RegisterFunc(&raw, addr)
	return abi.ExecuteSystemsFunc(func(reg abi.RegistryID, options []abi.ExecutionOptions, events *abi.EventsCollector) abi.ExecuteError {
		c := newCall()
		defer c.end()

		return raw(reg, int32(len(options)), pinned(c, options), eventsCollector(c, events))
	})
}

func flushEvents(_ *Library, addr uintptr) any {
	var raw func(exec *cEventsCollector, async *cAsyncEventsCollector)
	purego.RegisterFunc(&raw, addr)
	return abi.AsyncFlushEventsFunc(func(exec *abi.EventsCollector, async *abi.AsyncEventsCollector) {
		c := newCall()
		defer c.end()

		raw(eventsCollector(c, exec), asyncCollector(c, async))
	})
}

func contextGenerate(_ *Library, addr uintptr) any {
	var raw func(ctx abi.ExecutionContext, count int32, ids *abi.ComponentID, data *unsafe.Pointer)
	purego.RegisterFunc(&raw, addr)
	return abi.ContextGenerateFunc(func(ctx abi.ExecutionContext, ids []abi.ComponentID, data []unsafe.Pointer) {
		n := min(len(ids), len(data))
		c := newCall()
		defer c.end()

		raw(ctx, int32(n), pinned(c, ids[:n]), pinned(c, data[:n]))
	})
}

// splitCapabilities lays caps out as the two parallel arrays C expects.
func splitCapabilities(c *call, caps []abi.Capability) (*abi.ComponentID, *abi.SystemCapability) {
	components := marshal.Alloc[abi.ComponentID](c.arena, len(caps))
	flags := marshal.Alloc[abi.SystemCapability](c.arena, len(caps))
	for i, cp := range caps {
		components[i] = cp.Component
		flags[i] = cp.Flags
	}
	return marshal.First(components), marshal.First(flags)
}

func createSystem(l *Library, addr uintptr) any {
	var raw func(name string, parent abi.SystemID, components *abi.ComponentID, caps *abi.SystemCapability, count int32, impl uintptr) abi.SystemID
	purego.RegisterFunc(&raw, addr)
	return abi.CreateSystemFunc(func(name string, parent abi.SystemID, caps []abi.Capability, impl abi.SystemExecutionImpl) abi.SystemID {
		c := newCall()
		defer c.end()

		components, flags := splitCapabilities(c, caps)
		id := raw(name, parent, components, flags, int32(len(caps)), implPointer(l, impl))
		if id >= 0 {
			l.setImpl(abi.SystemLikeID(id), impl)
		}
		return id
	})
}

func setSystemImpl(l *Library, addr uintptr) any {
	var raw func(id abi.SystemLikeID, impl uintptr)
	purego.RegisterFunc(&raw, addr)
	return abi.SetSystemImplFunc(func(id abi.SystemLikeID, impl abi.SystemExecutionImpl) {
		l.setImpl(id, impl)
		raw(id, implPointer(l, impl))
	})
}

func createAction(l *Library, addr uintptr) any {
	var raw func(name string, size int32, cmp uintptr, components *abi.ComponentID, caps *abi.SystemCapability, count int32, impl uintptr) abi.ActionID
	purego.RegisterFunc(&raw, addr)
	return abi.CreateActionFunc(func(name string, size int32, cmp abi.CompareFunc, caps []abi.Capability, impl abi.SystemExecutionImpl) abi.ActionID {
		c := newCall()
		defer c.end()

		components, flags := splitCapabilities(c, caps)
		id := raw(name, size, compareCallback(cmp), components, flags, int32(len(caps)), implPointer(l, impl))
		if id >= 0 {
			l.setImpl(abi.SystemLikeID(id), impl)
		}
		return id
	})
}

func resizeAction(_ *Library, addr uintptr) any {
	var raw func(id abi.ActionID, size int32, cmp uintptr)
	purego.RegisterFunc(&raw, addr)
	return abi.ResizeActionFunc(func(id abi.ActionID, size int32, cmp abi.CompareFunc) {
		raw(id, size, compareCallback(cmp))
	})
}

func createComponent(_ *Library, addr uintptr) any {
	var raw func(name string, size int32, cmp uintptr) abi.ComponentID
	purego.RegisterFunc(&raw, addr)
	return abi.CreateComponentFunc(func(name string, size int32, cmp abi.CompareFunc) abi.ComponentID {
		return raw(name, size, compareCallback(cmp))
	})
}

func resizeComponent(_ *Library, addr uintptr) any {
	var raw func(id abi.ComponentID, size int32, cmp uintptr)
	purego.RegisterFunc(&raw, addr)
	return abi.ResizeComponentFunc(func(id abi.ComponentID, size int32, cmp abi.CompareFunc) {
		raw(id, size, compareCallback(cmp))
	})
}

func addGenerateSet(_ *Library, addr uintptr) any {
	var raw func(id abi.SystemLikeID, count int32, ids *abi.ComponentID, flags *abi.SystemGenerate)
	purego.RegisterFunc(&raw, addr)
	return abi.AddGenerateSetFunc(func(id abi.SystemLikeID, ids []abi.ComponentID, flags []abi.SystemGenerate) {
		n := min(len(ids), len(flags))
		c := newCall()
		defer c.end()

		raw(id, int32(n), pinned(c, ids[:n]), pinned(c, flags[:n]))
	})
}

// systemCapabilities sizes its scratch arrays from the count entry point:
// the C function writes every capability without a bound.
func systemCapabilities(l *Library, addr uintptr) any {
	var raw func(id abi.SystemLikeID, components *abi.ComponentID, caps *abi.SystemCapability)
	purego.RegisterFunc(&raw, addr)

	var count abi.SystemCapabilitiesCountFunc
	if countAddr, ok := l.symbol(abi.SymMetaSystemCapsCount); ok {
		purego.RegisterFunc(&count, countAddr)
	} else {
		Logger().Warn("capabilities exported without a count, listing disabled",
			zap.String("library", l.path))
	}

	return abi.SystemCapabilitiesFunc(func(id abi.SystemLikeID, outComponents []abi.ComponentID, outCaps []abi.SystemCapability) int32 {
		if count == nil {
			return 0
		}
		n := int(count(id))
		if n <= 0 {
			return 0
		}
		c := newCall()
		defer c.end()

		components := marshal.Alloc[abi.ComponentID](c.arena, n)
		caps := marshal.Alloc[abi.SystemCapability](c.arena, n)
		raw(id, &components[0], &caps[0])
		w := min(n, len(outComponents), len(outCaps))
		copy(outComponents, components[:w])
		copy(outCaps, caps[:w])
		return int32(w)
	})
}

func serializeComponent(_ *Library, addr uintptr) any {
	var raw func(id abi.ComponentID, in unsafe.Pointer, out *byte) int32
	purego.RegisterFunc(&raw, addr)
	return abi.SerializeComponentFunc(func(id abi.ComponentID, in unsafe.Pointer, out []byte) int32 {
		c := newCall()
		defer c.end()

		return raw(id, in, pinned(c, out))
	})
}

func serializeAction(_ *Library, addr uintptr) any {
	var raw func(id abi.ActionID, in unsafe.Pointer, out *byte) int32
	purego.RegisterFunc(&raw, addr)
	return abi.SerializeActionFunc(func(id abi.ActionID, in unsafe.Pointer, out []byte) int32 {
		c := newCall()
		defer c.end()

		return raw(id, in, pinned(c, out))
	})
}

func deserializeComponent(_ *Library, addr uintptr) any {
	var raw func(id abi.ComponentID, in *byte, out unsafe.Pointer) int32
	purego.RegisterFunc(&raw, addr)
	return abi.DeserializeComponentFunc(func(id abi.ComponentID, in []byte, out unsafe.Pointer) int32 {
		c := newCall()
		defer c.end()

		return raw(id, pinned(c, in), out)
	})
}

func deserializeAction(_ *Library, addr uintptr) any {
	var raw func(id abi.ActionID, in *byte, out unsafe.Pointer) int32
	purego.RegisterFunc(&raw, addr)
	return abi.DeserializeActionFunc(func(id abi.ActionID, in []byte, out unsafe.Pointer) int32 {
		c := newCall()
		defer c.end()

		return raw(id, pinned(c, in), out)
	})
}

// staticList binds a static_* entry point, which reports an array it owns.
func staticList(addr uintptr) func() (unsafe.Pointer, int32) {
	var raw func(out *unsafe.Pointer, count *int32)
	purego.RegisterFunc(&raw, addr)
	return func() (unsafe.Pointer, int32) {
		c := newCall()
		defer c.end()

		p := marshal.Hold(c.arena, new(unsafe.Pointer))
		n := marshal.Hold(c.arena, new(int32))
		raw(p, n)
		return *p, *n
	}
}

func staticComponentsAdapter(_ *Library, addr uintptr) any {
	list := staticList(addr)
	return abi.StaticComponentsFunc(func() []abi.StaticComponentInfo {
		return staticComponents(list())
	})
}

func staticSystemsAdapter(_ *Library, addr uintptr) any {
	list := staticList(addr)
	return abi.StaticSystemsFunc(func() []abi.StaticSystemInfo {
		return staticSystems(list())
	})
}

func staticActionsAdapter(_ *Library, addr uintptr) any {
	list := staticList(addr)
	return abi.StaticActionsFunc(func() []abi.StaticActionInfo {
		return staticActions(list())
	})
}

// onReload and offReload multiplex subscribers onto one native registration
// per library, since C removes reload callbacks by function pointer.
func onReload(l *Library, addr uintptr) any {
	var raw func(cb, ud uintptr)
	purego.RegisterFunc(&raw, addr)
	return abi.StaticOnReloadFunc(func(cb abi.ReloadCallback, ud uintptr) {
		if cb == nil {
			return
		}
		if ptr, first := l.addReload(cb, ud); first {
			raw(ptr, 0)
		}
	})
}

func offReload(l *Library, addr uintptr) any {
	var raw func(cb uintptr)
	purego.RegisterFunc(&raw, addr)
	return abi.StaticOffReloadFunc(func(ud uintptr) {
		if ptr, last := l.removeReload(ud); last {
			raw(ptr)
		}
	})
}

func wasmLoad(_ *Library, addr uintptr) any {
	var raw func(data *byte, size, count int32, systems *abi.SystemID, exports **byte) abi.WasmError
	purego.RegisterFunc(&raw, addr)
	return abi.WasmLoadFunc(func(wasm []byte, systems []abi.SystemID, exports []string) abi.WasmError {
		n := min(len(systems), len(exports))
		c := newCall()
		defer c.end()

		return raw(pinned(c, wasm), int32(len(wasm)), int32(n), pinned(c, systems[:n]), c.arena.CStrings(exports[:n]))
	})
}

func wasmLoadFile(_ *Library, addr uintptr) any {
	var raw func(path string, count int32, systems *abi.SystemID, exports **byte) abi.WasmError
	purego.RegisterFunc(&raw, addr)
	return abi.WasmLoadFileFunc(func(path string, systems []abi.SystemID, exports []string) abi.WasmError {
		n := min(len(systems), len(exports))
		c := newCall()
		defer c.end()

		return raw(path, int32(n), pinned(c, systems[:n]), c.arena.CStrings(exports[:n]))
	})
}

func setTrapHandler(l *Library, addr uintptr) any {
	var raw func(handler uintptr)
	purego.RegisterFunc(&raw, addr)
	return abi.WasmSetTrapHandlerFunc(func(handler abi.TrapHandler) {
		raw(l.setTrap(handler))
	})
}
