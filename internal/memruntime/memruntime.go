// Package memruntime is an Ecsact runtime implemented in memory. It provides
// every catalog entry point except the wasm group as Go functions, so it can
// stand in for a shared library in tests and examples.
//
// Execution follows net-change semantics: a component added and removed in
// one execution produces no event, and init and update events carry the
// last value written.
//
// A Runtime is not safe for concurrent use. System implementations call back
// into it while ExecuteSystems runs, on the same goroutine.
package memruntime

import (
	"slices"
	"unsafe"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/symbol"
)

type componentDecl struct {
	name string
	size int32
	cmp  abi.CompareFunc
}

type generateSet struct {
	components []abi.ComponentID
	flags      []abi.SystemGenerate
}

// systemDecl is a system or an action. Both draw ids from one sequence.
type systemDecl struct {
	name      string
	action    bool
	size      int32
	cmp       abi.CompareFunc
	parent    abi.SystemID
	order     int32
	children  []abi.SystemID
	caps      map[abi.ComponentID]abi.SystemCapability
	generates []generateSet
	impl      abi.SystemExecutionImpl
}

// Runtime is one in-memory runtime instance.
type Runtime struct {
	components map[abi.ComponentID]*componentDecl
	systems    map[abi.SystemLikeID]*systemDecl
	registries map[abi.RegistryID]*registry

	nextComponent int32
	nextSystem    int32
	nextRegistry  int32

	contexts    map[abi.ExecutionContext]*execContext
	nextContext abi.ExecutionContext

	reloads map[uintptr]abi.ReloadCallback
	async   asyncState
}

// New returns an empty runtime.
func New() *Runtime {
	return &Runtime{
		components: make(map[abi.ComponentID]*componentDecl),
		systems:    make(map[abi.SystemLikeID]*systemDecl),
		registries: make(map[abi.RegistryID]*registry),
		contexts:   make(map[abi.ExecutionContext]*execContext),
		reloads:    make(map[uintptr]abi.ReloadCallback),
	}
}

// Library returns the runtime's entry points as a library. With no groups
// every implemented group is included.
func (m *Runtime) Library(name string, groups ...abi.Group) *symbol.Funcs {
	lib := symbol.NewFuncs(name)
	for sym, fn := range m.entryPoints() {
		e, ok := abi.Lookup(sym)
		if !ok {
			continue
		}
		if len(groups) == 0 || slices.Contains(groups, e.Group) {
			lib.Set(sym, fn)
		}
	}
	return lib
}

func (m *Runtime) entryPoints() map[string]any {
	return map[string]any{
		abi.SymCreateRegistry:  abi.CreateRegistryFunc(m.createRegistry),
		abi.SymDestroyRegistry: abi.DestroyRegistryFunc(m.destroyRegistry),
		abi.SymClearRegistry:   abi.ClearRegistryFunc(m.clearRegistry),
		abi.SymCreateEntity:    abi.CreateEntityFunc(m.createEntity),
		abi.SymEnsureEntity:    abi.EnsureEntityFunc(m.ensureEntity),
		abi.SymEntityExists:    abi.EntityExistsFunc(m.entityExists),
		abi.SymDestroyEntity:   abi.DestroyEntityFunc(m.destroyEntity),
		abi.SymCountEntities:   abi.CountEntitiesFunc(m.countEntities),
		abi.SymGetEntities:     abi.GetEntitiesFunc(m.getEntities),
		abi.SymAddComponent:    abi.AddComponentFunc(m.addComponent),
		abi.SymHasComponent:    abi.HasComponentFunc(m.hasComponent),
		abi.SymGetComponent:    abi.GetComponentFunc(m.getComponent),
		abi.SymEachComponent:   abi.EachComponentFunc(m.eachComponent),
		abi.SymCountComponents: abi.CountComponentsFunc(m.countComponents),
		abi.SymGetComponents:   abi.GetComponentsFunc(m.getComponents),
		abi.SymUpdateComponent: abi.UpdateComponentFunc(m.updateComponent),
		abi.SymRemoveComponent: abi.RemoveComponentFunc(m.removeComponent),
		abi.SymExecuteSystems:  abi.ExecuteSystemsFunc(m.executeSystems),

		abi.SymContextAction:          abi.ContextActionFunc(m.contextAction),
		abi.SymContextAdd:             abi.ContextAddFunc(m.contextAdd),
		abi.SymContextRemove:          abi.ContextRemoveFunc(m.contextRemove),
		abi.SymContextGet:             abi.ContextGetFunc(m.contextGet),
		abi.SymContextUpdate:          abi.ContextUpdateFunc(m.contextUpdate),
		abi.SymContextHas:             abi.ContextHasFunc(m.contextHas),
		abi.SymContextGenerate:        abi.ContextGenerateFunc(m.contextGenerate),
		abi.SymContextParent:          abi.ContextParentFunc(m.contextParent),
		abi.SymContextSame:            abi.ContextSameFunc(m.contextSame),
		abi.SymContextID:              abi.ContextIDFunc(m.contextID),
		abi.SymCreateSystem:           abi.CreateSystemFunc(m.createSystem),
		abi.SymSetSystemExecutionImpl: abi.SetSystemImplFunc(m.setSystemImpl),
		abi.SymCreateAction:           abi.CreateActionFunc(m.createAction),
		abi.SymResizeAction:           abi.ResizeActionFunc(m.resizeAction),
		abi.SymCreateComponent:        abi.CreateComponentFunc(m.createComponent),
		abi.SymResizeComponent:        abi.ResizeComponentFunc(m.resizeComponent),
		abi.SymDestroyComponent:       abi.DestroyComponentFunc(m.destroyComponent),
		abi.SymAddSystemCapability:    abi.SetCapabilityFunc(m.setCapability),
		abi.SymUpdateSystemCapability: abi.SetCapabilityFunc(m.setCapability),
		abi.SymRemoveSystemCapability: abi.RemoveCapabilityFunc(m.removeCapability),
		abi.SymAddSystemGenerateSet:   abi.AddGenerateSetFunc(m.addGenerateSet),
		abi.SymRegisterComponent:      abi.RegisterComponentFunc(m.registerComponent),
		abi.SymRegisterSystem:         abi.RegisterSystemFunc(m.registerSystem),
		abi.SymRegisterAction:         abi.RegisterActionFunc(m.registerAction),

		abi.SymMetaRegistryName:       abi.RegistryNameFunc(m.registryName),
		abi.SymMetaComponentSize:      abi.ComponentSizeFunc(m.componentSize),
		abi.SymMetaComponentName:      abi.ComponentNameFunc(m.componentName),
		abi.SymMetaActionSize:         abi.ActionSizeFunc(m.actionSize),
		abi.SymMetaActionName:         abi.ActionNameFunc(m.actionName),
		abi.SymMetaSystemName:         abi.SystemNameFunc(m.systemName),
		abi.SymMetaSystemCapsCount:    abi.SystemCapabilitiesCountFunc(m.capabilitiesCount),
		abi.SymMetaSystemCapabilities: abi.SystemCapabilitiesFunc(m.capabilities),

		abi.SymSerializeActionSize:    abi.SerializeActionSizeFunc(m.actionSize),
		abi.SymSerializeComponentSize: abi.SerializeComponentSizeFunc(m.componentSize),
		abi.SymSerializeAction:        abi.SerializeActionFunc(m.serializeAction),
		abi.SymSerializeComponent:     abi.SerializeComponentFunc(m.serializeComponent),
		abi.SymDeserializeAction:      abi.DeserializeActionFunc(m.deserializeAction),
		abi.SymDeserializeComponent:   abi.DeserializeComponentFunc(m.deserializeComponent),

		abi.SymStaticComponents: abi.StaticComponentsFunc(m.staticComponents),
		abi.SymStaticSystems:    abi.StaticSystemsFunc(m.staticSystems),
		abi.SymStaticActions:    abi.StaticActionsFunc(m.staticActions),
		abi.SymStaticOnReload:   abi.StaticOnReloadFunc(m.onReload),
		abi.SymStaticOffReload:  abi.StaticOffReloadFunc(m.offReload),

		abi.SymAsyncConnect:         abi.AsyncConnectFunc(m.asyncConnect),
		abi.SymAsyncDisconnect:      abi.AsyncDisconnectFunc(m.asyncDisconnect),
		abi.SymAsyncExecuteAction:   abi.AsyncExecuteActionFunc(m.asyncExecuteAction),
		abi.SymAsyncExecuteActionAt: abi.AsyncExecuteActionAtFunc(m.asyncExecuteActionAt),
		abi.SymAsyncFlushEvents:     abi.AsyncFlushEventsFunc(m.asyncFlushEvents),
	}
}

// alloc returns a zeroed buffer whose data pointer is never nil, so zero
// sized (tag) components still have an address.
func alloc(size int32) []byte {
	n := max(int(size), 0)
	return make([]byte, n, max(n, 1))
}

func copyIn(data unsafe.Pointer, size int32) []byte {
	b := alloc(size)
	if data != nil && len(b) > 0 {
		copy(b, unsafe.Slice((*byte)(data), len(b)))
	}
	return b
}

func copyOut(out unsafe.Pointer, b []byte) {
	if out != nil && len(b) > 0 {
		copy(unsafe.Slice((*byte)(out), len(b)), b)
	}
}

func ptr(b []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b))
}
