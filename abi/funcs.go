package abi

import "unsafe"

// Go-side signatures of the C entry points. A library exposes each catalog
// symbol as a value of exactly the type listed for it in Catalog. Arrays that
// C passes as pointer plus length are slices here; out-arrays are filled up to
// their length and the function reports how many entries it wrote.

// Callbacks native code invokes during a call. The trailing userData is the
// value the caller put in the matching collector slot.
type (
	ComponentEventCallback  func(ev Event, entity EntityID, component ComponentID, data unsafe.Pointer, userData uintptr)
	EachComponentCallback   func(component ComponentID, data unsafe.Pointer, userData uintptr)
	ReloadCallback          func(userData uintptr)
	AsyncErrorCallback      func(err AsyncError, request RequestID, userData uintptr)
	AsyncConnectCallback    func(address string, port int32, userData uintptr)
	ActionCommittedCallback func(action ActionID, data unsafe.Pointer, tick int32, request RequestID, userData uintptr)
	SystemExecutionImpl     func(ctx ExecutionContext)
	CompareFunc             func(a, b unsafe.Pointer) int32
	TrapHandler             func(system SystemID, message string)
)

// EventsCollector is ecsact_execution_events_collector with Go callbacks.
// A nil callback means the caller is not interested in that event kind.
type EventsCollector struct {
	Init           ComponentEventCallback
	Update         ComponentEventCallback
	Remove         ComponentEventCallback
	InitUserData   uintptr
	UpdateUserData uintptr
	RemoveUserData uintptr
}

// AsyncEventsCollector is ecsact_async_events_collector with Go callbacks.
type AsyncEventsCollector struct {
	Error                   AsyncErrorCallback
	Connect                 AsyncConnectCallback
	ActionCommitted         ActionCommittedCallback
	ErrorUserData           uintptr
	ConnectUserData         uintptr
	ActionCommittedUserData uintptr
}

// Core
type (
	CreateRegistryFunc  func(name string) RegistryID
	DestroyRegistryFunc func(reg RegistryID)
	ClearRegistryFunc   func(reg RegistryID)
	CreateEntityFunc    func(reg RegistryID) EntityID
	EnsureEntityFunc    func(reg RegistryID, entity EntityID)
	EntityExistsFunc    func(reg RegistryID, entity EntityID) bool
	DestroyEntityFunc   func(reg RegistryID, entity EntityID)
	CountEntitiesFunc   func(reg RegistryID) int32
	GetEntitiesFunc     func(reg RegistryID, out []EntityID) int32
	AddComponentFunc    func(reg RegistryID, entity EntityID, component ComponentID, data unsafe.Pointer) AddError
	HasComponentFunc    func(reg RegistryID, entity EntityID, component ComponentID) bool
	GetComponentFunc    func(reg RegistryID, entity EntityID, component ComponentID) unsafe.Pointer
	EachComponentFunc   func(reg RegistryID, entity EntityID, cb EachComponentCallback, userData uintptr)
	CountComponentsFunc func(reg RegistryID, entity EntityID) int32
	GetComponentsFunc   func(reg RegistryID, entity EntityID, outIDs []ComponentID, outData []unsafe.Pointer) int32
	UpdateComponentFunc func(reg RegistryID, entity EntityID, component ComponentID, data unsafe.Pointer) UpdateError
	RemoveComponentFunc func(reg RegistryID, entity EntityID, component ComponentID)
	ExecuteSystemsFunc  func(reg RegistryID, options []ExecutionOptions, events *EventsCollector) ExecuteError
)

// Dynamic
type (
	ContextActionFunc     func(ctx ExecutionContext, out unsafe.Pointer)
	ContextAddFunc        func(ctx ExecutionContext, component ComponentID, data unsafe.Pointer)
	ContextRemoveFunc     func(ctx ExecutionContext, component ComponentID)
	ContextGetFunc        func(ctx ExecutionContext, component ComponentID, out unsafe.Pointer)
	ContextUpdateFunc     func(ctx ExecutionContext, component ComponentID, data unsafe.Pointer)
	ContextHasFunc        func(ctx ExecutionContext, component ComponentID) bool
	ContextGenerateFunc   func(ctx ExecutionContext, ids []ComponentID, data []unsafe.Pointer)
	ContextParentFunc     func(ctx ExecutionContext) ExecutionContext
	ContextSameFunc       func(a, b ExecutionContext) bool
	ContextIDFunc         func(ctx ExecutionContext) SystemLikeID
	CreateSystemFunc      func(name string, parent SystemID, caps []Capability, impl SystemExecutionImpl) SystemID
	SetSystemImplFunc     func(id SystemLikeID, impl SystemExecutionImpl)
	CreateActionFunc      func(name string, size int32, cmp CompareFunc, caps []Capability, impl SystemExecutionImpl) ActionID
	ResizeActionFunc      func(id ActionID, size int32, cmp CompareFunc)
	CreateComponentFunc   func(name string, size int32, cmp CompareFunc) ComponentID
	ResizeComponentFunc   func(id ComponentID, size int32, cmp CompareFunc)
	DestroyComponentFunc  func(id ComponentID)
	SetCapabilityFunc     func(id SystemLikeID, component ComponentID, flags SystemCapability)
	RemoveCapabilityFunc  func(id SystemLikeID, component ComponentID)
	AddGenerateSetFunc    func(id SystemLikeID, ids []ComponentID, flags []SystemGenerate)
	RegisterComponentFunc func(reg RegistryID, id ComponentID)
	RegisterSystemFunc    func(reg RegistryID, id SystemID)
	RegisterActionFunc    func(reg RegistryID, id ActionID)
)

// Meta
type (
	RegistryNameFunc            func(reg RegistryID) string
	ComponentSizeFunc           func(id ComponentID) int32
	ComponentNameFunc           func(id ComponentID) string
	ActionSizeFunc              func(id ActionID) int32
	ActionNameFunc              func(id ActionID) string
	SystemNameFunc              func(id SystemLikeID) string
	SystemCapabilitiesCountFunc func(id SystemLikeID) int32
	SystemCapabilitiesFunc      func(id SystemLikeID, outComponents []ComponentID, outCaps []SystemCapability) int32
)

// Serialize. Encoders return bytes written; decoders return bytes read or a
// negative value when the input is malformed.
type (
	SerializeActionSizeFunc    func(id ActionID) int32
	SerializeComponentSizeFunc func(id ComponentID) int32
	SerializeActionFunc        func(id ActionID, in unsafe.Pointer, out []byte) int32
	SerializeComponentFunc     func(id ComponentID, in unsafe.Pointer, out []byte) int32
	DeserializeActionFunc      func(id ActionID, in []byte, out unsafe.Pointer) int32
	DeserializeComponentFunc   func(id ComponentID, in []byte, out unsafe.Pointer) int32
)

// Static. Reload callbacks are removed by the userData they were added with.
type (
	StaticComponentsFunc func() []StaticComponentInfo
	StaticSystemsFunc    func() []StaticSystemInfo
	StaticActionsFunc    func() []StaticActionInfo
	StaticOnReloadFunc   func(cb ReloadCallback, userData uintptr)
	StaticOffReloadFunc  func(userData uintptr)
)

// Async
type (
	AsyncConnectFunc         func(connectionString string) RequestID
	AsyncDisconnectFunc      func()
	AsyncExecuteActionFunc   func(id ActionID, data unsafe.Pointer) RequestID
	AsyncExecuteActionAtFunc func(id ActionID, data unsafe.Pointer, tick int32) RequestID
	AsyncFlushEventsFunc     func(exec *EventsCollector, async *AsyncEventsCollector)
)

// Guest (wasm) system modules
type (
	WasmLoadFunc           func(wasm []byte, systems []SystemID, exports []string) WasmError
	WasmLoadFileFunc       func(path string, systems []SystemID, exports []string) WasmError
	WasmSetTrapHandlerFunc func(handler TrapHandler)
)
