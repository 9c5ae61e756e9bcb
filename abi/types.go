package abi

import (
	"fmt"
	"unsafe"
)

// Ids crossing the boundary are 32-bit signed integers. Negative values are
// invalid for every id kind.
type (
	RegistryID   int32
	EntityID     int32
	ComponentID  int32
	SystemID     int32
	ActionID     int32
	SystemLikeID int32 // system or action id
	RequestID    int32
)

// InvalidID is returned by native code in place of an id it could not create.
const InvalidID = -1

// ExecutionContext is the opaque context pointer native code hands to a system
// implementation. It is only valid during that call.
type ExecutionContext uintptr

// Event is the kind of a component lifecycle notification.
type Event int32

const (
	EventInit   Event = 0
	EventUpdate Event = 1
	EventRemove Event = 2
)

func (e Event) String() string {
	switch e {
	case EventInit:
		return "init"
	case EventUpdate:
		return "update"
	case EventRemove:
		return "remove"
	}
	return fmt.Sprintf("event(%d)", int32(e))
}

// SystemCapability describes how a system or action accesses a component.
type SystemCapability int32

const (
	CapReadonly          SystemCapability = 1
	CapWriteonly         SystemCapability = 2
	CapReadWrite         SystemCapability = 3
	CapOptional          SystemCapability = 4
	CapOptionalReadonly  SystemCapability = CapOptional | CapReadonly
	CapOptionalWriteonly SystemCapability = CapOptional | CapWriteonly
	CapOptionalReadWrite SystemCapability = CapOptional | CapReadWrite
	CapInclude           SystemCapability = 8
	CapExclude           SystemCapability = 16
	CapAdds              SystemCapability = 32 | CapExclude
	CapRemoves           SystemCapability = 64 | CapInclude
)

// Has reports whether every bit of flag is set.
func (c SystemCapability) Has(flag SystemCapability) bool {
	return c&flag == flag
}

func (c SystemCapability) String() string {
	switch c {
	case CapReadonly:
		return "readonly"
	case CapWriteonly:
		return "writeonly"
	case CapReadWrite:
		return "readwrite"
	case CapOptionalReadonly:
		return "optional readonly"
	case CapOptionalWriteonly:
		return "optional writeonly"
	case CapOptionalReadWrite:
		return "optional readwrite"
	case CapInclude:
		return "include"
	case CapExclude:
		return "exclude"
	case CapAdds:
		return "adds"
	case CapRemoves:
		return "removes"
	}
	return fmt.Sprintf("capability(%d)", int32(c))
}

// SystemGenerate flags a component in a generate set.
type SystemGenerate int32

const (
	GenerateRequired SystemGenerate = 1
	GenerateOptional SystemGenerate = 2
)

// AsyncError is reported through the async error callback.
type AsyncError int32

const (
	AsyncErrConnectionClosed        AsyncError = 0
	AsyncErrConnectFail             AsyncError = 1
	AsyncErrSocketFail              AsyncError = 2
	AsyncErrStateFail               AsyncError = 3
	AsyncErrStartFail               AsyncError = 4
	AsyncErrInvalidConnectionString AsyncError = 5
)

// ConnectionLevel reports whether the error ends the connection rather than
// a single request.
func (e AsyncError) ConnectionLevel() bool {
	return e != AsyncErrStateFail
}

func (e AsyncError) String() string {
	switch e {
	case AsyncErrConnectionClosed:
		return "connection closed"
	case AsyncErrConnectFail:
		return "connect fail"
	case AsyncErrSocketFail:
		return "socket fail"
	case AsyncErrStateFail:
		return "state fail"
	case AsyncErrStartFail:
		return "start fail"
	case AsyncErrInvalidConnectionString:
		return "invalid connection string"
	}
	return fmt.Sprintf("async error(%d)", int32(e))
}

// WasmError is the status of a guest module load.
type WasmError int32

const (
	WasmOK WasmError = iota
	WasmErrOpenFail
	WasmErrReadFail
	WasmErrCompileFail
	WasmErrInstantiateFail
	WasmErrExportNotFound
	WasmErrExportInvalid
	WasmErrGuestImportUnknown
)

func (e WasmError) String() string {
	switch e {
	case WasmOK:
		return "ok"
	case WasmErrOpenFail:
		return "open fail"
	case WasmErrReadFail:
		return "read fail"
	case WasmErrCompileFail:
		return "compile fail"
	case WasmErrInstantiateFail:
		return "instantiate fail"
	case WasmErrExportNotFound:
		return "export not found"
	case WasmErrExportInvalid:
		return "export invalid"
	case WasmErrGuestImportUnknown:
		return "guest import unknown"
	}
	return fmt.Sprintf("wasm error(%d)", int32(e))
}

// AddError is the status of ecsact_add_component.
type AddError int32

const (
	AddOK                  AddError = 0
	AddErrEntityInvalid    AddError = 1
	AddErrConstraintBroken AddError = 2
)

// UpdateError is the status of ecsact_update_component.
type UpdateError int32

const (
	UpdateOK                  UpdateError = 0
	UpdateErrEntityInvalid    UpdateError = 1
	UpdateErrConstraintBroken UpdateError = 2
)

// ExecuteError is the status of ecsact_execute_systems.
type ExecuteError int32

const (
	ExecOK                              ExecuteError = 0
	ExecErrActionEntityInvalid          ExecuteError = 1
	ExecErrActionEntityConstraintBroken ExecuteError = 2
)

// Component mirrors ecsact_component.
type Component struct {
	ID   ComponentID
	Data unsafe.Pointer
}

// Action mirrors ecsact_action.
type Action struct {
	ID   ActionID
	Data unsafe.Pointer
}

// ExecutionOptions mirrors ecsact_execution_options. Every pointer refers to an
// array of the preceding length and must stay pinned for the duration of
// ecsact_execute_systems.
type ExecutionOptions struct {
	AddComponentsLength      int32
	AddComponentsEntities    *EntityID
	AddComponents            *Component
	UpdateComponentsLength   int32
	UpdateComponentsEntities *EntityID
	UpdateComponents         *Component
	RemoveComponentsLength   int32
	RemoveComponentsEntities *EntityID
	RemoveComponents         *ComponentID
	ActionsLength            int32
	Actions                  *Action
}

// Adds returns the add list as Go slices.
func (o *ExecutionOptions) Adds() ([]EntityID, []Component) {
	n := int(o.AddComponentsLength)
	if n == 0 {
		return nil, nil
	}
	return unsafe.Slice(o.AddComponentsEntities, n), unsafe.Slice(o.AddComponents, n)
}

// Updates returns the update list as Go slices.
func (o *ExecutionOptions) Updates() ([]EntityID, []Component) {
	n := int(o.UpdateComponentsLength)
	if n == 0 {
		return nil, nil
	}
	return unsafe.Slice(o.UpdateComponentsEntities, n), unsafe.Slice(o.UpdateComponents, n)
}

// Removes returns the remove list as Go slices.
func (o *ExecutionOptions) Removes() ([]EntityID, []ComponentID) {
	n := int(o.RemoveComponentsLength)
	if n == 0 {
		return nil, nil
	}
	return unsafe.Slice(o.RemoveComponentsEntities, n), unsafe.Slice(o.RemoveComponents, n)
}

// ActionList returns the action list as a Go slice.
func (o *ExecutionOptions) ActionList() []Action {
	n := int(o.ActionsLength)
	if n == 0 {
		return nil
	}
	return unsafe.Slice(o.Actions, n)
}

// Capability pairs a component with the access a system has to it.
type Capability struct {
	Component ComponentID
	Flags     SystemCapability
}

// StaticComponentInfo describes a component known at build time.
type StaticComponentInfo struct {
	Compare   CompareFunc
	Name      string
	ID        ComponentID
	Size      int32
	Transient bool
}

// StaticSystemInfo describes a system known at build time.
type StaticSystemInfo struct {
	Impl         SystemExecutionImpl
	Name         string
	Children     []SystemID
	Capabilities []Capability
	ID           SystemID
	Order        int32
	Parent       SystemID
}

// StaticActionInfo describes an action known at build time.
type StaticActionInfo struct {
	Impl         SystemExecutionImpl
	Compare      CompareFunc
	Name         string
	Children     []SystemID
	Capabilities []Capability
	ID           ActionID
	Order        int32
	Size         int32
}
