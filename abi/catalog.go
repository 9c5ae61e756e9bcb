package abi

import "reflect"

// Group is a facade grouping of entry points.
type Group string

const (
	GroupCore      Group = "core"
	GroupDynamic   Group = "dynamic"
	GroupMeta      Group = "meta"
	GroupSerialize Group = "serialize"
	GroupStatic    Group = "static"
	GroupAsync     Group = "async"
	GroupWasm      Group = "wasm"
)

// Groups lists every group in catalog order.
var Groups = []Group{
	GroupCore,
	GroupDynamic,
	GroupMeta,
	GroupSerialize,
	GroupStatic,
	GroupAsync,
	GroupWasm,
}

// Entry is one C entry point and the Go type a library must expose it as.
type Entry struct {
	Type  reflect.Type
	Group Group
	Name  string
}

// Entry point names.
const (
	SymCreateRegistry  = "ecsact_create_registry"
	SymDestroyRegistry = "ecsact_destroy_registry"
	SymClearRegistry   = "ecsact_clear_registry"
	SymCreateEntity    = "ecsact_create_entity"
	SymEnsureEntity    = "ecsact_ensure_entity"
	SymEntityExists    = "ecsact_entity_exists"
	SymDestroyEntity   = "ecsact_destroy_entity"
	SymCountEntities   = "ecsact_count_entities"
	SymGetEntities     = "ecsact_get_entities"
	SymAddComponent    = "ecsact_add_component"
	SymHasComponent    = "ecsact_has_component"
	SymGetComponent    = "ecsact_get_component"
	SymEachComponent   = "ecsact_each_component"
	SymCountComponents = "ecsact_count_components"
	SymGetComponents   = "ecsact_get_components"
	SymUpdateComponent = "ecsact_update_component"
	SymRemoveComponent = "ecsact_remove_component"
	SymExecuteSystems  = "ecsact_execute_systems"

	SymContextAction          = "ecsact_system_execution_context_action"
	SymContextAdd             = "ecsact_system_execution_context_add"
	SymContextRemove          = "ecsact_system_execution_context_remove"
	SymContextGet             = "ecsact_system_execution_context_get"
	SymContextUpdate          = "ecsact_system_execution_context_update"
	SymContextHas             = "ecsact_system_execution_context_has"
	SymContextGenerate        = "ecsact_system_execution_context_generate"
	SymContextParent          = "ecsact_system_execution_context_parent"
	SymContextSame            = "ecsact_system_execution_context_same"
	SymContextID              = "ecsact_system_execution_context_id"
	SymCreateSystem           = "ecsact_create_system"
	SymSetSystemExecutionImpl = "ecsact_set_system_execution_impl"
	SymCreateAction           = "ecsact_create_action"
	SymResizeAction           = "ecsact_resize_action"
	SymCreateComponent        = "ecsact_create_component"
	SymResizeComponent        = "ecsact_resize_component"
	SymDestroyComponent       = "ecsact_destroy_component"
	SymAddSystemCapability    = "ecsact_add_system_capability"
	SymUpdateSystemCapability = "ecsact_update_system_capability"
	SymRemoveSystemCapability = "ecsact_remove_system_capability"
	SymAddSystemGenerateSet   = "ecsact_add_system_generate_component_set"
	SymRegisterComponent      = "ecsact_register_component"
	SymRegisterSystem         = "ecsact_register_system"
	SymRegisterAction         = "ecsact_register_action"
	SymMetaRegistryName       = "ecsact_meta_registry_name"
	SymMetaComponentSize      = "ecsact_meta_component_size"
	SymMetaComponentName      = "ecsact_meta_component_name"
	SymMetaActionSize         = "ecsact_meta_action_size"
	SymMetaActionName         = "ecsact_meta_action_name"
	SymMetaSystemName         = "ecsact_meta_system_name"
	SymMetaSystemCapsCount    = "ecsact_meta_system_capabilities_count"
	SymMetaSystemCapabilities = "ecsact_meta_system_capabilities"
	SymSerializeActionSize    = "ecsact_serialize_action_size"
	SymSerializeComponentSize = "ecsact_serialize_component_size"
	SymSerializeAction        = "ecsact_serialize_action"
	SymSerializeComponent     = "ecsact_serialize_component"
	SymDeserializeAction      = "ecsact_deserialize_action"
	SymDeserializeComponent   = "ecsact_deserialize_component"
	SymStaticComponents       = "ecsact_static_components"
	SymStaticSystems          = "ecsact_static_systems"
	SymStaticActions          = "ecsact_static_actions"
	SymStaticOnReload         = "ecsact_static_on_reload"
	SymStaticOffReload        = "ecsact_static_off_reload"
	SymAsyncConnect           = "ecsact_async_connect"
	SymAsyncDisconnect        = "ecsact_async_disconnect"
	SymAsyncExecuteAction     = "ecsact_async_execute_action"
	SymAsyncExecuteActionAt   = "ecsact_async_execute_action_at"
	SymAsyncFlushEvents       = "ecsact_async_flush_events"
	SymWasmLoad               = "ecsactsi_wasm_load"
	SymWasmLoadFile           = "ecsactsi_wasm_load_file"
	SymWasmSetTrapHandler     = "ecsactsi_wasm_set_trap_handler"
)

func entry[T any](g Group, name string) Entry {
	return Entry{Group: g, Name: name, Type: reflect.TypeFor[T]()}
}

// Catalog is the fixed, ordered list of entry points the binding knows about.
var Catalog = []Entry{
	entry[CreateRegistryFunc](GroupCore, SymCreateRegistry),
	entry[DestroyRegistryFunc](GroupCore, SymDestroyRegistry),
	entry[ClearRegistryFunc](GroupCore, SymClearRegistry),
	entry[CreateEntityFunc](GroupCore, SymCreateEntity),
	entry[EnsureEntityFunc](GroupCore, SymEnsureEntity),
	entry[EntityExistsFunc](GroupCore, SymEntityExists),
	entry[DestroyEntityFunc](GroupCore, SymDestroyEntity),
	entry[CountEntitiesFunc](GroupCore, SymCountEntities),
	entry[GetEntitiesFunc](GroupCore, SymGetEntities),
	entry[AddComponentFunc](GroupCore, SymAddComponent),
	entry[HasComponentFunc](GroupCore, SymHasComponent),
	entry[GetComponentFunc](GroupCore, SymGetComponent),
	entry[EachComponentFunc](GroupCore, SymEachComponent),
	entry[CountComponentsFunc](GroupCore, SymCountComponents),
	entry[GetComponentsFunc](GroupCore, SymGetComponents),
	entry[UpdateComponentFunc](GroupCore, SymUpdateComponent),
	entry[RemoveComponentFunc](GroupCore, SymRemoveComponent),
	entry[ExecuteSystemsFunc](GroupCore, SymExecuteSystems),

	entry[ContextActionFunc](GroupDynamic, SymContextAction),
	entry[ContextAddFunc](GroupDynamic, SymContextAdd),
	entry[ContextRemoveFunc](GroupDynamic, SymContextRemove),
	entry[ContextGetFunc](GroupDynamic, SymContextGet),
	entry[ContextUpdateFunc](GroupDynamic, SymContextUpdate),
	entry[ContextHasFunc](GroupDynamic, SymContextHas),
	entry[ContextGenerateFunc](GroupDynamic, SymContextGenerate),
	entry[ContextParentFunc](GroupDynamic, SymContextParent),
	entry[ContextSameFunc](GroupDynamic, SymContextSame),
	entry[ContextIDFunc](GroupDynamic, SymContextID),
	entry[CreateSystemFunc](GroupDynamic, SymCreateSystem),
	entry[SetSystemImplFunc](GroupDynamic, SymSetSystemExecutionImpl),
	entry[CreateActionFunc](GroupDynamic, SymCreateAction),
	entry[ResizeActionFunc](GroupDynamic, SymResizeAction),
	entry[CreateComponentFunc](GroupDynamic, SymCreateComponent),
	entry[ResizeComponentFunc](GroupDynamic, SymResizeComponent),
	entry[DestroyComponentFunc](GroupDynamic, SymDestroyComponent),
	entry[SetCapabilityFunc](GroupDynamic, SymAddSystemCapability),
	entry[SetCapabilityFunc](GroupDynamic, SymUpdateSystemCapability),
	entry[RemoveCapabilityFunc](GroupDynamic, SymRemoveSystemCapability),
	entry[AddGenerateSetFunc](GroupDynamic, SymAddSystemGenerateSet),
	entry[RegisterComponentFunc](GroupDynamic, SymRegisterComponent),
	entry[RegisterSystemFunc](GroupDynamic, SymRegisterSystem),
	entry[RegisterActionFunc](GroupDynamic, SymRegisterAction),

	entry[RegistryNameFunc](GroupMeta, SymMetaRegistryName),
	entry[ComponentSizeFunc](GroupMeta, SymMetaComponentSize),
	entry[ComponentNameFunc](GroupMeta, SymMetaComponentName),
	entry[ActionSizeFunc](GroupMeta, SymMetaActionSize),
	entry[ActionNameFunc](GroupMeta, SymMetaActionName),
	entry[SystemNameFunc](GroupMeta, SymMetaSystemName),
	entry[SystemCapabilitiesCountFunc](GroupMeta, SymMetaSystemCapsCount),
	entry[SystemCapabilitiesFunc](GroupMeta, SymMetaSystemCapabilities),

	entry[SerializeActionSizeFunc](GroupSerialize, SymSerializeActionSize),
	entry[SerializeComponentSizeFunc](GroupSerialize, SymSerializeComponentSize),
	entry[SerializeActionFunc](GroupSerialize, SymSerializeAction),
	entry[SerializeComponentFunc](GroupSerialize, SymSerializeComponent),
	entry[DeserializeActionFunc](GroupSerialize, SymDeserializeAction),
	entry[DeserializeComponentFunc](GroupSerialize, SymDeserializeComponent),

	entry[StaticComponentsFunc](GroupStatic, SymStaticComponents),
	entry[StaticSystemsFunc](GroupStatic, SymStaticSystems),
	entry[StaticActionsFunc](GroupStatic, SymStaticActions),
	entry[StaticOnReloadFunc](GroupStatic, SymStaticOnReload),
	entry[StaticOffReloadFunc](GroupStatic, SymStaticOffReload),

	entry[AsyncConnectFunc](GroupAsync, SymAsyncConnect),
	entry[AsyncDisconnectFunc](GroupAsync, SymAsyncDisconnect),
	entry[AsyncExecuteActionFunc](GroupAsync, SymAsyncExecuteAction),
	entry[AsyncExecuteActionAtFunc](GroupAsync, SymAsyncExecuteActionAt),
	entry[AsyncFlushEventsFunc](GroupAsync, SymAsyncFlushEvents),

	entry[WasmLoadFunc](GroupWasm, SymWasmLoad),
	entry[WasmLoadFileFunc](GroupWasm, SymWasmLoadFile),
	entry[WasmSetTrapHandlerFunc](GroupWasm, SymWasmSetTrapHandler),
}

var catalogIndex = func() map[string]int {
	idx := make(map[string]int, len(Catalog))
	for i, e := range Catalog {
		idx[e.Name] = i
	}
	return idx
}()

// Lookup returns the catalog entry for a symbol name.
func Lookup(name string) (Entry, bool) {
	i, ok := catalogIndex[name]
	if !ok {
		return Entry{}, false
	}
	return Catalog[i], true
}

// Symbols returns the names of a group in catalog order.
func Symbols(g Group) []string {
	var names []string
	for _, e := range Catalog {
		if e.Group == g {
			names = append(names, e.Name)
		}
	}
	return names
}
