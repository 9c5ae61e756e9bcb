// Package guest implements the wasm system loader entry points in process,
// on wazero.
//
// A Library provides ecsactsi_wasm_load, ecsactsi_wasm_load_file and
// ecsactsi_wasm_set_trap_handler. Each guest export bound to a system must
// have the signature (i32) -> (); it is installed as the system's execution
// impl through the resolved ecsact_set_system_execution_impl. The i32 it
// receives is a handle to the execution context, valid for that call.
//
// Guests import context functions from the host module "env":
//
//	ecsact_system_execution_context_get    (ctx, component, out)
//	ecsact_system_execution_context_update (ctx, component, in)
//	ecsact_system_execution_context_add    (ctx, component, in)
//	ecsact_system_execution_context_remove (ctx, component)
//	ecsact_system_execution_context_has    (ctx, component) -> i32
//	ecsact_system_execution_context_action (ctx, out)
//	ecsact_system_execution_context_id     (ctx) -> i32
//	ecsact_system_execution_context_parent (ctx) -> i32
//	ecsact_system_execution_context_same   (ctx, ctx) -> i32
//
// Pointers are offsets into the guest's own memory; value sizes come from
// the meta entry points. A fault inside a guest is reported to the trap
// handler with the system id and does not stop other systems.
//
// Usage:
//
//	lib := guest.New(ctx)
//	rt, err := runtime.Load(paths, runtime.WithLibraries(lib))
//	err = rt.Wasm().Load(wasm, runtime.WasmBinding{Export: "move", System: id})
package guest
