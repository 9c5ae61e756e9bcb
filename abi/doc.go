// Package abi describes the Ecsact C ABI as seen from Go.
//
// It holds the 32-bit id types, the enums shared with native code, the
// structs whose layout must match C exactly (ExecutionOptions, Component,
// Action), the Go signature of every entry point, and Catalog, the ordered
// list of entry points grouped by facade.
//
// Libraries (native shared objects or in-process Go implementations) expose
// each entry point as a value of the Go type recorded in its catalog Entry:
//
//	e, _ := abi.Lookup(abi.SymCreateRegistry)
//	fmt.Println(e.Group, e.Type) // core abi.CreateRegistryFunc
package abi
