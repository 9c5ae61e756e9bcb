// Package ecsact binds Go programs to Ecsact runtimes built as native shared
// libraries, and dispatches their component events to Go subscribers.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	ecsact/              Module root (documentation only)
//	├── abi/             C ABI types, function signatures and the entry point catalog
//	├── symbol/          Libraries, symbol resolution and the resolved table
//	├── native/          Shared library loader and callback trampolines (purego)
//	├── marshal/         Arenas, codecs and the component/action type registry
//	├── resource/        Handle table behind every user-data token
//	├── runtime/         Facades: Core, Dynamic, Meta, Serialize, Static, Async, Wasm, Events
//	├── guest/           Wasm system implementations on wazero
//	├── errors/          Structured error types
//	├── metrics/         Prometheus collector
//	├── config/          Settings (YAML, .env, environment)
//	├── app/             Runtime ownership, default registries and the async runner
//	└── cmd/ecsact/      Inspector and driver CLI
//
// # Quick Start
//
// Load runtime libraries and execute systems:
//
//	rt, err := runtime.Load([]string{"build/libcore.so", "build/libdynamic.so"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	reg, err := rt.Core().CreateRegistry("main")
//	runtime.OnUpdate(rt, func(e abi.EntityID, p Position) {
//	    fmt.Println(e, p)
//	})
//	err = rt.Core().ExecuteSystems(reg)
//
// # Entry Points
//
// Every library is probed for the whole catalog. A symbol exported by several
// libraries is taken from the last one loaded. An operation whose entry point
// did not resolve fails with a missing_entry_point error naming the C symbol;
// Runtime.Available lists what each facade group can do.
//
// # Thread Safety
//
// A Runtime is used from one goroutine. Event, async and reload callbacks are
// delivered synchronously on the goroutine making the call that pumps them
// (ExecuteSystems, FlushEvents). The token table and callback trampolines are
// safe for concurrent use.
package ecsact
