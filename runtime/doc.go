// Package runtime binds one or more Ecsact runtime libraries and exposes
// their entry points as typed Go facades.
//
// # Loading
//
//	rt, err := runtime.Load([]string{"./libecsact_rt.so", "./libecsact_async.so"},
//	    runtime.WithLogger(log),
//	    runtime.WithRegistry(codecs))
//	if err != nil {
//	    log.Fatal("load", zap.Error(err))
//	}
//	defer rt.Close()
//
// Libraries are searched in load order and the last one exporting a symbol
// provides it. Each entry point resolves on its own, so a runtime without
// the async group still serves Core; calling a facade operation whose entry
// point is absent returns an error of kind missing_entry_point. Use
// Available to see what each group resolved.
//
// # Facades
//
//	Core       registries, entities, components, ExecuteSystems
//	Dynamic    components, actions and systems declared at run time
//	Meta       names, sizes and capabilities by id
//	Serialize  component and action serialization
//	Static     build-time type tables and reload notifications
//	Async      remote execution, pumped by FlushEvents
//	Wasm       guest modules as system implementations
//
// # Events
//
// ExecuteSystems and Async.FlushEvents hand native code a collector; the
// init, update and remove callbacks it receives are decoded and fanned out
// before the call returns:
//
//	unsubscribe, err := runtime.OnUpdate(rt, func(e abi.EntityID, p Position) {
//	    fmt.Println(e, p.X, p.Y)
//	})
//
// Subscribers for a component id run before wildcard subscribers
// (Events.OnAnyInit and friends). Native code identifies the runtime only
// through a token that is live for the duration of the call.
//
// # Values
//
// Component and action values cross the boundary through marshal codecs.
// Types registered in the marshal.Registry decode to their Go type; other
// ids decode to []byte sized by Meta.
package runtime
