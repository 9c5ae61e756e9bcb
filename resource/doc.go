// Package resource provides the token table that connects native callbacks
// back to Go values.
//
// Native code only carries an opaque pointer-sized user-data value through a
// callback. Go pointers must not be handed to C and kept there, so the binding
// inserts the owning Go value into a Table right before a native call and
// passes the resulting Handle as user data:
//
//	runtimes := resource.NewTyped[*Runtime](table, tokenRuntime)
//
//	h, release := runtimes.Acquire(rt)
//	defer release()
//	native.ExecuteSystems(reg, opts, &abi.EventsCollector{
//		Init:         onEvent,
//		InitUserData: h.UserData(),
//	})
//
//	func onEvent(ev abi.Event, ..., ud uintptr) {
//		rt, ok := runtimes.Resolve(ud)
//		...
//	}
//
// # Generations
//
// Slots are reused, but each reuse bumps a generation stored in the high bits
// of the handle. A handle whose call has returned resolves to nothing, even if
// its slot has since been given to another value.
//
// # Observers
//
// Observers see every insert and removal. The metrics package uses this to
// export the number of live tokens.
package resource
