package native

import (
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/marshal"
)

// C layouts of the structs that cross the boundary by pointer. Field order
// and widths match the ecsact headers; Go inserts the same padding a C
// compiler does for these shapes.

type cEventsCollector struct {
	initCb   uintptr
	initUd   uintptr
	updateCb uintptr
	updateUd uintptr
	removeCb uintptr
	removeUd uintptr
}

type cAsyncEventsCollector struct {
	errorCb     uintptr
	errorUd     uintptr
	connectCb   uintptr
	connectUd   uintptr
	committedCb uintptr
	committedUd uintptr
}

type cStaticComponent struct {
	id        int32
	name      *byte
	size      int32
	compare   uintptr
	transient bool
}

type cStaticSystem struct {
	id             int32
	order          int32
	name           *byte
	parent         int32
	childCount     int32
	children       *int32
	capsCount      int32
	capsComponents *int32
	caps           *int32
	impl           uintptr
}

type cStaticAction struct {
	id             int32
	order          int32
	name           *byte
	size           int32
	compare        uintptr
	childCount     int32
	children       *int32
	capsCount      int32
	capsComponents *int32
	caps           *int32
	impl           uintptr
}

// nativeArray views count structs at p. The memory belongs to the library.
func nativeArray[T any](p unsafe.Pointer, count int32) []T {
	if p == nil || count <= 0 {
		return nil
	}
	return unsafe.Slice((*T)(p), int(count))
}

func ids[T ~int32](p *int32, n int32) []T {
	if p == nil || n <= 0 {
		return nil
	}
	src := unsafe.Slice(p, int(n))
	out := make([]T, len(src))
	for i, v := range src {
		out[i] = T(v)
	}
	return out
}

func capabilities(components, caps *int32, n int32) []abi.Capability {
	if components == nil || caps == nil || n <= 0 {
		return nil
	}
	cs := unsafe.Slice(components, int(n))
	fs := unsafe.Slice(caps, int(n))
	out := make([]abi.Capability, n)
	for i := range out {
		out[i] = abi.Capability{
			Component: abi.ComponentID(cs[i]),
			Flags:     abi.SystemCapability(fs[i]),
		}
	}
	return out
}

// nativeCompare wraps a C compare function pointer.
func nativeCompare(fn uintptr) abi.CompareFunc {
	if fn == 0 {
		return nil
	}
	var cmp func(a, b unsafe.Pointer) int32
	purego.RegisterFunc(&cmp, fn)
	return cmp
}

// nativeImpl wraps a C system implementation pointer.
func nativeImpl(fn uintptr) abi.SystemExecutionImpl {
	if fn == 0 {
		return nil
	}
	var impl func(ctx uintptr)
	purego.RegisterFunc(&impl, fn)
	return func(ctx abi.ExecutionContext) {
		impl(uintptr(ctx))
	}
}

func staticComponents(p unsafe.Pointer, count int32) []abi.StaticComponentInfo {
	src := nativeArray[cStaticComponent](p, count)
	out := make([]abi.StaticComponentInfo, len(src))
	for i, c := range src {
		out[i] = abi.StaticComponentInfo{
			ID:        abi.ComponentID(c.id),
			Name:      marshal.GoString(unsafe.Pointer(c.name)),
			Size:      c.size,
			Compare:   nativeCompare(c.compare),
			Transient: c.transient,
		}
	}
	return out
}

func staticSystems(p unsafe.Pointer, count int32) []abi.StaticSystemInfo {
	src := nativeArray[cStaticSystem](p, count)
	out := make([]abi.StaticSystemInfo, len(src))
	for i, s := range src {
		out[i] = abi.StaticSystemInfo{
			ID:           abi.SystemID(s.id),
			Order:        s.order,
			Name:         marshal.GoString(unsafe.Pointer(s.name)),
			Parent:       abi.SystemID(s.parent),
			Children:     ids[abi.SystemID](s.children, s.childCount),
			Capabilities: capabilities(s.capsComponents, s.caps, s.capsCount),
			Impl:         nativeImpl(s.impl),
		}
	}
	return out
}

func staticActions(p unsafe.Pointer, count int32) []abi.StaticActionInfo {
	src := nativeArray[cStaticAction](p, count)
	out := make([]abi.StaticActionInfo, len(src))
	for i, a := range src {
		out[i] = abi.StaticActionInfo{
			ID:           abi.ActionID(a.id),
			Order:        a.order,
			Name:         marshal.GoString(unsafe.Pointer(a.name)),
			Size:         a.size,
			Compare:      nativeCompare(a.compare),
			Children:     ids[abi.SystemID](a.children, a.childCount),
			Capabilities: capabilities(a.capsComponents, a.caps, a.capsCount),
			Impl:         nativeImpl(a.impl),
		}
	}
	return out
}
