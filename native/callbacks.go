package native

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/marshal"
	"github.com/wippyai/ecsact-runtime/resource"
)

// Native callbacks carry a token from this table as their user data. The
// token resolves to the Go callback and the user data the caller of the
// adapter asked for.
const (
	targetEvents uint32 = iota + 1
	targetEach
	targetAsync
)

type eachTarget struct {
	cb abi.EachComponentCallback
	ud uintptr
}

var targets = resource.NewTable()

var (
	eventTargets = resource.NewTyped[*abi.EventsCollector](targets, targetEvents)
	eachTargets  = resource.NewTyped[eachTarget](targets, targetEach)
	asyncTargets = resource.NewTyped[*abi.AsyncEventsCollector](targets, targetAsync)
)

type trampolineSet struct {
	event        uintptr
	each         uintptr
	asyncError   uintptr
	asyncConnect uintptr
	committed    uintptr
}

// Trampolines are C function pointers shared by every library. purego keeps
// a fixed number of callback slots per process, so they are created once.
var (
	trampolines     trampolineSet
	trampolinesOnce sync.Once
)

func shared() *trampolineSet {
	trampolinesOnce.Do(func() {
		trampolines = trampolineSet{
			event:        purego.NewCallback(eventTrampoline),
			each:         purego.NewCallback(eachTrampoline),
			asyncError:   purego.NewCallback(asyncErrorTrampoline),
			asyncConnect: purego.NewCallback(asyncConnectTrampoline),
			committed:    purego.NewCallback(committedTrampoline),
		}
	})
	return &trampolines
}

// Every trampoline returns a uintptr and takes integer arguments as uintptr
// so the same functions work with the Windows callback convention. Ids are
// 32-bit in C and are truncated back on the way in.

func eventTrampoline(ev, entity, component uintptr, data unsafe.Pointer, ud uintptr) uintptr {
	defer recoverCallback("component event")
	c, ok := eventTargets.Resolve(ud)
	if !ok {
		Logger().Warn("component event for unknown token dropped")
		return 0
	}
	kind := abi.Event(int32(ev))
	var (
		cb     abi.ComponentEventCallback
		userUD uintptr
	)
	switch kind {
	case abi.EventInit:
		cb, userUD = c.Init, c.InitUserData
	case abi.EventUpdate:
		cb, userUD = c.Update, c.UpdateUserData
	case abi.EventRemove:
		cb, userUD = c.Remove, c.RemoveUserData
	}
	if cb != nil {
		cb(kind, abi.EntityID(int32(entity)), abi.ComponentID(int32(component)), data, userUD)
	}
	return 0
}

func eachTrampoline(component uintptr, data unsafe.Pointer, ud uintptr) uintptr {
	defer recoverCallback("each component")
	t, ok := eachTargets.Resolve(ud)
	if !ok {
		Logger().Warn("each component for unknown token dropped")
		return 0
	}
	t.cb(abi.ComponentID(int32(component)), data, t.ud)
	return 0
}

func asyncErrorTrampoline(err, req, ud uintptr) uintptr {
	defer recoverCallback("async error")
	c, ok := asyncTargets.Resolve(ud)
	if !ok || c.Error == nil {
		return 0
	}
	c.Error(abi.AsyncError(int32(err)), abi.RequestID(int32(req)), c.ErrorUserData)
	return 0
}

func asyncConnectTrampoline(address unsafe.Pointer, port, ud uintptr) uintptr {
	defer recoverCallback("async connect")
	c, ok := asyncTargets.Resolve(ud)
	if !ok || c.Connect == nil {
		return 0
	}
	c.Connect(marshal.GoString(address), int32(port), c.ConnectUserData)
	return 0
}

func committedTrampoline(action uintptr, data unsafe.Pointer, tick, req, ud uintptr) uintptr {
	defer recoverCallback("action committed")
	c, ok := asyncTargets.Resolve(ud)
	if !ok || c.ActionCommitted == nil {
		return 0
	}
	c.ActionCommitted(abi.ActionID(int32(action)), data, int32(tick), abi.RequestID(int32(req)), c.ActionCommittedUserData)
	return 0
}

// recoverCallback keeps a Go panic from unwinding into native frames.
func recoverCallback(what string) {
	if r := recover(); r != nil {
		Logger().Error("panic in native callback",
			zap.String("callback", what),
			zap.Any("panic", r),
			zap.Stack("stack"))
	}
}

// call holds what one native call needs kept alive: pinned memory and the
// tokens handed out as user data.
type call struct {
	arena    *marshal.Arena
	releases []func()
}

func newCall() *call {
	return &call{arena: marshal.NewArena()}
}

func (c *call) end() {
	for _, release := range c.releases {
		release()
	}
	c.releases = nil
	c.arena.Release()
}

// acquire returns a token for v that lives until end.
func acquire[T any](c *call, typed resource.Typed[T], v T) uintptr {
	h, release := typed.Acquire(v)
	c.releases = append(c.releases, release)
	return h.UserData()
}

// pinned returns the address of xs[0], pinned until end, or nil when xs is
// empty.
func pinned[T any](c *call, xs []T) *T {
	return marshal.Hold(c.arena, marshal.First(xs))
}

// compareCallbacks caches the C pointer made for each compare func. purego
// never frees callbacks, so a func value gets at most one.
var compareCallbacks = struct {
	sync.Mutex
	byFunc map[uintptr]uintptr
}{byFunc: make(map[uintptr]uintptr)}

func compareCallback(cmp abi.CompareFunc) uintptr {
	if cmp == nil {
		return 0
	}
	// A func value is a pointer to its closure.
	key := *(*uintptr)(unsafe.Pointer(&cmp))
	compareCallbacks.Lock()
	defer compareCallbacks.Unlock()
	if p, ok := compareCallbacks.byFunc[key]; ok {
		return p
	}
	p := purego.NewCallback(func(a, b unsafe.Pointer) uintptr {
		defer recoverCallback("compare")
		return uintptr(cmp(a, b))
	})
	compareCallbacks.byFunc[key] = p
	return p
}
