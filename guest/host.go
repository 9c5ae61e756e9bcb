package guest

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
	"github.com/wippyai/ecsact-runtime/resource"
)

// frame holds the context handles handed to one guest call. They are
// released when the call returns.
type frame struct {
	handles []resource.Handle
}

func (f *frame) handle(l *Library, native abi.ExecutionContext) resource.Handle {
	h := l.contexts.Insert(native)
	if h != 0 {
		f.handles = append(f.handles, h)
	}
	return h
}

func (l *Library) push() *frame {
	f := &frame{}
	l.frames = append(l.frames, f)
	return f
}

func (l *Library) pop(f *frame) {
	for _, h := range f.handles {
		l.handles.Remove(h)
	}
	l.frames = l.frames[:len(l.frames)-1]
}

func (l *Library) top() *frame {
	return l.frames[len(l.frames)-1]
}

// native resolves a guest context handle. An unknown handle traps the guest.
func (l *Library) native(h uint64) abi.ExecutionContext {
	ctx, ok := l.contexts.Get(resource.Handle(api.DecodeU32(h)))
	if !ok {
		panic(errors.InvalidReference(errors.PhaseGuest, "execution context", api.DecodeU32(h)))
	}
	return ctx
}

func read(mod api.Module, a *marshal.Arena, offset uint64, size int32) []byte {
	if size <= 0 {
		return nil
	}
	b, ok := mod.Memory().Read(api.DecodeU32(offset), uint32(size))
	if !ok {
		panic(errors.OutOfBounds(errors.PhaseGuest, fmt.Sprintf("guest memory at %d", api.DecodeU32(offset)), int(size), 0))
	}
	return a.Copy(b)
}

func write(mod api.Module, offset uint64, b []byte) {
	if len(b) == 0 {
		return
	}
	if !mod.Memory().Write(api.DecodeU32(offset), b) {
		panic(errors.OutOfBounds(errors.PhaseGuest, fmt.Sprintf("guest memory at %d", api.DecodeU32(offset)), len(b), 0))
	}
}

func (l *Library) componentSize(id abi.ComponentID) int32 {
	if l.entry.componentSize == nil {
		return 0
	}
	return max(l.entry.componentSize(id), 0)
}

func (l *Library) actionSize(id abi.ActionID) int32 {
	if l.entry.actionSize == nil {
		return 0
	}
	return max(l.entry.actionSize(id), 0)
}

func boolResult(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

type hostFunc struct {
	fn      api.GoModuleFunc
	params  int
	results int
}

func (l *Library) hostFuncs() map[string]hostFunc {
	return map[string]hostFunc{
		abi.SymContextGet: {params: 3, fn: func(_ context.Context, mod api.Module, stack []uint64) {
			if l.entry.get == nil {
				return
			}
			ctx, id := l.native(stack[0]), abi.ComponentID(api.DecodeI32(stack[1]))
			a := marshal.NewArena()
			defer a.Release()
			out := a.Bytes(int(l.componentSize(id)))
			l.entry.get(ctx, id, marshal.Pointer(out))
			write(mod, stack[2], out)
		}},
		abi.SymContextUpdate: {params: 3, fn: func(_ context.Context, mod api.Module, stack []uint64) {
			if l.entry.update == nil {
				return
			}
			ctx, id := l.native(stack[0]), abi.ComponentID(api.DecodeI32(stack[1]))
			a := marshal.NewArena()
			defer a.Release()
			l.entry.update(ctx, id, marshal.Pointer(read(mod, a, stack[2], l.componentSize(id))))
		}},
		abi.SymContextAdd: {params: 3, fn: func(_ context.Context, mod api.Module, stack []uint64) {
			if l.entry.add == nil {
				return
			}
			ctx, id := l.native(stack[0]), abi.ComponentID(api.DecodeI32(stack[1]))
			a := marshal.NewArena()
			defer a.Release()
			l.entry.add(ctx, id, marshal.Pointer(read(mod, a, stack[2], l.componentSize(id))))
		}},
		abi.SymContextRemove: {params: 2, fn: func(_ context.Context, _ api.Module, stack []uint64) {
			if l.entry.remove == nil {
				return
			}
			l.entry.remove(l.native(stack[0]), abi.ComponentID(api.DecodeI32(stack[1])))
		}},
		abi.SymContextHas: {params: 2, results: 1, fn: func(_ context.Context, _ api.Module, stack []uint64) {
			has := l.entry.has != nil && l.entry.has(l.native(stack[0]), abi.ComponentID(api.DecodeI32(stack[1])))
			stack[0] = boolResult(has)
		}},
		abi.SymContextAction: {params: 2, fn: func(_ context.Context, mod api.Module, stack []uint64) {
			if l.entry.action == nil || l.entry.id == nil {
				return
			}
			ctx := l.native(stack[0])
			a := marshal.NewArena()
			defer a.Release()
			out := a.Bytes(int(l.actionSize(abi.ActionID(l.entry.id(ctx)))))
			l.entry.action(ctx, marshal.Pointer(out))
			write(mod, stack[1], out)
		}},
		abi.SymContextID: {params: 1, results: 1, fn: func(_ context.Context, _ api.Module, stack []uint64) {
			id := abi.SystemLikeID(abi.InvalidID)
			if l.entry.id != nil {
				id = l.entry.id(l.native(stack[0]))
			}
			stack[0] = api.EncodeI32(int32(id))
		}},
		abi.SymContextParent: {params: 1, results: 1, fn: func(_ context.Context, _ api.Module, stack []uint64) {
			var h resource.Handle
			if l.entry.parent != nil {
				if p := l.entry.parent(l.native(stack[0])); p != 0 {
					h = l.top().handle(l, p)
				}
			}
			stack[0] = api.EncodeU32(uint32(h))
		}},
		abi.SymContextSame: {params: 2, results: 1, fn: func(_ context.Context, _ api.Module, stack []uint64) {
			same := l.entry.same != nil && l.entry.same(l.native(stack[0]), l.native(stack[1]))
			stack[0] = boolResult(same)
		}},
	}
}

func hostFunction(name string) bool {
	switch name {
	case abi.SymContextGet, abi.SymContextUpdate, abi.SymContextAdd, abi.SymContextRemove,
		abi.SymContextHas, abi.SymContextAction, abi.SymContextID, abi.SymContextParent,
		abi.SymContextSame:
		return true
	}
	return false
}

func i32s(n int) []api.ValueType {
	types := make([]api.ValueType, n)
	for i := range types {
		types[i] = api.ValueTypeI32
	}
	return types
}

// ensureHost instantiates the host module once. The caller holds l.mu.
func (l *Library) ensureHost() error {
	if l.host != nil {
		return nil
	}
	builder := l.runtime.NewHostModuleBuilder(HostModule)
	for name, f := range l.hostFuncs() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, i32s(f.params), i32s(f.results)).
			WithName(name).
			Export(name)
	}
	host, err := builder.Instantiate(l.ctx)
	if err != nil {
		return err
	}
	l.host = host
	return nil
}
