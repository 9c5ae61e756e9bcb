package runtime

import (
	"unsafe"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
)

// ComponentValue is one component of an entity to generate.
type ComponentValue struct {
	Value     any
	Component abi.ComponentID
}

// callScope is shared by a context and every parent context derived from
// it; all of them expire when the system body returns.
type callScope struct {
	done bool
}

func (s *callScope) end() { s.done = true }

// ExecutionContext is the view a running system has of the entity it is
// executing on. Contexts compare only through Same.
type ExecutionContext struct {
	rt     *Runtime
	scope  *callScope
	native abi.ExecutionContext
}

func newExecutionContext(rt *Runtime, native abi.ExecutionContext) *ExecutionContext {
	return &ExecutionContext{rt: rt, native: native, scope: &callScope{}}
}

func (c *ExecutionContext) check() error {
	if c.scope.done {
		return errors.InvalidState(errors.PhaseCall, "execution context used after its system returned")
	}
	return nil
}

// Native returns the opaque native context.
func (c *ExecutionContext) Native() abi.ExecutionContext { return c.native }

// ID returns the system or action being executed.
func (c *ExecutionContext) ID() (abi.SystemLikeID, error) {
	if err := c.check(); err != nil {
		return abi.InvalidID, err
	}
	fn, err := need[abi.ContextIDFunc](c.rt, abi.SymContextID)
	if err != nil {
		return abi.InvalidID, err
	}
	return fn(c.native), nil
}

// Action returns the action value when the context belongs to an action.
func (c *ExecutionContext) Action() (any, error) {
	id, err := c.ID()
	if err != nil {
		return nil, err
	}
	fn, err := need[abi.ContextActionFunc](c.rt, abi.SymContextAction)
	if err != nil {
		return nil, err
	}
	codec, err := c.rt.ActionCodec(abi.ActionID(id))
	if err != nil {
		return nil, err
	}
	a := marshal.NewArena()
	defer a.Release()

	out := a.Bytes(codec.Size())
	fn(c.native, marshal.Pointer(out))
	return codec.Decode(out)
}

func (c *ExecutionContext) Get(component abi.ComponentID) (any, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	fn, err := need[abi.ContextGetFunc](c.rt, abi.SymContextGet)
	if err != nil {
		return nil, err
	}
	codec, err := c.rt.ComponentCodec(component)
	if err != nil {
		return nil, err
	}
	a := marshal.NewArena()
	defer a.Release()

	out := a.Bytes(codec.Size())
	fn(c.native, component, marshal.Pointer(out))
	return codec.Decode(out)
}

func (c *ExecutionContext) Has(component abi.ComponentID) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	fn, err := need[abi.ContextHasFunc](c.rt, abi.SymContextHas)
	if err != nil {
		return false, err
	}
	return fn(c.native, component), nil
}

func (c *ExecutionContext) Add(component abi.ComponentID, value any) error {
	if err := c.check(); err != nil {
		return err
	}
	fn, err := need[abi.ContextAddFunc](c.rt, abi.SymContextAdd)
	if err != nil {
		return err
	}
	return c.withValue(component, value, func(data unsafe.Pointer) {
		fn(c.native, component, data)
	})
}

func (c *ExecutionContext) Update(component abi.ComponentID, value any) error {
	if err := c.check(); err != nil {
		return err
	}
	fn, err := need[abi.ContextUpdateFunc](c.rt, abi.SymContextUpdate)
	if err != nil {
		return err
	}
	return c.withValue(component, value, func(data unsafe.Pointer) {
		fn(c.native, component, data)
	})
}

func (c *ExecutionContext) Remove(component abi.ComponentID) error {
	if err := c.check(); err != nil {
		return err
	}
	fn, err := need[abi.ContextRemoveFunc](c.rt, abi.SymContextRemove)
	if err != nil {
		return err
	}
	fn(c.native, component)
	return nil
}

// Generate creates a new entity with the given components.
func (c *ExecutionContext) Generate(values ...ComponentValue) error {
	if err := c.check(); err != nil {
		return err
	}
	if len(values) == 0 {
		return errors.InvalidInput(errors.PhaseCall, "generate needs at least one component")
	}
	fn, err := need[abi.ContextGenerateFunc](c.rt, abi.SymContextGenerate)
	if err != nil {
		return err
	}
	a := marshal.NewArena()
	defer a.Release()

	ids := make([]abi.ComponentID, len(values))
	data := make([]unsafe.Pointer, len(values))
	for i, v := range values {
		codec, err := c.rt.ComponentCodec(v.Component)
		if err != nil {
			return err
		}
		p, err := marshal.Encode(a, codec, v.Value)
		if err != nil {
			return err
		}
		ids[i] = v.Component
		data[i] = p
	}
	fn(c.native, ids, data)
	return nil
}

// Parent returns the context of the parent system, or nil at the top level.
func (c *ExecutionContext) Parent() (*ExecutionContext, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	fn, err := need[abi.ContextParentFunc](c.rt, abi.SymContextParent)
	if err != nil {
		return nil, err
	}
	p := fn(c.native)
	if p == 0 {
		return nil, nil
	}
	return &ExecutionContext{rt: c.rt, native: p, scope: c.scope}, nil
}

// Same reports whether both contexts refer to the same execution.
func (c *ExecutionContext) Same(other *ExecutionContext) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	if other == nil {
		return false, nil
	}
	if err := other.check(); err != nil {
		return false, err
	}
	fn, err := need[abi.ContextSameFunc](c.rt, abi.SymContextSame)
	if err != nil {
		return false, err
	}
	return fn(c.native, other.native), nil
}

func (c *ExecutionContext) withValue(component abi.ComponentID, value any, call func(unsafe.Pointer)) error {
	codec, err := c.rt.ComponentCodec(component)
	if err != nil {
		return err
	}
	a := marshal.NewArena()
	defer a.Release()

	data, err := marshal.Encode(a, codec, value)
	if err != nil {
		return err
	}
	call(data)
	return nil
}
