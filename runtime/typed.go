package runtime

import (
	"fmt"
	"reflect"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
)

// Typed helpers over the registry. T must have been registered with
// marshal.RegisterComponent or marshal.RegisterAction.

func componentID[T any](rt *Runtime) (abi.ComponentID, error) {
	id, ok := marshal.ComponentIDOf[T](rt.codecs)
	if !ok {
		return abi.InvalidID, errors.NotFound(errors.PhaseCall, "component type", reflect.TypeFor[T]().String())
	}
	return id, nil
}

func actionID[T any](rt *Runtime) (abi.ActionID, error) {
	id, ok := marshal.ActionIDOf[T](rt.codecs)
	if !ok {
		return abi.InvalidID, errors.NotFound(errors.PhaseCall, "action type", reflect.TypeFor[T]().String())
	}
	return id, nil
}

func cast[T any](v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		return t, errors.TypeMismatch(errors.PhaseMarshal, "", reflect.TypeFor[T]().String(), fmt.Sprintf("%T", v))
	}
	return t, nil
}

func subscribeTyped[T any](rt *Runtime, ev abi.Event, fn func(abi.EntityID, T)) (func(), error) {
	id, err := componentID[T](rt)
	if err != nil {
		return nil, err
	}
	return rt.events.Subscribe(ev, id, func(entity abi.EntityID, _ abi.ComponentID, value any) {
		if v, ok := value.(T); ok {
			fn(entity, v)
		}
	}), nil
}

// OnInit subscribes fn to init events of component type T.
func OnInit[T any](rt *Runtime, fn func(entity abi.EntityID, value T)) (func(), error) {
	return subscribeTyped(rt, abi.EventInit, fn)
}

// OnUpdate subscribes fn to update events of component type T.
func OnUpdate[T any](rt *Runtime, fn func(entity abi.EntityID, value T)) (func(), error) {
	return subscribeTyped(rt, abi.EventUpdate, fn)
}

// OnRemove subscribes fn to remove events of component type T.
func OnRemove[T any](rt *Runtime, fn func(entity abi.EntityID, value T)) (func(), error) {
	return subscribeTyped(rt, abi.EventRemove, fn)
}

// Get reads component T of entity.
func Get[T any](rt *Runtime, reg abi.RegistryID, entity abi.EntityID) (T, error) {
	var zero T
	id, err := componentID[T](rt)
	if err != nil {
		return zero, err
	}
	v, err := rt.core.GetComponent(reg, entity, id)
	if err != nil {
		return zero, err
	}
	return cast[T](v)
}

// Add adds component value to entity.
func Add[T any](rt *Runtime, reg abi.RegistryID, entity abi.EntityID, value T) error {
	id, err := componentID[T](rt)
	if err != nil {
		return err
	}
	return rt.core.AddComponent(reg, entity, id, value)
}

// Update replaces component value on entity.
func Update[T any](rt *Runtime, reg abi.RegistryID, entity abi.EntityID, value T) error {
	id, err := componentID[T](rt)
	if err != nil {
		return err
	}
	return rt.core.UpdateComponent(reg, entity, id, value)
}

// Remove removes component T from entity.
func Remove[T any](rt *Runtime, reg abi.RegistryID, entity abi.EntityID) error {
	id, err := componentID[T](rt)
	if err != nil {
		return err
	}
	return rt.core.RemoveComponent(reg, entity, id)
}

// ContextGet reads component T through an execution context.
func ContextGet[T any](ctx *ExecutionContext) (T, error) {
	var zero T
	id, err := componentID[T](ctx.rt)
	if err != nil {
		return zero, err
	}
	v, err := ctx.Get(id)
	if err != nil {
		return zero, err
	}
	return cast[T](v)
}

// ContextUpdate writes component T through an execution context.
func ContextUpdate[T any](ctx *ExecutionContext, value T) error {
	id, err := componentID[T](ctx.rt)
	if err != nil {
		return err
	}
	return ctx.Update(id, value)
}

// ContextAction reads the action value of type T.
func ContextAction[T any](ctx *ExecutionContext) (T, error) {
	var zero T
	v, err := ctx.Action()
	if err != nil {
		return zero, err
	}
	return cast[T](v)
}

// Execute queues action value T on the async facade.
func Execute[T any](rt *Runtime, value T) (abi.RequestID, error) {
	id, err := actionID[T](rt)
	if err != nil {
		return abi.InvalidID, err
	}
	return rt.async.ExecuteAction(id, value)
}
