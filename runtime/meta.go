package runtime

import (
	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
)

// Meta answers questions about declared types by id.
type Meta struct {
	rt *Runtime
}

func (m *Meta) RegistryName(reg abi.RegistryID) (string, error) {
	fn, err := need[abi.RegistryNameFunc](m.rt, abi.SymMetaRegistryName)
	if err != nil {
		return "", err
	}
	return fn(reg), nil
}

func (m *Meta) ComponentName(id abi.ComponentID) (string, error) {
	fn, err := need[abi.ComponentNameFunc](m.rt, abi.SymMetaComponentName)
	if err != nil {
		return "", err
	}
	return fn(id), nil
}

// ComponentSize returns the native size of a component. Unknown ids are an
// InvalidReference.
func (m *Meta) ComponentSize(id abi.ComponentID) (int32, error) {
	fn, err := need[abi.ComponentSizeFunc](m.rt, abi.SymMetaComponentSize)
	if err != nil {
		return 0, err
	}
	size := fn(id)
	if size < 0 {
		return 0, errors.InvalidReference(errors.PhaseCall, "component", int32(id))
	}
	return size, nil
}

func (m *Meta) ActionName(id abi.ActionID) (string, error) {
	fn, err := need[abi.ActionNameFunc](m.rt, abi.SymMetaActionName)
	if err != nil {
		return "", err
	}
	return fn(id), nil
}

// ActionSize returns the native size of an action.
func (m *Meta) ActionSize(id abi.ActionID) (int32, error) {
	fn, err := need[abi.ActionSizeFunc](m.rt, abi.SymMetaActionSize)
	if err != nil {
		return 0, err
	}
	size := fn(id)
	if size < 0 {
		return 0, errors.InvalidReference(errors.PhaseCall, "action", int32(id))
	}
	return size, nil
}

func (m *Meta) SystemName(id abi.SystemLikeID) (string, error) {
	fn, err := need[abi.SystemNameFunc](m.rt, abi.SymMetaSystemName)
	if err != nil {
		return "", err
	}
	return fn(id), nil
}

// SystemCapabilities returns the capabilities of a system or action.
func (m *Meta) SystemCapabilities(id abi.SystemLikeID) ([]abi.Capability, error) {
	count, err := need[abi.SystemCapabilitiesCountFunc](m.rt, abi.SymMetaSystemCapsCount)
	if err != nil {
		return nil, err
	}
	fill, err := need[abi.SystemCapabilitiesFunc](m.rt, abi.SymMetaSystemCapabilities)
	if err != nil {
		return nil, err
	}

	n := int(count(id))
	if n <= 0 {
		return nil, nil
	}
	comps := make([]abi.ComponentID, n)
	caps := make([]abi.SystemCapability, n)
	n = clampCount(fill(id, comps, caps), n)

	out := make([]abi.Capability, n)
	for i := range n {
		out[i] = abi.Capability{Component: comps[i], Flags: caps[i]}
	}
	return out, nil
}
