package runtime

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
)

// SystemImpl is the Go body of a system or action. ctx is only valid until
// the function returns.
type SystemImpl func(ctx *ExecutionContext)

// GenerateFlag marks one component of a generate set.
type GenerateFlag struct {
	Component abi.ComponentID
	Flag      abi.SystemGenerate
}

// Dynamic declares components, actions and systems at run time.
//
// Parent and child systems are kept in a relation table owned here; no
// system value refers to another.
type Dynamic struct {
	rt       *Runtime
	parents  map[abi.SystemID]abi.SystemID
	children map[abi.SystemID][]abi.SystemID
}

func newDynamic(rt *Runtime) *Dynamic {
	return &Dynamic{
		rt:       rt,
		parents:  make(map[abi.SystemID]abi.SystemID),
		children: make(map[abi.SystemID][]abi.SystemID),
	}
}

// Parent returns the parent of a system created through this facade.
func (d *Dynamic) Parent(id abi.SystemID) (abi.SystemID, bool) {
	p, ok := d.parents[id]
	return p, ok
}

// Children returns the child systems of id in creation order.
func (d *Dynamic) Children(id abi.SystemID) []abi.SystemID {
	return slices.Clone(d.children[id])
}

func (d *Dynamic) wrap(impl SystemImpl) abi.SystemExecutionImpl {
	if impl == nil {
		return nil
	}
	rt := d.rt
	return func(native abi.ExecutionContext) {
		ctx := newExecutionContext(rt, native)
		defer ctx.scope.end()
		defer rt.events.recoverHandler("system")
		impl(ctx)
	}
}

func checkDecl(name string, size int32) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseCall, "empty name")
	}
	if size < 0 {
		return errors.InvalidInput(errors.PhaseCall, "negative size")
	}
	return nil
}

func (d *Dynamic) CreateComponent(name string, size int32, cmp abi.CompareFunc) (abi.ComponentID, error) {
	if err := checkDecl(name, size); err != nil {
		return abi.InvalidID, err
	}
	fn, err := need[abi.CreateComponentFunc](d.rt, abi.SymCreateComponent)
	if err != nil {
		return abi.InvalidID, err
	}
	id := fn(name, size, cmp)
	if id < 0 {
		return abi.InvalidID, errors.NativeFailure(abi.SymCreateComponent, int32(id))
	}
	d.rt.log.Debug("component created", zap.String("name", name), zap.Int32("id", int32(id)))
	return id, nil
}

func (d *Dynamic) ResizeComponent(id abi.ComponentID, size int32, cmp abi.CompareFunc) error {
	if size < 0 {
		return errors.InvalidInput(errors.PhaseCall, "negative size")
	}
	fn, err := need[abi.ResizeComponentFunc](d.rt, abi.SymResizeComponent)
	if err != nil {
		return err
	}
	fn(id, size, cmp)
	d.rt.forgetComponentSize(id)
	return nil
}

func (d *Dynamic) DestroyComponent(id abi.ComponentID) error {
	fn, err := need[abi.DestroyComponentFunc](d.rt, abi.SymDestroyComponent)
	if err != nil {
		return err
	}
	fn(id)
	d.rt.forgetComponentSize(id)
	return nil
}

func (d *Dynamic) CreateAction(name string, size int32, cmp abi.CompareFunc, caps []abi.Capability, impl SystemImpl) (abi.ActionID, error) {
	if err := checkDecl(name, size); err != nil {
		return abi.InvalidID, err
	}
	fn, err := need[abi.CreateActionFunc](d.rt, abi.SymCreateAction)
	if err != nil {
		return abi.InvalidID, err
	}
	id := fn(name, size, cmp, caps, d.wrap(impl))
	if id < 0 {
		return abi.InvalidID, errors.NativeFailure(abi.SymCreateAction, int32(id))
	}
	d.rt.log.Debug("action created", zap.String("name", name), zap.Int32("id", int32(id)))
	return id, nil
}

func (d *Dynamic) ResizeAction(id abi.ActionID, size int32, cmp abi.CompareFunc) error {
	if size < 0 {
		return errors.InvalidInput(errors.PhaseCall, "negative size")
	}
	fn, err := need[abi.ResizeActionFunc](d.rt, abi.SymResizeAction)
	if err != nil {
		return err
	}
	fn(id, size, cmp)
	d.rt.forgetActionSize(id)
	return nil
}

// CreateSystem declares a system. parent is abi.InvalidID for a top level
// system.
func (d *Dynamic) CreateSystem(name string, parent abi.SystemID, caps []abi.Capability, impl SystemImpl) (abi.SystemID, error) {
	if err := checkDecl(name, 0); err != nil {
		return abi.InvalidID, err
	}
	fn, err := need[abi.CreateSystemFunc](d.rt, abi.SymCreateSystem)
	if err != nil {
		return abi.InvalidID, err
	}
	id := fn(name, parent, caps, d.wrap(impl))
	if id < 0 {
		return abi.InvalidID, errors.NativeFailure(abi.SymCreateSystem, int32(id))
	}
	if parent >= 0 {
		d.parents[id] = parent
		d.children[parent] = append(d.children[parent], id)
	}
	d.rt.log.Debug("system created",
		zap.String("name", name),
		zap.Int32("id", int32(id)),
		zap.Int32("parent", int32(parent)))
	return id, nil
}

// SetSystemImpl replaces the body of a system or action. A nil impl clears
// it.
func (d *Dynamic) SetSystemImpl(id abi.SystemLikeID, impl SystemImpl) error {
	fn, err := need[abi.SetSystemImplFunc](d.rt, abi.SymSetSystemExecutionImpl)
	if err != nil {
		return err
	}
	fn(id, d.wrap(impl))
	return nil
}

func (d *Dynamic) AddSystemCapability(id abi.SystemLikeID, component abi.ComponentID, flags abi.SystemCapability) error {
	fn, err := need[abi.SetCapabilityFunc](d.rt, abi.SymAddSystemCapability)
	if err != nil {
		return err
	}
	fn(id, component, flags)
	return nil
}

func (d *Dynamic) UpdateSystemCapability(id abi.SystemLikeID, component abi.ComponentID, flags abi.SystemCapability) error {
	fn, err := need[abi.SetCapabilityFunc](d.rt, abi.SymUpdateSystemCapability)
	if err != nil {
		return err
	}
	fn(id, component, flags)
	return nil
}

func (d *Dynamic) RemoveSystemCapability(id abi.SystemLikeID, component abi.ComponentID) error {
	fn, err := need[abi.RemoveCapabilityFunc](d.rt, abi.SymRemoveSystemCapability)
	if err != nil {
		return err
	}
	fn(id, component)
	return nil
}

// AddSystemGenerateSet declares a set of components the system may create
// entities with.
func (d *Dynamic) AddSystemGenerateSet(id abi.SystemLikeID, set ...GenerateFlag) error {
	if len(set) == 0 {
		return errors.InvalidInput(errors.PhaseCall, "empty generate set")
	}
	fn, err := need[abi.AddGenerateSetFunc](d.rt, abi.SymAddSystemGenerateSet)
	if err != nil {
		return err
	}
	ids := make([]abi.ComponentID, len(set))
	flags := make([]abi.SystemGenerate, len(set))
	for i, g := range set {
		ids[i] = g.Component
		flags[i] = g.Flag
	}
	fn(id, ids, flags)
	return nil
}

func (d *Dynamic) RegisterComponent(reg abi.RegistryID, id abi.ComponentID) error {
	if err := d.rt.core.checkRegistry(reg); err != nil {
		return err
	}
	fn, err := need[abi.RegisterComponentFunc](d.rt, abi.SymRegisterComponent)
	if err != nil {
		return err
	}
	fn(reg, id)
	return nil
}

func (d *Dynamic) RegisterSystem(reg abi.RegistryID, id abi.SystemID) error {
	if err := d.rt.core.checkRegistry(reg); err != nil {
		return err
	}
	fn, err := need[abi.RegisterSystemFunc](d.rt, abi.SymRegisterSystem)
	if err != nil {
		return err
	}
	fn(reg, id)
	return nil
}

func (d *Dynamic) RegisterAction(reg abi.RegistryID, id abi.ActionID) error {
	if err := d.rt.core.checkRegistry(reg); err != nil {
		return err
	}
	fn, err := need[abi.RegisterActionFunc](d.rt, abi.SymRegisterAction)
	if err != nil {
		return err
	}
	fn(reg, id)
	return nil
}
