package runtime

import (
	stderrors "errors"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
)

// A Batch is one set of changes and actions applied by ExecuteSystems.
type (
	Batch       = marshal.Batch
	Change      = marshal.Change
	Removal     = marshal.Removal
	ActionValue = marshal.ActionValue
)

// Core is the registry, entity and component facade.
//
// Registries are tracked: an id this runtime did not create, or already
// destroyed, is rejected before reaching native code.
type Core struct {
	rt         *Runtime
	registries map[abi.RegistryID]string
}

func (c *Core) checkRegistry(reg abi.RegistryID) error {
	if _, ok := c.registries[reg]; !ok {
		return errors.InvalidReference(errors.PhaseCall, "registry", int32(reg))
	}
	return nil
}

// checkEntity rejects dead entities when entity_exists is available.
func (c *Core) checkEntity(reg abi.RegistryID, entity abi.EntityID) error {
	if err := c.checkRegistry(reg); err != nil {
		return err
	}
	if entity < 0 {
		return errors.InvalidReference(errors.PhaseCall, "entity", int32(entity))
	}
	if !c.rt.Has(abi.SymEntityExists) {
		return nil
	}
	ok, err := c.EntityExists(reg, entity)
	if err != nil {
		return err
	}
	if !ok {
		return errors.InvalidReference(errors.PhaseCall, "entity", int32(entity))
	}
	return nil
}

// Registries returns the live registries by id.
func (c *Core) Registries() map[abi.RegistryID]string {
	out := make(map[abi.RegistryID]string, len(c.registries))
	for id, name := range c.registries {
		out[id] = name
	}
	return out
}

func (c *Core) CreateRegistry(name string) (abi.RegistryID, error) {
	fn, err := need[abi.CreateRegistryFunc](c.rt, abi.SymCreateRegistry)
	if err != nil {
		return abi.InvalidID, err
	}
	reg := fn(name)
	if reg < 0 {
		return abi.InvalidID, errors.NativeFailure(abi.SymCreateRegistry, int32(reg))
	}
	c.registries[reg] = name
	c.rt.log.Debug("registry created", zap.String("name", name), zap.Int32("registry", int32(reg)))
	return reg, nil
}

func (c *Core) DestroyRegistry(reg abi.RegistryID) error {
	if err := c.checkRegistry(reg); err != nil {
		return err
	}
	fn, err := need[abi.DestroyRegistryFunc](c.rt, abi.SymDestroyRegistry)
	if err != nil {
		return err
	}
	fn(reg)
	delete(c.registries, reg)
	return nil
}

// ClearRegistry removes every entity from a registry.
func (c *Core) ClearRegistry(reg abi.RegistryID) error {
	if err := c.checkRegistry(reg); err != nil {
		return err
	}
	fn, err := need[abi.ClearRegistryFunc](c.rt, abi.SymClearRegistry)
	if err != nil {
		return err
	}
	fn(reg)
	return nil
}

func (c *Core) CreateEntity(reg abi.RegistryID) (abi.EntityID, error) {
	if err := c.checkRegistry(reg); err != nil {
		return abi.InvalidID, err
	}
	fn, err := need[abi.CreateEntityFunc](c.rt, abi.SymCreateEntity)
	if err != nil {
		return abi.InvalidID, err
	}
	entity := fn(reg)
	if entity < 0 {
		return abi.InvalidID, errors.NativeFailure(abi.SymCreateEntity, int32(entity))
	}
	return entity, nil
}

// EnsureEntity makes entity exist with exactly that id.
func (c *Core) EnsureEntity(reg abi.RegistryID, entity abi.EntityID) error {
	if err := c.checkRegistry(reg); err != nil {
		return err
	}
	if entity < 0 {
		return errors.InvalidReference(errors.PhaseCall, "entity", int32(entity))
	}
	fn, err := need[abi.EnsureEntityFunc](c.rt, abi.SymEnsureEntity)
	if err != nil {
		return err
	}
	fn(reg, entity)
	return nil
}

func (c *Core) EntityExists(reg abi.RegistryID, entity abi.EntityID) (bool, error) {
	if err := c.checkRegistry(reg); err != nil {
		return false, err
	}
	fn, err := need[abi.EntityExistsFunc](c.rt, abi.SymEntityExists)
	if err != nil {
		return false, err
	}
	return fn(reg, entity), nil
}

func (c *Core) DestroyEntity(reg abi.RegistryID, entity abi.EntityID) error {
	if err := c.checkEntity(reg, entity); err != nil {
		return err
	}
	fn, err := need[abi.DestroyEntityFunc](c.rt, abi.SymDestroyEntity)
	if err != nil {
		return err
	}
	fn(reg, entity)
	return nil
}

func (c *Core) CountEntities(reg abi.RegistryID) (int, error) {
	if err := c.checkRegistry(reg); err != nil {
		return 0, err
	}
	fn, err := need[abi.CountEntitiesFunc](c.rt, abi.SymCountEntities)
	if err != nil {
		return 0, err
	}
	return int(fn(reg)), nil
}

// GetEntities returns at most max entity ids.
func (c *Core) GetEntities(reg abi.RegistryID, max int) ([]abi.EntityID, error) {
	if err := c.checkRegistry(reg); err != nil {
		return nil, err
	}
	if max < 0 {
		return nil, errors.InvalidInput(errors.PhaseCall, "negative max")
	}
	fn, err := need[abi.GetEntitiesFunc](c.rt, abi.SymGetEntities)
	if err != nil {
		return nil, err
	}
	out := make([]abi.EntityID, max)
	n := clampCount(fn(reg, out), max)
	return out[:n], nil
}

// Entities returns every entity id in the registry.
func (c *Core) Entities(reg abi.RegistryID) ([]abi.EntityID, error) {
	n, err := c.CountEntities(reg)
	if err != nil {
		return nil, err
	}
	return c.GetEntities(reg, n)
}

func (c *Core) AddComponent(reg abi.RegistryID, entity abi.EntityID, component abi.ComponentID, value any) error {
	if err := c.checkEntity(reg, entity); err != nil {
		return err
	}
	fn, err := need[abi.AddComponentFunc](c.rt, abi.SymAddComponent)
	if err != nil {
		return err
	}
	a := marshal.NewArena()
	defer a.Release()

	data, err := c.encodeComponent(a, component, value)
	if err != nil {
		return err
	}
	switch code := fn(reg, entity, component, data); code {
	case abi.AddOK:
		return nil
	case abi.AddErrEntityInvalid:
		return errors.InvalidReference(errors.PhaseCall, "entity", int32(entity))
	default:
		return errors.NativeFailure(abi.SymAddComponent, int32(code))
	}
}

func (c *Core) HasComponent(reg abi.RegistryID, entity abi.EntityID, component abi.ComponentID) (bool, error) {
	if err := c.checkRegistry(reg); err != nil {
		return false, err
	}
	fn, err := need[abi.HasComponentFunc](c.rt, abi.SymHasComponent)
	if err != nil {
		return false, err
	}
	return fn(reg, entity, component), nil
}

// GetComponent returns the decoded component value. A component the entity
// does not have is an InvalidReference.
func (c *Core) GetComponent(reg abi.RegistryID, entity abi.EntityID, component abi.ComponentID) (any, error) {
	if err := c.checkRegistry(reg); err != nil {
		return nil, err
	}
	fn, err := need[abi.GetComponentFunc](c.rt, abi.SymGetComponent)
	if err != nil {
		return nil, err
	}
	codec, err := c.rt.ComponentCodec(component)
	if err != nil {
		return nil, err
	}
	p := fn(reg, entity, component)
	if p == nil {
		return nil, errors.InvalidReference(errors.PhaseCall, "component", int32(component))
	}
	return marshal.DecodeAt(codec, p)
}

// EachComponent calls visit once for every component on entity, in native
// order.
func (c *Core) EachComponent(reg abi.RegistryID, entity abi.EntityID, visit func(component abi.ComponentID, value any)) error {
	if err := c.checkRegistry(reg); err != nil {
		return err
	}
	fn, err := need[abi.EachComponentFunc](c.rt, abi.SymEachComponent)
	if err != nil {
		return err
	}

	var errs []error
	h, release := eachVisitors.Acquire(func(id abi.ComponentID, data unsafe.Pointer) {
		codec, err := c.rt.ComponentCodec(id)
		if err != nil {
			errs = append(errs, err)
			return
		}
		v, err := marshal.DecodeAt(codec, data)
		if err != nil {
			errs = append(errs, err)
			return
		}
		visit(id, v)
	})
	defer release()
	if h == 0 {
		return errTokensExhausted()
	}

	fn(reg, entity, onEachComponent, h.UserData())
	return stderrors.Join(errs...)
}

func onEachComponent(component abi.ComponentID, data unsafe.Pointer, userData uintptr) {
	visit, ok := eachVisitors.Resolve(userData)
	if !ok {
		Logger().Warn("each component callback for unknown token dropped",
			zap.Int32("component", int32(component)))
		return
	}
	visit(component, data)
}

func (c *Core) CountComponents(reg abi.RegistryID, entity abi.EntityID) (int, error) {
	if err := c.checkRegistry(reg); err != nil {
		return 0, err
	}
	fn, err := need[abi.CountComponentsFunc](c.rt, abi.SymCountComponents)
	if err != nil {
		return 0, err
	}
	return int(fn(reg, entity)), nil
}

// GetComponents returns at most max components of entity keyed by id.
func (c *Core) GetComponents(reg abi.RegistryID, entity abi.EntityID, max int) (map[abi.ComponentID]any, error) {
	if err := c.checkRegistry(reg); err != nil {
		return nil, err
	}
	if max < 0 {
		return nil, errors.InvalidInput(errors.PhaseCall, "negative max")
	}
	fn, err := need[abi.GetComponentsFunc](c.rt, abi.SymGetComponents)
	if err != nil {
		return nil, err
	}
	ids := make([]abi.ComponentID, max)
	data := make([]unsafe.Pointer, max)
	n := clampCount(fn(reg, entity, ids, data), max)

	out := make(map[abi.ComponentID]any, n)
	for i := range n {
		codec, err := c.rt.ComponentCodec(ids[i])
		if err != nil {
			return nil, err
		}
		v, err := marshal.DecodeAt(codec, data[i])
		if err != nil {
			return nil, err
		}
		out[ids[i]] = v
	}
	return out, nil
}

// Components returns every component of entity keyed by id.
func (c *Core) Components(reg abi.RegistryID, entity abi.EntityID) (map[abi.ComponentID]any, error) {
	n, err := c.CountComponents(reg, entity)
	if err != nil {
		return nil, err
	}
	return c.GetComponents(reg, entity, n)
}

func (c *Core) UpdateComponent(reg abi.RegistryID, entity abi.EntityID, component abi.ComponentID, value any) error {
	if err := c.checkEntity(reg, entity); err != nil {
		return err
	}
	fn, err := need[abi.UpdateComponentFunc](c.rt, abi.SymUpdateComponent)
	if err != nil {
		return err
	}
	a := marshal.NewArena()
	defer a.Release()

	data, err := c.encodeComponent(a, component, value)
	if err != nil {
		return err
	}
	switch code := fn(reg, entity, component, data); code {
	case abi.UpdateOK:
		return nil
	case abi.UpdateErrEntityInvalid:
		return errors.InvalidReference(errors.PhaseCall, "entity", int32(entity))
	default:
		return errors.NativeFailure(abi.SymUpdateComponent, int32(code))
	}
}

func (c *Core) RemoveComponent(reg abi.RegistryID, entity abi.EntityID, component abi.ComponentID) error {
	if err := c.checkEntity(reg, entity); err != nil {
		return err
	}
	fn, err := need[abi.RemoveComponentFunc](c.rt, abi.SymRemoveComponent)
	if err != nil {
		return err
	}
	fn(reg, entity, component)
	return nil
}

// ExecuteSystems applies the batches in one native call. Init, update and
// remove events for every component whose state changed are dispatched to
// subscribers before it returns, carrying the last written value.
func (c *Core) ExecuteSystems(reg abi.RegistryID, batches ...Batch) error {
	if err := c.checkRegistry(reg); err != nil {
		return err
	}
	fn, err := need[abi.ExecuteSystemsFunc](c.rt, abi.SymExecuteSystems)
	if err != nil {
		return err
	}
	a := marshal.NewArena()
	defer a.Release()

	opts, err := marshal.ExecutionOptions(a, c.rt, batches)
	if err != nil {
		return err
	}

	h, release := runtimes.Acquire(c.rt)
	defer release()
	if h == 0 {
		return errTokensExhausted()
	}

	code := fn(reg, opts, c.rt.events.collector(h))
	dispatchErr := c.rt.events.takeErrors()

	switch code {
	case abi.ExecOK:
		return dispatchErr
	case abi.ExecErrActionEntityInvalid:
		return stderrors.Join(errors.New(errors.PhaseCall, errors.KindInvalidReference).
			Symbol(abi.SymExecuteSystems).
			Detail("action referenced an invalid entity").
			Value(int32(code)).
			Build(), dispatchErr)
	default:
		return stderrors.Join(errors.NativeFailure(abi.SymExecuteSystems, int32(code)), dispatchErr)
	}
}

func (c *Core) encodeComponent(a *marshal.Arena, component abi.ComponentID, value any) (unsafe.Pointer, error) {
	codec, err := c.rt.ComponentCodec(component)
	if err != nil {
		return nil, err
	}
	return marshal.Encode(a, codec, value)
}

func clampCount(n int32, max int) int {
	if n < 0 {
		return 0
	}
	if int(n) > max {
		return max
	}
	return int(n)
}
