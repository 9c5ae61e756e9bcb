package memruntime

import (
	"maps"
	"slices"
	"unsafe"

	"github.com/wippyai/ecsact-runtime/abi"
)

type entity struct {
	components map[abi.ComponentID][]byte
}

type registry struct {
	name       string
	entities   map[abi.EntityID]*entity
	next       abi.EntityID
	components map[abi.ComponentID]bool
	systems    map[abi.SystemID]bool
	actions    map[abi.ActionID]bool
}

func newRegistry(name string) *registry {
	return &registry{
		name:       name,
		entities:   make(map[abi.EntityID]*entity),
		components: make(map[abi.ComponentID]bool),
		systems:    make(map[abi.SystemID]bool),
		actions:    make(map[abi.ActionID]bool),
	}
}

func (r *registry) create() abi.EntityID {
	for {
		id := r.next
		r.next++
		if _, taken := r.entities[id]; !taken {
			r.entities[id] = &entity{components: make(map[abi.ComponentID][]byte)}
			return id
		}
	}
}

func (r *registry) get(e abi.EntityID, c abi.ComponentID) ([]byte, bool) {
	ent, ok := r.entities[e]
	if !ok {
		return nil, false
	}
	b, ok := ent.components[c]
	return b, ok
}

func (r *registry) sortedEntities() []abi.EntityID {
	return slices.Sorted(maps.Keys(r.entities))
}

func (e *entity) sorted() []abi.ComponentID {
	return slices.Sorted(maps.Keys(e.components))
}

func (m *Runtime) entity(reg abi.RegistryID, id abi.EntityID) *entity {
	r, ok := m.registries[reg]
	if !ok {
		return nil
	}
	return r.entities[id]
}

func (m *Runtime) createRegistry(name string) abi.RegistryID {
	id := abi.RegistryID(m.nextRegistry)
	m.nextRegistry++
	m.registries[id] = newRegistry(name)
	return id
}

func (m *Runtime) destroyRegistry(reg abi.RegistryID) {
	delete(m.registries, reg)
}

func (m *Runtime) clearRegistry(reg abi.RegistryID) {
	if r, ok := m.registries[reg]; ok {
		clear(r.entities)
	}
}

func (m *Runtime) createEntity(reg abi.RegistryID) abi.EntityID {
	r, ok := m.registries[reg]
	if !ok {
		return abi.InvalidID
	}
	return r.create()
}

func (m *Runtime) ensureEntity(reg abi.RegistryID, id abi.EntityID) {
	r, ok := m.registries[reg]
	if !ok || id < 0 {
		return
	}
	if _, ok := r.entities[id]; !ok {
		r.entities[id] = &entity{components: make(map[abi.ComponentID][]byte)}
	}
}

func (m *Runtime) entityExists(reg abi.RegistryID, id abi.EntityID) bool {
	return m.entity(reg, id) != nil
}

func (m *Runtime) destroyEntity(reg abi.RegistryID, id abi.EntityID) {
	if r, ok := m.registries[reg]; ok {
		delete(r.entities, id)
	}
}

func (m *Runtime) countEntities(reg abi.RegistryID) int32 {
	r, ok := m.registries[reg]
	if !ok {
		return 0
	}
	return int32(len(r.entities))
}

func (m *Runtime) getEntities(reg abi.RegistryID, out []abi.EntityID) int32 {
	r, ok := m.registries[reg]
	if !ok {
		return 0
	}
	return int32(copy(out, r.sortedEntities()))
}

func (m *Runtime) addComponent(reg abi.RegistryID, id abi.EntityID, c abi.ComponentID, data unsafe.Pointer) abi.AddError {
	e := m.entity(reg, id)
	if e == nil {
		return abi.AddErrEntityInvalid
	}
	decl, ok := m.components[c]
	if !ok {
		return abi.AddErrConstraintBroken
	}
	if _, has := e.components[c]; has {
		return abi.AddErrConstraintBroken
	}
	e.components[c] = copyIn(data, decl.size)
	return abi.AddOK
}

func (m *Runtime) hasComponent(reg abi.RegistryID, id abi.EntityID, c abi.ComponentID) bool {
	e := m.entity(reg, id)
	if e == nil {
		return false
	}
	_, ok := e.components[c]
	return ok
}

func (m *Runtime) getComponent(reg abi.RegistryID, id abi.EntityID, c abi.ComponentID) unsafe.Pointer {
	e := m.entity(reg, id)
	if e == nil {
		return nil
	}
	b, ok := e.components[c]
	if !ok {
		return nil
	}
	return ptr(b)
}

func (m *Runtime) eachComponent(reg abi.RegistryID, id abi.EntityID, cb abi.EachComponentCallback, ud uintptr) {
	e := m.entity(reg, id)
	if e == nil || cb == nil {
		return
	}
	for _, c := range e.sorted() {
		cb(c, ptr(e.components[c]), ud)
	}
}

func (m *Runtime) countComponents(reg abi.RegistryID, id abi.EntityID) int32 {
	e := m.entity(reg, id)
	if e == nil {
		return 0
	}
	return int32(len(e.components))
}

func (m *Runtime) getComponents(reg abi.RegistryID, id abi.EntityID, ids []abi.ComponentID, data []unsafe.Pointer) int32 {
	e := m.entity(reg, id)
	if e == nil {
		return 0
	}
	n := 0
	for _, c := range e.sorted() {
		if n == len(ids) || n == len(data) {
			break
		}
		ids[n] = c
		data[n] = ptr(e.components[c])
		n++
	}
	return int32(n)
}

func (m *Runtime) updateComponent(reg abi.RegistryID, id abi.EntityID, c abi.ComponentID, data unsafe.Pointer) abi.UpdateError {
	e := m.entity(reg, id)
	if e == nil {
		return abi.UpdateErrEntityInvalid
	}
	b, ok := e.components[c]
	if !ok {
		return abi.UpdateErrConstraintBroken
	}
	copy(b, copyIn(data, int32(len(b))))
	return abi.UpdateOK
}

func (m *Runtime) removeComponent(reg abi.RegistryID, id abi.EntityID, c abi.ComponentID) {
	if e := m.entity(reg, id); e != nil {
		delete(e.components, c)
	}
}
