package memruntime

import (
	"bytes"
	"slices"
	"unsafe"

	"github.com/wippyai/ecsact-runtime/abi"
)

type changeKey struct {
	entity    abi.EntityID
	component abi.ComponentID
}

// change remembers the state of one component before the execution first
// touched it.
type change struct {
	before []byte
	had    bool
}

type execution struct {
	rt      *Runtime
	reg     *registry
	changes map[changeKey]*change
	order   []changeKey
}

type execContext struct {
	x      *execution
	system abi.SystemLikeID
	entity abi.EntityID
	action []byte
	parent abi.ExecutionContext
}

func (x *execution) touch(e abi.EntityID, c abi.ComponentID) {
	k := changeKey{e, c}
	if _, ok := x.changes[k]; ok {
		return
	}
	b, had := x.reg.get(e, c)
	x.changes[k] = &change{before: slices.Clone(b), had: had}
	x.order = append(x.order, k)
}

func (x *execution) set(e abi.EntityID, c abi.ComponentID, data unsafe.Pointer) {
	ent, ok := x.reg.entities[e]
	if !ok {
		return
	}
	decl, ok := x.rt.components[c]
	if !ok {
		return
	}
	x.touch(e, c)
	if b, has := ent.components[c]; has {
		copy(b, copyIn(data, int32(len(b))))
		return
	}
	ent.components[c] = copyIn(data, decl.size)
}

func (x *execution) update(e abi.EntityID, c abi.ComponentID, data unsafe.Pointer) {
	if _, has := x.reg.get(e, c); has {
		x.set(e, c, data)
	}
}

func (x *execution) remove(e abi.EntityID, c abi.ComponentID) {
	ent, ok := x.reg.entities[e]
	if !ok {
		return
	}
	if _, has := ent.components[c]; !has {
		return
	}
	x.touch(e, c)
	delete(ent.components, c)
}

func (m *Runtime) executeSystems(reg abi.RegistryID, options []abi.ExecutionOptions, events *abi.EventsCollector) abi.ExecuteError {
	r, ok := m.registries[reg]
	if !ok {
		return abi.ExecErrActionEntityInvalid
	}
	for i := range options {
		if !validOptions(r, &options[i]) {
			return abi.ExecErrActionEntityInvalid
		}
	}
	x := m.execute(r, options)
	x.emit(events)
	return abi.ExecOK
}

func validOptions(r *registry, o *abi.ExecutionOptions) bool {
	adds, _ := o.Adds()
	updates, _ := o.Updates()
	removes, _ := o.Removes()
	for _, list := range [][]abi.EntityID{adds, updates, removes} {
		for _, e := range list {
			if _, ok := r.entities[e]; !ok {
				return false
			}
		}
	}
	return true
}

// execute applies the options in order, then runs every top level system.
func (m *Runtime) execute(r *registry, options []abi.ExecutionOptions) *execution {
	x := &execution{rt: m, reg: r, changes: make(map[changeKey]*change)}
	defer clear(m.contexts)

	for i := range options {
		o := &options[i]
		entities, components := o.Adds()
		for j, c := range components {
			x.set(entities[j], c.ID, c.Data)
		}
		entities, components = o.Updates()
		for j, c := range components {
			x.update(entities[j], c.ID, c.Data)
		}
		entities, ids := o.Removes()
		for j, c := range ids {
			x.remove(entities[j], c)
		}
		for _, a := range o.ActionList() {
			decl, ok := m.systems[abi.SystemLikeID(a.ID)]
			if !ok || !decl.action {
				continue
			}
			m.run(x, abi.SystemLikeID(a.ID), copyIn(a.Data, decl.size), 0)
		}
	}

	for _, id := range m.topLevelSystems() {
		m.run(x, id, nil, 0)
	}
	return x
}

func (m *Runtime) topLevelSystems() []abi.SystemLikeID {
	var ids []abi.SystemLikeID
	for id, s := range m.systems {
		if !s.action && s.parent < 0 {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b abi.SystemLikeID) int {
		return int(m.systems[a].order - m.systems[b].order)
	})
	return ids
}

// run executes a system once per matching entity, and its children inside
// each of those executions. A system without capabilities runs once.
func (m *Runtime) run(x *execution, id abi.SystemLikeID, action []byte, parent abi.ExecutionContext) {
	s := m.systems[id]
	entities := []abi.EntityID{abi.InvalidID}
	if len(s.caps) > 0 {
		entities = x.matching(s)
	}
	for _, e := range entities {
		m.nextContext++
		ctx := m.nextContext
		m.contexts[ctx] = &execContext{x: x, system: id, entity: e, action: action, parent: parent}
		if s.impl != nil {
			s.impl(ctx)
		}
		for _, child := range s.children {
			m.run(x, abi.SystemLikeID(child), action, ctx)
		}
	}
}

func (x *execution) matching(s *systemDecl) []abi.EntityID {
	var out []abi.EntityID
	for _, e := range x.reg.sortedEntities() {
		if matches(x.reg.entities[e], s.caps) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e *entity, caps map[abi.ComponentID]abi.SystemCapability) bool {
	for c, flags := range caps {
		_, has := e.components[c]
		switch {
		case flags.Has(abi.CapExclude):
			if has {
				return false
			}
		case flags.Has(abi.CapOptional):
		case flags.Has(abi.CapInclude), flags&abi.CapReadWrite != 0:
			if !has {
				return false
			}
		}
	}
	return true
}

// emit reports the net change of every touched component, in the order the
// components were first touched.
func (x *execution) emit(events *abi.EventsCollector) {
	if events == nil {
		return
	}
	for _, k := range x.order {
		ch := x.changes[k]
		now, has := x.reg.get(k.entity, k.component)
		switch {
		case !ch.had && has:
			if events.Init != nil {
				events.Init(abi.EventInit, k.entity, k.component, ptr(now), events.InitUserData)
			}
		case ch.had && has:
			if events.Update != nil && !x.equal(k.component, ch.before, now) {
				events.Update(abi.EventUpdate, k.entity, k.component, ptr(now), events.UpdateUserData)
			}
		case ch.had && !has:
			if events.Remove != nil {
				events.Remove(abi.EventRemove, k.entity, k.component, ptr(ch.before), events.RemoveUserData)
			}
		}
	}
}

func (x *execution) equal(c abi.ComponentID, a, b []byte) bool {
	if decl, ok := x.rt.components[c]; ok && decl.cmp != nil {
		return decl.cmp(ptr(a), ptr(b)) == 0
	}
	return bytes.Equal(a, b)
}

func (m *Runtime) context(ctx abi.ExecutionContext) *execContext {
	return m.contexts[ctx]
}

func (m *Runtime) contextAction(ctx abi.ExecutionContext, out unsafe.Pointer) {
	if c := m.context(ctx); c != nil {
		copyOut(out, c.action)
	}
}

func (m *Runtime) contextAdd(ctx abi.ExecutionContext, component abi.ComponentID, data unsafe.Pointer) {
	c := m.context(ctx)
	if c == nil {
		return
	}
	if _, has := c.x.reg.get(c.entity, component); has {
		return
	}
	c.x.set(c.entity, component, data)
}

func (m *Runtime) contextRemove(ctx abi.ExecutionContext, component abi.ComponentID) {
	if c := m.context(ctx); c != nil {
		c.x.remove(c.entity, component)
	}
}

func (m *Runtime) contextGet(ctx abi.ExecutionContext, component abi.ComponentID, out unsafe.Pointer) {
	c := m.context(ctx)
	if c == nil {
		return
	}
	if b, ok := c.x.reg.get(c.entity, component); ok {
		copyOut(out, b)
	}
}

func (m *Runtime) contextUpdate(ctx abi.ExecutionContext, component abi.ComponentID, data unsafe.Pointer) {
	if c := m.context(ctx); c != nil {
		c.x.update(c.entity, component, data)
	}
}

func (m *Runtime) contextHas(ctx abi.ExecutionContext, component abi.ComponentID) bool {
	c := m.context(ctx)
	if c == nil {
		return false
	}
	_, ok := c.x.reg.get(c.entity, component)
	return ok
}

func (m *Runtime) contextGenerate(ctx abi.ExecutionContext, ids []abi.ComponentID, data []unsafe.Pointer) {
	c := m.context(ctx)
	if c == nil || len(ids) == 0 {
		return
	}
	e := c.x.reg.create()
	for i, id := range ids {
		if i < len(data) {
			c.x.set(e, id, data[i])
		}
	}
}

func (m *Runtime) contextParent(ctx abi.ExecutionContext) abi.ExecutionContext {
	if c := m.context(ctx); c != nil {
		return c.parent
	}
	return 0
}

func (m *Runtime) contextSame(a, b abi.ExecutionContext) bool {
	return a == b && m.context(a) != nil
}

func (m *Runtime) contextID(ctx abi.ExecutionContext) abi.SystemLikeID {
	if c := m.context(ctx); c != nil {
		return c.system
	}
	return abi.InvalidID
}
