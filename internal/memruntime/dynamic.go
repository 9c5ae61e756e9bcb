package memruntime

import (
	"github.com/wippyai/ecsact-runtime/abi"
)

func (m *Runtime) createComponent(name string, size int32, cmp abi.CompareFunc) abi.ComponentID {
	if size < 0 {
		return abi.InvalidID
	}
	id := abi.ComponentID(m.nextComponent)
	m.nextComponent++
	m.components[id] = &componentDecl{name: name, size: size, cmp: cmp}
	return id
}

// resizeComponent changes the size of a component; stored values are
// truncated or zero extended.
func (m *Runtime) resizeComponent(id abi.ComponentID, size int32, cmp abi.CompareFunc) {
	decl, ok := m.components[id]
	if !ok || size < 0 {
		return
	}
	decl.size, decl.cmp = size, cmp
	for _, r := range m.registries {
		for _, e := range r.entities {
			if b, ok := e.components[id]; ok {
				resized := alloc(size)
				copy(resized, b)
				e.components[id] = resized
			}
		}
	}
}

func (m *Runtime) destroyComponent(id abi.ComponentID) {
	delete(m.components, id)
	for _, r := range m.registries {
		delete(r.components, id)
		for _, e := range r.entities {
			delete(e.components, id)
		}
	}
	for _, s := range m.systems {
		delete(s.caps, id)
	}
}

func capabilityMap(caps []abi.Capability) map[abi.ComponentID]abi.SystemCapability {
	out := make(map[abi.ComponentID]abi.SystemCapability, len(caps))
	for _, c := range caps {
		out[c.Component] = c.Flags
	}
	return out
}

func (m *Runtime) declare(s *systemDecl) abi.SystemLikeID {
	id := abi.SystemLikeID(m.nextSystem)
	s.order = m.nextSystem
	m.nextSystem++
	m.systems[id] = s
	return id
}

func (m *Runtime) createSystem(name string, parent abi.SystemID, caps []abi.Capability, impl abi.SystemExecutionImpl) abi.SystemID {
	if parent >= 0 {
		p, ok := m.systems[abi.SystemLikeID(parent)]
		if !ok || p.action {
			return abi.InvalidID
		}
	}
	id := abi.SystemID(m.declare(&systemDecl{
		name:   name,
		parent: parent,
		caps:   capabilityMap(caps),
		impl:   impl,
	}))
	if parent >= 0 {
		p := m.systems[abi.SystemLikeID(parent)]
		p.children = append(p.children, id)
	}
	return id
}

func (m *Runtime) createAction(name string, size int32, cmp abi.CompareFunc, caps []abi.Capability, impl abi.SystemExecutionImpl) abi.ActionID {
	if size < 0 {
		return abi.InvalidID
	}
	return abi.ActionID(m.declare(&systemDecl{
		name:   name,
		action: true,
		size:   size,
		cmp:    cmp,
		parent: abi.InvalidID,
		caps:   capabilityMap(caps),
		impl:   impl,
	}))
}

func (m *Runtime) resizeAction(id abi.ActionID, size int32, cmp abi.CompareFunc) {
	if s, ok := m.systems[abi.SystemLikeID(id)]; ok && s.action && size >= 0 {
		s.size, s.cmp = size, cmp
	}
}

func (m *Runtime) setSystemImpl(id abi.SystemLikeID, impl abi.SystemExecutionImpl) {
	if s, ok := m.systems[id]; ok {
		s.impl = impl
	}
}

func (m *Runtime) setCapability(id abi.SystemLikeID, component abi.ComponentID, flags abi.SystemCapability) {
	if s, ok := m.systems[id]; ok {
		s.caps[component] = flags
	}
}

func (m *Runtime) removeCapability(id abi.SystemLikeID, component abi.ComponentID) {
	if s, ok := m.systems[id]; ok {
		delete(s.caps, component)
	}
}

func (m *Runtime) addGenerateSet(id abi.SystemLikeID, ids []abi.ComponentID, flags []abi.SystemGenerate) {
	s, ok := m.systems[id]
	if !ok {
		return
	}
	n := min(len(ids), len(flags))
	s.generates = append(s.generates, generateSet{
		components: append([]abi.ComponentID(nil), ids[:n]...),
		flags:      append([]abi.SystemGenerate(nil), flags[:n]...),
	})
}

func (m *Runtime) registerComponent(reg abi.RegistryID, id abi.ComponentID) {
	if r, ok := m.registries[reg]; ok {
		r.components[id] = true
	}
}

func (m *Runtime) registerSystem(reg abi.RegistryID, id abi.SystemID) {
	if r, ok := m.registries[reg]; ok {
		r.systems[id] = true
	}
}

func (m *Runtime) registerAction(reg abi.RegistryID, id abi.ActionID) {
	if r, ok := m.registries[reg]; ok {
		r.actions[id] = true
	}
}

// GenerateSets returns the generate sets declared for a system.
func (m *Runtime) GenerateSets(id abi.SystemLikeID) [][]abi.ComponentID {
	s, ok := m.systems[id]
	if !ok {
		return nil
	}
	out := make([][]abi.ComponentID, len(s.generates))
	for i, g := range s.generates {
		out[i] = g.components
	}
	return out
}

// Registered reports whether a component, system or action id was
// registered with reg.
func (m *Runtime) Registered(reg abi.RegistryID, id int32) bool {
	r, ok := m.registries[reg]
	if !ok {
		return false
	}
	return r.components[abi.ComponentID(id)] || r.systems[abi.SystemID(id)] || r.actions[abi.ActionID(id)]
}
