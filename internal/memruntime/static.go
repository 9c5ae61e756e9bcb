package memruntime

import (
	"maps"
	"slices"

	"github.com/wippyai/ecsact-runtime/abi"
)

// Static listings report everything declared so far, ordered by id.

func (m *Runtime) staticComponents() []abi.StaticComponentInfo {
	out := make([]abi.StaticComponentInfo, 0, len(m.components))
	for _, id := range slices.Sorted(maps.Keys(m.components)) {
		c := m.components[id]
		out = append(out, abi.StaticComponentInfo{
			ID:      id,
			Name:    c.name,
			Size:    c.size,
			Compare: c.cmp,
		})
	}
	return out
}

func capabilityList(caps map[abi.ComponentID]abi.SystemCapability) []abi.Capability {
	out := make([]abi.Capability, 0, len(caps))
	for _, c := range slices.Sorted(maps.Keys(caps)) {
		out = append(out, abi.Capability{Component: c, Flags: caps[c]})
	}
	return out
}

func (m *Runtime) staticSystems() []abi.StaticSystemInfo {
	var out []abi.StaticSystemInfo
	for _, id := range slices.Sorted(maps.Keys(m.systems)) {
		s := m.systems[id]
		if s.action {
			continue
		}
		out = append(out, abi.StaticSystemInfo{
			ID:           abi.SystemID(id),
			Order:        s.order,
			Name:         s.name,
			Parent:       s.parent,
			Children:     slices.Clone(s.children),
			Capabilities: capabilityList(s.caps),
			Impl:         s.impl,
		})
	}
	return out
}

func (m *Runtime) staticActions() []abi.StaticActionInfo {
	var out []abi.StaticActionInfo
	for _, id := range slices.Sorted(maps.Keys(m.systems)) {
		s := m.systems[id]
		if !s.action {
			continue
		}
		out = append(out, abi.StaticActionInfo{
			ID:           abi.ActionID(id),
			Order:        s.order,
			Name:         s.name,
			Size:         s.size,
			Compare:      s.cmp,
			Children:     slices.Clone(s.children),
			Capabilities: capabilityList(s.caps),
			Impl:         s.impl,
		})
	}
	return out
}

func (m *Runtime) onReload(cb abi.ReloadCallback, ud uintptr) {
	if cb != nil {
		m.reloads[ud] = cb
	}
}

func (m *Runtime) offReload(ud uintptr) {
	delete(m.reloads, ud)
}

// ReloadSubscribers returns how many reload callbacks are registered.
func (m *Runtime) ReloadSubscribers() int {
	return len(m.reloads)
}

// Reload notifies every registered reload callback, as a runtime does after
// its static types changed.
func (m *Runtime) Reload() {
	cbs := maps.Clone(m.reloads)
	for _, ud := range slices.Sorted(maps.Keys(cbs)) {
		cbs[ud](ud)
	}
}
