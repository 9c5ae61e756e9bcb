package memruntime

import (
	"maps"
	"slices"
	"unsafe"

	"github.com/wippyai/ecsact-runtime/abi"
)

func (m *Runtime) registryName(reg abi.RegistryID) string {
	if r, ok := m.registries[reg]; ok {
		return r.name
	}
	return ""
}

func (m *Runtime) componentSize(id abi.ComponentID) int32 {
	if c, ok := m.components[id]; ok {
		return c.size
	}
	return -1
}

func (m *Runtime) componentName(id abi.ComponentID) string {
	if c, ok := m.components[id]; ok {
		return c.name
	}
	return ""
}

func (m *Runtime) action(id abi.ActionID) *systemDecl {
	s, ok := m.systems[abi.SystemLikeID(id)]
	if !ok || !s.action {
		return nil
	}
	return s
}

func (m *Runtime) actionSize(id abi.ActionID) int32 {
	if a := m.action(id); a != nil {
		return a.size
	}
	return -1
}

func (m *Runtime) actionName(id abi.ActionID) string {
	if a := m.action(id); a != nil {
		return a.name
	}
	return ""
}

func (m *Runtime) systemName(id abi.SystemLikeID) string {
	if s, ok := m.systems[id]; ok {
		return s.name
	}
	return ""
}

func (m *Runtime) capabilitiesCount(id abi.SystemLikeID) int32 {
	if s, ok := m.systems[id]; ok {
		return int32(len(s.caps))
	}
	return 0
}

func (m *Runtime) capabilities(id abi.SystemLikeID, components []abi.ComponentID, caps []abi.SystemCapability) int32 {
	s, ok := m.systems[id]
	if !ok {
		return 0
	}
	n := 0
	for _, c := range slices.Sorted(maps.Keys(s.caps)) {
		if n == len(components) || n == len(caps) {
			break
		}
		components[n], caps[n] = c, s.caps[c]
		n++
	}
	return int32(n)
}

// The serialized form of a value is its bytes; values are plain data.

func serialize(size int32, in unsafe.Pointer, out []byte) int32 {
	if size < 0 || len(out) < int(size) {
		return -1
	}
	if size > 0 {
		copy(out, unsafe.Slice((*byte)(in), size))
	}
	return size
}

func deserialize(size int32, in []byte, out unsafe.Pointer) int32 {
	if size < 0 || len(in) < int(size) {
		return -1
	}
	copyOut(out, in[:size])
	return size
}

func (m *Runtime) serializeComponent(id abi.ComponentID, in unsafe.Pointer, out []byte) int32 {
	return serialize(m.componentSize(id), in, out)
}

func (m *Runtime) serializeAction(id abi.ActionID, in unsafe.Pointer, out []byte) int32 {
	return serialize(m.actionSize(id), in, out)
}

func (m *Runtime) deserializeComponent(id abi.ComponentID, in []byte, out unsafe.Pointer) int32 {
	return deserialize(m.componentSize(id), in, out)
}

func (m *Runtime) deserializeAction(id abi.ActionID, in []byte, out unsafe.Pointer) int32 {
	return deserialize(m.actionSize(id), in, out)
}
