package memruntime

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ecsact-runtime/abi"
)

type event struct {
	kind      abi.Event
	entity    abi.EntityID
	component abi.ComponentID
	value     uint32
}

func recorder(size int) (*abi.EventsCollector, *[]event) {
	var got []event
	cb := func(ev abi.Event, e abi.EntityID, c abi.ComponentID, data unsafe.Pointer, _ uintptr) {
		var v uint32
		if size == 4 {
			v = binary.LittleEndian.Uint32(unsafe.Slice((*byte)(data), 4))
		}
		got = append(got, event{ev, e, c, v})
	}
	return &abi.EventsCollector{Init: cb, Update: cb, Remove: cb}, &got
}

func u32(v uint32) unsafe.Pointer {
	b := binary.LittleEndian.AppendUint32(nil, v)
	return unsafe.Pointer(&b[0])
}

func TestLibraryGroups(t *testing.T) {
	m := New()
	all := m.Library("mem")
	for _, e := range abi.Catalog {
		_, ok := all.Lookup(e.Name)
		assert.Equal(t, e.Group != abi.GroupWasm, ok, e.Name)
	}

	core := m.Library("core", abi.GroupCore)
	_, ok := core.Lookup(abi.SymCreateRegistry)
	assert.True(t, ok)
	_, ok = core.Lookup(abi.SymAsyncConnect)
	assert.False(t, ok)
}

func TestExecuteNetChange(t *testing.T) {
	m := New()
	pos := m.createComponent("Position", 4, nil)
	reg := m.createRegistry("test")
	e := m.createEntity(reg)
	require.Equal(t, abi.AddOK, m.addComponent(reg, e, pos, u32(1)))

	vel := m.createComponent("Velocity", 4, nil)

	// Adds then removes vel, updates pos twice: only the last pos value is
	// reported and vel never surfaces.
	sys := m.createSystem("step", abi.InvalidID, []abi.Capability{{Component: pos, Flags: abi.CapReadWrite}}, func(ctx abi.ExecutionContext) {
		m.contextAdd(ctx, vel, u32(5))
		m.contextUpdate(ctx, pos, u32(2))
		m.contextUpdate(ctx, pos, u32(3))
		m.contextRemove(ctx, vel)
	})
	require.GreaterOrEqual(t, sys, abi.SystemID(0))

	col, got := recorder(4)
	require.Equal(t, abi.ExecOK, m.executeSystems(reg, nil, col))
	assert.Equal(t, []event{{abi.EventUpdate, e, pos, 3}}, *got)
}

func TestExecuteInvalidEntity(t *testing.T) {
	m := New()
	pos := m.createComponent("Position", 4, nil)
	reg := m.createRegistry("test")

	entities := []abi.EntityID{42}
	comps := []abi.Component{{ID: pos, Data: u32(1)}}
	opts := []abi.ExecutionOptions{{
		AddComponentsLength:   1,
		AddComponentsEntities: &entities[0],
		AddComponents:         &comps[0],
	}}
	assert.Equal(t, abi.ExecErrActionEntityInvalid, m.executeSystems(reg, opts, nil))
}

func TestChildSystemsSeeParent(t *testing.T) {
	m := New()
	tag := m.createComponent("Tag", 0, nil)
	reg := m.createRegistry("test")
	e := m.createEntity(reg)
	m.addComponent(reg, e, tag, nil)

	var parents []abi.ExecutionContext
	var parentCtx abi.ExecutionContext
	parent := m.createSystem("parent", abi.InvalidID, []abi.Capability{{Component: tag, Flags: abi.CapInclude}}, func(ctx abi.ExecutionContext) {
		parentCtx = ctx
	})
	m.createSystem("child", parent, nil, func(ctx abi.ExecutionContext) {
		parents = append(parents, m.contextParent(ctx))
	})

	m.executeSystems(reg, nil, nil)
	require.Len(t, parents, 1)
	assert.Equal(t, parentCtx, parents[0])
	assert.Empty(t, m.contexts, "contexts expire with the execution")
}

func TestAsyncSession(t *testing.T) {
	m := New()
	jump := m.createAction("Jump", 4, nil, nil, nil)

	req := m.asyncConnect("localhost:9000")
	var (
		address   string
		port      int32
		committed []abi.RequestID
		errs      []abi.AsyncError
	)
	async := &abi.AsyncEventsCollector{
		Connect: func(addr string, p int32, _ uintptr) {
			address, port = addr, p
		},
		Error: func(err abi.AsyncError, _ abi.RequestID, _ uintptr) {
			errs = append(errs, err)
		},
		ActionCommitted: func(_ abi.ActionID, _ unsafe.Pointer, _ int32, r abi.RequestID, _ uintptr) {
			committed = append(committed, r)
		},
	}
	m.asyncFlushEvents(nil, async)
	assert.Equal(t, "localhost", address)
	assert.Equal(t, int32(9000), port)
	assert.True(t, m.Connected())
	assert.Greater(t, int32(req), int32(0))

	later := m.asyncExecuteActionAt(jump, u32(1), m.Tick()+2)
	now := m.asyncExecuteAction(jump, u32(1))
	m.asyncFlushEvents(nil, async)
	assert.Equal(t, []abi.RequestID{now}, committed)
	m.asyncFlushEvents(nil, async)
	assert.Equal(t, []abi.RequestID{now, later}, committed)

	m.InjectError(abi.AsyncErrSocketFail, 0)
	m.asyncFlushEvents(nil, async)
	assert.Equal(t, []abi.AsyncError{abi.AsyncErrSocketFail}, errs)
	assert.False(t, m.Connected())

	m.asyncConnect("no port")
	m.asyncFlushEvents(nil, async)
	assert.Equal(t, abi.AsyncErrInvalidConnectionString, errs[len(errs)-1])
}

func TestSerializeBounds(t *testing.T) {
	m := New()
	pos := m.createComponent("Position", 4, nil)
	out := make([]byte, 4)
	assert.Equal(t, int32(4), m.serializeComponent(pos, u32(7), out))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(out))
	assert.Equal(t, int32(-1), m.serializeComponent(pos, u32(7), out[:2]))

	var back uint32
	assert.Equal(t, int32(4), m.deserializeComponent(pos, out, unsafe.Pointer(&back)))
	assert.Equal(t, uint32(7), back)
	assert.Equal(t, int32(-1), m.deserializeComponent(pos, out[:3], unsafe.Pointer(&back)))
}
