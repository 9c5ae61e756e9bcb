package native

import (
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
)

func TestAdaptersCoverCatalog(t *testing.T) {
	require.Len(t, adapters, len(abi.Catalog))
	for _, e := range abi.Catalog {
		_, ok := adapters[e.Name]
		assert.True(t, ok, e.Name)
	}
}

func TestOpenMissingLibrary(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "libmissing-runtime.so"))
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.KindLoadFailure))

	_, err = Open("")
	require.True(t, errors.IsKind(err, errors.KindLoadFailure))
}

func TestLayoutSizes(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layouts checked on 64-bit targets")
	}
	assert.Equal(t, uintptr(48), unsafe.Sizeof(cEventsCollector{}))
	assert.Equal(t, uintptr(48), unsafe.Sizeof(cAsyncEventsCollector{}))
	assert.Equal(t, uintptr(40), unsafe.Sizeof(cStaticComponent{}))
	assert.Equal(t, uintptr(64), unsafe.Sizeof(cStaticSystem{}))
	assert.Equal(t, uintptr(80), unsafe.Sizeof(cStaticAction{}))

	assert.Equal(t, uintptr(32), unsafe.Offsetof(cStaticComponent{}.transient))
	assert.Equal(t, uintptr(24), unsafe.Offsetof(cStaticSystem{}.children))
	assert.Equal(t, uintptr(72), unsafe.Offsetof(cStaticAction{}.impl))
}

func TestStaticConversion(t *testing.T) {
	a := marshal.NewArena()
	defer a.Release()

	children := []int32{4, 5}
	capComponents := []int32{1, 2}
	caps := []int32{int32(abi.CapReadonly), int32(abi.CapAdds)}

	systems := []cStaticSystem{
		{
			id:             3,
			order:          1,
			name:           a.CString("Move"),
			parent:         -1,
			childCount:     2,
			children:       &children[0],
			capsCount:      2,
			capsComponents: &capComponents[0],
			caps:           &caps[0],
		},
		{id: 4, order: 2, name: a.CString("Child"), parent: 3},
	}
	got := staticSystems(unsafe.Pointer(&systems[0]), int32(len(systems)))
	require.Len(t, got, 2)
	assert.Equal(t, "Move", got[0].Name)
	assert.Equal(t, abi.SystemID(3), got[0].ID)
	assert.Equal(t, abi.SystemID(-1), got[0].Parent)
	assert.Equal(t, []abi.SystemID{4, 5}, got[0].Children)
	assert.Equal(t, []abi.Capability{
		{Component: 1, Flags: abi.CapReadonly},
		{Component: 2, Flags: abi.CapAdds},
	}, got[0].Capabilities)
	assert.Nil(t, got[0].Impl)
	assert.Empty(t, got[1].Children)

	components := []cStaticComponent{
		{id: 1, name: a.CString("Position"), size: 8},
		{id: 2, name: a.CString("Tag"), transient: true},
	}
	gotComponents := staticComponents(unsafe.Pointer(&components[0]), 2)
	require.Len(t, gotComponents, 2)
	assert.Equal(t, "Position", gotComponents[0].Name)
	assert.Equal(t, int32(8), gotComponents[0].Size)
	assert.Nil(t, gotComponents[0].Compare)
	assert.True(t, gotComponents[1].Transient)

	actions := []cStaticAction{{id: 9, name: a.CString("Jump"), size: 4, order: 7}}
	gotActions := staticActions(unsafe.Pointer(&actions[0]), 1)
	require.Len(t, gotActions, 1)
	assert.Equal(t, abi.ActionID(9), gotActions[0].ID)
	assert.Equal(t, int32(4), gotActions[0].Size)
	assert.Equal(t, int32(7), gotActions[0].Order)

	assert.Empty(t, staticSystems(nil, 5))
}

func TestEventTrampoline(t *testing.T) {
	type seen struct {
		ev        abi.Event
		entity    abi.EntityID
		component abi.ComponentID
		ud        uintptr
	}
	var got []seen
	record := func(ev abi.Event, entity abi.EntityID, component abi.ComponentID, _ unsafe.Pointer, ud uintptr) {
		got = append(got, seen{ev, entity, component, ud})
	}
	col := &abi.EventsCollector{
		Init:           record,
		Remove:         record,
		InitUserData:   11,
		RemoveUserData: 33,
	}
	h, release := eventTargets.Acquire(col)

	eventTrampoline(uintptr(abi.EventInit), 5, 2, nil, h.UserData())
	eventTrampoline(uintptr(abi.EventUpdate), 5, 2, nil, h.UserData())
	eventTrampoline(uintptr(abi.EventRemove), 6, 3, nil, h.UserData())
	release()
	eventTrampoline(uintptr(abi.EventInit), 7, 2, nil, h.UserData())

	assert.Equal(t, []seen{
		{abi.EventInit, 5, 2, 11},
		{abi.EventRemove, 6, 3, 33},
	}, got)
}

func TestEachTrampolineRecovers(t *testing.T) {
	calls := 0
	h, release := eachTargets.Acquire(eachTarget{
		cb: func(abi.ComponentID, unsafe.Pointer, uintptr) {
			calls++
			panic("boom")
		},
	})
	defer release()

	require.NotPanics(t, func() {
		eachTrampoline(1, nil, h.UserData())
	})
	assert.Equal(t, 1, calls)
}

func TestAsyncTrampolines(t *testing.T) {
	a := marshal.NewArena()
	defer a.Release()

	var (
		address   string
		port      int32
		errs      []abi.AsyncError
		committed []abi.RequestID
	)
	col := &abi.AsyncEventsCollector{
		Error: func(err abi.AsyncError, _ abi.RequestID, _ uintptr) {
			errs = append(errs, err)
		},
		Connect: func(addr string, p int32, _ uintptr) {
			address, port = addr, p
		},
		ActionCommitted: func(_ abi.ActionID, _ unsafe.Pointer, _ int32, req abi.RequestID, _ uintptr) {
			committed = append(committed, req)
		},
	}
	h, release := asyncTargets.Acquire(col)
	defer release()

	asyncConnectTrampoline(unsafe.Pointer(a.CString("127.0.0.1")), 7000, h.UserData())
	asyncErrorTrampoline(uintptr(abi.AsyncErrStateFail), 4, h.UserData())
	committedTrampoline(1, nil, 10, 4, h.UserData())

	assert.Equal(t, "127.0.0.1", address)
	assert.Equal(t, int32(7000), port)
	assert.Equal(t, []abi.AsyncError{abi.AsyncErrStateFail}, errs)
	assert.Equal(t, []abi.RequestID{4}, committed)
}

func TestCallReleasesTokens(t *testing.T) {
	before := targets.Len()
	c := newCall()
	ud := acquire(c, eachTargets, eachTarget{})
	_, ok := eachTargets.Resolve(ud)
	require.True(t, ok)
	assert.Equal(t, before+1, targets.Len())

	c.end()
	_, ok = eachTargets.Resolve(ud)
	assert.False(t, ok)
	assert.Equal(t, before, targets.Len())
}
