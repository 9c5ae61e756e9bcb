package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
)

type received struct {
	ev     abi.Event
	entity abi.EntityID
	value  any
}

func record(f *fixture, out *[]received) {
	for _, ev := range []abi.Event{abi.EventInit, abi.EventUpdate, abi.EventRemove} {
		f.rt.Events().SubscribeAny(ev, func(e abi.EntityID, _ abi.ComponentID, v any) {
			*out = append(*out, received{ev, e, v})
		})
	}
}

func TestEventsReportNetChange(t *testing.T) {
	f := newFixture(t)
	vel, err := f.rt.Dynamic().CreateComponent("Velocity", 4, nil)
	require.NoError(t, err)
	e := f.entity(t, Position{X: 1})

	_, err = f.rt.Dynamic().CreateSystem("step", abi.InvalidID,
		[]abi.Capability{{Component: f.pos, Flags: abi.CapReadWrite}, {Component: vel, Flags: abi.CapAdds}},
		func(ctx *ExecutionContext) {
			require.NoError(t, ctx.Add(vel, []byte{1, 0, 0, 0}))
			require.NoError(t, ctx.Update(f.pos, Position{X: 2}))
			require.NoError(t, ctx.Update(f.pos, Position{X: 3}))
			require.NoError(t, ctx.Remove(vel))
		})
	require.NoError(t, err)

	var got []received
	record(f, &got)
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))
	assert.Equal(t, []received{{abi.EventUpdate, e, Position{X: 3}}}, got)
}

func TestEventsAddThenUpdateInOneBatch(t *testing.T) {
	f := newFixture(t)
	e, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)

	var got []received
	record(f, &got)
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
		Adds:    []marshal.Change{{Entity: e, Component: f.pos, Value: Position{X: 1}}},
		Updates: []marshal.Change{{Entity: e, Component: f.pos, Value: Position{X: 2}}},
	}))
	assert.Equal(t, []received{{abi.EventInit, e, Position{X: 2}}}, got)
}

func TestEventsUnchangedValueIsSilent(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, Position{X: 5})

	var got []received
	record(f, &got)
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
		Updates: []marshal.Change{{Entity: e, Component: f.pos, Value: Position{X: 5}}},
	}))
	assert.Empty(t, got)
}

func TestEventsInitAndRemove(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, Position{X: 1})
	n, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)

	var got []received
	record(f, &got)
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
		Adds:    []marshal.Change{{Entity: n, Component: f.pos, Value: Position{Y: 7}}},
		Removes: []marshal.Removal{{Entity: e, Component: f.pos}},
	}))
	assert.Equal(t, []received{
		{abi.EventInit, n, Position{Y: 7}},
		{abi.EventRemove, e, Position{X: 1}},
	}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	f := newFixture(t)
	var inits, updates, removes int
	offInit := f.rt.Events().OnInit(f.pos, func(abi.EntityID, abi.ComponentID, any) { inits++ })
	offUpdate := f.rt.Events().OnUpdate(f.pos, func(abi.EntityID, abi.ComponentID, any) { updates++ })
	offRemove := f.rt.Events().OnRemove(f.pos, func(abi.EntityID, abi.ComponentID, any) { removes++ })

	cycle := func() {
		e, err := f.rt.Core().CreateEntity(f.reg)
		require.NoError(t, err)
		require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
			Adds: []marshal.Change{{Entity: e, Component: f.pos, Value: Position{X: 1}}},
		}))
		require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
			Updates: []marshal.Change{{Entity: e, Component: f.pos, Value: Position{X: 2}}},
		}))
		require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
			Removes: []marshal.Removal{{Entity: e, Component: f.pos}},
		}))
	}

	cycle()
	assert.Equal(t, []int{1, 1, 1}, []int{inits, updates, removes})

	offInit()
	offUpdate()
	offRemove()
	offRemove()
	cycle()
	assert.Equal(t, []int{1, 1, 1}, []int{inits, updates, removes})
}

func TestTypedSubscribersRunBeforeWildcard(t *testing.T) {
	f := newFixture(t)
	var order []string
	f.rt.Events().OnAnyInit(func(abi.EntityID, abi.ComponentID, any) { order = append(order, "any1") })
	f.rt.Events().OnInit(f.pos, func(abi.EntityID, abi.ComponentID, any) { order = append(order, "typed1") })
	f.rt.Events().OnAnyInit(func(abi.EntityID, abi.ComponentID, any) { order = append(order, "any2") })
	f.rt.Events().OnInit(f.pos, func(abi.EntityID, abi.ComponentID, any) { order = append(order, "typed2") })

	e, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
		Adds: []marshal.Change{{Entity: e, Component: f.pos, Value: Position{}}},
	}))
	assert.Equal(t, []string{"typed1", "typed2", "any1", "any2"}, order)
}

func TestSubscribeDuringDispatch(t *testing.T) {
	f := newFixture(t)
	var late int
	f.rt.Events().OnAnyInit(func(abi.EntityID, abi.ComponentID, any) {
		f.rt.Events().OnAnyInit(func(abi.EntityID, abi.ComponentID, any) { late++ })
	})

	e, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
		Adds: []marshal.Change{{Entity: e, Component: f.pos, Value: Position{}}},
	}))
	assert.Zero(t, late, "a handler added mid-dispatch sees only later events")
}

func TestPanickingHandlerBecomesError(t *testing.T) {
	metrics := newRecordingMetrics()
	f := newFixture(t, WithMetrics(metrics))
	f.rt.Events().OnAnyInit(func(abi.EntityID, abi.ComponentID, any) { panic("boom") })

	e, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)
	err = f.rt.Core().ExecuteSystems(f.reg, Batch{
		Adds: []marshal.Change{{Entity: e, Component: f.pos, Value: Position{}}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidState))
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, metrics.events[abi.EventInit], "panicking dispatches are still counted")

	has, err := f.rt.Core().HasComponent(f.reg, e, f.pos)
	require.NoError(t, err)
	assert.True(t, has, "the native call still completed")

	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg), "errors are cleared after they are returned")
}

func TestUnregisteredComponentDispatchesBytes(t *testing.T) {
	f := newFixture(t)
	tag, err := f.rt.Dynamic().CreateComponent("Tag", 2, nil)
	require.NoError(t, err)

	var got any
	f.rt.Events().OnInit(tag, func(_ abi.EntityID, _ abi.ComponentID, v any) { got = v })

	e, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
		Adds: []marshal.Change{{Entity: e, Component: tag, Value: []byte{4, 2}}},
	}))
	assert.Equal(t, []byte{4, 2}, got)
}

func TestInvalidEventKindIgnored(t *testing.T) {
	f := newFixture(t)
	off := f.rt.Events().Subscribe(abi.Event(9), f.pos, func(abi.EntityID, abi.ComponentID, any) {})
	off()
	assert.NotPanics(t, func() { f.rt.Events().SubscribeAny(abi.EventInit, nil)() })
}
