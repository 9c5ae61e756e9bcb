package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
)

type Unregistered struct {
	V int32
}

func TestTypedComponentAccess(t *testing.T) {
	f := newFixture(t)
	e, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)

	require.NoError(t, Add(f.rt, f.reg, e, Position{X: 1, Y: 1}))
	require.NoError(t, Update(f.rt, f.reg, e, Position{X: 2, Y: 2}))
	p, err := Get[Position](f.rt, f.reg, e)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 2, Y: 2}, p)

	require.NoError(t, Remove[Position](f.rt, f.reg, e))
	_, err = Get[Position](f.rt, f.reg, e)
	assert.True(t, errors.IsKind(err, errors.KindInvalidReference))

	_, err = Get[Unregistered](f.rt, f.reg, e)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	assert.True(t, errors.IsKind(Add(f.rt, f.reg, e, Unregistered{}), errors.KindNotFound))
}

func TestTypedSubscriptions(t *testing.T) {
	f := newFixture(t)
	var inits, updates, removes []Position
	offInit, err := OnInit(f.rt, func(_ abi.EntityID, p Position) { inits = append(inits, p) })
	require.NoError(t, err)
	_, err = OnUpdate(f.rt, func(_ abi.EntityID, p Position) { updates = append(updates, p) })
	require.NoError(t, err)
	_, err = OnRemove(f.rt, func(_ abi.EntityID, p Position) { removes = append(removes, p) })
	require.NoError(t, err)

	_, err = OnInit(f.rt, func(abi.EntityID, Unregistered) {})
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	e, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
		Adds: []Change{{Entity: e, Component: f.pos, Value: Position{X: 1}}},
	}))
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
		Updates: []Change{{Entity: e, Component: f.pos, Value: Position{X: 2}}},
	}))
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
		Removes: []Removal{{Entity: e, Component: f.pos}},
	}))

	assert.Equal(t, []Position{{X: 1}}, inits)
	assert.Equal(t, []Position{{X: 2}}, updates)
	assert.Equal(t, []Position{{X: 2}}, removes)

	offInit()
	e2, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg, Batch{
		Adds: []Change{{Entity: e2, Component: f.pos, Value: Position{X: 9}}},
	}))
	assert.Len(t, inits, 1)
}

func TestTypedContext(t *testing.T) {
	f := newFixture(t)
	f.entity(t, Position{X: 1})

	_, err := f.rt.Dynamic().CreateSystem("double", abi.InvalidID,
		[]abi.Capability{{Component: f.pos, Flags: abi.CapReadWrite}},
		func(ctx *ExecutionContext) {
			p, err := ContextGet[Position](ctx)
			require.NoError(t, err)
			require.NoError(t, ContextUpdate(ctx, Position{X: p.X * 2}))
		})
	require.NoError(t, err)

	var got []Position
	_, err = OnUpdate(f.rt, func(_ abi.EntityID, p Position) { got = append(got, p) })
	require.NoError(t, err)

	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))
	assert.Equal(t, []Position{{X: 2}, {X: 4}}, got)
}
