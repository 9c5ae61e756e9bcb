package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
)

func TestCoreComponents(t *testing.T) {
	f := newFixture(t)
	core := f.rt.Core()
	e := f.entity(t, Position{X: 1, Y: 2})

	has, err := core.HasComponent(f.reg, e, f.pos)
	require.NoError(t, err)
	assert.True(t, has)

	v, err := core.GetComponent(f.reg, e, f.pos)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1, Y: 2}, v)

	require.NoError(t, core.UpdateComponent(f.reg, e, f.pos, Position{X: 3, Y: 4}))
	v, err = core.GetComponent(f.reg, e, f.pos)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 3, Y: 4}, v)

	err = core.AddComponent(f.reg, e, f.pos, "not a position")
	assert.True(t, errors.IsKind(err, errors.KindTypeMismatch))

	require.NoError(t, core.RemoveComponent(f.reg, e, f.pos))
	_, err = core.GetComponent(f.reg, e, f.pos)
	assert.True(t, errors.IsKind(err, errors.KindInvalidReference))

	n, err := core.CountComponents(f.reg, e)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCoreEntities(t *testing.T) {
	f := newFixture(t)
	core := f.rt.Core()
	a := f.entity(t, Position{})
	b := f.entity(t, Position{})
	c := f.entity(t, Position{})

	all, err := core.Entities(f.reg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []abi.EntityID{a, b, c}, all)

	some, err := core.GetEntities(f.reg, 2)
	require.NoError(t, err)
	assert.Len(t, some, 2)

	_, err = core.GetEntities(f.reg, -1)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

	require.NoError(t, core.DestroyEntity(f.reg, b))
	ok, err := core.EntityExists(f.reg, b)
	require.NoError(t, err)
	assert.False(t, ok)

	err = core.AddComponent(f.reg, b, f.pos, Position{})
	assert.True(t, errors.IsKind(err, errors.KindInvalidReference), "dead entity is rejected")

	require.NoError(t, core.EnsureEntity(f.reg, 40))
	ok, err = core.EntityExists(f.reg, 40)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, errors.IsKind(core.EnsureEntity(f.reg, -2), errors.KindInvalidReference))

	require.NoError(t, core.ClearRegistry(f.reg))
	n, err := core.CountEntities(f.reg)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCoreRegistries(t *testing.T) {
	f := newFixture(t)
	core := f.rt.Core()

	other, err := core.CreateRegistry("other")
	require.NoError(t, err)
	assert.Equal(t, map[abi.RegistryID]string{f.reg: "test", other: "other"}, core.Registries())

	name, err := f.rt.Meta().RegistryName(other)
	require.NoError(t, err)
	assert.Equal(t, "other", name)

	require.NoError(t, core.DestroyRegistry(other))
	assert.True(t, errors.IsKind(core.DestroyRegistry(other), errors.KindInvalidReference))
	assert.True(t, errors.IsKind(core.ClearRegistry(123), errors.KindInvalidReference))
}

func TestCoreEachComponent(t *testing.T) {
	f := newFixture(t)
	raw, err := f.rt.Dynamic().CreateComponent("Tag", 2, nil)
	require.NoError(t, err)

	e := f.entity(t, Position{X: 9})
	require.NoError(t, f.rt.Core().AddComponent(f.reg, e, raw, []byte{1, 2}))

	seen := map[abi.ComponentID]any{}
	require.NoError(t, f.rt.Core().EachComponent(f.reg, e, func(id abi.ComponentID, v any) {
		seen[id] = v
	}))
	assert.Equal(t, map[abi.ComponentID]any{f.pos: Position{X: 9}, raw: []byte{1, 2}}, seen)

	all, err := f.rt.Core().Components(f.reg, e)
	require.NoError(t, err)
	assert.Equal(t, seen, all)

	before := Tokens().Len()
	require.NoError(t, f.rt.Core().EachComponent(f.reg, e, func(abi.ComponentID, any) {}))
	assert.Equal(t, before, Tokens().Len(), "visitor token released after the call")
}

func TestExecuteSystemsBatch(t *testing.T) {
	f := newFixture(t)
	a := f.entity(t, Position{X: 1})
	b := f.entity(t, Position{X: 2})
	c, err := f.rt.Core().CreateEntity(f.reg)
	require.NoError(t, err)

	err = f.rt.Core().ExecuteSystems(f.reg, Batch{
		Adds:    []marshal.Change{{Entity: c, Component: f.pos, Value: Position{X: 3}}},
		Updates: []marshal.Change{{Entity: a, Component: f.pos, Value: Position{X: 10}}},
		Removes: []marshal.Removal{{Entity: b, Component: f.pos}},
	})
	require.NoError(t, err)

	got, err := Get[Position](f.rt, f.reg, a)
	require.NoError(t, err)
	assert.Equal(t, int32(10), got.X)
	got, err = Get[Position](f.rt, f.reg, c)
	require.NoError(t, err)
	assert.Equal(t, int32(3), got.X)
	has, err := f.rt.Core().HasComponent(f.reg, b, f.pos)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestExecuteSystemsInvalidEntity(t *testing.T) {
	f := newFixture(t)
	err := f.rt.Core().ExecuteSystems(f.reg, Batch{
		Adds: []marshal.Change{{Entity: 99, Component: f.pos, Value: Position{}}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidReference))

	err = f.rt.Core().ExecuteSystems(77)
	assert.True(t, errors.IsKind(err, errors.KindInvalidReference))
}
