package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
)

func TestContextOperations(t *testing.T) {
	f := newFixture(t)
	tag, err := f.rt.Dynamic().CreateComponent("Tag", 1, nil)
	require.NoError(t, err)
	f.entity(t, Position{X: 4})

	var (
		id      abi.SystemLikeID
		pos     any
		hasTag  bool
		parent  *ExecutionContext
		escaped *ExecutionContext
	)
	sys, err := f.rt.Dynamic().CreateSystem("inspect", abi.InvalidID,
		[]abi.Capability{{Component: f.pos, Flags: abi.CapReadWrite}, {Component: tag, Flags: abi.CapOptional}},
		func(ctx *ExecutionContext) {
			escaped = ctx
			id, _ = ctx.ID()
			pos, _ = ctx.Get(f.pos)
			hasTag, _ = ctx.Has(tag)
			parent, _ = ctx.Parent()
			same, err := ctx.Same(ctx)
			require.NoError(t, err)
			assert.True(t, same)
			require.NoError(t, ctx.Generate(ComponentValue{Component: f.pos, Value: Position{X: 100}}))
		})
	require.NoError(t, err)

	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))
	assert.Equal(t, abi.SystemLikeID(sys), id)
	assert.Equal(t, Position{X: 4}, pos)
	assert.False(t, hasTag)
	assert.Nil(t, parent, "top level systems have no parent")

	n, err := f.rt.Core().CountEntities(f.reg)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "generate created an entity")

	_, err = escaped.Get(f.pos)
	assert.True(t, errors.IsKind(err, errors.KindInvalidState), "context is dead once the system returned")
	assert.True(t, errors.IsKind(escaped.Update(f.pos, Position{}), errors.KindInvalidState))
}

func TestContextParentChain(t *testing.T) {
	f := newFixture(t)
	f.entity(t, Position{})

	var (
		parentCtx abi.ExecutionContext
		seen      *ExecutionContext
		same      bool
	)
	parent, err := f.rt.Dynamic().CreateSystem("parent", abi.InvalidID,
		[]abi.Capability{{Component: f.pos, Flags: abi.CapReadonly}},
		func(ctx *ExecutionContext) { parentCtx = ctx.Native() })
	require.NoError(t, err)
	_, err = f.rt.Dynamic().CreateSystem("child", parent, nil, func(ctx *ExecutionContext) {
		p, err := ctx.Parent()
		require.NoError(t, err)
		seen = p
		same, err = p.Same(p)
		require.NoError(t, err)
	})
	require.NoError(t, err)

	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))
	require.NotNil(t, seen)
	assert.Equal(t, parentCtx, seen.Native())
	assert.True(t, same)

	_, err = seen.ID()
	assert.True(t, errors.IsKind(err, errors.KindInvalidState), "parent view expires with the child")
}

func TestContextGenerateNeedsComponents(t *testing.T) {
	f := newFixture(t)
	var err error
	_, cerr := f.rt.Dynamic().CreateSystem("gen", abi.InvalidID, nil, func(ctx *ExecutionContext) {
		err = ctx.Generate()
	})
	require.NoError(t, cerr)
	require.NoError(t, f.rt.Core().ExecuteSystems(f.reg))
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestSystemPanicIsReported(t *testing.T) {
	f := newFixture(t)
	_, err := f.rt.Dynamic().CreateSystem("bad", abi.InvalidID, nil, func(*ExecutionContext) {
		panic("system failed")
	})
	require.NoError(t, err)

	err = f.rt.Core().ExecuteSystems(f.reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system failed")
}
