package runtime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
)

func TestSerializeComponentRoundTrip(t *testing.T) {
	f := newFixture(t)
	s := f.rt.Serialize()

	for _, p := range []Position{
		{},
		{X: math.MinInt32, Y: math.MaxInt32},
		{X: -1, Y: 1},
	} {
		data, err := s.Component(f.pos, p)
		require.NoError(t, err)
		assert.Len(t, data, 8)

		back, err := s.DeserializeComponent(f.pos, data)
		require.NoError(t, err)
		assert.Equal(t, p, back)
	}
}

func TestSerializeActionRoundTrip(t *testing.T) {
	f := newFixture(t)
	jump, err := f.rt.Dynamic().CreateAction("Jump", 4, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, marshal.RegisterAction[Jump](f.rt.Registry(), jump))

	size, err := f.rt.Serialize().ActionSize(jump)
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	data, err := f.rt.Serialize().Action(jump, Jump{Height: math.MaxInt32})
	require.NoError(t, err)
	back, err := f.rt.Serialize().DeserializeAction(jump, data)
	require.NoError(t, err)
	assert.Equal(t, Jump{Height: math.MaxInt32}, back)
}

func TestDeserializeShortInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.rt.Serialize().DeserializeComponent(f.pos, []byte{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindOutOfBounds))

	_, err = f.rt.Serialize().ComponentSize(f.pos + 50)
	assert.True(t, errors.IsKind(err, errors.KindInvalidReference))
}

func TestSerializeRawComponent(t *testing.T) {
	f := newFixture(t)
	tag, err := f.rt.Dynamic().CreateComponent("Tag", 3, nil)
	require.NoError(t, err)

	data, err := f.rt.Serialize().Component(tag, []byte{7, 8, 9})
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8, 9}, data)

	_, err = f.rt.Serialize().Component(tag, []byte{7})
	assert.True(t, errors.IsKind(err, errors.KindOutOfBounds))
}
