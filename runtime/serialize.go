package runtime

import (
	"fmt"
	"unsafe"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/marshal"
)

// Serialize converts component and action values to and from the runtime's
// serialized byte form.
type Serialize struct {
	rt *Runtime
}

// ComponentSize is the serialized size of a component.
func (s *Serialize) ComponentSize(id abi.ComponentID) (int, error) {
	fn, err := need[abi.SerializeComponentSizeFunc](s.rt, abi.SymSerializeComponentSize)
	if err != nil {
		return 0, err
	}
	n := fn(id)
	if n < 0 {
		return 0, errors.InvalidReference(errors.PhaseCall, "component", int32(id))
	}
	return int(n), nil
}

// ActionSize is the serialized size of an action.
func (s *Serialize) ActionSize(id abi.ActionID) (int, error) {
	fn, err := need[abi.SerializeActionSizeFunc](s.rt, abi.SymSerializeActionSize)
	if err != nil {
		return 0, err
	}
	n := fn(id)
	if n < 0 {
		return 0, errors.InvalidReference(errors.PhaseCall, "action", int32(id))
	}
	return int(n), nil
}

func (s *Serialize) Component(id abi.ComponentID, value any) ([]byte, error) {
	fn, err := need[abi.SerializeComponentFunc](s.rt, abi.SymSerializeComponent)
	if err != nil {
		return nil, err
	}
	size, err := s.ComponentSize(id)
	if err != nil {
		return nil, err
	}
	codec, err := s.rt.ComponentCodec(id)
	if err != nil {
		return nil, err
	}
	return serialize(codec, value, size, abi.SymSerializeComponent, func(in unsafe.Pointer, out []byte) int32 {
		return fn(id, in, out)
	})
}

func (s *Serialize) Action(id abi.ActionID, value any) ([]byte, error) {
	fn, err := need[abi.SerializeActionFunc](s.rt, abi.SymSerializeAction)
	if err != nil {
		return nil, err
	}
	size, err := s.ActionSize(id)
	if err != nil {
		return nil, err
	}
	codec, err := s.rt.ActionCodec(id)
	if err != nil {
		return nil, err
	}
	return serialize(codec, value, size, abi.SymSerializeAction, func(in unsafe.Pointer, out []byte) int32 {
		return fn(id, in, out)
	})
}

// DeserializeComponent decodes data produced by Component. Input shorter
// than the serialized size is rejected before reaching native code.
func (s *Serialize) DeserializeComponent(id abi.ComponentID, data []byte) (any, error) {
	fn, err := need[abi.DeserializeComponentFunc](s.rt, abi.SymDeserializeComponent)
	if err != nil {
		return nil, err
	}
	size, err := s.ComponentSize(id)
	if err != nil {
		return nil, err
	}
	codec, err := s.rt.ComponentCodec(id)
	if err != nil {
		return nil, err
	}
	return deserialize(codec, data, size, fmt.Sprintf("component %d", id), abi.SymDeserializeComponent,
		func(in []byte, out unsafe.Pointer) int32 {
			return fn(id, in, out)
		})
}

// DeserializeAction decodes data produced by Action.
func (s *Serialize) DeserializeAction(id abi.ActionID, data []byte) (any, error) {
	fn, err := need[abi.DeserializeActionFunc](s.rt, abi.SymDeserializeAction)
	if err != nil {
		return nil, err
	}
	size, err := s.ActionSize(id)
	if err != nil {
		return nil, err
	}
	codec, err := s.rt.ActionCodec(id)
	if err != nil {
		return nil, err
	}
	return deserialize(codec, data, size, fmt.Sprintf("action %d", id), abi.SymDeserializeAction,
		func(in []byte, out unsafe.Pointer) int32 {
			return fn(id, in, out)
		})
}

func serialize(codec marshal.Codec, value any, size int, symbol string, call func(in unsafe.Pointer, out []byte) int32) ([]byte, error) {
	a := marshal.NewArena()
	defer a.Release()

	in, err := marshal.Encode(a, codec, value)
	if err != nil {
		return nil, err
	}
	out := a.Bytes(size)
	n := call(in, out)
	if n < 0 || int(n) > size {
		return nil, errors.NativeFailure(symbol, n)
	}
	return append([]byte(nil), out[:n]...), nil
}

func deserialize(codec marshal.Codec, data []byte, size int, what, symbol string, call func(in []byte, out unsafe.Pointer) int32) (any, error) {
	if len(data) < size {
		return nil, errors.OutOfBounds(errors.PhaseCall, what, size, len(data))
	}
	a := marshal.NewArena()
	defer a.Release()

	in := a.Copy(data)
	out := a.Bytes(codec.Size())
	if n := call(in, marshal.Pointer(out)); n < 0 {
		return nil, errors.New(errors.PhaseCall, errors.KindInvalidInput).
			Symbol(symbol).
			Detail("malformed %s data", what).
			Value(n).
			Build()
	}
	return codec.Decode(out)
}
