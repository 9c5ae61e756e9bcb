package marshal

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/wippyai/ecsact-runtime/errors"
)

// Codec converts between a Go value and the fixed-size native layout of one
// component or action type.
type Codec interface {
	// Size is the native size in bytes.
	Size() int

	// Encode writes v into dst, which is at least Size() bytes.
	Encode(v any, dst []byte) error

	// Decode reads a value from src, which is at least Size() bytes.
	Decode(src []byte) (any, error)
}

// Struct is the codec for a Go type whose memory layout already matches C:
// fixed-size numbers, bools, arrays and structs of those. The zero value is
// ready to use; NewStruct additionally validates T.
type Struct[T any] struct{}

// NewStruct returns a Struct codec, rejecting types that hold Go pointers.
func NewStruct[T any]() (Struct[T], error) {
	t := reflect.TypeFor[T]()
	if path, ok := plainLayout(t); !ok {
		return Struct[T]{}, errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
			Detail("%s is not a plain C layout (%s)", t, path).
			Build()
	}
	return Struct[T]{}, nil
}

func (Struct[T]) Size() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func (c Struct[T]) Encode(v any, dst []byte) error {
	n := c.Size()
	if len(dst) < n {
		return errors.OutOfBounds(errors.PhaseMarshal, reflect.TypeFor[T]().String(), n, len(dst))
	}
	var p *T
	switch x := v.(type) {
	case T:
		p = &x
	case *T:
		if x == nil {
			return errors.InvalidInput(errors.PhaseMarshal, "nil "+reflect.TypeFor[*T]().String())
		}
		p = x
	case []byte:
		if len(x) < n {
			return errors.OutOfBounds(errors.PhaseMarshal, "raw value", n, len(x))
		}
		copy(dst, x[:n])
		return nil
	default:
		return errors.TypeMismatch(errors.PhaseMarshal, "", reflect.TypeFor[T]().String(), fmt.Sprintf("%T", v))
	}
	if n > 0 {
		copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
	}
	return nil
}

func (c Struct[T]) Decode(src []byte) (any, error) {
	var v T
	n := c.Size()
	if len(src) < n {
		return v, errors.OutOfBounds(errors.PhaseMarshal, reflect.TypeFor[T]().String(), n, len(src))
	}
	if n > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), n), src)
	}
	return v, nil
}

// Raw passes bytes through unchanged. It is the codec used for ids no Go
// type was registered for.
type Raw struct {
	N int
}

func (r Raw) Size() int { return r.N }

func (r Raw) Encode(v any, dst []byte) error {
	b, ok := v.([]byte)
	if !ok {
		return errors.TypeMismatch(errors.PhaseMarshal, "", "[]byte", fmt.Sprintf("%T", v))
	}
	if len(b) < r.N {
		return errors.OutOfBounds(errors.PhaseMarshal, "raw value", r.N, len(b))
	}
	if len(dst) < r.N {
		return errors.OutOfBounds(errors.PhaseMarshal, "destination", r.N, len(dst))
	}
	copy(dst, b[:r.N])
	return nil
}

func (r Raw) Decode(src []byte) (any, error) {
	if len(src) < r.N {
		return nil, errors.OutOfBounds(errors.PhaseMarshal, "raw value", r.N, len(src))
	}
	out := make([]byte, r.N)
	copy(out, src)
	return out, nil
}

// Encode writes v through c into pinned arena memory and returns its address.
func Encode(a *Arena, c Codec, v any) (unsafe.Pointer, error) {
	buf := a.Bytes(c.Size())
	if err := c.Encode(v, buf); err != nil {
		return nil, err
	}
	return Pointer(buf), nil
}

// DecodeAt decodes the value native code left at p.
func DecodeAt(c Codec, p unsafe.Pointer) (any, error) {
	n := c.Size()
	if p == nil {
		if n == 0 {
			return c.Decode(nil)
		}
		return nil, errors.InvalidInput(errors.PhaseMarshal, "nil data pointer")
	}
	return c.Decode(unsafe.Slice((*byte)(p), n))
}

func plainLayout(t reflect.Type) (string, bool) {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "", true
	case reflect.Array:
		if path, ok := plainLayout(t.Elem()); !ok {
			return "[]" + path, false
		}
		return "", true
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if path, ok := plainLayout(f.Type); !ok {
				if path == "" {
					return f.Name, false
				}
				return f.Name + "." + path, false
			}
		}
		return "", true
	}
	return t.Kind().String(), false
}
