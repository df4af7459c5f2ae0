package marshal

import (
	"fmt"
	"math"
	"reflect"

	"github.com/wippyai/cxxbridge"
	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
)

// Encode converts a Go value to the raw slot of type t. Pointers accept a
// Pointer, an Object or nil.
func Encode(m abi.DataModel, t abi.Type, v any) (uint64, error) {
	v = unwrap(v)
	switch {
	case t.Kind == abi.KindVoid:
		if v != nil {
			return 0, errors.TypeMismatch(errors.PhaseMarshal, "void", v)
		}
		return 0, nil
	case t.IsIndirect():
		return encodeAddress(t, v)
	case t.Kind == abi.KindClass:
		return 0, errors.Unsupported(errors.PhaseMarshal, "class "+t.Name+" by value")
	}
	if v == nil {
		return 0, errors.TypeMismatch(errors.PhaseMarshal, t.String(), v)
	}
	return lowerScalar(m, t, reflect.ValueOf(v))
}

func encodeAddress(t abi.Type, v any) (uint64, error) {
	switch a := v.(type) {
	case nil:
		if t.Kind == abi.KindReference {
			return 0, errors.InvalidInput(errors.PhaseMarshal, "null reference for "+t.String())
		}
		return 0, nil
	case Pointer:
		return uint64(a.Addr), nil
	case Object:
		if isNil(a) {
			return encodeAddress(t, nil)
		}
		return uint64(a.Address()), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return encodeAddress(t, nil)
	}
	return 0, errors.TypeMismatch(errors.PhaseMarshal, t.String(), v)
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// lowerScalar converts a Go scalar to the canonical raw slot for t: the
// value's bytes zero-extended from the native size.
func lowerScalar(m abi.DataModel, t abi.Type, v reflect.Value) (uint64, error) {
	size := m.SizeOf(t)
	switch {
	case t.Kind == abi.KindBool:
		if v.Kind() != reflect.Bool {
			return 0, errors.TypeMismatch(errors.PhaseMarshal, t.String(), v.Interface())
		}
		if v.Bool() {
			return 1, nil
		}
		return 0, nil

	case t.Kind == abi.KindFloat:
		if !v.CanFloat() {
			return 0, errors.TypeMismatch(errors.PhaseMarshal, t.String(), v.Interface())
		}
		return uint64(math.Float32bits(float32(v.Float()))), nil

	case t.Kind == abi.KindDouble:
		if !v.CanFloat() {
			return 0, errors.TypeMismatch(errors.PhaseMarshal, t.String(), v.Interface())
		}
		return math.Float64bits(v.Float()), nil

	case t.Kind == abi.KindLongDouble:
		return 0, errors.Unsupported(errors.PhaseMarshal, "long double values")

	case t.Kind.IsIntegral() || t.Kind == abi.KindWChar:
		signed := t.Kind.IsSigned() || t.Kind == abi.KindWChar
		bits := size * 8
		switch {
		case v.CanInt():
			n := v.Int()
			if signed {
				if bits < 64 && (n < -(1<<(bits-1)) || n >= 1<<(bits-1)) {
					return 0, overflow(t, n)
				}
			} else if n < 0 || (bits < 64 && n >= 1<<bits) {
				return 0, overflow(t, n)
			}
			return mask(uint64(n), size), nil
		case v.CanUint():
			n := v.Uint()
			limit := uint64(math.MaxUint64)
			if signed {
				limit = 1<<(bits-1) - 1
			} else if bits < 64 {
				limit = 1<<bits - 1
			}
			if n > limit {
				return 0, overflow(t, n)
			}
			return n, nil
		}
	}
	return 0, errors.TypeMismatch(errors.PhaseMarshal, t.String(), v.Interface())
}

func overflow(t abi.Type, v any) error {
	return errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
		Type(t.String()).
		Value(v).
		Detail("value %v overflows %s", v, t).
		Build()
}

func mask(raw uint64, size uint32) uint64 {
	if size >= 8 {
		return raw
	}
	return raw & (1<<(size*8) - 1)
}

func signExtend(raw uint64, size uint32) int64 {
	if size >= 8 {
		return int64(raw)
	}
	shift := 64 - size*8
	return int64(raw<<shift) >> shift
}

// Lift converts a raw native value of type t to Go. Scalars lift to the Go
// type Describe maps back to t; pointers and references lift to Pointer.
func Lift(mem cxxbridge.Memory, m abi.DataModel, t abi.Type, raw uint64) (any, error) {
	if t.IsIndirect() {
		return Pointer{mem: mem, model: m, Type: t, Addr: uint32(raw)}, nil
	}
	size := m.SizeOf(t)
	switch t.Kind {
	case abi.KindVoid:
		return nil, nil
	case abi.KindBool:
		return raw&0xff != 0, nil
	case abi.KindChar:
		return Char(signExtend(raw, 1)), nil
	case abi.KindSChar:
		return int8(signExtend(raw, 1)), nil
	case abi.KindUChar:
		return uint8(raw), nil
	case abi.KindShort:
		return int16(signExtend(raw, 2)), nil
	case abi.KindUShort:
		return uint16(raw), nil
	case abi.KindInt:
		return int(signExtend(raw, 4)), nil
	case abi.KindUInt:
		return uint(uint32(raw)), nil
	case abi.KindWChar:
		return WChar(signExtend(raw, size)), nil
	case abi.KindLong:
		return signExtend(raw, size), nil
	case abi.KindULong:
		return mask(raw, size), nil
	case abi.KindLongLong:
		return LongLong(raw), nil
	case abi.KindULongLong:
		return ULongLong(raw), nil
	case abi.KindFloat:
		return math.Float32frombits(uint32(raw)), nil
	case abi.KindDouble:
		return math.Float64frombits(raw), nil
	}
	return nil, errors.Unsupported(errors.PhaseMarshal, "lifting "+t.String())
}

// ReadValue reads a value of type t stored at addr.
func ReadValue(mem cxxbridge.Memory, m abi.DataModel, addr uint32, t abi.Type) (any, error) {
	raw, err := readRaw(mem, addr, m.SizeOf(t))
	if err != nil {
		return nil, err
	}
	return Lift(mem, m, t, raw)
}

// WriteValue stores v as type t at addr.
func WriteValue(mem cxxbridge.Memory, m abi.DataModel, addr uint32, t abi.Type, v any) error {
	raw, err := Encode(m, t.Unqualified(), v)
	if err != nil {
		return err
	}
	return writeRaw(mem, addr, m.SizeOf(t), raw)
}

func readRaw(mem cxxbridge.Memory, addr, size uint32) (uint64, error) {
	switch size {
	case 1:
		v, err := mem.ReadU8(addr)
		return uint64(v), err
	case 2:
		v, err := mem.ReadU16(addr)
		return uint64(v), err
	case 4:
		v, err := mem.ReadU32(addr)
		return uint64(v), err
	case 8:
		return mem.ReadU64(addr)
	}
	return 0, errors.Unsupported(errors.PhaseMarshal, fmt.Sprintf("%d-byte memory values", size))
}

func writeRaw(mem cxxbridge.Memory, addr, size uint32, raw uint64) error {
	switch size {
	case 1:
		return mem.WriteU8(addr, uint8(raw))
	case 2:
		return mem.WriteU16(addr, uint16(raw))
	case 4:
		return mem.WriteU32(addr, uint32(raw))
	case 8:
		return mem.WriteU64(addr, raw)
	}
	return errors.Unsupported(errors.PhaseMarshal, fmt.Sprintf("%d-byte memory values", size))
}

// assign stores a lifted value into a Go destination, converting between
// numeric kinds.
func assign(dst reflect.Value, v any) error {
	src := reflect.ValueOf(v)
	if !src.Type().ConvertibleTo(dst.Type()) {
		return errors.TypeMismatch(errors.PhaseMarshal, dst.Type().String(), v)
	}
	dst.Set(src.Convert(dst.Type()))
	return nil
}
