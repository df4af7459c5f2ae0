package marshal

import (
	"reflect"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
)

// Named Go types for C++ types without a natural Go counterpart.
type (
	Char      int8   // char
	WChar     int32  // wchar_t
	LongLong  int64  // long long
	ULongLong uint64 // unsigned long long
)

// Object is implemented by Go values standing for live native objects.
// They cross the boundary as a pointer to their class.
type Object interface {
	ClassName() string
	Address() uint32
}

// Typed pairs a value with an explicit descriptor, bypassing inference.
// A nil Value with a pointer Type passes the null pointer.
type Typed struct {
	Value any
	Type  abi.Type
}

type constArg struct{ v any }

type refArg struct{ v any }

// Const marks the pointee of a pointer argument const: Const(&x) with x an
// int describes as "const int*". Const pointees are never copied back.
func Const(v any) any { return constArg{v} }

// Ref passes a pointer argument as a reference: Ref(&x) describes as "int&".
func Ref(v any) any { return refArg{v} }

var (
	typeChar      = reflect.TypeOf(Char(0))
	typeWChar     = reflect.TypeOf(WChar(0))
	typeLongLong  = reflect.TypeOf(LongLong(0))
	typeULongLong = reflect.TypeOf(ULongLong(0))
)

// scalarType maps a Go scalar type to its descriptor.
func scalarType(rt reflect.Type) (abi.Type, bool) {
	switch rt {
	case typeChar:
		return abi.Char, true
	case typeWChar:
		return abi.WChar, true
	case typeLongLong:
		return abi.LongLong, true
	case typeULongLong:
		return abi.ULongLong, true
	}
	switch rt.Kind() {
	case reflect.Bool:
		return abi.Bool, true
	case reflect.Int, reflect.Int32:
		return abi.Int, true
	case reflect.Int16:
		return abi.Short, true
	case reflect.Int8:
		return abi.SChar, true
	case reflect.Int64:
		return abi.Long, true
	case reflect.Uint, reflect.Uint32:
		return abi.UInt, true
	case reflect.Uint16:
		return abi.UShort, true
	case reflect.Uint8:
		return abi.UChar, true
	case reflect.Uint64:
		return abi.ULong, true
	case reflect.Float32:
		return abi.Float, true
	case reflect.Float64:
		return abi.Double, true
	}
	return abi.Type{}, false
}

// Describe returns the call-site descriptor of a Go argument.
func Describe(arg any) (abi.Type, error) {
	switch a := arg.(type) {
	case nil:
		return abi.Type{}, errors.InvalidInput(errors.PhaseMarshal, "cannot describe untyped nil; use Typed")
	case Typed:
		return a.Type, nil
	case Pointer:
		return a.Type, nil
	case constArg:
		t, err := Describe(a.v)
		if err != nil {
			return t, err
		}
		elem, ok := t.Pointee()
		if !ok {
			return abi.Type{}, errors.TypeMismatch(errors.PhaseMarshal, "pointer", a.v)
		}
		return rewrap(t, elem.AsConst()), nil
	case refArg:
		t, err := Describe(a.v)
		if err != nil {
			return t, err
		}
		elem, ok := t.Pointee()
		if !ok || t.Kind != abi.KindPointer {
			return abi.Type{}, errors.TypeMismatch(errors.PhaseMarshal, "pointer", a.v)
		}
		return elem.Ref(), nil
	case Object:
		return abi.Class(a.ClassName()).Ptr(), nil
	case string:
		return abi.Char.AsConst().Ptr(), nil
	}

	rt := reflect.TypeOf(arg)
	if t, ok := scalarType(rt); ok {
		return t, nil
	}
	switch rt.Kind() {
	case reflect.Pointer, reflect.Slice:
		if elem, ok := scalarType(rt.Elem()); ok {
			return elem.Ptr(), nil
		}
	}
	return abi.Type{}, errors.Unsupported(errors.PhaseMarshal, "argument of Go type "+rt.String())
}

// DescribeAll describes a whole argument list.
func DescribeAll(args []any) ([]abi.Type, error) {
	types := make([]abi.Type, len(args))
	for i, a := range args {
		t, err := Describe(a)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return types, nil
}

func rewrap(indirect, elem abi.Type) abi.Type {
	if indirect.Kind == abi.KindReference {
		return elem.Ref()
	}
	p := elem.Ptr()
	p.Const = indirect.Const
	return p
}

// unwrap strips Const, Ref and Typed wrappers down to the Go value.
func unwrap(arg any) any {
	for {
		switch a := arg.(type) {
		case constArg:
			arg = a.v
		case refArg:
			arg = a.v
		case Typed:
			arg = a.Value
		default:
			return arg
		}
	}
}
