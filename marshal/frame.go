package marshal

import (
	"reflect"

	"github.com/wippyai/cxxbridge"
	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
)

// Frame is a lowered argument list. Params holds one raw slot per
// parameter. Scratch memory for pointer arguments stays allocated until
// Finish or Release.
type Frame struct {
	mem     cxxbridge.Memory
	alloc   cxxbridge.Allocator
	outs    []output
	scratch []scratchBlock
	Params  []uint64
	model   abi.DataModel
	done    bool
}

// output is a scratch slot copied back into a Go destination after the call.
type output struct {
	dst  reflect.Value
	elem abi.Type
	addr uint32
}

type scratchBlock struct {
	ptr, size, align uint32
}

// Lower converts args to raw slots for the given parameter types. Integer
// arguments are widened to their parameter types. Go pointers and slices are
// copied into scratch memory and, unless the pointee is const, copied back
// by Finish.
func Lower(mem cxxbridge.Memory, alloc cxxbridge.Allocator, m abi.DataModel, params []abi.Type, args []any) (*Frame, error) {
	if len(params) != len(args) {
		return nil, errors.New(errors.PhaseMarshal, errors.KindInvalidInput).
			Detail("%d arguments for %d parameters", len(args), len(params)).
			Build()
	}
	f := &Frame{mem: mem, alloc: alloc, model: m, Params: make([]uint64, len(params))}
	for i, t := range params {
		raw, err := f.lower(t, args[i])
		if err != nil {
			f.Release()
			return nil, errors.New(errors.PhaseMarshal, kindOf(err)).
				Type(t.String()).
				Cause(err).
				Detail("argument %d", i).
				Build()
		}
		f.Params[i] = raw
	}
	return f, nil
}

func kindOf(err error) errors.Kind {
	if e, ok := errors.AsError(err); ok {
		return e.Kind
	}
	return errors.KindInvalidInput
}

func (f *Frame) lower(t abi.Type, arg any) (uint64, error) {
	v := unwrap(arg)
	switch {
	case t.Kind == abi.KindVoid:
		return 0, errors.InvalidInput(errors.PhaseMarshal, "void parameter")
	case t.Kind == abi.KindClass:
		return 0, errors.Unsupported(errors.PhaseMarshal, "class "+t.Name+" by value")
	case !t.IsIndirect():
		if v == nil {
			return 0, errors.TypeMismatch(errors.PhaseMarshal, t.String(), v)
		}
		return lowerScalar(f.model, t, reflect.ValueOf(v))
	}

	elem, _ := t.Pointee()
	switch a := v.(type) {
	case nil, Pointer, Object:
		if o, ok := a.(Object); ok && !isNil(o) && elem.Kind != abi.KindClass {
			return 0, errors.TypeMismatch(errors.PhaseMarshal, t.String(), o.ClassName()+"*")
		}
		return encodeAddress(t, a)
	case string:
		return f.lowerString(t, elem, a)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return encodeAddress(t, nil)
		}
		return f.lowerBuffer(elem, rv.Elem(), 1, func(int) reflect.Value { return rv.Elem() })
	case reflect.Slice:
		n := rv.Len()
		if n == 0 {
			return encodeAddress(t, nil)
		}
		return f.lowerBuffer(elem, rv.Index(0), n, rv.Index)
	}
	return 0, errors.TypeMismatch(errors.PhaseMarshal, t.String(), v)
}

func (f *Frame) lowerString(t, elem abi.Type, s string) (uint64, error) {
	if !t.IsCString() || !elem.Const {
		return 0, errors.TypeMismatch(errors.PhaseMarshal, t.String(), s)
	}
	size := uint32(len(s)) + 1
	ptr, err := f.allocate(size, 1)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, size)
	copy(buf, s)
	if err := f.mem.Write(ptr, buf); err != nil {
		return 0, err
	}
	return uint64(ptr), nil
}

// lowerBuffer copies n Go elements into scratch memory laid out as elem[n].
func (f *Frame) lowerBuffer(elem abi.Type, first reflect.Value, n int, at func(int) reflect.Value) (uint64, error) {
	if _, ok := scalarType(first.Type()); !ok || elem.IsIndirect() || elem.Kind == abi.KindClass {
		return 0, errors.Unsupported(errors.PhaseMarshal, "pointer to "+elem.String()+" from Go "+first.Type().String())
	}

	size := f.model.SizeOf(elem)
	align := f.model.AlignOf(elem)
	ptr, err := f.allocate(size*uint32(n), align)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		addr := ptr + uint32(i)*size
		src := at(i)
		raw, err := lowerScalar(f.model, elem.Unqualified(), src)
		if err != nil {
			return 0, err
		}
		if err := writeRaw(f.mem, addr, size, raw); err != nil {
			return 0, err
		}
		if !elem.Const && src.CanSet() {
			f.outs = append(f.outs, output{dst: src, elem: elem, addr: addr})
		}
	}
	return uint64(ptr), nil
}

func (f *Frame) allocate(size, align uint32) (uint32, error) {
	if f.alloc == nil {
		return 0, errors.InvalidInput(errors.PhaseMarshal, "no allocator for scratch memory")
	}
	ptr, err := f.alloc.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	f.scratch = append(f.scratch, scratchBlock{ptr: ptr, size: size, align: align})
	return ptr, nil
}

// Outputs returns the number of Go values Finish will write back.
func (f *Frame) Outputs() int { return len(f.outs) }

// Finish copies output channels back into their Go destinations and frees
// scratch memory. Later calls do nothing.
func (f *Frame) Finish() error {
	if f.done {
		return nil
	}
	defer f.Release()
	for _, o := range f.outs {
		v, err := ReadValue(f.mem, f.model, o.addr, o.elem.Unqualified())
		if err != nil {
			return err
		}
		if err := assign(o.dst, v); err != nil {
			return err
		}
	}
	return nil
}

// Release frees scratch memory without copying anything back.
func (f *Frame) Release() {
	if f.done {
		return
	}
	f.done = true
	for i := len(f.scratch) - 1; i >= 0; i-- {
		b := f.scratch[i]
		f.alloc.Free(b.ptr, b.size, b.align)
	}
	f.scratch = nil
	f.outs = nil
}
