package marshal

import (
	"bytes"
	"fmt"

	"github.com/wippyai/cxxbridge"
	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
)

// maxCString bounds CString scans over unterminated memory.
const maxCString = 1 << 20

// Pointer is a native pointer or reference lifted to Go. It stays valid
// only as long as the memory it points into.
type Pointer struct {
	mem   cxxbridge.Memory
	model abi.DataModel
	Type  abi.Type
	Addr  uint32
}

// NewPointer returns a pointer of type t at addr in mem.
func NewPointer(mem cxxbridge.Memory, m abi.DataModel, t abi.Type, addr uint32) Pointer {
	return Pointer{mem: mem, model: m, Type: t, Addr: addr}
}

// IsNull reports whether the pointer is null.
func (p Pointer) IsNull() bool { return p.Addr == 0 }

// Elem returns the pointee descriptor.
func (p Pointer) Elem() abi.Type {
	elem, _ := p.Type.Pointee()
	return elem
}

func (p Pointer) check() error {
	if p.mem == nil {
		return errors.InvalidInput(errors.PhaseMarshal, "pointer has no memory")
	}
	if p.IsNull() {
		return errors.InvalidInput(errors.PhaseMarshal, "null pointer dereference")
	}
	return nil
}

// Load reads the pointee.
func (p Pointer) Load() (any, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return ReadValue(p.mem, p.model, p.Addr, p.Elem())
}

// Store writes the pointee. Const pointees reject writes.
func (p Pointer) Store(v any) error {
	if err := p.check(); err != nil {
		return err
	}
	elem := p.Elem()
	if elem.Const {
		return errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
			Type(p.Type.String()).
			Detail("store through pointer to const").
			Build()
	}
	return WriteValue(p.mem, p.model, p.Addr, elem, v)
}

// Index returns the pointer i elements further on.
func (p Pointer) Index(i int) Pointer {
	q := p
	q.Addr = p.Addr + uint32(i)*p.model.SizeOf(p.Elem())
	return q
}

// CString reads a NUL-terminated string. Only char pointers qualify.
func (p Pointer) CString() (string, error) {
	elem := p.Elem()
	if elem.Kind != abi.KindChar && elem.Kind != abi.KindSChar && elem.Kind != abi.KindUChar {
		return "", errors.TypeMismatch(errors.PhaseMarshal, "char*", p.Type.String())
	}
	if err := p.check(); err != nil {
		return "", err
	}
	if sizer, ok := p.mem.(cxxbridge.MemorySizer); ok {
		return p.cstringSized(sizer.Size())
	}
	var buf []byte
	for i := uint32(0); i < maxCString; i++ {
		c, err := p.mem.ReadU8(p.Addr + i)
		if err != nil {
			return "", err
		}
		if c == 0 {
			return string(buf), nil
		}
		buf = append(buf, c)
	}
	return "", errors.New(errors.PhaseMarshal, errors.KindInvalidData).
		Detail("unterminated string at %#x", p.Addr).
		Build()
}

// cstringSized scans at most up to the end of a memory of size bytes.
func (p Pointer) cstringSized(size uint32) (string, error) {
	if p.Addr >= size {
		return "", errors.OutOfBounds(errors.PhaseMarshal, p.Addr, 1)
	}
	n := min(size-p.Addr, maxCString)
	data, err := p.mem.Read(p.Addr, n)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return string(data[:i]), nil
	}
	return "", errors.New(errors.PhaseMarshal, errors.KindInvalidData).
		Detail("unterminated string at %#x", p.Addr).
		Build()
}

func (p Pointer) String() string {
	return fmt.Sprintf("(%s)%#x", p.Type, p.Addr)
}
