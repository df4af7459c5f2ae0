package abi

import "github.com/wippyai/cxxbridge/errors"

// DataModel fixes the sizes of the C++ fundamental types on a target.
type DataModel struct {
	Name       string
	LongSize   uint32
	PtrSize    uint32
	WCharSize  uint32
	LongDouble uint32
}

// Supported data models.
var (
	// ILP32 is wasm32: int, long and pointers are 32 bits.
	ILP32 = DataModel{Name: "ilp32", LongSize: 4, PtrSize: 4, WCharSize: 4, LongDouble: 16}
	// LP64 is the common 64-bit Unix model.
	LP64 = DataModel{Name: "lp64", LongSize: 8, PtrSize: 8, WCharSize: 4, LongDouble: 16}
)

func (m DataModel) String() string {
	return m.Name
}

// SizeOf returns the storage size of t. Classes by value and void report 0.
func (m DataModel) SizeOf(t Type) uint32 {
	switch t.Kind {
	case KindBool, KindChar, KindSChar, KindUChar:
		return 1
	case KindShort, KindUShort:
		return 2
	case KindInt, KindUInt, KindFloat:
		return 4
	case KindWChar:
		return m.WCharSize
	case KindLong, KindULong:
		return m.LongSize
	case KindLongLong, KindULongLong, KindDouble:
		return 8
	case KindLongDouble:
		return m.LongDouble
	case KindPointer, KindReference:
		return m.PtrSize
	}
	return 0
}

// AlignOf returns the natural alignment of t.
func (m DataModel) AlignOf(t Type) uint32 {
	return m.SizeOf(t)
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// Layout is the storage layout of a record.
type Layout struct {
	Offsets []uint32
	Size    uint32
	Align   uint32
}

// LayoutFields computes the C layout of a record whose data members have the
// given types, in declaration order. Every record is at least one byte.
func LayoutFields(m DataModel, fields []Type) (Layout, error) {
	l := Layout{Offsets: make([]uint32, len(fields)), Align: 1}
	var offset uint32
	for i, f := range fields {
		size := m.SizeOf(f)
		if size == 0 {
			return Layout{}, errors.Unsupported(errors.PhaseCatalog, "field of type "+f.String())
		}
		align := m.AlignOf(f)
		offset = AlignTo(offset, align)
		l.Offsets[i] = offset
		offset += size
		if align > l.Align {
			l.Align = align
		}
	}
	l.Size = AlignTo(offset, l.Align)
	if l.Size == 0 {
		l.Size = 1
	}
	return l, nil
}
