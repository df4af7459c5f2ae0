package abi

import "strings"

// Kind is the underlying value kind of a parameter descriptor.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindWChar
	KindChar
	KindSChar
	KindUChar
	KindShort
	KindUShort
	KindInt
	KindUInt
	KindLong
	KindULong
	KindLongLong
	KindULongLong
	KindFloat
	KindDouble
	KindLongDouble
	KindClass
	KindPointer
	KindReference
)

var kindNames = [...]string{
	KindVoid:       "void",
	KindBool:       "bool",
	KindWChar:      "wchar_t",
	KindChar:       "char",
	KindSChar:      "signed char",
	KindUChar:      "unsigned char",
	KindShort:      "short",
	KindUShort:     "unsigned short",
	KindInt:        "int",
	KindUInt:       "unsigned int",
	KindLong:       "long",
	KindULong:      "unsigned long",
	KindLongLong:   "long long",
	KindULongLong:  "unsigned long long",
	KindFloat:      "float",
	KindDouble:     "double",
	KindLongDouble: "long double",
	KindClass:      "class",
	KindPointer:    "pointer",
	KindReference:  "reference",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// IsBuiltin reports whether k is a fundamental type.
func (k Kind) IsBuiltin() bool {
	return k <= KindLongDouble
}

// IsIntegral reports whether k takes part in integer widening.
// bool and wchar_t are excluded: they only ever match exactly.
func (k Kind) IsIntegral() bool {
	return k >= KindChar && k <= KindULongLong
}

// IsSigned reports whether an integral kind is signed. Plain char is signed.
func (k Kind) IsSigned() bool {
	switch k {
	case KindChar, KindSChar, KindShort, KindInt, KindLong, KindLongLong:
		return true
	}
	return false
}

// IsFloat reports whether k is a floating point kind.
func (k Kind) IsFloat() bool {
	return k >= KindFloat && k <= KindLongDouble
}

// Rank is the C++ integer conversion rank of an integral kind, 0 otherwise.
func (k Kind) Rank() int {
	switch k {
	case KindChar, KindSChar, KindUChar:
		return 1
	case KindShort, KindUShort:
		return 2
	case KindInt, KindUInt:
		return 3
	case KindLong, KindULong:
		return 4
	case KindLongLong, KindULongLong:
		return 5
	}
	return 0
}

// Type describes one value kind together with its qualification and
// indirection. Elem is set for pointers and references; Const qualifies the
// type at its own level, so "const int*" is a pointer to a const int.
type Type struct {
	Elem  *Type
	Name  string
	Kind  Kind
	Const bool
}

// Fundamental types.
var (
	Void       = Type{Kind: KindVoid}
	Bool       = Type{Kind: KindBool}
	WChar      = Type{Kind: KindWChar}
	Char       = Type{Kind: KindChar}
	SChar      = Type{Kind: KindSChar}
	UChar      = Type{Kind: KindUChar}
	Short      = Type{Kind: KindShort}
	UShort     = Type{Kind: KindUShort}
	Int        = Type{Kind: KindInt}
	UInt       = Type{Kind: KindUInt}
	Long       = Type{Kind: KindLong}
	ULong      = Type{Kind: KindULong}
	LongLong   = Type{Kind: KindLongLong}
	ULongLong  = Type{Kind: KindULongLong}
	Float      = Type{Kind: KindFloat}
	Double     = Type{Kind: KindDouble}
	LongDouble = Type{Kind: KindLongDouble}
)

// Class returns the by-value type of a named record. Qualified names use "::".
func Class(name string) Type {
	return Type{Kind: KindClass, Name: name}
}

// Ptr returns a pointer to t.
func (t Type) Ptr() Type {
	elem := t
	return Type{Kind: KindPointer, Elem: &elem}
}

// Ref returns a reference to t.
func (t Type) Ref() Type {
	elem := t
	return Type{Kind: KindReference, Elem: &elem}
}

// AsConst returns t const-qualified at its own level.
// Int.AsConst().Ptr() is "const int*"; Int.Ptr().AsConst() is "int* const".
func (t Type) AsConst() Type {
	t.Const = true
	return t
}

// Unqualified returns t without its top-level const.
func (t Type) Unqualified() Type {
	t.Const = false
	return t
}

// IsIndirect reports whether t is a pointer or a reference.
func (t Type) IsIndirect() bool {
	return t.Kind == KindPointer || t.Kind == KindReference
}

// Pointee returns the element type of a pointer or reference.
func (t Type) Pointee() (Type, bool) {
	if !t.IsIndirect() || t.Elem == nil {
		return Type{}, false
	}
	return *t.Elem, true
}

// IsOutput reports whether a parameter of type t can mutate caller state:
// a pointer or reference to a non-const pointee.
func (t Type) IsOutput() bool {
	elem, ok := t.Pointee()
	return ok && !elem.Const
}

// IsCString reports whether t is a pointer to (possibly const) char.
func (t Type) IsCString() bool {
	elem, ok := t.Pointee()
	return ok && t.Kind == KindPointer && elem.Kind == KindChar
}

// Depth returns the indirection level of t.
func (t Type) Depth() int {
	n := 0
	for t.IsIndirect() && t.Elem != nil {
		n++
		t = *t.Elem
	}
	return n
}

// Base returns the innermost non-indirect type.
func (t Type) Base() Type {
	for t.IsIndirect() && t.Elem != nil {
		t = *t.Elem
	}
	return t
}

// Equal reports whether a and b are equivalent descriptors: kind, class name,
// constness and the whole indirection chain must match exactly.
func Equal(a, b Type) bool {
	for {
		if a.Kind != b.Kind || a.Const != b.Const || a.Name != b.Name {
			return false
		}
		if !a.IsIndirect() {
			return true
		}
		if a.Elem == nil || b.Elem == nil {
			return a.Elem == b.Elem
		}
		a, b = *a.Elem, *b.Elem
	}
}

// EqualAll reports whether two descriptor sequences are pairwise equivalent.
func EqualAll(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// String renders the canonical C++ spelling of t, e.g. "const int*".
func (t Type) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Type) write(b *strings.Builder) {
	switch t.Kind {
	case KindPointer, KindReference:
		if t.Elem == nil {
			b.WriteString("void")
		} else {
			t.Elem.write(b)
		}
		if t.Kind == KindPointer {
			b.WriteByte('*')
		} else {
			b.WriteByte('&')
		}
		if t.Const {
			b.WriteString(" const")
		}
	case KindClass:
		if t.Const {
			b.WriteString("const ")
		}
		b.WriteString(t.Name)
	default:
		if t.Const {
			b.WriteString("const ")
		}
		b.WriteString(t.Kind.String())
	}
}

// Param is a formal parameter descriptor.
type Param struct {
	Name string
	Type Type
}

// Output reports whether the parameter is an output channel.
func (p Param) Output() bool {
	return p.Type.IsOutput()
}

// String renders the parameter as it would appear in a declaration.
func (p Param) String() string {
	if p.Name == "" {
		return p.Type.String()
	}
	return p.Type.String() + " " + p.Name
}

// Params wraps bare types into unnamed parameters.
func Params(types ...Type) []Param {
	params := make([]Param, len(types))
	for i, t := range types {
		params[i] = Param{Type: t}
	}
	return params
}

// Types extracts the descriptor sequence of a parameter list.
func Types(params []Param) []Type {
	types := make([]Type, len(params))
	for i, p := range params {
		types[i] = p.Type
	}
	return types
}

// JoinTypes renders a descriptor sequence as a comma separated list.
func JoinTypes(types []Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
