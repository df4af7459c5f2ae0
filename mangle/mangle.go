package mangle

import (
	"strconv"
	"strings"

	"github.com/wippyai/cxxbridge/abi"
)

// Special marks symbols that do not name an ordinary function.
type Special uint8

const (
	SpecialNone Special = iota
	SpecialConstructor
	SpecialDestructor
	SpecialVTable
)

func (s Special) String() string {
	switch s {
	case SpecialConstructor:
		return "constructor"
	case SpecialDestructor:
		return "destructor"
	case SpecialVTable:
		return "vtable"
	}
	return "function"
}

// Symbol is the decoded form of a mangled name.
type Symbol struct {
	Scope   []string
	Name    string
	Params  []abi.Type
	Special Special
}

// Qualified returns the scope and name joined with "::".
func (s Symbol) Qualified() string {
	if len(s.Scope) == 0 {
		return s.Name
	}
	return strings.Join(s.Scope, "::") + "::" + s.Name
}

// String renders the symbol the way c++filt does.
func (s Symbol) String() string {
	if s.Special == SpecialVTable {
		return "vtable for " + s.Qualified()
	}
	return s.Qualified() + "(" + abi.JoinTypes(s.Params) + ")"
}

var builtinCodes = map[abi.Kind]byte{
	abi.KindVoid:       'v',
	abi.KindWChar:      'w',
	abi.KindBool:       'b',
	abi.KindChar:       'c',
	abi.KindSChar:      'a',
	abi.KindUChar:      'h',
	abi.KindShort:      's',
	abi.KindUShort:     't',
	abi.KindInt:        'i',
	abi.KindUInt:       'j',
	abi.KindLong:       'l',
	abi.KindULong:      'm',
	abi.KindLongLong:   'x',
	abi.KindULongLong:  'y',
	abi.KindFloat:      'f',
	abi.KindDouble:     'd',
	abi.KindLongDouble: 'e',
}

// Function mangles a free function. A qualified name ("ns::f") is nested.
func Function(name string, params []abi.Type) string {
	parts := splitName(name)
	return Mangle(Symbol{Scope: parts[:len(parts)-1], Name: parts[len(parts)-1], Params: params})
}

// Method mangles a member function of class.
func Method(class, name string, params []abi.Type) string {
	return Mangle(Symbol{Scope: splitName(class), Name: name, Params: params})
}

// Constructor mangles the complete object constructor of class.
func Constructor(class string, params []abi.Type) string {
	scope := splitName(class)
	return Mangle(Symbol{Scope: scope, Name: scope[len(scope)-1], Params: params, Special: SpecialConstructor})
}

// Destructor mangles the complete object destructor of class.
func Destructor(class string) string {
	scope := splitName(class)
	return Mangle(Symbol{Scope: scope, Name: "~" + scope[len(scope)-1], Special: SpecialDestructor})
}

// VTable mangles the virtual table of class.
func VTable(class string) string {
	return (&encoder{}).vtable(class)
}

// Mangle encodes sym following the Itanium C++ ABI.
// Top-level const on by-value parameters is not part of the encoding.
func Mangle(sym Symbol) string {
	e := &encoder{}
	if sym.Special == SpecialVTable {
		return e.vtable(sym.Qualified())
	}

	e.b.WriteString("_Z")
	nested := len(sym.Scope) > 0
	if nested {
		e.b.WriteByte('N')
		for i, part := range sym.Scope {
			e.source(part)
			e.add(strings.Join(sym.Scope[:i+1], "::"))
		}
	}
	switch sym.Special {
	case SpecialConstructor:
		e.b.WriteString("C1")
	case SpecialDestructor:
		e.b.WriteString("D1")
	default:
		e.source(sym.Name)
	}
	if nested {
		e.b.WriteByte('E')
	}

	if len(sym.Params) == 0 {
		e.b.WriteByte('v')
		return e.b.String()
	}
	for _, p := range sym.Params {
		e.typ(p.Unqualified())
	}
	return e.b.String()
}

// SubstitutionRef returns the reference to the i-th substitution candidate:
// S_, S0_, S1_, ... with the sequence number in upper-case base 36.
func SubstitutionRef(i int) string {
	if i == 0 {
		return "S_"
	}
	return "S" + strings.ToUpper(strconv.FormatInt(int64(i-1), 36)) + "_"
}

type encoder struct {
	b    strings.Builder
	subs []string
}

func (e *encoder) find(key string) int {
	for i, s := range e.subs {
		if s == key {
			return i
		}
	}
	return -1
}

func (e *encoder) add(key string) {
	e.subs = append(e.subs, key)
}

func (e *encoder) source(name string) {
	e.b.WriteString(strconv.Itoa(len(name)))
	e.b.WriteString(name)
}

func (e *encoder) vtable(class string) string {
	e.b.WriteString("_ZTV")
	e.className(class)
	return e.b.String()
}

func (e *encoder) typ(t abi.Type) {
	if t.Kind.IsBuiltin() && !t.Const {
		e.b.WriteByte(builtinCodes[t.Kind])
		return
	}

	key := t.String()
	if i := e.find(key); i >= 0 {
		e.b.WriteString(SubstitutionRef(i))
		return
	}

	switch {
	case t.Const:
		e.b.WriteByte('K')
		e.typ(t.Unqualified())
	case t.Kind == abi.KindPointer:
		e.b.WriteByte('P')
		e.typ(*t.Elem)
	case t.Kind == abi.KindReference:
		e.b.WriteByte('R')
		e.typ(*t.Elem)
	case t.Kind == abi.KindClass:
		// className registers the name itself
		e.className(t.Name)
		return
	}
	e.add(key)
}

// className encodes a possibly qualified class name, reusing the longest
// prefix already in the substitution table.
func (e *encoder) className(name string) {
	if i := e.find(name); i >= 0 {
		e.b.WriteString(SubstitutionRef(i))
		return
	}
	parts := splitName(name)
	if len(parts) == 1 {
		e.source(name)
		e.add(name)
		return
	}

	e.b.WriteByte('N')
	start := 0
	for k := len(parts) - 1; k > 0; k-- {
		if i := e.find(strings.Join(parts[:k], "::")); i >= 0 {
			e.b.WriteString(SubstitutionRef(i))
			start = k
			break
		}
	}
	for i := start; i < len(parts); i++ {
		e.source(parts[i])
		e.add(strings.Join(parts[:i+1], "::"))
	}
	e.b.WriteByte('E')
}

func splitName(name string) []string {
	return strings.Split(name, "::")
}
