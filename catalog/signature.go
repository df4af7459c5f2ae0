package catalog

import (
	"strings"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/mangle"
)

// Kind distinguishes ordinary methods from lifecycle members.
type Kind uint8

const (
	KindMethod Kind = iota
	KindConstructor
	KindDestructor
)

func (k Kind) String() string {
	switch k {
	case KindConstructor:
		return "constructor"
	case KindDestructor:
		return "destructor"
	}
	return "method"
}

// Signature is one native call shape: an operation name, an ordered parameter
// sequence and a result descriptor. Slot is the vtable slot of a virtual
// method and -1 otherwise.
type Signature struct {
	Params  []abi.Param
	Result  abi.Type
	Class   string
	Name    string
	Symbol  string
	Slot    int
	Kind    Kind
	Virtual bool
}

// Types returns the parameter descriptor sequence.
func (s *Signature) Types() []abi.Type {
	return abi.Types(s.Params)
}

// Arity is the number of parameters, not counting the receiver.
func (s *Signature) Arity() int {
	return len(s.Params)
}

// IsLifecycle reports whether s is a constructor or destructor.
// Lifecycle members are never dispatched to host overrides.
func (s *Signature) IsLifecycle() bool {
	return s.Kind != KindMethod
}

// Overridable reports whether a host object may replace s.
func (s *Signature) Overridable() bool {
	return s.Virtual && s.Kind == KindMethod
}

// Outputs returns the indices of parameters that are output channels.
func (s *Signature) Outputs() []int {
	var out []int
	for i, p := range s.Params {
		if p.Output() {
			out = append(out, i)
		}
	}
	return out
}

// Prototype renders the call shape, e.g. "foo(int*, int, int*)".
func (s *Signature) Prototype() string {
	return s.Name + "(" + abi.JoinTypes(s.Types()) + ")"
}

// String renders a declaration, e.g. "virtual int SampleClass::get_python_member()".
func (s *Signature) String() string {
	var b strings.Builder
	if s.Virtual {
		b.WriteString("virtual ")
	}
	if s.Kind == KindMethod {
		b.WriteString(s.Result.String())
		b.WriteByte(' ')
	}
	if s.Class != "" {
		b.WriteString(s.Class)
		b.WriteString("::")
	}
	b.WriteString(s.Name)
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (s *Signature) mangled() string {
	switch s.Kind {
	case KindConstructor:
		return mangle.Constructor(s.Class, s.Types())
	case KindDestructor:
		return mangle.Destructor(s.Class)
	}
	return mangle.Method(s.Class, s.Name, s.Types())
}

// Field is a declared data member of a native class.
type Field struct {
	Name string
	Type abi.Type
}
