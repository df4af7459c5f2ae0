package resolve

import (
	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
	"github.com/wippyai/cxxbridge/errors"
)

// Source provides the overload sets of one class. *catalog.Catalog
// implements it.
type Source interface {
	Class() string
	LookupAll(name string) []*catalog.Signature
}

// Match is a resolved call: the selected signature and the conversion
// applied to each argument.
type Match struct {
	Signature   *catalog.Signature
	Conversions []abi.Conversion
}

// Exact reports whether no argument needed a conversion.
func (m *Match) Exact() bool {
	for _, c := range m.Conversions {
		if c != abi.ConvExact {
			return false
		}
	}
	return true
}

// Widenings counts the widened arguments.
func (m *Match) Widenings() int {
	n := 0
	for _, c := range m.Conversions {
		if c == abi.ConvWiden {
			n++
		}
	}
	return n
}

// Resolve selects the unique overload of name accepting args.
//
// Candidates of a different arity are discarded. Each remaining candidate
// must accept every argument under the closed conversion table (exact match
// or integer widening). A single survivor wins. Among several survivors the
// only one needing no conversion wins; any other tie fails with
// AmbiguousOverload listing every tied candidate in registration order.
// No survivor fails with NoMatchingOverload.
func Resolve(src Source, name string, args []abi.Type) (*Match, error) {
	candidates := src.LookupAll(name)
	op := src.Class() + "::" + name
	call := name + "(" + abi.JoinTypes(args) + ")"

	var viable []*Match
	for _, sig := range candidates {
		if sig.Arity() != len(args) {
			continue
		}
		if m, ok := match(sig, args); ok {
			viable = append(viable, m)
		}
	}

	switch len(viable) {
	case 0:
		return nil, errors.NoMatchingOverload(op, call, prototypes(candidates))
	case 1:
		return viable[0], nil
	}

	var exact []*Match
	for _, m := range viable {
		if m.Exact() {
			exact = append(exact, m)
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}

	tied := viable
	if len(exact) > 1 {
		tied = exact
	}
	names := make([]string, len(tied))
	for i, m := range tied {
		names[i] = m.Signature.Prototype()
	}
	return nil, errors.AmbiguousOverload(op, call, names)
}

func match(sig *catalog.Signature, args []abi.Type) (*Match, bool) {
	convs := make([]abi.Conversion, len(args))
	for i, p := range sig.Params {
		c := abi.Convert(args[i], p.Type)
		if c == abi.ConvNone {
			return nil, false
		}
		convs[i] = c
	}
	return &Match{Signature: sig, Conversions: convs}, true
}

func prototypes(sigs []*catalog.Signature) []string {
	if len(sigs) == 0 {
		return nil
	}
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.Prototype()
	}
	return out
}
