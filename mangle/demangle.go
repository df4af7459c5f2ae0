package mangle

import (
	"strings"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
)

var builtinTypes = func() map[byte]abi.Type {
	m := make(map[byte]abi.Type, len(builtinCodes))
	for k, c := range builtinCodes {
		m[c] = abi.Type{Kind: k}
	}
	return m
}()

// IsMangled reports whether name looks like an Itanium mangled symbol.
func IsMangled(name string) bool {
	return strings.HasPrefix(name, "_Z")
}

// Demangle decodes an Itanium mangled symbol produced for a plain function,
// member function, constructor, destructor or vtable.
func Demangle(symbol string) (Symbol, error) {
	if !IsMangled(symbol) {
		return Symbol{}, demangleError(symbol, "missing _Z prefix")
	}
	d := &decoder{sym: symbol, s: symbol[2:]}

	if strings.HasPrefix(d.s, "TV") {
		d.pos = 2
		t, err := d.typ()
		if err != nil {
			return Symbol{}, err
		}
		if t.Kind != abi.KindClass || d.pos != len(d.s) {
			return Symbol{}, d.fail("malformed vtable name")
		}
		parts := splitName(t.Name)
		return Symbol{Scope: parts[:len(parts)-1], Name: parts[len(parts)-1], Special: SpecialVTable}, nil
	}

	sym, err := d.name()
	if err != nil {
		return Symbol{}, err
	}
	if d.pos == len(d.s) {
		return Symbol{}, d.fail("missing parameter list")
	}
	if d.s[d.pos:] == "v" {
		return sym, nil
	}
	for d.pos < len(d.s) {
		t, err := d.typ()
		if err != nil {
			return Symbol{}, err
		}
		sym.Params = append(sym.Params, t)
	}
	return sym, nil
}

// DemangleString returns the readable form of symbol, or symbol itself when
// it cannot be decoded.
func DemangleString(symbol string) string {
	sym, err := Demangle(symbol)
	if err != nil {
		return symbol
	}
	return sym.String()
}

type decoder struct {
	sym  string
	s    string
	subs []abi.Type
	pos  int
}

func (d *decoder) fail(msg string) error {
	return demangleError(d.sym, msg)
}

func (d *decoder) peek() byte {
	if d.pos >= len(d.s) {
		return 0
	}
	return d.s[d.pos]
}

func (d *decoder) add(t abi.Type) {
	d.subs = append(d.subs, t)
}

func (d *decoder) name() (Symbol, error) {
	if d.peek() != 'N' {
		name, err := d.source()
		if err != nil {
			return Symbol{}, err
		}
		return Symbol{Name: name}, nil
	}
	d.pos++
	parts, special, err := d.nested(false)
	if err != nil {
		return Symbol{}, err
	}

	switch special {
	case SpecialConstructor:
		return Symbol{Scope: parts, Name: parts[len(parts)-1], Special: special}, nil
	case SpecialDestructor:
		return Symbol{Scope: parts, Name: "~" + parts[len(parts)-1], Special: special}, nil
	}
	if len(parts) < 2 {
		return Symbol{}, d.fail("nested name needs a scope")
	}
	return Symbol{Scope: parts[:len(parts)-1], Name: parts[len(parts)-1]}, nil
}

// nested decodes the components of an N...E name after the 'N'. In a type
// context every prefix including the full name becomes a substitution
// candidate; for a function name the final component does not.
func (d *decoder) nested(inType bool) ([]string, Special, error) {
	var parts []string
	special := SpecialNone
	pending := false

	for d.peek() != 'E' {
		if d.pos >= len(d.s) {
			return nil, 0, d.fail("unterminated nested name")
		}
		if special != SpecialNone {
			return nil, 0, d.fail("constructor or destructor must end the name")
		}
		if pending {
			d.add(abi.Class(strings.Join(parts, "::")))
			pending = false
		}

		switch c := d.peek(); {
		case c == 'S':
			if len(parts) > 0 {
				return nil, 0, d.fail("substitution inside nested name")
			}
			t, err := d.subRef()
			if err != nil {
				return nil, 0, err
			}
			if t.Kind != abi.KindClass {
				return nil, 0, d.fail("substitution is not a scope")
			}
			parts = splitName(t.Name)
		case c >= '0' && c <= '9':
			name, err := d.source()
			if err != nil {
				return nil, 0, err
			}
			parts = append(parts, name)
			pending = true
		case c == 'C' || c == 'D':
			if inType || len(parts) == 0 {
				return nil, 0, d.fail("unexpected constructor or destructor")
			}
			if d.pos+1 >= len(d.s) {
				return nil, 0, d.fail("truncated special name")
			}
			v := d.s[d.pos+1]
			switch {
			case c == 'C' && v >= '1' && v <= '3':
				special = SpecialConstructor
			case c == 'D' && v >= '0' && v <= '2':
				special = SpecialDestructor
			default:
				return nil, 0, d.fail("unknown special name " + d.s[d.pos:d.pos+2])
			}
			d.pos += 2
		default:
			return nil, 0, d.fail("unexpected " + string(c) + " in nested name")
		}
	}
	d.pos++ // E

	if len(parts) == 0 {
		return nil, 0, d.fail("empty nested name")
	}
	if pending && inType {
		d.add(abi.Class(strings.Join(parts, "::")))
	}
	return parts, special, nil
}

func (d *decoder) source() (string, error) {
	start := d.pos
	n := 0
	for d.pos < len(d.s) && d.s[d.pos] >= '0' && d.s[d.pos] <= '9' {
		n = n*10 + int(d.s[d.pos]-'0')
		d.pos++
		if n > len(d.s) {
			return "", d.fail("source name length out of range")
		}
	}
	if d.pos == start {
		return "", d.fail("expected source name")
	}
	if n == 0 || d.pos+n > len(d.s) {
		return "", d.fail("source name length out of range")
	}
	name := d.s[d.pos : d.pos+n]
	d.pos += n
	return name, nil
}

func (d *decoder) subRef() (abi.Type, error) {
	d.pos++ // S
	idx := 0
	if d.peek() != '_' {
		seq := 0
		for c := d.peek(); c != '_'; c = d.peek() {
			switch {
			case c >= '0' && c <= '9':
				seq = seq*36 + int(c-'0')
			case c >= 'A' && c <= 'Z':
				seq = seq*36 + int(c-'A') + 10
			default:
				return abi.Type{}, d.fail("malformed substitution")
			}
			if seq > len(d.sym) {
				return abi.Type{}, d.fail("substitution out of range")
			}
			d.pos++
		}
		idx = seq + 1
	}
	d.pos++ // _
	if idx >= len(d.subs) {
		return abi.Type{}, d.fail("substitution " + SubstitutionRef(idx) + " out of range")
	}
	return d.subs[idx], nil
}

func (d *decoder) typ() (abi.Type, error) {
	c := d.peek()
	if c == 0 {
		return abi.Type{}, d.fail("expected type")
	}
	if t, ok := builtinTypes[c]; ok {
		d.pos++
		return t, nil
	}

	switch {
	case c == 'P' || c == 'R' || c == 'K':
		d.pos++
		inner, err := d.typ()
		if err != nil {
			return abi.Type{}, err
		}
		var t abi.Type
		switch c {
		case 'P':
			t = inner.Ptr()
		case 'R':
			if inner.Kind == abi.KindReference {
				return abi.Type{}, d.fail("reference to reference")
			}
			t = inner.Ref()
		default:
			t = inner.AsConst()
		}
		d.add(t)
		return t, nil
	case c == 'S':
		return d.subRef()
	case c == 'N':
		d.pos++
		parts, _, err := d.nested(true)
		if err != nil {
			return abi.Type{}, err
		}
		return abi.Class(strings.Join(parts, "::")), nil
	case c >= '0' && c <= '9':
		name, err := d.source()
		if err != nil {
			return abi.Type{}, err
		}
		t := abi.Class(name)
		d.add(t)
		return t, nil
	}
	return abi.Type{}, d.fail("unsupported type code " + string(c))
}

func demangleError(symbol, msg string) error {
	return errors.New(errors.PhaseParse, errors.KindInvalidData).
		Operation("demangle").
		Value(symbol).
		Detail("%s: %s", symbol, msg).
		Build()
}
