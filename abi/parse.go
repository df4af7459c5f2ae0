package abi

import (
	"strings"
	"unicode"

	"github.com/wippyai/cxxbridge/errors"
)

// Parse parses a C++ type spelling such as "const char*", "unsigned long long",
// "ClassA&" or "int* const".
func Parse(spelling string) (Type, error) {
	toks, err := tokenize(spelling)
	if err != nil {
		return Type{}, err
	}
	return parseTokens(spelling, toks)
}

// MustParse is like Parse but panics on error. Intended for fixtures and
// package-level tables.
func MustParse(spelling string) Type {
	t, err := Parse(spelling)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseParam parses a parameter declaration with an optional trailing name,
// e.g. "const char* s1" or "int".
func ParseParam(decl string) (Param, error) {
	toks, err := tokenize(decl)
	if err != nil {
		return Param{}, err
	}
	if n := len(toks); n > 1 && isIdent(toks[n-1]) && !isKeyword(toks[n-1]) {
		if t, err := parseTokens(decl, toks[:n-1]); err == nil {
			return Param{Name: toks[n-1], Type: t}, nil
		}
	}
	t, err := parseTokens(decl, toks)
	if err != nil {
		return Param{}, err
	}
	return Param{Type: t}, nil
}

// ParseList parses a comma separated list of type spellings.
// An empty string or "void" yields an empty list.
func ParseList(list string) ([]Type, error) {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return nil, nil
	}
	parts := strings.Split(list, ",")
	types := make([]Type, 0, len(parts))
	for _, p := range parts {
		t, err := Parse(p)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func tokenize(s string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '*' || c == '&':
			toks = append(toks, string(c))
			i++
		case c == ':' || c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)):
			j := i
			for j < len(s) && (s[j] == ':' || s[j] == '_' || unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j]))) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			return nil, parseError(s, "unexpected character %q", c)
		}
	}
	if len(toks) == 0 {
		return nil, parseError(s, "empty type")
	}
	return toks, nil
}

func isIdent(tok string) bool {
	return tok != "*" && tok != "&"
}

var keywords = map[string]bool{
	"const": true, "volatile": true, "signed": true, "unsigned": true,
	"short": true, "long": true, "int": true, "char": true, "bool": true,
	"wchar_t": true, "float": true, "double": true, "void": true,
}

func isKeyword(tok string) bool {
	return keywords[tok]
}

type specifiers struct {
	class    string
	base     string
	signed   bool
	unsigned bool
	const_   bool
	shorts   int
	longs    int
}

func parseTokens(src string, toks []string) (Type, error) {
	var spec specifiers
	i := 0
	for ; i < len(toks) && isIdent(toks[i]); i++ {
		switch tok := toks[i]; tok {
		case "const":
			spec.const_ = true
		case "volatile":
			return Type{}, parseError(src, "volatile is not supported")
		case "signed":
			spec.signed = true
		case "unsigned":
			spec.unsigned = true
		case "short":
			spec.shorts++
		case "long":
			spec.longs++
		case "int", "char", "bool", "wchar_t", "float", "double", "void":
			if spec.base != "" || spec.class != "" {
				return Type{}, parseError(src, "multiple base types")
			}
			spec.base = tok
		default:
			if spec.base != "" || spec.class != "" || spec.signed || spec.unsigned || spec.shorts > 0 || spec.longs > 0 {
				return Type{}, parseError(src, "unexpected identifier %q", tok)
			}
			if strings.HasPrefix(tok, ":") || strings.HasSuffix(tok, ":") || strings.Contains(tok, ":::") {
				return Type{}, parseError(src, "malformed qualified name %q", tok)
			}
			spec.class = tok
		}
	}

	t, err := spec.resolve(src)
	if err != nil {
		return Type{}, err
	}
	t.Const = spec.const_

	for ; i < len(toks); i++ {
		switch toks[i] {
		case "*":
			if t.Kind == KindReference {
				return Type{}, parseError(src, "pointer to reference")
			}
			t = t.Ptr()
		case "&":
			if t.Kind == KindReference {
				return Type{}, parseError(src, "reference to reference")
			}
			if t.Kind == KindVoid {
				return Type{}, parseError(src, "reference to void")
			}
			t = t.Ref()
		case "const":
			if t.Kind != KindPointer {
				return Type{}, parseError(src, "misplaced const")
			}
			t.Const = true
		default:
			return Type{}, parseError(src, "unexpected token %q", toks[i])
		}
	}
	return t, nil
}

func (s specifiers) resolve(src string) (Type, error) {
	if s.signed && s.unsigned {
		return Type{}, parseError(src, "both signed and unsigned")
	}
	sized := s.shorts > 0 || s.longs > 0
	signedness := s.signed || s.unsigned

	if s.class != "" {
		return Class(s.class), nil
	}

	switch s.base {
	case "void", "bool", "wchar_t", "float":
		if sized || signedness {
			return Type{}, parseError(src, "invalid modifiers for %s", s.base)
		}
		switch s.base {
		case "void":
			return Void, nil
		case "bool":
			return Bool, nil
		case "wchar_t":
			return WChar, nil
		}
		return Float, nil
	case "double":
		if signedness || s.shorts > 0 || s.longs > 1 {
			return Type{}, parseError(src, "invalid modifiers for double")
		}
		if s.longs == 1 {
			return LongDouble, nil
		}
		return Double, nil
	case "char":
		if sized {
			return Type{}, parseError(src, "invalid modifiers for char")
		}
		switch {
		case s.signed:
			return SChar, nil
		case s.unsigned:
			return UChar, nil
		}
		return Char, nil
	case "int", "":
		if s.base == "" && !sized && !signedness {
			return Type{}, parseError(src, "missing type")
		}
		if s.shorts > 0 && s.longs > 0 || s.shorts > 1 || s.longs > 2 {
			return Type{}, parseError(src, "invalid size modifiers")
		}
		switch {
		case s.shorts == 1:
			return pick(s.unsigned, UShort, Short), nil
		case s.longs == 1:
			return pick(s.unsigned, ULong, Long), nil
		case s.longs == 2:
			return pick(s.unsigned, ULongLong, LongLong), nil
		}
		return pick(s.unsigned, UInt, Int), nil
	}
	return Type{}, parseError(src, "unknown base type %q", s.base)
}

func pick(unsigned bool, u, s Type) Type {
	if unsigned {
		return u
	}
	return s
}

func parseError(src, msg string, args ...any) error {
	return errors.New(errors.PhaseParse, errors.KindInvalidData).
		Type(strings.TrimSpace(src)).
		Detail(msg, args...).
		Build()
}
