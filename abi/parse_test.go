package abi

import (
	"errors"
	"testing"

	cxxerrors "github.com/wippyai/cxxbridge/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"int", Int},
		{"signed", Int},
		{"unsigned", UInt},
		{"short int", Short},
		{"unsigned short", UShort},
		{"long", Long},
		{"long int", Long},
		{"unsigned long", ULong},
		{"long long", LongLong},
		{"unsigned long long int", ULongLong},
		{"char", Char},
		{"signed char", SChar},
		{"unsigned char", UChar},
		{"bool", Bool},
		{"wchar_t", WChar},
		{"float", Float},
		{"double", Double},
		{"long double", LongDouble},
		{"void", Void},
		{"const int", Int.AsConst()},
		{"const char*", Char.AsConst().Ptr()},
		{"char const *", Char.AsConst().Ptr()},
		{"int* const", Int.Ptr().AsConst()},
		{"int **", Int.Ptr().Ptr()},
		{"void*", Void.Ptr()},
		{"ClassA&", Class("ClassA").Ref()},
		{"const ClassA&", Class("ClassA").AsConst().Ref()},
		{"ns::Widget*", Class("ns::Widget").Ptr()},
		{"int*&", Int.Ptr().Ref()},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.in, err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, s := range []string{"const char*", "int* const", "unsigned long long", "ClassA&", "const short**"} {
		got, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", s, err)
		}
		if got.String() != s {
			t.Errorf("Parse(%q).String() = %q", s, got.String())
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"int&&",
		"int&*",
		"void&",
		"volatile int",
		"int char",
		"unsigned signed int",
		"short long",
		"long long long",
		"unsigned double",
		"short char",
		"Widget int",
		"const",
		"int$",
		"::Widget",
		"const * int",
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			if err == nil {
				t.Fatalf("Parse(%q) should fail", in)
			}
			var e *cxxerrors.Error
			if !errors.As(err, &e) || e.Phase != cxxerrors.PhaseParse {
				t.Errorf("expected parse phase error, got %v", err)
			}
		})
	}
}

func TestParseParam(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantType Type
	}{
		{"const char* s1", "s1", Char.AsConst().Ptr()},
		{"int a", "a", Int},
		{"int", "", Int},
		{"ClassA", "", Class("ClassA")},
		{"ClassA& other", "other", Class("ClassA").Ref()},
		{"unsigned long", "", ULong},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParseParam(tt.in)
			if err != nil {
				t.Fatalf("ParseParam(%q) failed: %v", tt.in, err)
			}
			if p.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", p.Name, tt.wantName)
			}
			if !Equal(p.Type, tt.wantType) {
				t.Errorf("Type = %s, want %s", p.Type, tt.wantType)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	types, err := ParseList("int*, const short*, long")
	if err != nil {
		t.Fatalf("ParseList failed: %v", err)
	}
	want := []Type{Int.Ptr(), Short.AsConst().Ptr(), Long}
	if !EqualAll(types, want) {
		t.Errorf("ParseList = %s, want %s", JoinTypes(types), JoinTypes(want))
	}

	for _, empty := range []string{"", "void", "  "} {
		types, err := ParseList(empty)
		if err != nil || len(types) != 0 {
			t.Errorf("ParseList(%q) = %v, %v", empty, types, err)
		}
	}

	if _, err := ParseList("int, &"); err == nil {
		t.Error("ParseList should fail on a bad element")
	}
}

func TestMustParse_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse should panic on invalid input")
		}
	}()
	MustParse("int&&")
}
