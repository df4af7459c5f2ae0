package mangle

import (
	"errors"
	"testing"

	"github.com/wippyai/cxxbridge/abi"
	cxxerrors "github.com/wippyai/cxxbridge/errors"
)

func TestDemangle(t *testing.T) {
	tests := []struct {
		symbol  string
		want    string
		special Special
	}{
		{"_ZN10NonVirtual3fooEiii", "NonVirtual::foo(int, int, int)", SpecialNone},
		{"_ZN10NonVirtual3fooEPiiS0_", "NonVirtual::foo(int*, int, int*)", SpecialNone},
		{"_ZN10NonVirtual3fooEPKcS1_", "NonVirtual::foo(const char*, const char*)", SpecialNone},
		{"_ZN10NonVirtual3fooEPKcPKsPKilS5_S3_S1_",
			"NonVirtual::foo(const char*, const short*, const int*, long, const int*, const short*, const char*)", SpecialNone},
		{"_ZN10NonVirtual13member_returnEv", "NonVirtual::member_return()", SpecialNone},
		{"_ZN10NonVirtualC1Ev", "NonVirtual::NonVirtual()", SpecialConstructor},
		{"_ZN10NonVirtualC2Ei", "NonVirtual::NonVirtual(int)", SpecialConstructor},
		{"_ZN10NonVirtualD1Ev", "NonVirtual::~NonVirtual()", SpecialDestructor},
		{"_ZN7VirtualD0Ev", "Virtual::~Virtual()", SpecialDestructor},
		{"_ZTV7Virtual", "vtable for Virtual", SpecialVTable},
		{"_ZTVN2ns1WE", "vtable for ns::W", SpecialVTable},
		{"_ZN1A3fooERKS_", "A::foo(const A&)", SpecialNone},
		{"_Z3fooi", "foo(int)", SpecialNone},
		{"_Z1fPN2ns1WENS_1VE", "f(ns::W*, ns::V)", SpecialNone},
		{"_ZN2ns1W1fEPS0_", "ns::W::f(ns::W*)", SpecialNone},
		{"_Z1fyjmtbwdfe", "f(unsigned long long, unsigned int, unsigned long, unsigned short, bool, wchar_t, double, float, long double)", SpecialNone},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			sym, err := Demangle(tt.symbol)
			if err != nil {
				t.Fatalf("Demangle failed: %v", err)
			}
			if sym.String() != tt.want {
				t.Errorf("String() = %q, want %q", sym.String(), tt.want)
			}
			if sym.Special != tt.special {
				t.Errorf("Special = %s, want %s", sym.Special, tt.special)
			}
		})
	}
}

func TestDemangle_RoundTrip(t *testing.T) {
	symbols := []string{
		Method("NonVirtual", "foo", []abi.Type{cChar, cShort, cInt, abi.Long, cInt, cShort, cChar}),
		Method("NonVirtual", "foo", []abi.Type{abi.Int.Ptr(), abi.Int, abi.Int.Ptr()}),
		Method("ClassB", "take", []abi.Type{abi.Class("ClassA").Ptr(), abi.Class("ClassA").Ref()}),
		Method("ns::W", "f", []abi.Type{abi.Class("ns::W").AsConst().Ref(), abi.Class("ns::V").Ptr()}),
		Constructor("SampleClass", []abi.Type{abi.Int}),
		Destructor("SampleClass"),
		VTable("SampleClass"),
		Function("free", []abi.Type{abi.Char.AsConst().Ptr().Ptr()}),
	}

	for _, s := range symbols {
		t.Run(s, func(t *testing.T) {
			sym, err := Demangle(s)
			if err != nil {
				t.Fatalf("Demangle failed: %v", err)
			}
			if got := Mangle(sym); got != s {
				t.Errorf("Mangle(Demangle(%s)) = %s", s, got)
			}
		})
	}
}

func TestDemangle_Params(t *testing.T) {
	sym, err := Demangle("_ZN10NonVirtual3fooEPKcPKsPKilS5_S3_S1_")
	if err != nil {
		t.Fatalf("Demangle failed: %v", err)
	}
	want := []abi.Type{cChar, cShort, cInt, abi.Long, cInt, cShort, cChar}
	if !abi.EqualAll(sym.Params, want) {
		t.Errorf("Params = %s, want %s", abi.JoinTypes(sym.Params), abi.JoinTypes(want))
	}
	if sym.Qualified() != "NonVirtual::foo" {
		t.Errorf("Qualified() = %s", sym.Qualified())
	}
}

func TestDemangle_Errors(t *testing.T) {
	tests := []string{
		"foo",
		"_Z",
		"_Z3foo",
		"_Z99foo",
		"_ZN3fooEv",
		"_ZN10NonVirtual3fooEPiS5_",
		"_ZN10NonVirtual3fooEq",
		"_ZN10NonVirtualC9Ev",
		"_ZN10NonVirtualC1",
		"_ZN10NonVirtual3foo",
		"_ZNEv",
		"_ZTVi",
		"_ZN1ASA_3fooEv",
		"_ZN1A3fooERR_",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			_, err := Demangle(s)
			if err == nil {
				t.Fatalf("Demangle(%q) should fail", s)
			}
			var e *cxxerrors.Error
			if !errors.As(err, &e) || e.Phase != cxxerrors.PhaseParse {
				t.Errorf("expected parse error, got %v", err)
			}
		})
	}
}

func TestDemangleString(t *testing.T) {
	if got := DemangleString("_ZN10NonVirtualD1Ev"); got != "NonVirtual::~NonVirtual()" {
		t.Errorf("DemangleString() = %q", got)
	}
	if got := DemangleString("malloc"); got != "malloc" {
		t.Errorf("DemangleString() should pass through plain names, got %q", got)
	}
}
