package resolve

import (
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
	cxxerrors "github.com/wippyai/cxxbridge/errors"
)

var (
	cChar  = abi.Char.AsConst().Ptr()
	cShort = abi.Short.AsConst().Ptr()
	cInt   = abi.Int.AsConst().Ptr()

	mutable7 = []abi.Type{abi.Char.Ptr(), abi.Short.Ptr(), abi.Int.Ptr(), abi.Long, abi.Int.Ptr(), abi.Short.Ptr(), abi.Char.Ptr()}
	const7   = []abi.Type{cChar, cShort, cInt, abi.Long, cInt, cShort, cChar}
)

func fixture(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New("NonVirtual")
	add := func(result abi.Type, params ...abi.Type) {
		t.Helper()
		if _, err := c.Method("foo", result, params...); err != nil {
			t.Fatalf("register foo(%s): %v", abi.JoinTypes(params), err)
		}
	}
	add(abi.Int, abi.Int, abi.Int, abi.Int)
	add(abi.Int, abi.Int.Ptr(), abi.Int.Ptr(), abi.Int.Ptr())
	add(abi.Void, abi.Int.Ptr(), abi.Int, abi.Int.Ptr())
	add(abi.Void, mutable7...)
	add(abi.Void, const7...)
	add(abi.Void, cChar, cChar)
	c.Seal()
	return c
}

func mustResolve(t *testing.T, src Source, name string, args ...abi.Type) *Match {
	t.Helper()
	m, err := Resolve(src, name, args)
	if err != nil {
		t.Fatalf("Resolve(%s(%s)) failed: %v", name, abi.JoinTypes(args), err)
	}
	return m
}

func TestResolve_ValueVersusPointer(t *testing.T) {
	c := fixture(t)

	m := mustResolve(t, c, "foo", abi.Int, abi.Int, abi.Int)
	if m.Signature.Prototype() != "foo(int, int, int)" {
		t.Errorf("three ints resolved to %s", m.Signature.Prototype())
	}
	if !m.Exact() {
		t.Error("three ints should be an exact match")
	}

	m = mustResolve(t, c, "foo", abi.Int.Ptr(), abi.Int.Ptr(), abi.Int.Ptr())
	if m.Signature.Prototype() != "foo(int*, int*, int*)" {
		t.Errorf("three pointers resolved to %s", m.Signature.Prototype())
	}

	_, err := Resolve(c, "foo", []abi.Type{abi.Int, abi.Int})
	if !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
		t.Errorf("two arguments: expected NoMatchingOverload, got %v", err)
	}
}

func TestResolve_ConstnessMatters(t *testing.T) {
	c := fixture(t)

	m := mustResolve(t, c, "foo", const7...)
	if !abi.EqualAll(m.Signature.Types(), const7) {
		t.Errorf("all-const call resolved to %s", m.Signature.Prototype())
	}

	m = mustResolve(t, c, "foo", mutable7...)
	if !abi.EqualAll(m.Signature.Types(), mutable7) {
		t.Errorf("all-mutable call resolved to %s", m.Signature.Prototype())
	}

	mixed := append([]abi.Type(nil), const7...)
	mixed[2] = abi.Int.Ptr()
	if _, err := Resolve(c, "foo", mixed); !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
		t.Errorf("mixed constness: expected NoMatchingOverload, got %v", err)
	}
}

func TestResolve_ExactMatchNeverTies(t *testing.T) {
	c := fixture(t)
	for _, sig := range c.LookupAll("foo") {
		m, err := Resolve(c, "foo", sig.Types())
		if err != nil {
			t.Errorf("exact call to %s failed: %v", sig.Prototype(), err)
			continue
		}
		if m.Signature != sig {
			t.Errorf("exact call to %s resolved to %s", sig.Prototype(), m.Signature.Prototype())
		}
	}
}

func TestResolve_Widening(t *testing.T) {
	c := catalog.New("W")
	if _, err := c.Method("f", abi.Void, abi.Int); err != nil {
		t.Fatal(err)
	}

	m := mustResolve(t, c, "f", abi.Short)
	if m.Exact() || m.Widenings() != 1 || m.Conversions[0] != abi.ConvWiden {
		t.Errorf("short -> int should widen, got %v", m.Conversions)
	}

	for _, arg := range []abi.Type{abi.Long, abi.UShort.Ptr(), abi.Bool, abi.Double, abi.UInt} {
		if _, err := Resolve(c, "f", []abi.Type{arg}); !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
			t.Errorf("f(%s): expected NoMatchingOverload, got %v", arg, err)
		}
	}
}

func TestResolve_ExactBeatsWidening(t *testing.T) {
	c := catalog.New("W")
	for _, p := range []abi.Type{abi.Int, abi.Short, abi.Long} {
		if _, err := c.Method("f", abi.Void, p); err != nil {
			t.Fatal(err)
		}
	}
	m := mustResolve(t, c, "f", abi.Short)
	if m.Signature.Prototype() != "f(short)" {
		t.Errorf("short resolved to %s", m.Signature.Prototype())
	}
}

func TestResolve_WideningTieIsAmbiguous(t *testing.T) {
	c := catalog.New("W")
	for _, p := range []abi.Type{abi.Int, abi.Long} {
		if _, err := c.Method("f", abi.Void, p); err != nil {
			t.Fatal(err)
		}
	}

	_, err := Resolve(c, "f", []abi.Type{abi.Short})
	if !errors.Is(err, cxxerrors.ErrAmbiguousOverload) {
		t.Fatalf("expected AmbiguousOverload, got %v", err)
	}
	var e *cxxerrors.Error
	if !errors.As(err, &e) {
		t.Fatal("expected *errors.Error")
	}
	if len(e.Candidates) != 2 || e.Candidates[0] != "f(int)" || e.Candidates[1] != "f(long)" {
		t.Errorf("Candidates = %v, want registration order", e.Candidates)
	}
	if cxxerrors.IsFatal(err) {
		t.Error("AmbiguousOverload is a call-time error, not fatal")
	}

	m := mustResolve(t, c, "f", abi.Long)
	if m.Signature.Prototype() != "f(long)" {
		t.Errorf("long resolved to %s", m.Signature.Prototype())
	}
}

func TestResolve_PointerAndReferenceOverloads(t *testing.T) {
	c := catalog.New("ClassB")
	a := abi.Class("ClassA")
	for _, p := range []abi.Type{a.Ref(), a.Ptr()} {
		if _, err := c.Method("foo", abi.Void, p); err != nil {
			t.Fatal(err)
		}
	}

	if m := mustResolve(t, c, "foo", a.Ref()); m.Signature.Prototype() != "foo(ClassA&)" {
		t.Errorf("reference resolved to %s", m.Signature.Prototype())
	}
	if m := mustResolve(t, c, "foo", a.Ptr()); m.Signature.Prototype() != "foo(ClassA*)" {
		t.Errorf("pointer resolved to %s", m.Signature.Prototype())
	}
	if _, err := Resolve(c, "foo", []abi.Type{a}); !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
		t.Errorf("by-value: expected NoMatchingOverload, got %v", err)
	}
	if _, err := Resolve(c, "foo", []abi.Type{a.AsConst().Ptr()}); !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
		t.Errorf("const pointer: expected NoMatchingOverload, got %v", err)
	}
}

func TestResolve_UnknownOperation(t *testing.T) {
	c := fixture(t)
	_, err := Resolve(c, "bar", nil)
	if !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
		t.Fatalf("expected NoMatchingOverload, got %v", err)
	}
	var e *cxxerrors.Error
	if errors.As(err, &e) && e.Operation != "NonVirtual::bar" {
		t.Errorf("Operation = %s", e.Operation)
	}
}

func TestResolve_NoMatchListsCandidates(t *testing.T) {
	c := fixture(t)
	_, err := Resolve(c, "foo", []abi.Type{abi.Double})
	var e *cxxerrors.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %v", err)
	}
	if len(e.Candidates) != 6 {
		t.Errorf("Candidates = %v, want all 6 overloads", e.Candidates)
	}
}

func TestResolver_Cache(t *testing.T) {
	c := fixture(t)
	r := New(c)

	m1, err := r.Resolve("foo", []abi.Type{abi.Int, abi.Int, abi.Int})
	if err != nil {
		t.Fatal(err)
	}
	m2, err := r.Resolve("foo", []abi.Type{abi.Int, abi.Int, abi.Int})
	if err != nil {
		t.Fatal(err)
	}
	if m1 != m2 {
		t.Error("second resolution should come from the cache")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	if _, err := r.Resolve("foo", []abi.Type{abi.Int}); err == nil {
		t.Error("expected failure")
	}
	if r.Len() != 1 {
		t.Errorf("failures must not be cached, Len() = %d", r.Len())
	}

	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len() after Reset = %d", r.Len())
	}
	if r.Source() != Source(c) {
		t.Error("Source() mismatch")
	}
}

func TestResolver_UnsealedNotCached(t *testing.T) {
	c := catalog.New("Open")
	if _, err := c.Method("f", abi.Void, abi.Int); err != nil {
		t.Fatal(err)
	}
	r := New(c)
	if _, err := r.Resolve("f", []abi.Type{abi.Int}); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 0 {
		t.Error("resolutions over an unsealed catalog must not be cached")
	}
}

func TestResolver_Concurrent(t *testing.T) {
	c := fixture(t)
	r := New(c)
	calls := [][]abi.Type{
		{abi.Int, abi.Int, abi.Int},
		{abi.Int.Ptr(), abi.Int.Ptr(), abi.Int.Ptr()},
		const7,
		mutable7,
	}

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		args := calls[i%len(calls)]
		g.Go(func() error {
			m, err := r.Resolve("foo", args)
			if err != nil {
				return err
			}
			if !abi.EqualAll(m.Signature.Types(), args) {
				return errors.New("wrong overload for " + abi.JoinTypes(args))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if r.Len() != len(calls) {
		t.Errorf("Len() = %d, want %d", r.Len(), len(calls))
	}
}
