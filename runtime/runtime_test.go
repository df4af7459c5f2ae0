package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
	"github.com/wippyai/cxxbridge/dispatch"
	cxxerrors "github.com/wippyai/cxxbridge/errors"
	"github.com/wippyai/cxxbridge/marshal"
	"github.com/wippyai/cxxbridge/native"
)

// resultOffset is NonVirtual::result under LP64: after an 8-byte void*.
const resultOffset = 8

func must[T any](t *testing.T) func(T, error) T {
	return func(v T, err error) T {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return v
	}
}

func expectKind(t *testing.T, err error, kind cxxerrors.Kind) {
	t.Helper()
	e, ok := cxxerrors.AsError(err)
	if !ok || e.Kind != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

// nonVirtualCatalog declares the NonVirtual test class:
//
//	NonVirtual(); NonVirtual(int); ~NonVirtual();
//	int foo(int, int, int); void foo(int*, int*, int*);
//	int foo(const char*, const short*, const int*, long, const int*, const short*, const char*);
//	int foo(char*, short*, int*, long, int*, short*, char*);
//	int member_return(); NonVirtual* self(); double scale(double);
func nonVirtualCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := catalog.New("NonVirtual")
	if err := cat.AddField("py_object", abi.Void.Ptr()); err != nil {
		t.Fatal(err)
	}
	if err := cat.AddField("result", abi.Int); err != nil {
		t.Fatal(err)
	}
	sig := must[*catalog.Signature](t)
	cc := abi.Char.AsConst().Ptr()
	cs := abi.Short.AsConst().Ptr()
	ci := abi.Int.AsConst().Ptr()
	sig(cat.Constructor())
	sig(cat.Constructor(abi.Int))
	sig(cat.Destructor(false))
	sig(cat.Method("foo", abi.Int, abi.Int, abi.Int, abi.Int))
	sig(cat.Method("foo", abi.Void, abi.Int.Ptr(), abi.Int.Ptr(), abi.Int.Ptr()))
	sig(cat.Method("foo", abi.Int, cc, cs, ci, abi.Long, ci, cs, cc))
	sig(cat.Method("foo", abi.Int,
		abi.Char.Ptr(), abi.Short.Ptr(), abi.Int.Ptr(), abi.Long, abi.Int.Ptr(), abi.Short.Ptr(), abi.Char.Ptr()))
	sig(cat.Method("member_return", abi.Int))
	sig(cat.Method("self", abi.Class("NonVirtual").Ptr()))
	sig(cat.Method("scale", abi.Double, abi.Double))
	return cat
}

func symbol(t *testing.T, cat *catalog.Catalog, name string, params ...abi.Type) string {
	t.Helper()
	for _, s := range cat.LookupAll(name) {
		if abi.EqualAll(s.Types(), params) {
			return s.Symbol
		}
	}
	t.Fatalf("no %s(%s)", name, abi.JoinTypes(params))
	return ""
}

func defineNonVirtual(t *testing.T, lib *native.GoLibrary, cat *catalog.Catalog) {
	t.Helper()
	cc := abi.Char.AsConst().Ptr()
	cs := abi.Short.AsConst().Ptr()
	ci := abi.Int.AsConst().Ptr()

	lib.Define(symbol(t, cat, "NonVirtual"), func(_ context.Context, mem *native.LinearMemory, p []uint64) ([]uint64, error) {
		return nil, mem.WriteU32(uint32(p[0])+resultOffset, 701)
	})
	lib.Define(symbol(t, cat, "NonVirtual", abi.Int), func(_ context.Context, mem *native.LinearMemory, p []uint64) ([]uint64, error) {
		return nil, mem.WriteU32(uint32(p[0])+resultOffset, uint32(p[1]))
	})
	lib.Define(symbol(t, cat, "~NonVirtual"), func(_ context.Context, mem *native.LinearMemory, p []uint64) ([]uint64, error) {
		return nil, mem.WriteU32(uint32(p[0])+resultOffset, 799)
	})
	lib.Define(symbol(t, cat, "foo", abi.Int, abi.Int, abi.Int), func(_ context.Context, _ *native.LinearMemory, p []uint64) ([]uint64, error) {
		sum := int32(p[1]) + int32(p[2]) + int32(p[3])
		return []uint64{uint64(uint32(sum))}, nil
	})
	lib.Define(symbol(t, cat, "foo", abi.Int.Ptr(), abi.Int.Ptr(), abi.Int.Ptr()), func(_ context.Context, mem *native.LinearMemory, p []uint64) ([]uint64, error) {
		for _, addr := range p[1:] {
			v, err := mem.ReadU32(uint32(addr))
			if err != nil {
				return nil, err
			}
			if err := mem.WriteU32(uint32(addr), v+10); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	lib.Define(symbol(t, cat, "foo", cc, cs, ci, abi.Long, ci, cs, cc), func(context.Context, *native.LinearMemory, []uint64) ([]uint64, error) {
		return []uint64{1}, nil
	})
	lib.Define(symbol(t, cat, "foo",
		abi.Char.Ptr(), abi.Short.Ptr(), abi.Int.Ptr(), abi.Long, abi.Int.Ptr(), abi.Short.Ptr(), abi.Char.Ptr()),
		func(_ context.Context, mem *native.LinearMemory, p []uint64) ([]uint64, error) {
			if err := mem.WriteU32(uint32(p[3]), 42); err != nil {
				return nil, err
			}
			return []uint64{2}, nil
		})
	lib.Define(symbol(t, cat, "member_return"), func(_ context.Context, mem *native.LinearMemory, p []uint64) ([]uint64, error) {
		v, err := mem.ReadU32(uint32(p[0]) + resultOffset)
		return []uint64{uint64(v)}, err
	})
	lib.Define(symbol(t, cat, "self"), func(_ context.Context, _ *native.LinearMemory, p []uint64) ([]uint64, error) {
		return []uint64{p[0]}, nil
	})
}

func newNonVirtual(t *testing.T, opts Options) (*Runtime, *Class, *native.GoLibrary) {
	t.Helper()
	lib := native.NewGoLibrary(native.DefaultGoOptions())
	cat := nonVirtualCatalog(t)
	defineNonVirtual(t, lib, cat)

	rt, err := New(lib, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	cls, err := rt.Register(cat)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return rt, cls, lib
}

func TestRegister_Layout(t *testing.T) {
	_, cls, _ := newNonVirtual(t, DefaultOptions())

	if got := cls.Layout().Offsets[1]; got != resultOffset {
		t.Errorf("result offset = %d, want %d", got, resultOffset)
	}
	if cls.Layout().Size != 16 {
		t.Errorf("Size = %d, want 16", cls.Layout().Size)
	}
	if !cls.Catalog().Sealed() {
		t.Error("Register must seal the catalog")
	}
	// scale is declared but never defined
	if u := cls.Unresolved(); len(u) != 1 || u[0] != "_ZN10NonVirtual5scaleEd" {
		t.Errorf("Unresolved() = %v", u)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	rt, _, _ := newNonVirtual(t, DefaultOptions())
	_, err := rt.Register(nonVirtualCatalog(t))
	expectKind(t, err, cxxerrors.KindInvalidInput)

	if names := rt.Classes(); len(names) != 1 || names[0] != "NonVirtual" {
		t.Errorf("Classes() = %v", names)
	}
	if _, ok := rt.Class("NonVirtual"); !ok {
		t.Error("Class(NonVirtual) missing")
	}
}

func TestRegister_StrictLink(t *testing.T) {
	lib := native.NewGoLibrary(native.DefaultGoOptions())
	cat := nonVirtualCatalog(t)
	defineNonVirtual(t, lib, cat)

	rt, err := New(lib, Options{StrictLink: true})
	if err != nil {
		t.Fatal(err)
	}
	_, err = rt.Register(cat)
	if !errors.Is(err, cxxerrors.ErrUnresolvedSymbol) {
		t.Fatalf("expected UnresolvedSymbol, got %v", err)
	}
	e, _ := cxxerrors.AsError(err)
	if e.Phase != cxxerrors.PhaseLink || len(e.Candidates) != 1 {
		t.Errorf("error = %+v", e)
	}
	if _, ok := rt.Class("NonVirtual"); ok {
		t.Error("failed registration must not leave a class behind")
	}
}

func TestNew_BadObserver(t *testing.T) {
	lib := native.NewGoLibrary(native.DefaultGoOptions())
	_, err := New(lib, Options{Observers: []any{42}})
	expectKind(t, err, cxxerrors.KindTypeMismatch)

	_, err = New(nil, DefaultOptions())
	expectKind(t, err, cxxerrors.KindInvalidInput)
}

func TestClass_Constructors(t *testing.T) {
	ctx := context.Background()
	_, cls, _ := newNonVirtual(t, DefaultOptions())

	obj := must[*Object](t)(cls.New(ctx))
	if v, err := obj.Field("result"); err != nil || v != 701 {
		t.Errorf("default ctor result = %v, %v; want 701", v, err)
	}

	obj = must[*Object](t)(cls.New(ctx, 9))
	if v, err := obj.Field("result"); err != nil || v != 9 {
		t.Errorf("NonVirtual(int) result = %v, %v; want 9", v, err)
	}

	// short widens to int
	obj = must[*Object](t)(cls.New(ctx, int16(-3)))
	if v, _ := obj.Field("result"); v != -3 {
		t.Errorf("NonVirtual(short) result = %v, want -3", v)
	}

	_, err := cls.New(ctx, "nope")
	if !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
		t.Errorf("expected NoMatchingOverload, got %v", err)
	}
}

func TestClass_ImplicitDefaultConstructor(t *testing.T) {
	ctx := context.Background()
	lib := native.NewGoLibrary(native.DefaultGoOptions())
	cat := catalog.New("Plain")
	if err := cat.AddField("value", abi.Long); err != nil {
		t.Fatal(err)
	}
	rt := must[*Runtime](t)(New(lib, DefaultOptions()))
	defer rt.Close(ctx)
	cls := must[*Class](t)(rt.Register(cat))

	obj := must[*Object](t)(cls.New(ctx))
	if v, _ := obj.Field("value"); v != int64(0) {
		t.Errorf("storage not zeroed: %v", v)
	}
	if _, err := cls.New(ctx, 1); !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
		t.Errorf("expected NoMatchingOverload, got %v", err)
	}
}

func TestObject_OverloadScenario(t *testing.T) {
	ctx := context.Background()
	_, cls, _ := newNonVirtual(t, DefaultOptions())
	obj := must[*Object](t)(cls.New(ctx))

	got, err := obj.Call(ctx, "foo", 1, 2, 3)
	if err != nil || got != 6 {
		t.Errorf("foo(1, 2, 3) = %v, %v; want 6", got, err)
	}

	a, b, c := 1, 2, 3
	got, err = obj.Call(ctx, "foo", &a, &b, &c)
	if err != nil || got != nil {
		t.Fatalf("foo(&a, &b, &c) = %v, %v", got, err)
	}
	if a != 11 || b != 12 || c != 13 {
		t.Errorf("write-back = %d %d %d, want 11 12 13", a, b, c)
	}

	_, err = obj.Call(ctx, "foo", 1, 2)
	if !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
		t.Errorf("foo(1, 2): expected NoMatchingOverload, got %v", err)
	}
}

func TestObject_ConstnessSelectsOverload(t *testing.T) {
	ctx := context.Background()
	_, cls, _ := newNonVirtual(t, DefaultOptions())
	obj := must[*Object](t)(cls.New(ctx))

	s, i := int16(1), 2
	got, err := obj.Call(ctx, "foo",
		"a", marshal.Const(&s), marshal.Const(&i), int64(4), marshal.Const(&i), marshal.Const(&s), "b")
	if err != nil || got != 1 {
		t.Errorf("const call = %v, %v; want 1", got, err)
	}
	if i != 2 {
		t.Errorf("const pointee written back: %d", i)
	}

	ch := marshal.Char('x')
	got, err = obj.Call(ctx, "foo", &ch, &s, &i, int64(4), &i, &s, &ch)
	if err != nil || got != 2 {
		t.Errorf("non-const call = %v, %v; want 2", got, err)
	}
	if i != 42 {
		t.Errorf("output channel = %d, want 42", i)
	}

	// mixing const and non-const pointees matches neither
	_, err = obj.Call(ctx, "foo", &ch, marshal.Const(&s), &i, int64(4), &i, &s, &ch)
	if !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
		t.Errorf("mixed call: expected NoMatchingOverload, got %v", err)
	}
}

func TestObject_Fields(t *testing.T) {
	ctx := context.Background()
	_, cls, _ := newNonVirtual(t, DefaultOptions())
	obj := must[*Object](t)(cls.New(ctx))

	if err := obj.SetField("result", 55); err != nil {
		t.Fatal(err)
	}
	got, err := obj.Call(ctx, "member_return")
	if err != nil || got != 55 {
		t.Errorf("member_return() = %v, %v; host write not visible", got, err)
	}

	if _, err := obj.Field("missing"); err == nil {
		t.Error("unknown field should fail")
	}
	if err := obj.SetField("result", "x"); err == nil {
		t.Error("string into int field should fail")
	}
	if v, err := obj.Field("py_object"); err != nil || !v.(marshal.Pointer).IsNull() {
		t.Errorf("py_object = %v, %v", v, err)
	}
}

func TestObject_ClassPointerResult(t *testing.T) {
	ctx := context.Background()
	rt, cls, _ := newNonVirtual(t, DefaultOptions())
	obj := must[*Object](t)(cls.New(ctx))

	got, err := obj.Call(ctx, "self")
	if err != nil || got != obj {
		t.Errorf("self() = %v, %v; want %v", got, err, obj)
	}
	if o, ok := rt.ObjectAt(obj.Address()); !ok || o != obj {
		t.Error("ObjectAt(Address()) mismatch")
	}
}

func TestObject_CallErrors(t *testing.T) {
	ctx := context.Background()
	_, cls, _ := newNonVirtual(t, DefaultOptions())
	obj := must[*Object](t)(cls.New(ctx))

	_, err := obj.Call(ctx, "scale", 2.0)
	if !errors.Is(err, cxxerrors.ErrUnresolvedSymbol) {
		t.Errorf("unlinked call: expected UnresolvedSymbol, got %v", err)
	}

	_, err = obj.Call(ctx, "NonVirtual")
	expectKind(t, err, cxxerrors.KindInvalidInput)

	_, err = obj.Call(ctx, "bar")
	if !errors.Is(err, cxxerrors.ErrNoMatchingOverload) {
		t.Errorf("unknown op: expected NoMatchingOverload, got %v", err)
	}

	_, err = obj.Call(ctx, "foo", struct{}{}, 1, 2)
	expectKind(t, err, cxxerrors.KindUnsupported)
}

func TestObject_CallSignature(t *testing.T) {
	ctx := context.Background()
	_, cls, _ := newNonVirtual(t, DefaultOptions())
	obj := must[*Object](t)(cls.New(ctx))

	m, err := cls.Resolver().Resolve("foo", []abi.Type{abi.Int, abi.Int, abi.Int})
	if err != nil {
		t.Fatal(err)
	}
	got, err := obj.CallSignature(ctx, m.Signature, 4, 5, 6)
	if err != nil || got != 15 {
		t.Errorf("CallSignature = %v, %v", got, err)
	}

	other := catalog.New("Other")
	sig := must[*catalog.Signature](t)(other.Method("foo", abi.Int))
	_, err = obj.CallSignature(ctx, sig)
	expectKind(t, err, cxxerrors.KindTypeMismatch)
}

func TestObject_DestroyOrdering(t *testing.T) {
	ctx := context.Background()

	var seen []uint32
	var lib *native.GoLibrary
	observer := dispatch.ObserverFunc(func(e dispatch.Event) {
		if e.To == dispatch.StateReturned && e.Call.Signature.Kind == catalog.KindDestructor {
			v, err := lib.LinearMemory().ReadU32(e.Call.This + resultOffset)
			if err == nil {
				seen = append(seen, v)
			}
		}
	})
	rt, cls, l := newNonVirtual(t, Options{Observers: []any{observer}})
	lib = l

	before := lib.Arena().Live()
	obj := must[*Object](t)(cls.New(ctx))
	h := obj.Handle()
	if err := rt.Registry().Bind(h, &struct{ n int }{}); err != nil {
		t.Fatal(err)
	}

	if err := obj.Destroy(ctx); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != 799 {
		t.Errorf("destructor effect = %v, want [799] before release", seen)
	}
	if lib.Arena().Live() != before {
		t.Errorf("storage not freed: %d live, want %d", lib.Arena().Live(), before)
	}
	if _, ok := rt.Objects().Lookup(h); ok {
		t.Error("handle not released")
	}
	if _, err := rt.Registry().LookupHost(h); !errors.Is(err, cxxerrors.ErrUnbound) {
		t.Errorf("binding survived Destroy: %v", err)
	}
	if !obj.Destroyed() || rt.Live() != 0 {
		t.Error("object still live")
	}

	if err := obj.Destroy(ctx); !errors.Is(err, cxxerrors.ErrDestroyed) {
		t.Errorf("second Destroy: expected Destroyed, got %v", err)
	}
	if _, err := obj.Call(ctx, "member_return"); !errors.Is(err, cxxerrors.ErrDestroyed) {
		t.Errorf("call after Destroy: expected Destroyed, got %v", err)
	}
	if _, err := obj.Field("result"); !errors.Is(err, cxxerrors.ErrDestroyed) {
		t.Errorf("field after Destroy: expected Destroyed, got %v", err)
	}
}

func TestRuntime_Close(t *testing.T) {
	ctx := context.Background()
	lib := native.NewGoLibrary(native.DefaultGoOptions())
	cat := nonVirtualCatalog(t)
	defineNonVirtual(t, lib, cat)
	rt := must[*Runtime](t)(New(lib, DefaultOptions()))
	cls := must[*Class](t)(rt.Register(cat))

	a := must[*Object](t)(cls.New(ctx))
	b := must[*Object](t)(cls.New(ctx, 3))
	if rt.Live() != 2 {
		t.Fatalf("Live() = %d", rt.Live())
	}

	if err := rt.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.Destroyed() || !b.Destroyed() || rt.Live() != 0 {
		t.Error("Close must destroy live objects")
	}
	if _, err := cls.New(ctx); err == nil {
		t.Error("New after Close should fail")
	}
}

// lifecycleCounter counts native constructor and destructor dispatches.
type lifecycleCounter struct {
	ctors, dtors int
}

func (l *lifecycleCounter) OnDispatchEvent(e dispatch.Event) {
	if e.To != dispatch.StateResolvedNative {
		return
	}
	switch e.Call.Signature.Kind {
	case catalog.KindConstructor:
		l.ctors++
	case catalog.KindDestructor:
		l.dtors++
	}
}

// sliceHost is not comparable, so the registry refuses to pair it.
type sliceHost struct {
	runs []int
}

func (s sliceHost) Runs() int { return len(s.runs) }

func TestClass_PairingFailureDestructs(t *testing.T) {
	ctx := context.Background()
	counter := &lifecycleCounter{}
	rt, cls, lib := newNonVirtual(t, Options{Observers: []any{counter}})
	arena := lib.Arena().Live()

	host := &pyObject{member: 2}
	first := must[*Object](t)(cls.NewWithHost(ctx, host))

	_, err := cls.NewWithHost(ctx, host)
	if !errors.Is(err, cxxerrors.ErrAlreadyBound) {
		t.Fatalf("second NewWithHost: expected AlreadyBound, got %v", err)
	}
	if counter.ctors != counter.dtors+1 {
		t.Errorf("ctors=%d dtors=%d after rejected pairing", counter.ctors, counter.dtors)
	}
	if rt.Live() != 1 {
		t.Errorf("Live() = %d, want 1", rt.Live())
	}
	if o, err := rt.ObjectOf(host); err != nil || o != first {
		t.Errorf("first pairing disturbed: %v, %v", o, err)
	}

	// rejected by the registry after the native constructor ran
	_, err = cls.NewWithHost(ctx, sliceHost{})
	var e *cxxerrors.Error
	if !errors.As(err, &e) || e.Kind != cxxerrors.KindInvalidInput {
		t.Fatalf("uncomparable host: expected InvalidInput, got %v", err)
	}
	if counter.ctors != counter.dtors+1 {
		t.Errorf("ctors=%d dtors=%d after failed bind", counter.ctors, counter.dtors)
	}
	if rt.Live() != 1 {
		t.Errorf("Live() = %d, want 1", rt.Live())
	}

	if lib.Arena().Live() != arena+1 {
		t.Errorf("arena holds %d blocks, want %d", lib.Arena().Live(), arena+1)
	}

	if err := first.Destroy(ctx); err != nil {
		t.Fatal(err)
	}
	if counter.ctors != counter.dtors {
		t.Errorf("ctors=%d dtors=%d after Destroy", counter.ctors, counter.dtors)
	}
}
