package runtime

import (
	"context"
	"testing"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
	cxxerrors "github.com/wippyai/cxxbridge/errors"
	"github.com/wippyai/cxxbridge/internal/wasmtest"
	"github.com/wippyai/cxxbridge/native/wasm"
)

// sampleWasm compiles the SampleClass natives to a core module. Virtual
// calls from cpp_function and call_run go through the cxxabi.vcall import.
func sampleWasm(cat *catalog.Catalog) []byte {
	i32 := []wasmtest.ValType{wasmtest.I32}
	sym := func(name string) string { return cat.LookupAll(name)[0].Symbol }
	slot := func(name string) int32 { return int32(cat.LookupAll(name)[0].Slot) }

	b := wasmtest.New()
	vcall := b.Import(wasm.ImportModule, wasm.ImportVCall,
		[]wasmtest.ValType{wasmtest.I32, wasmtest.I32, wasmtest.I32, wasmtest.I32},
		[]wasmtest.ValType{wasmtest.I64})
	b.Memory(1, "memory")

	b.Func(sym("get_python_member"), i32, i32, nil,
		wasmtest.I32Const(1), wasmtest.End())
	b.Func(sym("run_python"), []wasmtest.ValType{wasmtest.I32, wasmtest.I32}, nil, nil,
		wasmtest.LocalGet(0), wasmtest.LocalGet(1), wasmtest.I32Store(4),
		wasmtest.End())
	b.Func(sym("cpp_function"), i32, i32, nil,
		wasmtest.LocalGet(0), wasmtest.I32Const(slot("get_python_member")),
		wasmtest.I32Const(0), wasmtest.I32Const(0),
		wasmtest.Call(vcall), wasmtest.I32WrapI64(),
		wasmtest.End())
	b.Func(sym("call_run"), []wasmtest.ValType{wasmtest.I32, wasmtest.I32}, nil, nil,
		wasmtest.I32Const(512), wasmtest.LocalGet(1), wasmtest.I64ExtendI32S(), wasmtest.I64Store(0),
		wasmtest.LocalGet(0), wasmtest.I32Const(slot("run_python")),
		wasmtest.I32Const(512), wasmtest.I32Const(1),
		wasmtest.Call(vcall), wasmtest.Drop(),
		wasmtest.End())
	return b.Bytes()
}

func TestWasm_Bidirectional(t *testing.T) {
	ctx := context.Background()
	cat := sampleCatalog(t)

	lib, err := wasm.Load(ctx, sampleWasm(cat), wasm.DefaultConfig())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rt := must[*Runtime](t)(New(lib, DefaultOptions()))
	defer rt.Close(ctx)
	cls := must[*Class](t)(rt.Register(cat))

	if lib.Model() != abi.ILP32 || cls.Layout().Size != 8 {
		t.Fatalf("layout = %+v under %v", cls.Layout(), lib.Model())
	}

	plain := must[*Object](t)(cls.New(ctx))
	if got, err := plain.Call(ctx, "cpp_function"); err != nil || got != 1 {
		t.Errorf("cpp_function() without host = %v, %v", got, err)
	}

	host := &pyObject{member: 2}
	obj := must[*Object](t)(cls.NewWithHost(ctx, host))
	if got, err := obj.Call(ctx, "cpp_function"); err != nil || got != 2 {
		t.Errorf("cpp_function() = %v, %v; want host value 2", got, err)
	}

	if _, err := obj.Call(ctx, "call_run", 5); err != nil {
		t.Fatal(err)
	}
	if len(host.runs) != 1 || host.runs[0] != 5 {
		t.Errorf("host runs = %v", host.runs)
	}
	if v, _ := obj.Field("cpp_member"); v != 500 {
		t.Errorf("cpp_member = %v, want 500", v)
	}

	// host failure raised inside a vcall surfaces unchanged
	_, err = obj.Call(ctx, "call_run", 13)
	expectKind(t, err, cxxerrors.KindHostFailure)

	if _, err := plain.Call(ctx, "run_python", 8); err != nil {
		t.Fatal(err)
	}
	if v, _ := plain.Field("cpp_member"); v != 8 {
		t.Errorf("native run_python stored %v, want 8", v)
	}
}
