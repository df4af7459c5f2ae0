// Package runtime provides the high-level API for driving native classes
// from Go.
//
// # Quick Start
//
//	lib, err := wasm.Load(ctx, wasmBytes, wasm.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt, err := runtime.New(lib, runtime.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	cls, err := rt.Register(cat)
//	obj, err := cls.New(ctx, 3)
//	result, err := obj.Call(ctx, "foo", 1.5)
//
// # Calls
//
// Call resolves the overload from the Go argument types (see package
// marshal for the mapping) and dispatches it through the bridge.
// CallBase always runs the native body, CallSignature skips resolution.
//
// Pointer and reference arguments accept Go pointers and slices. Non-const
// pointees are copied back once the call returns:
//
//	var out int
//	obj.Call(ctx, "foo", &out)
//
// # Hosts
//
// A host is any Go value paired with an object. Its exported methods named
// after virtual operations in snake_case become overrides:
//
//	type pyObject struct{}
//
//	func (p *pyObject) GetPythonMember(ctx context.Context) int { return 2 }
//
//	obj, err := cls.NewWithHost(ctx, &pyObject{})
//
// An override may take a context.Context and the paired *Object before its
// native parameters, and may return an error last. Hosts that implement
// Overrider name their overrides explicitly.
//
// Native code calling a virtual member through the cxxabi.vcall import
// reaches the host override the same way a Go-side Call does.
//
// # Lifetime
//
// Destroy runs the destructor, unpairs the host, frees the storage and
// releases the handle. Close destroys every object still alive.
package runtime
