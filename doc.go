// Package cxxbridge checks the contract between a C++ binding generator and
// the host runtime that drives the generated glue.
//
// A generated binding has to get two things right. Overloaded native
// operations that differ only by passing convention (by value, by pointer,
// by const pointer, by reference) must each stay individually selectable.
// Host objects that override native virtual methods must receive the calls
// native code makes on them, and every native object must map back to its
// host counterpart for as long as the pairing lives.
//
// # Architecture Overview
//
//	cxxbridge/           Root package with Memory and Allocator interfaces
//	├── abi/             Parameter descriptors, C type parser, layout, conversions
//	├── mangle/          Itanium C++ ABI name mangling and demangling
//	├── catalog/         Signature catalog per native class, YAML manifests
//	├── resolve/         Overload resolution over a catalog
//	├── identity/        Native handle <-> host object registry, override tables
//	├── dispatch/        Virtual call bridge (native default or host override)
//	├── marshal/         Go values <-> native values, output channel copy-back
//	├── native/          Native library abstraction, Go-backed library, handles
//	│   └── wasm/        wazero-backed native library
//	├── runtime/         High-level classes and objects
//	├── metrics/         Prometheus collectors
//	├── errors/          Structured error types
//	├── internal/
//	│   └── wasmtest/    Hand-assembled wasm modules for tests
//	├── cmd/cxxbridge/   CLI: symbols, resolve, demangle, link, call, explore
//	└── examples/        Runnable programs
//
// # Quick Start
//
//	cat := catalog.New("NonVirtual")
//	cat.AddField("result", abi.Int)
//	cat.Constructor()
//	cat.Method("foo", abi.Int, abi.Int, abi.Int, abi.Int)
//	cat.Method("foo", abi.Int, abi.Int.Ptr(), abi.Int.Ptr(), abi.Int.Ptr())
//
//	rt, _ := runtime.New(lib, runtime.DefaultOptions())
//	cls, _ := rt.Register(cat)
//	obj, _ := cls.New(ctx)
//	defer obj.Destroy(ctx)
//
//	a, b, c := int32(4), int32(1), int32(5)
//	result, _ := obj.Call(ctx, "foo", &a, &b, &c) // resolves foo(int*, int*, int*)
//
// # Thread Safety
//
// Catalogs are immutable once sealed. The identity registry and the native
// handle table are safe for concurrent use. A single Object must not be
// destroyed while another goroutine is calling it.
package cxxbridge
