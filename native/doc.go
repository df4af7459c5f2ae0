// Package native models the native side of the call boundary.
//
// A Library exports functions under their mangled symbols and owns the
// linear memory native objects live in. Two implementations exist: GoLibrary
// runs Go functions over a byte-slice memory, and native/wasm runs a core
// wasm module under wazero.
//
// All values cross as raw 64-bit slots. Member functions take the receiver's
// storage address as their first slot. Native code that needs a virtual call
// goes through CallVirtual, which reaches the Dispatcher carried by the
// context of the call that is currently executing:
//
//	lib.Define("_ZN11SampleClass12cpp_functionEv", func(ctx context.Context, mem *native.LinearMemory, p []uint64) ([]uint64, error) {
//		return native.CallVirtual(ctx, uint32(p[0]), 0)
//	})
//
// Objects tracks live instances by handle and maps raw addresses back to
// handles.
package native
