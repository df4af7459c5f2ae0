// Package mangle computes and decodes Itanium C++ ABI symbol names for
// catalog signatures.
//
// Only the subset a binding needs is covered: free and member functions,
// complete object constructors (C1) and destructors (D1), vtables, builtin
// types, classes with "::" qualification, pointers, references and const.
// Substitutions (S_, S0_, ...) are emitted and resolved as the ABI requires,
// so overloads differing only in passing convention get distinct names:
//
//	mangle.Method("NonVirtual", "foo", []abi.Type{abi.Int.Ptr(), abi.Int, abi.Int.Ptr()})
//	// _ZN10NonVirtual3fooEPiiS0_
//
// Demangle reverses the encoding into a Symbol with parsed parameter types.
package mangle
