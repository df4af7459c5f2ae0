// Package abi describes native call shapes at the parameter level.
//
// A Type is one parameter descriptor: a fundamental kind or a named class,
// optionally wrapped in pointers and references, each level carrying its own
// const qualification. Equivalence is strict: "int*", "const int*" and "int&"
// are three distinct descriptors.
//
//	t, _ := abi.Parse("const char*")
//	t.IsCString()              // true
//	t.IsOutput()               // false, the pointee is const
//	abi.Int.Ptr().IsOutput()   // true
//
// Convert implements the closed conversion table used by overload
// resolution: exact matches and integer widening by conversion rank.
//
// DataModel fixes fundamental sizes for a target (ILP32 for wasm32, LP64) and
// LayoutFields computes a C struct layout for a class's data members.
package abi
