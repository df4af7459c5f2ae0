// Package resolve selects the catalog overload a call site refers to.
//
// Resolution is static: a generated thunk resolves its call shape once and
// then calls the selected signature directly.
//
//	m, err := resolve.Resolve(cat, "foo", []abi.Type{abi.Int, abi.Int, abi.Int})
//	// m.Signature is foo(int, int, int)
//
//	_, err = resolve.Resolve(cat, "foo", []abi.Type{abi.Int, abi.Int})
//	// errors.Is(err, errors.ErrNoMatchingOverload)
//
// The conversion table is closed: an argument is accepted by a parameter of
// the equivalent descriptor, or by a wider integer parameter. Values never
// convert to pointers, pointers never convert to references and const is
// never added or removed. Ties between widening-only candidates are
// reported as AmbiguousOverload.
package resolve
