// Package errors provides structured error types for cxxbridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the operation name, the C++ type spelling involved,
// the competing signatures of an ambiguous call, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindAmbiguousOverload).
//		Operation("NonVirtual::foo").
//		Candidates("foo(int)", "foo(long)").
//		Detail("widening ties").
//		Build()
//
// Or use convenience constructors for the call-boundary taxonomy:
//
//	err := errors.AlreadyBound("handle", h)
//	err := errors.Unbound("host", ref)
//
// Match kinds with the sentinels regardless of phase:
//
//	if errors.Is(err, cxxerrors.ErrUnbound) { ... }
//
// DuplicateSignature and AlreadyBound indicate generator defects; IsFatal
// reports them so callers can abort instead of surfacing a call-time error.
package errors
