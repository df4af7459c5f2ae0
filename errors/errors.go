package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCatalog  Phase = "catalog"  // signature registration
	PhaseResolve  Phase = "resolve"  // overload resolution
	PhaseIdentity Phase = "identity" // handle <-> host pairing
	PhaseDispatch Phase = "dispatch" // virtual call routing
	PhaseLink     Phase = "link"     // symbol binding against a native library
	PhaseMarshal  Phase = "marshal"  // Go <-> native value conversion
	PhaseLoad     Phase = "load"     // native library loading
	PhaseParse    Phase = "parse"    // type spellings, manifests, symbols
	PhaseHost     Phase = "host"     // host override extraction and invocation
)

// Kind categorizes the error
type Kind string

const (
	KindDuplicateSignature Kind = "duplicate_signature"
	KindNoMatchingOverload Kind = "no_matching_overload"
	KindAmbiguousOverload  Kind = "ambiguous_overload"
	KindAlreadyBound       Kind = "already_bound"
	KindUnbound            Kind = "unbound"
	KindSealed             Kind = "sealed"
	KindUnresolvedSymbol   Kind = "unresolved_symbol"
	KindInvalidInput       Kind = "invalid_input"
	KindNotFound           Kind = "not_found"
	KindTypeMismatch       Kind = "type_mismatch"
	KindUnsupported        Kind = "unsupported"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindAllocation         Kind = "allocation"
	KindHostFailure        Kind = "host_failure"
	KindInvalidData        Kind = "invalid_data"
	KindDestroyed          Kind = "destroyed"
)

// Sentinels for errors.Is. They match any phase.
var (
	ErrDuplicateSignature = &Error{Kind: KindDuplicateSignature}
	ErrNoMatchingOverload = &Error{Kind: KindNoMatchingOverload}
	ErrAmbiguousOverload  = &Error{Kind: KindAmbiguousOverload}
	ErrAlreadyBound       = &Error{Kind: KindAlreadyBound}
	ErrUnbound            = &Error{Kind: KindUnbound}
	ErrUnresolvedSymbol   = &Error{Kind: KindUnresolvedSymbol}
	ErrDestroyed          = &Error{Kind: KindDestroyed}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	Operation  string
	Type       string
	Detail     string
	Candidates []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Operation != "" {
		b.WriteString(" in ")
		b.WriteString(e.Operation)
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if len(e.Candidates) > 0 {
		b.WriteString(" (candidates: ")
		b.WriteString(strings.Join(e.Candidates, "; "))
		b.WriteByte(')')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// IsFatal reports whether err signals a generator defect rather than a
// call-time failure. Duplicate signatures and double binds never occur
// against a correctly generated catalog.
func IsFatal(err error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == KindDuplicateSignature || e.Kind == KindAlreadyBound {
				return true
			}
			err = e.Cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Operation sets the operation name
func (b *Builder) Operation(op string) *Builder {
	b.err.Operation = op
	return b
}

// Type sets the C++ type spelling
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Candidates sets the competing signatures
func (b *Builder) Candidates(c ...string) *Builder {
	b.err.Candidates = c
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the call-boundary taxonomy

// DuplicateSignature reports a signature indistinguishable from one already registered
func DuplicateSignature(op, signature, existing string) *Error {
	return &Error{
		Phase:     PhaseCatalog,
		Kind:      KindDuplicateSignature,
		Operation: op,
		Detail:    fmt.Sprintf("%s is indistinguishable from registered %s", signature, existing),
	}
}

// NoMatchingOverload reports a call shape no registered signature accepts
func NoMatchingOverload(op, call string, tried []string) *Error {
	return &Error{
		Phase:      PhaseResolve,
		Kind:       KindNoMatchingOverload,
		Operation:  op,
		Detail:     fmt.Sprintf("no overload accepts %s", call),
		Candidates: tried,
	}
}

// AmbiguousOverload reports a call shape matched equally well by several signatures
func AmbiguousOverload(op, call string, tied []string) *Error {
	return &Error{
		Phase:      PhaseResolve,
		Kind:       KindAmbiguousOverload,
		Operation:  op,
		Detail:     fmt.Sprintf("call %s is ambiguous", call),
		Candidates: tied,
	}
}

// AlreadyBound reports a second pairing attempt for a handle or host reference
func AlreadyBound(what string, value any) *Error {
	return &Error{
		Phase:  PhaseIdentity,
		Kind:   KindAlreadyBound,
		Detail: fmt.Sprintf("%s %v already has a binding record", what, value),
		Value:  value,
	}
}

// Unbound reports a lookup with no binding record behind it
func Unbound(what string, value any) *Error {
	return &Error{
		Phase:  PhaseIdentity,
		Kind:   KindUnbound,
		Detail: fmt.Sprintf("%s %v has no binding record", what, value),
		Value:  value,
	}
}

// Sealed reports a mutation of a sealed catalog
func Sealed(class string) *Error {
	return &Error{
		Phase:  PhaseCatalog,
		Kind:   KindSealed,
		Detail: fmt.Sprintf("catalog %s is sealed", class),
	}
}

// UnresolvedSymbol reports a catalog entry the native library does not export
func UnresolvedSymbol(op, symbol string) *Error {
	return &Error{
		Phase:     PhaseLink,
		Kind:      KindUnresolvedSymbol,
		Operation: op,
		Detail:    fmt.Sprintf("symbol %s not found", symbol),
		Value:     symbol,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, cxxType string, goValue any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Type:   cxxType,
		Detail: fmt.Sprintf("cannot use Go %T", goValue),
		Value:  goValue,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access at %d (length %d) out of bounds", offset, length),
		Value:  offset,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// HostFailure wraps an error returned by a host override
func HostFailure(op string, cause error) *Error {
	return &Error{
		Phase:     PhaseHost,
		Kind:      KindHostFailure,
		Operation: op,
		Detail:    "host override failed",
		Cause:     cause,
	}
}

// Destroyed reports use of a native object after its destruction
func Destroyed(class string, handle any) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindDestroyed,
		Detail: fmt.Sprintf("%s object %v already destroyed", class, handle),
		Value:  handle,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a library loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
