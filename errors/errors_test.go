package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:      PhaseResolve,
				Kind:       KindAmbiguousOverload,
				Operation:  "NonVirtual::foo",
				Type:       "short",
				Detail:     "widening ties",
				Candidates: []string{"foo(int)", "foo(long)"},
			},
			contains: []string{"[resolve]", "ambiguous_overload", "NonVirtual::foo", "short", "widening ties", "foo(int); foo(long)"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseIdentity,
				Kind:  KindUnbound,
			},
			contains: []string{"[identity]", "unbound"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseHost,
				Kind:   KindHostFailure,
				Detail: "override failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[host]", "host_failure", "override failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLoad,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:     PhaseResolve,
		Kind:      KindNoMatchingOverload,
		Operation: "foo",
	}

	if !err.Is(&Error{Phase: PhaseResolve, Kind: KindNoMatchingOverload}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseCatalog, Kind: KindNoMatchingOverload}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseResolve, Kind: KindAmbiguousOverload}) {
		t.Error("Is should not match different kind")
	}

	if !errors.Is(err, ErrNoMatchingOverload) {
		t.Error("errors.Is should match the phase-less sentinel")
	}

	wrapped := fmt.Errorf("thunk: %w", err)
	if !errors.Is(wrapped, ErrNoMatchingOverload) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseResolve, KindAmbiguousOverload).
		Operation("foo").
		Type("short").
		Candidates("foo(int)", "foo(long)").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "one", "two").
		Build()

	if err.Phase != PhaseResolve {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseResolve)
	}
	if err.Kind != KindAmbiguousOverload {
		t.Errorf("Kind = %v, want %v", err.Kind, KindAmbiguousOverload)
	}
	if err.Operation != "foo" {
		t.Errorf("Operation = %v, want foo", err.Operation)
	}
	if err.Type != "short" {
		t.Errorf("Type = %v, want short", err.Type)
	}
	if len(err.Candidates) != 2 || err.Candidates[1] != "foo(long)" {
		t.Errorf("Candidates = %v", err.Candidates)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected one, got two" {
		t.Errorf("Detail = %v, want 'expected one, got two'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("DuplicateSignature", func(t *testing.T) {
		err := DuplicateSignature("foo", "foo(int)", "foo(int)")
		if err.Kind != KindDuplicateSignature || err.Phase != PhaseCatalog {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("AmbiguousOverload", func(t *testing.T) {
		err := AmbiguousOverload("foo", "foo(short)", []string{"foo(int)", "foo(long)"})
		if len(err.Candidates) != 2 {
			t.Errorf("Candidates = %v", err.Candidates)
		}
	})

	t.Run("AlreadyBound", func(t *testing.T) {
		err := AlreadyBound("handle", 7)
		if err.Kind != KindAlreadyBound || err.Value != 7 {
			t.Errorf("got %v value %v", err.Kind, err.Value)
		}
	})

	t.Run("Unbound", func(t *testing.T) {
		err := Unbound("handle", 7)
		if !strings.Contains(err.Error(), "no binding record") {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseMarshal, 1024, 8)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("UnresolvedSymbol", func(t *testing.T) {
		err := UnresolvedSymbol("NonVirtual::foo", "_ZN10NonVirtual3fooEi")
		if err.Value != "_ZN10NonVirtual3fooEi" {
			t.Errorf("Value = %v", err.Value)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseMarshal, 10, 5)
		if err.Value != uint32(10) {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{DuplicateSignature("foo", "a", "b"), "duplicate", true},
		{AlreadyBound("handle", 1), "already bound", true},
		{fmt.Errorf("bind: %w", AlreadyBound("host", "x")), "wrapped", true},
		{Wrap(PhaseDispatch, KindHostFailure, AlreadyBound("handle", 2), "nested"), "cause chain", true},
		{Unbound("handle", 1), "unbound", false},
		{AmbiguousOverload("foo", "x", nil), "ambiguous", false},
		{errors.New("plain"), "plain", false},
		{nil, "nil", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAsError(t *testing.T) {
	inner := Unbound("handle", 3)
	e, ok := AsError(fmt.Errorf("lookup: %w", inner))
	if !ok || e != inner {
		t.Fatalf("AsError() = %v, %v", e, ok)
	}

	outer := HostFailure("A::f", inner)
	if e, _ := AsError(outer); e != outer {
		t.Error("AsError should return the outermost *Error")
	}

	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("plain error matched")
	}
	if _, ok := AsError(nil); ok {
		t.Error("nil matched")
	}
}
