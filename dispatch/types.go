package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
)

// State is the position of a call in the dispatch state machine:
// Entered, then exactly one of ResolvedNative or ResolvedOverride, then Returned.
type State uint8

const (
	StateEntered State = iota
	StateResolvedNative
	StateResolvedOverride
	StateReturned
)

func (s State) String() string {
	switch s {
	case StateEntered:
		return "entered"
	case StateResolvedNative:
		return "resolved_native"
	case StateResolvedOverride:
		return "resolved_override"
	case StateReturned:
		return "returned"
	}
	return "unknown"
}

// Call is one crossing of the boundary toward a catalog signature. Params
// are the raw argument slots without the receiver.
type Call struct {
	Err       error
	Signature *catalog.Signature
	Params    []uint64
	Result    []uint64
	ID        uuid.UUID
	This      uint32
	Handle    abi.Handle
	State     State
	resolved  State
	// Native forces the native implementation, like a qualified
	// Base::method() call in C++.
	Native bool
}

// Operation returns "Class::name" for the call's signature.
func (c *Call) Operation() string {
	return c.Signature.Class + "::" + c.Signature.Name
}

// Resolution returns StateResolvedNative or StateResolvedOverride once the
// call has been routed, StateEntered before.
func (c *Call) Resolution() State {
	return c.resolved
}

// Overridden reports whether the call was routed to a host override.
func (c *Call) Overridden() bool {
	return c.resolved == StateResolvedOverride
}

// Event is a state transition of a call.
type Event struct {
	Call *Call
	From State
	To   State
}

// Observer receives every call transition. Observers run synchronously on the
// calling goroutine and must not block.
type Observer interface {
	OnDispatchEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnDispatchEvent(e Event) {
	f(e)
}

// HostInvoker runs a host override for a call. It lifts call.Params per
// call.Signature, invokes host and returns the encoded result.
type HostInvoker interface {
	InvokeOverride(ctx context.Context, host any, call *Call) ([]uint64, error)
}

// OverrideChecker is implemented by invokers that can tell whether a host
// implements the exact signature of a routed call. A declined call runs
// natively, so overloads the host does not provide keep their native body.
type OverrideChecker interface {
	HandlesOverride(host any, call *Call) bool
}

// HostInvokerFunc adapts a function to HostInvoker.
type HostInvokerFunc func(ctx context.Context, host any, call *Call) ([]uint64, error)

func (f HostInvokerFunc) InvokeOverride(ctx context.Context, host any, call *Call) ([]uint64, error) {
	return f(ctx, host, call)
}
