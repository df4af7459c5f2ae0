package identity

import (
	"github.com/wippyai/cxxbridge/abi"
)

// EventType identifies a registry lifecycle notification.
type EventType uint8

const (
	EventBound EventType = iota
	EventUnbound
	EventOverride
)

func (t EventType) String() string {
	switch t {
	case EventBound:
		return "bound"
	case EventUnbound:
		return "unbound"
	case EventOverride:
		return "override"
	}
	return "unknown"
}

// Event is delivered to observers after a mutation is committed.
// Operation and Overridden are set for EventOverride only.
type Event struct {
	Host       any
	Operation  string
	Handle     abi.Handle
	Type       EventType
	Overridden bool
}

// Observer receives registry lifecycle notifications. Observers run
// synchronously on the mutating goroutine and must not call back into the
// registry's mutating methods.
type Observer interface {
	OnIdentityEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnIdentityEvent(e Event) {
	f(e)
}

// Record is a snapshot of one binding: the native handle, its host
// counterpart and the host-overridden operations.
type Record struct {
	Host      any
	Overrides map[string]bool
	Handle    abi.Handle
}

// Overridden reports whether op is redirected to the host.
func (r Record) Overridden(op string) bool {
	return r.Overrides[op]
}
