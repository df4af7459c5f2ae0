package identity

import (
	"reflect"
	"sort"
	"sync"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
)

// Registry pairs native handles with host objects, one to one in both
// directions, and keeps the override table of each pairing.
//
// Lookups run concurrently. Bind, Unbind and Override are exclusive, and
// Unbind removes both directions in one critical section so no lookup can
// observe half of a stale pair.
//
// Registry is thread-safe.
type Registry struct {
	byHandle  map[abi.Handle]*binding
	byHost    map[any]abi.Handle
	observers []subscriber
	nextSub   uint64
	obsMu     sync.RWMutex
	mu        sync.RWMutex
}

type binding struct {
	host      any
	overrides map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byHandle: make(map[abi.Handle]*binding),
		byHost:   make(map[any]abi.Handle),
	}
}

// Bind pairs h with host and marks the given operations as host-overridden.
// It fails with AlreadyBound when either side already has a binding; an
// existing pairing is never overwritten.
func (r *Registry) Bind(h abi.Handle, host any, overrides ...string) error {
	if err := checkHost(host); err != nil {
		return err
	}
	if !h.Valid() {
		return errors.InvalidInput(errors.PhaseIdentity, "handle 0 is reserved")
	}

	b := &binding{host: host, overrides: make(map[string]bool, len(overrides))}
	for _, op := range overrides {
		b.overrides[op] = true
	}

	r.mu.Lock()
	if _, ok := r.byHandle[h]; ok {
		r.mu.Unlock()
		return errors.AlreadyBound("handle", h)
	}
	if other, ok := r.byHost[host]; ok {
		r.mu.Unlock()
		err := errors.AlreadyBound("host", reflect.TypeOf(host).String())
		err.Detail += " (paired with " + other.String() + ")"
		return err
	}
	r.byHandle[h] = b
	r.byHost[host] = h
	r.mu.Unlock()

	r.notify(Event{Type: EventBound, Handle: h, Host: host})
	return nil
}

// LookupHost returns the host object paired with h.
func (r *Registry) LookupHost(h abi.Handle) (any, error) {
	r.mu.RLock()
	b, ok := r.byHandle[h]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Unbound("handle", h)
	}
	return b.host, nil
}

// LookupNative returns the handle paired with host.
func (r *Registry) LookupNative(host any) (abi.Handle, error) {
	if err := checkHost(host); err != nil {
		return 0, err
	}
	r.mu.RLock()
	h, ok := r.byHost[host]
	r.mu.RUnlock()
	if !ok {
		return 0, errors.Unbound("host", reflect.TypeOf(host).String())
	}
	return h, nil
}

// Unbind removes the pairing of h in both directions. It must be called
// exactly once per pairing, when the native object is destroyed; a second
// call fails with Unbound.
func (r *Registry) Unbind(h abi.Handle) error {
	r.mu.Lock()
	b, ok := r.byHandle[h]
	if !ok {
		r.mu.Unlock()
		return errors.Unbound("handle", h)
	}
	delete(r.byHandle, h)
	delete(r.byHost, b.host)
	r.mu.Unlock()

	r.notify(Event{Type: EventUnbound, Handle: h, Host: b.host})
	return nil
}

// Override marks op as host-overridden (on) or native default (off) for the
// pairing of h.
func (r *Registry) Override(h abi.Handle, op string, on bool) error {
	r.mu.Lock()
	b, ok := r.byHandle[h]
	if !ok {
		r.mu.Unlock()
		return errors.Unbound("handle", h)
	}
	if on {
		b.overrides[op] = true
	} else {
		delete(b.overrides, op)
	}
	host := b.host
	r.mu.Unlock()

	r.notify(Event{Type: EventOverride, Handle: h, Host: host, Operation: op, Overridden: on})
	return nil
}

// Overridden reports whether h has a binding whose override table marks op.
func (r *Registry) Overridden(h abi.Handle, op string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byHandle[h]
	return ok && b.overrides[op]
}

// Route returns the host object to dispatch op to, if h has a binding that
// overrides op. Host and table are read under one lock.
func (r *Registry) Route(h abi.Handle, op string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byHandle[h]
	if !ok || !b.overrides[op] {
		return nil, false
	}
	return b.host, true
}

// Record returns a snapshot of the binding of h.
func (r *Registry) Record(h abi.Handle) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byHandle[h]
	if !ok {
		return Record{}, false
	}
	return b.snapshot(h), true
}

// Records returns snapshots of every binding ordered by handle.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.byHandle))
	for h, b := range r.byHandle {
		out = append(out, b.snapshot(h))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// Len returns the number of live bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}

// Subscribe adds an observer for lifecycle events. The returned function
// removes this subscription and works for any observer, including an
// ObserverFunc.
func (r *Registry) Subscribe(o Observer) (cancel func()) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.observers = append(r.observers[:len(r.observers):len(r.observers)], subscriber{id: id, o: o})
	return func() { r.remove(func(s subscriber) bool { return s.id == id }) }
}

// Unsubscribe removes the first subscription of o. Observers whose dynamic
// type is not comparable, such as ObserverFunc, are never matched; use the
// function returned by Subscribe for those.
func (r *Registry) Unsubscribe(o Observer) {
	if o == nil || !reflect.ValueOf(o).Comparable() {
		return
	}
	r.remove(func(s subscriber) bool {
		return reflect.ValueOf(s.o).Comparable() && s.o == o
	})
}

func (r *Registry) remove(match func(subscriber) bool) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, s := range r.observers {
		if match(s) {
			next := make([]subscriber, 0, len(r.observers)-1)
			next = append(next, r.observers[:i]...)
			r.observers = append(next, r.observers[i+1:]...)
			return
		}
	}
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	observers := r.observers
	r.obsMu.RUnlock()
	for _, s := range observers {
		s.o.OnIdentityEvent(e)
	}
}

type subscriber struct {
	o  Observer
	id uint64
}

func (b *binding) snapshot(h abi.Handle) Record {
	ov := make(map[string]bool, len(b.overrides))
	for k, v := range b.overrides {
		ov[k] = v
	}
	return Record{Handle: h, Host: b.host, Overrides: ov}
}

func checkHost(host any) error {
	if host == nil {
		return errors.InvalidInput(errors.PhaseIdentity, "nil host object")
	}
	v := reflect.ValueOf(host)
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return errors.InvalidInput(errors.PhaseIdentity, "nil host pointer")
	}
	if !v.Comparable() {
		return errors.InvalidInput(errors.PhaseIdentity,
			"host object of type "+reflect.TypeOf(host).String()+" is not comparable")
	}
	return nil
}
