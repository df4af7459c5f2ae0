package dispatch

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/cxxbridge/catalog"
	"github.com/wippyai/cxxbridge/errors"
	"github.com/wippyai/cxxbridge/identity"
	"github.com/wippyai/cxxbridge/native"
)

// Bridge routes calls on catalog signatures either to native code or to the
// host override registered for the receiver.
//
// Constructors, destructors and non-virtual methods always run natively. A
// virtual method runs the host override only when the receiver has a binding
// whose override table marks the operation. No lock is held while a call
// runs, so overrides may call back across the boundary freely.
//
// Bridge is thread-safe.
type Bridge struct {
	registry  *identity.Registry
	objects   *native.Objects
	invoker   HostInvoker
	classes   map[string]*class
	observers []subscriber
	nextSub   uint64
	obsMu     sync.RWMutex
	mu        sync.RWMutex
}

type class struct {
	catalog *catalog.Catalog
	funcs   map[*catalog.Signature]native.Func
}

// New creates a bridge over a registry and an object table. invoker runs
// host overrides.
func New(registry *identity.Registry, objects *native.Objects, invoker HostInvoker) *Bridge {
	return &Bridge{
		registry: registry,
		objects:  objects,
		invoker:  invoker,
		classes:  make(map[string]*class),
	}
}

// AddClass makes a catalog's signatures dispatchable. funcs holds the linked
// native implementation of each signature; missing entries fail at call time
// with UnresolvedSymbol.
func (b *Bridge) AddClass(cat *catalog.Catalog, funcs map[*catalog.Signature]native.Func) {
	copied := make(map[*catalog.Signature]native.Func, len(funcs))
	for s, f := range funcs {
		copied[s] = f
	}
	b.mu.Lock()
	b.classes[cat.Class()] = &class{catalog: cat, funcs: copied}
	b.mu.Unlock()
}

// Catalog returns the catalog registered for a class.
func (b *Bridge) Catalog(name string) (*catalog.Catalog, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.classes[name]
	if !ok {
		return nil, false
	}
	return c.catalog, true
}

func (b *Bridge) native(sig *catalog.Signature) (native.Func, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.classes[sig.Class]
	if !ok {
		return nil, false
	}
	f, ok := c.funcs[sig]
	return f, ok
}

// Subscribe adds an observer for call transitions. The returned function
// removes this subscription.
func (b *Bridge) Subscribe(o Observer) (cancel func()) {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	b.nextSub++
	id := b.nextSub
	b.observers = append(b.observers[:len(b.observers):len(b.observers)], subscriber{id: id, o: o})
	return func() { b.remove(func(s subscriber) bool { return s.id == id }) }
}

// Unsubscribe removes the first subscription of o. Observers whose dynamic
// type is not comparable are never matched; use the function returned by
// Subscribe for those.
func (b *Bridge) Unsubscribe(o Observer) {
	if o == nil || !reflect.ValueOf(o).Comparable() {
		return
	}
	b.remove(func(s subscriber) bool {
		return reflect.ValueOf(s.o).Comparable() && s.o == o
	})
}

// remove replaces the observer slice so snapshots taken by transition stay
// untouched.
func (b *Bridge) remove(match func(subscriber) bool) {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	for i, s := range b.observers {
		if match(s) {
			next := make([]subscriber, 0, len(b.observers)-1)
			next = append(next, b.observers[:i]...)
			b.observers = append(next, b.observers[i+1:]...)
			return
		}
	}
}

type subscriber struct {
	o  Observer
	id uint64
}

func (b *Bridge) transition(call *Call, to State) {
	from := call.State
	call.State = to
	if to == StateResolvedNative || to == StateResolvedOverride {
		call.resolved = to
	}

	Logger().Debug("dispatch",
		zap.Stringer("call", call.ID),
		zap.String("op", call.Operation()),
		zap.Stringer("handle", call.Handle),
		zap.Stringer("from", from),
		zap.Stringer("to", to))

	b.obsMu.RLock()
	observers := b.observers
	b.obsMu.RUnlock()
	for _, s := range observers {
		s.o.OnDispatchEvent(Event{Call: call, From: from, To: to})
	}
}

// Dispatch runs call and returns its raw result. call.Result and call.Err
// hold the outcome afterwards. Host override errors surface as HostFailure.
func (b *Bridge) Dispatch(ctx context.Context, call *Call) ([]uint64, error) {
	if call.Signature == nil {
		return nil, errors.InvalidInput(errors.PhaseDispatch, "call without signature")
	}
	if call.ID == uuid.Nil {
		call.ID = uuid.New()
	}
	call.State = StateEntered
	call.resolved = StateEntered
	b.transition(call, StateEntered)

	var (
		res []uint64
		err error
	)
	if host, ok := b.route(call); ok {
		b.transition(call, StateResolvedOverride)
		res, err = b.invokeOverride(ctx, host, call)
	} else {
		b.transition(call, StateResolvedNative)
		res, err = b.invokeNative(ctx, call)
	}

	call.Result, call.Err = res, err
	b.transition(call, StateReturned)
	return res, err
}

func (b *Bridge) route(call *Call) (any, bool) {
	if call.Native || !call.Signature.Overridable() || b.registry == nil {
		return nil, false
	}
	host, ok := b.registry.Route(call.Handle, call.Signature.Name)
	if !ok {
		return nil, false
	}
	if c, isChecker := b.invoker.(OverrideChecker); isChecker && !c.HandlesOverride(host, call) {
		Logger().Debug("override does not handle overload",
			zap.String("op", call.Operation()),
			zap.String("signature", call.Signature.Prototype()))
		return nil, false
	}
	return host, true
}

func (b *Bridge) invokeNative(ctx context.Context, call *Call) ([]uint64, error) {
	fn, ok := b.native(call.Signature)
	if !ok || fn == nil {
		Logger().Warn("unresolved native symbol",
			zap.String("op", call.Operation()),
			zap.String("symbol", call.Signature.Symbol))
		return nil, errors.UnresolvedSymbol(call.Operation(), call.Signature.Symbol)
	}
	params := make([]uint64, 0, len(call.Params)+1)
	params = append(params, uint64(call.This))
	params = append(params, call.Params...)
	return fn.Call(native.WithDispatcher(ctx, b), params...)
}

func (b *Bridge) invokeOverride(ctx context.Context, host any, call *Call) ([]uint64, error) {
	if b.invoker == nil {
		return nil, errors.HostFailure(call.Operation(),
			errors.InvalidInput(errors.PhaseDispatch, "no host invoker configured"))
	}
	res, err := b.invoker.InvokeOverride(native.WithDispatcher(ctx, b), host, call)
	if err != nil {
		if e, ok := errors.AsError(err); ok && e.Kind == errors.KindHostFailure && e.Operation == call.Operation() {
			return nil, err
		}
		return nil, errors.HostFailure(call.Operation(), err)
	}
	return res, nil
}

// CallVirtual dispatches a virtual call arriving from native code. this is
// mapped back to its handle and slot to the signature in the class's vtable.
func (b *Bridge) CallVirtual(ctx context.Context, this, slot uint32, params []uint64) ([]uint64, error) {
	h, ok := b.objects.HandleOf(this)
	if !ok {
		return nil, errors.New(errors.PhaseDispatch, errors.KindNotFound).
			Value(this).
			Detail("no live object at %#x", this).
			Build()
	}
	inst, _ := b.objects.Lookup(h)
	cat, ok := b.Catalog(inst.Class)
	if !ok {
		return nil, errors.NotFound(errors.PhaseDispatch, "class", inst.Class)
	}
	sig, ok := cat.BySlot(int(slot))
	if !ok {
		return nil, errors.New(errors.PhaseDispatch, errors.KindNotFound).
			Type(inst.Class).
			Detail("no virtual method in slot %d", slot).
			Build()
	}
	if len(params) != sig.Arity() {
		return nil, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Operation(inst.Class+"::"+sig.Name).
			Detail("%d arguments for %d parameters", len(params), sig.Arity()).
			Build()
	}
	return b.Dispatch(ctx, &Call{
		Signature: sig,
		Handle:    h,
		This:      this,
		Params:    params,
	})
}

var _ native.Dispatcher = (*Bridge)(nil)
