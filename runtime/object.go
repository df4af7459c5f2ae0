package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
	"github.com/wippyai/cxxbridge/dispatch"
	"github.com/wippyai/cxxbridge/errors"
	"github.com/wippyai/cxxbridge/marshal"
)

// Object is a live native object. It satisfies marshal.Object, so it can be
// passed wherever its class is expected by pointer or reference.
type Object struct {
	class     *Class
	overrides *hostOverrides
	handle    abi.Handle
	addr      uint32
	destroyed atomic.Bool
	mu        sync.RWMutex
}

func (o *Object) ClassName() string  { return o.class.Name() }
func (o *Object) Address() uint32    { return o.addr }
func (o *Object) Handle() abi.Handle { return o.handle }
func (o *Object) Class() *Class      { return o.class }
func (o *Object) Destroyed() bool    { return o.destroyed.Load() }

func (o *Object) String() string {
	return fmt.Sprintf("%s%s@%#x", o.class.Name(), o.handle, o.addr)
}

func (o *Object) alive() error {
	if o.destroyed.Load() {
		return errors.Destroyed(o.class.Name(), o.handle)
	}
	return nil
}

// Call resolves op against args and invokes it. Virtual operations run the
// paired host's override when it has one.
func (o *Object) Call(ctx context.Context, op string, args ...any) (any, error) {
	return o.call(ctx, op, args, false)
}

// CallBase invokes the native implementation of op even when the paired
// host overrides it.
func (o *Object) CallBase(ctx context.Context, op string, args ...any) (any, error) {
	return o.call(ctx, op, args, true)
}

func (o *Object) call(ctx context.Context, op string, args []any, forceNative bool) (any, error) {
	if err := o.alive(); err != nil {
		return nil, err
	}
	types, err := marshal.DescribeAll(args)
	if err != nil {
		return nil, err
	}
	m, err := o.class.resolver.Resolve(op, types)
	if err != nil {
		return nil, err
	}
	if m.Signature.IsLifecycle() {
		return nil, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Operation(o.class.Name()+"::"+op).
			Detail("lifecycle members run only through New and Destroy").
			Build()
	}
	return o.dispatch(ctx, m.Signature, args, forceNative)
}

// CallSignature invokes a pre-resolved signature, skipping overload
// resolution.
func (o *Object) CallSignature(ctx context.Context, sig *catalog.Signature, args ...any) (any, error) {
	if err := o.alive(); err != nil {
		return nil, err
	}
	if sig.Class != o.class.Name() {
		return nil, errors.New(errors.PhaseDispatch, errors.KindTypeMismatch).
			Type(o.class.Name()).
			Detail("signature %s belongs to %s", sig.Prototype(), sig.Class).
			Build()
	}
	if sig.IsLifecycle() {
		return nil, errors.InvalidInput(errors.PhaseDispatch, "lifecycle members run only through New and Destroy")
	}
	return o.dispatch(ctx, sig, args, false)
}

func (o *Object) dispatch(ctx context.Context, sig *catalog.Signature, args []any, forceNative bool) (any, error) {
	rt := o.class.rt
	lib := rt.lib
	frame, err := marshal.Lower(lib.Memory(), lib.Allocator(), lib.Model(), sig.Types(), args)
	if err != nil {
		return nil, err
	}

	res, err := rt.bridge.Dispatch(ctx, &dispatch.Call{
		Signature: sig,
		Handle:    o.handle,
		This:      o.addr,
		Params:    frame.Params,
		Native:    forceNative,
	})
	if err != nil {
		frame.Release()
		return nil, err
	}
	if err := frame.Finish(); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return rt.lift(sig.Result, res[0])
}

// lift converts a raw value, mapping class pointers to live objects.
func (r *Runtime) lift(t abi.Type, raw uint64) (any, error) {
	v, err := marshal.Lift(r.lib.Memory(), r.lib.Model(), t, raw)
	if err != nil {
		return nil, err
	}
	return r.objectify(v), nil
}

func (r *Runtime) objectify(v any) any {
	p, ok := v.(marshal.Pointer)
	if !ok || p.IsNull() || p.Elem().Kind != abi.KindClass {
		return v
	}
	if obj, ok := r.ObjectAt(p.Addr); ok {
		return obj
	}
	return v
}

// Field reads a declared data member.
func (o *Object) Field(name string) (any, error) {
	if err := o.alive(); err != nil {
		return nil, err
	}
	f, addr, err := o.field(name)
	if err != nil {
		return nil, err
	}
	lib := o.class.rt.lib
	v, err := marshal.ReadValue(lib.Memory(), lib.Model(), addr, f.Type)
	if err != nil {
		return nil, err
	}
	return o.class.rt.objectify(v), nil
}

// SetField writes a declared data member. Native code sees the write on
// its next access.
func (o *Object) SetField(name string, v any) error {
	if err := o.alive(); err != nil {
		return err
	}
	f, addr, err := o.field(name)
	if err != nil {
		return err
	}
	lib := o.class.rt.lib
	return marshal.WriteValue(lib.Memory(), lib.Model(), addr, f.Type, v)
}

func (o *Object) field(name string) (catalog.Field, uint32, error) {
	f, idx, ok := o.class.cat.Field(name)
	if !ok {
		return f, 0, errors.NotFound(errors.PhaseMarshal, "field", o.class.Name()+"::"+name)
	}
	return f, o.addr + o.class.layout.Offsets[idx], nil
}

// Attach pairs the object with host. Exported host methods named after
// virtual operations become overrides.
func (o *Object) Attach(host any) error {
	if err := o.alive(); err != nil {
		return err
	}
	overrides, err := extractOverrides(host, o.class.cat)
	if err != nil {
		return err
	}
	return o.bind(host, overrides)
}

func (o *Object) bind(host any, overrides *hostOverrides) error {
	// install first so a concurrent dispatch never sees a marked op without a function
	o.mu.Lock()
	prev := o.overrides
	o.overrides = overrides
	o.mu.Unlock()

	if err := o.class.rt.registry.Bind(o.handle, host, overrides.names()...); err != nil {
		o.mu.Lock()
		o.overrides = prev
		o.mu.Unlock()
		return err
	}
	Logger().Debug("host attached",
		zap.String("class", o.class.Name()),
		zap.Stringer("handle", o.handle),
		zap.Strings("overrides", overrides.names()))
	return nil
}

// Host returns the paired host object.
func (o *Object) Host() (any, error) {
	return o.class.rt.registry.LookupHost(o.handle)
}

// Override switches routing of a virtual operation to the host on or off.
// Turning it on requires the host to implement the operation.
func (o *Object) Override(op string, on bool) error {
	if !o.class.cat.IsVirtual(op) {
		return errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Operation(o.class.Name()+"::"+op).
			Detail("not a virtual operation").
			Build()
	}
	if on {
		if _, ok := o.override(op); !ok {
			return errors.NotFound(errors.PhaseHost, "override", o.class.Name()+"::"+op)
		}
	}
	return o.class.rt.registry.Override(o.handle, op, on)
}

func (o *Object) override(op string) (hostFunc, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.overrides.lookup(op)
}

// Destroy runs the native destructor, removes the host pairing, frees the
// storage and releases the handle, in that order. A second Destroy fails
// with Destroyed.
func (o *Object) Destroy(ctx context.Context) error {
	if !o.destroyed.CompareAndSwap(false, true) {
		return errors.Destroyed(o.class.Name(), o.handle)
	}
	rt := o.class.rt

	var err error
	if dtor := o.class.cat.DestructorSig(); dtor != nil {
		_, err = o.dispatch(ctx, dtor, nil, true)
	}

	if uerr := rt.registry.Unbind(o.handle); uerr == nil {
		Logger().Debug("host detached", zap.Stringer("handle", o.handle))
	}

	rt.lib.Allocator().Free(o.addr, o.class.layout.Size, o.class.layout.Align)
	rt.forget(o)
	return err
}
