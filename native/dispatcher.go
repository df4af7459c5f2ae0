package native

import (
	"context"

	"github.com/wippyai/cxxbridge/errors"
)

// Dispatcher routes virtual calls made by native code. this is the
// receiver's storage address and slot its vtable index.
type Dispatcher interface {
	CallVirtual(ctx context.Context, this, slot uint32, params []uint64) ([]uint64, error)
}

type dispatcherKey struct{}

// WithDispatcher returns a context carrying d for native code to call back through.
func WithDispatcher(ctx context.Context, d Dispatcher) context.Context {
	return context.WithValue(ctx, dispatcherKey{}, d)
}

// DispatcherFrom returns the dispatcher carried by ctx.
func DispatcherFrom(ctx context.Context) (Dispatcher, bool) {
	d, ok := ctx.Value(dispatcherKey{}).(Dispatcher)
	return d, ok && d != nil
}

// CallVirtual makes a virtual call through the dispatcher carried by ctx.
// Native functions use it wherever C++ would go through the vtable.
func CallVirtual(ctx context.Context, this, slot uint32, params ...uint64) ([]uint64, error) {
	d, ok := DispatcherFrom(ctx)
	if !ok {
		return nil, errors.New(errors.PhaseDispatch, errors.KindNotFound).
			Detail("no dispatcher for virtual call on slot %d", slot).
			Build()
	}
	return d.CallVirtual(ctx, this, slot, params)
}
