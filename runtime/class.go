package runtime

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
	"github.com/wippyai/cxxbridge/errors"
	"github.com/wippyai/cxxbridge/marshal"
	"github.com/wippyai/cxxbridge/resolve"
)

// Class is a registered catalog linked against the runtime's library.
type Class struct {
	rt         *Runtime
	cat        *catalog.Catalog
	resolver   *resolve.Resolver
	unresolved []string
	layout     abi.Layout
}

func (c *Class) Name() string                { return c.cat.Class() }
func (c *Class) Catalog() *catalog.Catalog   { return c.cat }
func (c *Class) Layout() abi.Layout          { return c.layout }
func (c *Class) Resolver() *resolve.Resolver { return c.resolver }

// Unresolved returns the symbols that were missing at registration.
func (c *Class) Unresolved() []string {
	return append([]string(nil), c.unresolved...)
}

// New constructs an object with the constructor overload matching args.
// A class without declared constructors is default-constructible only.
func (c *Class) New(ctx context.Context, args ...any) (*Object, error) {
	return c.construct(ctx, nil, args)
}

// NewWithHost constructs an object and pairs it with host. The pairing is
// made once the native constructor has returned.
func (c *Class) NewWithHost(ctx context.Context, host any, args ...any) (*Object, error) {
	if host == nil {
		return nil, errors.InvalidInput(errors.PhaseIdentity, "nil host")
	}
	return c.construct(ctx, host, args)
}

func (c *Class) construct(ctx context.Context, host any, args []any) (*Object, error) {
	ctor, err := c.constructor(args)
	if err != nil {
		return nil, err
	}

	var overrides *hostOverrides
	if host != nil {
		if overrides, err = extractOverrides(host, c.cat); err != nil {
			return nil, err
		}
		if h, err := c.rt.registry.LookupNative(host); err == nil {
			e := errors.AlreadyBound("host", fmt.Sprintf("%T", host))
			e.Detail += fmt.Sprintf(" (paired with %v)", h)
			return nil, e
		}
	}

	lib := c.rt.lib
	addr, err := lib.Allocator().Alloc(c.layout.Size, c.layout.Align)
	if err != nil {
		return nil, err
	}
	if err := lib.Memory().Write(addr, make([]byte, c.layout.Size)); err != nil {
		lib.Allocator().Free(addr, c.layout.Size, c.layout.Align)
		return nil, err
	}

	h := c.rt.objects.NewFromRep(c.Name(), addr)
	if h == 0 {
		lib.Allocator().Free(addr, c.layout.Size, c.layout.Align)
		return nil, errors.New(errors.PhaseLink, errors.KindAllocation).
			Type(c.Name()).
			Detail("no handle for storage at %#x", addr).
			Build()
	}
	o := &Object{class: c, handle: h, addr: addr}

	c.rt.mu.Lock()
	c.rt.live[h] = o
	c.rt.mu.Unlock()

	constructed := false
	fail := func(err error) (*Object, error) {
		// a constructed object is destructed before its storage goes back
		if dtor := c.cat.DestructorSig(); constructed && dtor != nil {
			if _, derr := o.dispatch(ctx, dtor, nil, true); derr != nil {
				err = multierr.Append(err, derr)
			}
		}
		o.destroyed.Store(true)
		c.rt.forget(o)
		lib.Allocator().Free(addr, c.layout.Size, c.layout.Align)
		return nil, err
	}

	if ctor != nil {
		if _, err := o.dispatch(ctx, ctor, args, true); err != nil {
			return fail(err)
		}
	}
	constructed = true

	if host != nil {
		if err := o.bind(host, overrides); err != nil {
			return fail(err)
		}
	}

	Logger().Debug("object constructed",
		zap.String("class", c.Name()),
		zap.Stringer("handle", h),
		zap.Uint32("addr", addr),
		zap.Bool("host", host != nil))
	return o, nil
}

// constructor resolves the constructor overload for args. It returns nil
// for the implicit default constructor.
func (c *Class) constructor(args []any) (*catalog.Signature, error) {
	name := c.cat.ShortName()
	if !c.cat.Has(name) {
		if len(args) == 0 {
			return nil, nil
		}
		types, _ := marshal.DescribeAll(args)
		return nil, errors.NoMatchingOverload(c.Name()+"::"+name, name+"("+abi.JoinTypes(types)+")", nil)
	}
	types, err := marshal.DescribeAll(args)
	if err != nil {
		return nil, err
	}
	m, err := c.resolver.Resolve(name, types)
	if err != nil {
		return nil, err
	}
	return m.Signature, nil
}

func (r *Runtime) forget(o *Object) {
	r.mu.Lock()
	delete(r.live, o.handle)
	r.mu.Unlock()
	r.objects.Release(o.handle)
}
