package runtime

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
	"github.com/wippyai/cxxbridge/dispatch"
	"github.com/wippyai/cxxbridge/errors"
	"github.com/wippyai/cxxbridge/identity"
	"github.com/wippyai/cxxbridge/native"
	"github.com/wippyai/cxxbridge/resolve"
)

// Runtime binds catalogs to a native library and owns the objects created
// through them.
type Runtime struct {
	lib      native.Library
	registry *identity.Registry
	objects  *native.Objects
	bridge   *dispatch.Bridge
	classes  map[string]*Class
	live     map[abi.Handle]*Object
	opts     Options
	mu       sync.RWMutex
}

// New creates a runtime over lib.
func New(lib native.Library, opts Options) (*Runtime, error) {
	if lib == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil library")
	}
	r := &Runtime{
		lib:      lib,
		registry: identity.NewRegistry(),
		objects:  native.NewObjects(),
		classes:  make(map[string]*Class),
		live:     make(map[abi.Handle]*Object),
		opts:     opts,
	}
	r.bridge = dispatch.New(r.registry, r.objects, hostInvoker{rt: r})

	observers := opts.Observers
	if opts.Metrics != nil {
		observers = append([]any{opts.Metrics}, observers...)
	}
	for _, o := range observers {
		matched := false
		if io, ok := o.(identity.Observer); ok {
			r.registry.Subscribe(io)
			matched = true
		}
		if do, ok := o.(dispatch.Observer); ok {
			r.bridge.Subscribe(do)
			matched = true
		}
		if !matched {
			return nil, errors.New(errors.PhaseLoad, errors.KindTypeMismatch).
				Value(o).
				Detail("observer %T implements neither identity.Observer nor dispatch.Observer", o).
				Build()
		}
	}
	return r, nil
}

// Register seals cat and links every signature against the library.
func (r *Runtime) Register(cat *catalog.Catalog) (*Class, error) {
	cat.Seal()

	layout, err := cat.Layout(r.lib.Model())
	if err != nil {
		return nil, err
	}

	c := &Class{
		rt:       r,
		cat:      cat,
		layout:   layout,
		resolver: resolve.New(cat),
	}

	funcs := make(map[*catalog.Signature]native.Func)
	for _, sig := range cat.Signatures() {
		fn, ok := r.lib.Lookup(sig.Symbol)
		if !ok {
			c.unresolved = append(c.unresolved, sig.Symbol)
			Logger().Warn("unresolved symbol",
				zap.String("class", cat.Class()),
				zap.String("signature", sig.String()),
				zap.String("symbol", sig.Symbol))
			continue
		}
		funcs[sig] = fn
	}
	if len(c.unresolved) > 0 && r.opts.StrictLink {
		return nil, errors.New(errors.PhaseLink, errors.KindUnresolvedSymbol).
			Type(cat.Class()).
			Candidates(c.unresolved...).
			Detail("%d symbols missing from library", len(c.unresolved)).
			Build()
	}

	r.mu.Lock()
	if _, dup := r.classes[cat.Class()]; dup {
		r.mu.Unlock()
		return nil, errors.New(errors.PhaseLink, errors.KindInvalidInput).
			Type(cat.Class()).
			Detail("class registered twice").
			Build()
	}
	r.classes[cat.Class()] = c
	r.mu.Unlock()

	r.bridge.AddClass(cat, funcs)
	Logger().Debug("class registered",
		zap.String("class", cat.Class()),
		zap.Int("signatures", len(funcs)),
		zap.Int("unresolved", len(c.unresolved)),
		zap.Uint32("size", layout.Size))
	return c, nil
}

// RegisterAll registers several catalogs, stopping at the first failure.
func (r *Runtime) RegisterAll(cats []*catalog.Catalog) error {
	for _, cat := range cats {
		if _, err := r.Register(cat); err != nil {
			return err
		}
	}
	return nil
}

// Class returns a registered class.
func (r *Runtime) Class(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// Classes returns the registered class names, sorted.
func (r *Runtime) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ObjectOf returns the live object paired with host.
func (r *Runtime) ObjectOf(host any) (*Object, error) {
	h, err := r.registry.LookupNative(host)
	if err != nil {
		return nil, err
	}
	o, ok := r.object(h)
	if !ok {
		return nil, errors.Unbound("handle", h)
	}
	return o, nil
}

// ObjectAt returns the live object stored at addr.
func (r *Runtime) ObjectAt(addr uint32) (*Object, bool) {
	h, ok := r.objects.HandleOf(addr)
	if !ok {
		return nil, false
	}
	return r.object(h)
}

func (r *Runtime) object(h abi.Handle) (*Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.live[h]
	return o, ok
}

// Live returns the number of live objects.
func (r *Runtime) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

func (r *Runtime) Registry() *identity.Registry { return r.registry }
func (r *Runtime) Bridge() *dispatch.Bridge     { return r.bridge }
func (r *Runtime) Objects() *native.Objects     { return r.objects }
func (r *Runtime) Library() native.Library      { return r.lib }

// Close destroys every live object and closes the library.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.RLock()
	objs := make([]*Object, 0, len(r.live))
	for _, o := range r.live {
		objs = append(objs, o)
	}
	r.mu.RUnlock()
	sort.Slice(objs, func(i, j int) bool { return objs[i].handle < objs[j].handle })

	var err error
	for _, o := range objs {
		err = multierr.Append(err, o.Destroy(ctx))
	}
	r.objects.Close()
	return multierr.Append(err, r.lib.Close(ctx))
}
