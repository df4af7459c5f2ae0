package runtime

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/catalog"
	"github.com/wippyai/cxxbridge/dispatch"
	"github.com/wippyai/cxxbridge/errors"
	"github.com/wippyai/cxxbridge/marshal"
)

// Overrider lets a host name its overrides explicitly. Keys are virtual
// operation names, values are functions. When a host implements Overrider
// its methods are not scanned.
type Overrider interface {
	Overrides() map[string]any
}

// hostFunc is one override, a bound method or a plain function. It may take
// a context.Context first and the paired *Object next, followed by one Go
// parameter per native parameter. It returns at most one value and an
// optional trailing error.
type hostFunc struct {
	fn       reflect.Value
	name     string
	wantsCtx bool
	wantsObj bool
	hasErr   bool
	prefix   int
}

type hostOverrides struct {
	funcs map[string]hostFunc
}

func (h *hostOverrides) names() []string {
	if h == nil {
		return nil
	}
	names := make([]string, 0, len(h.funcs))
	for n := range h.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (h *hostOverrides) lookup(op string) (hostFunc, bool) {
	if h == nil {
		return hostFunc{}, false
	}
	f, ok := h.funcs[op]
	return f, ok
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	objectType  = reflect.TypeOf((*Object)(nil))
)

// extractOverrides collects the overrides host provides for cat's virtual
// operations. Exported method names are matched in snake_case:
// GetPythonMember overrides get_python_member.
func extractOverrides(host any, cat *catalog.Catalog) (*hostOverrides, error) {
	out := &hostOverrides{funcs: make(map[string]hostFunc)}

	if ov, ok := host.(Overrider); ok {
		for name, fn := range ov.Overrides() {
			if !cat.IsVirtual(name) {
				return nil, notVirtual(cat, name)
			}
			rv := reflect.ValueOf(fn)
			if rv.Kind() != reflect.Func || rv.IsNil() {
				return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
					Operation(cat.Class()+"::"+name).
					Value(fn).
					Detail("override must be a function").
					Build()
			}
			hf, err := newHostFunc(cat, name, rv)
			if err != nil {
				return nil, err
			}
			out.funcs[name] = hf
		}
		return out, nil
	}

	rv := reflect.ValueOf(host)
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() {
			continue
		}
		// promoted from an embedded *Object
		if _, ok := objectType.MethodByName(method.Name); ok {
			continue
		}
		name := toSnakeCase(method.Name)
		if !cat.Has(name) {
			continue
		}
		if !cat.IsVirtual(name) {
			return nil, notVirtual(cat, name)
		}
		hf, err := newHostFunc(cat, name, rv.Method(i))
		if err != nil {
			return nil, err
		}
		out.funcs[name] = hf
	}
	return out, nil
}

func notVirtual(cat *catalog.Catalog, name string) error {
	return errors.New(errors.PhaseHost, errors.KindInvalidInput).
		Operation(cat.Class()+"::"+name).
		Detail("only virtual operations can be overridden").
		Build()
}

func newHostFunc(cat *catalog.Catalog, name string, fn reflect.Value) (hostFunc, error) {
	ft := fn.Type()
	hf := hostFunc{fn: fn, name: name}

	if ft.NumIn() > hf.prefix && ft.In(hf.prefix) == contextType {
		hf.wantsCtx = true
		hf.prefix++
	}
	if ft.NumIn() > hf.prefix && ft.In(hf.prefix) == objectType {
		hf.wantsObj = true
		hf.prefix++
	}

	bad := func(format string, args ...any) (hostFunc, error) {
		return hostFunc{}, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Operation(cat.Class()+"::"+name).
			Type(ft.String()).
			Detail(format, args...).
			Build()
	}
	if ft.IsVariadic() {
		return bad("variadic overrides are not supported")
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		hf.hasErr = ft.Out(0) == errorType
	case 2:
		if ft.Out(1) != errorType {
			return bad("second result must be error")
		}
		hf.hasErr = true
	default:
		return bad("at most one value and an error may be returned")
	}

	arity := false
	for _, sig := range cat.LookupAll(name) {
		if sig.Arity() == ft.NumIn()-hf.prefix {
			arity = true
			break
		}
	}
	if !arity {
		return bad("takes %d native parameters, no %s overload matches", ft.NumIn()-hf.prefix, name)
	}
	return hf, nil
}

func (f hostFunc) returnsValue() bool {
	n := f.fn.Type().NumOut()
	if f.hasErr {
		n--
	}
	return n > 0
}

// hostInvoker connects the dispatch bridge to the runtime's host overrides.
type hostInvoker struct {
	rt *Runtime
}

var _ dispatch.OverrideChecker = hostInvoker{}

func (h hostInvoker) InvokeOverride(ctx context.Context, host any, call *dispatch.Call) ([]uint64, error) {
	return h.rt.invokeOverride(ctx, host, call)
}

// HandlesOverride reports whether the override registered under the call's
// operation name takes the resolved overload's parameters. Other overloads
// of the same name run natively.
func (h hostInvoker) HandlesOverride(_ any, call *dispatch.Call) bool {
	o, ok := h.rt.object(call.Handle)
	if !ok {
		return true
	}
	hf, ok := o.override(call.Signature.Name)
	if !ok {
		return true
	}
	return hf.accepts(call.Signature)
}

// accepts reports whether hf takes sig's native parameters.
func (hf hostFunc) accepts(sig *catalog.Signature) bool {
	return hf.fn.Type().NumIn()-hf.prefix == sig.Arity()
}

// invokeOverride runs the host side of a routed virtual call. Raw
// parameters are lifted to the override's Go parameter types and the
// result is lowered back to a raw slot.
func (r *Runtime) invokeOverride(ctx context.Context, host any, call *dispatch.Call) (res []uint64, err error) {
	o, ok := r.object(call.Handle)
	if !ok {
		return nil, errors.Unbound("handle", call.Handle)
	}
	sig := call.Signature
	hf, ok := o.override(sig.Name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "override", call.Operation())
	}

	ft := hf.fn.Type()
	if !hf.accepts(sig) || len(call.Params) != sig.Arity() {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Operation(call.Operation()).
			Detail("override takes %d parameters, call has %d", ft.NumIn()-hf.prefix, len(call.Params)).
			Build()
	}

	in := make([]reflect.Value, 0, ft.NumIn())
	if hf.wantsCtx {
		in = append(in, reflect.ValueOf(ctx))
	}
	if hf.wantsObj {
		in = append(in, reflect.ValueOf(o))
	}
	for i, t := range sig.Types() {
		v, err := r.lift(t, call.Params[i])
		if err != nil {
			return nil, err
		}
		arg, err := convertArg(v, ft.In(hf.prefix+i))
		if err != nil {
			return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				Operation(call.Operation()).
				Type(t.String()).
				Detail("argument %d: %v", i, err).
				Build()
		}
		in = append(in, arg)
	}

	defer func() {
		if p := recover(); p != nil {
			Logger().Error("host override panicked",
				zap.String("operation", call.Operation()),
				zap.Any("panic", p))
			res = nil
			err = errors.New(errors.PhaseHost, errors.KindHostFailure).
				Operation(call.Operation()).
				Detail("panic: %v", p).
				Build()
		}
	}()

	out := hf.fn.Call(in)
	if hf.hasErr {
		if e := out[len(out)-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
	}
	if sig.Result.Kind == abi.KindVoid {
		return nil, nil
	}
	if !hf.returnsValue() {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Operation(call.Operation()).
			Type(sig.Result.String()).
			Detail("override returns no value").
			Build()
	}
	raw, err := marshal.Encode(r.lib.Model(), sig.Result, out[0].Interface())
	if err != nil {
		return nil, err
	}
	return []uint64{raw}, nil
}

// convertArg fits a lifted value to an override parameter type. Numeric
// values convert between Go numeric types; everything else must be
// assignable.
func convertArg(v any, want reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch want.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, fmt.Errorf("nil for %s", want)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}
	if numeric(rv.Kind()) && numeric(want.Kind()) {
		return rv.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", rv.Type(), want)
}

func numeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: GetHTTPURL -> get_http_url
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if !unicode.IsUpper(r) {
			result.WriteRune(r)
			continue
		}

		end := i + 1
		for end < len(runes) && unicode.IsUpper(runes[end]) {
			end++
		}
		// the last capital of a run starts the next word
		if end > i+1 && end < len(runes) && unicode.IsLower(runes[end]) {
			end--
		}
		if i > 0 {
			result.WriteByte('_')
		}
		for j := i; j < end; j++ {
			result.WriteRune(unicode.ToLower(runes[j]))
		}
		i = end - 1
	}
	return result.String()
}
