package wasm

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/cxxbridge"
	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
	"github.com/wippyai/cxxbridge/native"
)

// Library is a core wasm module acting as native code. Exports are looked
// up by their mangled names; the module's linear memory holds the objects.
//
// An instance is not safe for concurrent calls. Nested calls on the same
// goroutine, such as a host override calling back into the module, are fine.
type Library struct {
	runtime  wazero.Runtime
	module   api.Module
	memory   *Memory
	alloc    cxxbridge.Allocator
	symbols  []string
	heapBase uint32
}

// Load compiles and instantiates wasmBytes. The module may import
// cxxabi.vcall(this, slot, argv, argc) -> i64 to make virtual calls.
func Load(ctx context.Context, wasmBytes []byte, cfg Config) (*Library, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	lib, err := load(ctx, rt, wasmBytes, cfg)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return lib, nil
}

func load(ctx context.Context, rt wazero.Runtime, wasmBytes []byte, cfg Config) (*Library, error) {
	_, err := rt.NewHostModuleBuilder(ImportModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(vcall),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI64}).
		WithParameterNames("this", "slot", "argv", "argc").
		Export(ImportVCall).
		Instantiate(ctx)
	if err != nil {
		return nil, errors.Load("instantiate "+ImportModule+" host module", err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(cfg.ModuleName))
	if err != nil {
		return nil, errors.Load("instantiate module", err)
	}

	mem := mod.Memory()
	if mem == nil {
		return nil, errors.Load("module exports no memory", nil)
	}

	lib := &Library{
		runtime: rt,
		module:  mod,
		memory:  &Memory{mem: mem},
	}

	for name := range compiled.ExportedFunctions() {
		lib.symbols = append(lib.symbols, name)
	}
	sort.Strings(lib.symbols)

	malloc := mod.ExportedFunction(exportMalloc)
	free := mod.ExportedFunction(exportFree)
	if malloc != nil && free != nil {
		lib.alloc = &mallocAllocator{malloc: malloc, free: free}
		Logger().Debug("using module allocator")
	} else {
		lib.heapBase = heapBase(mod, cfg)
		lib.alloc = native.NewArena(lib.heapBase, mem.Size(), lib.memory.grow)
		Logger().Debug("using arena allocator", zap.Uint32("heap_base", lib.heapBase))
	}

	Logger().Debug("wasm library loaded",
		zap.String("module", cfg.ModuleName),
		zap.Int("symbols", len(lib.symbols)),
		zap.Uint32("memory", mem.Size()))
	return lib, nil
}

func heapBase(mod api.Module, cfg Config) uint32 {
	if cfg.HeapBase != 0 {
		return cfg.HeapBase
	}
	if g := mod.ExportedGlobal(exportHeapBase); g != nil {
		return api.DecodeU32(g.Get())
	}
	return DefaultHeapBase
}

// Lookup returns the export named symbol.
func (l *Library) Lookup(symbol string) (native.Func, bool) {
	fn := l.module.ExportedFunction(symbol)
	if fn == nil {
		return nil, false
	}
	return &function{fn: fn, symbol: symbol}, true
}

// Symbols returns every exported function name, sorted.
func (l *Library) Symbols() []string {
	out := make([]string, len(l.symbols))
	copy(out, l.symbols)
	return out
}

func (l *Library) Memory() cxxbridge.Memory       { return l.memory }
func (l *Library) Allocator() cxxbridge.Allocator { return l.alloc }
func (l *Library) Model() abi.DataModel           { return abi.ILP32 }

// HeapBase returns the fallback allocator origin, or 0 when the module
// supplies its own allocator.
func (l *Library) HeapBase() uint32 { return l.heapBase }

// Close releases the module and its runtime.
func (l *Library) Close(ctx context.Context) error {
	return l.runtime.Close(ctx)
}

var (
	_ native.Library      = (*Library)(nil)
	_ native.SymbolLister = (*Library)(nil)
)

type function struct {
	fn     api.Function
	symbol string
}

// Call runs the export. Failures raised by virtual calls made from inside
// the module surface as the original error rather than a trap.
func (f *function) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	slot := &callError{}
	ctx = context.WithValue(ctx, callErrorKey{}, slot)
	res, err := f.fn.Call(ctx, params...)
	if slot.err != nil {
		return nil, slot.err
	}
	if err != nil {
		return nil, errors.New(errors.PhaseDispatch, errors.KindHostFailure).
			Operation(f.symbol).
			Cause(err).
			Detail("wasm trap").
			Build()
	}
	return res, nil
}

type callErrorKey struct{}

type callError struct {
	err error
}

// vcall implements cxxabi.vcall. argv points at argc i64 arguments. The
// first result is returned, or 0 for void operations.
func vcall(ctx context.Context, mod api.Module, stack []uint64) {
	this := api.DecodeU32(stack[0])
	slot := api.DecodeU32(stack[1])
	argv := api.DecodeU32(stack[2])
	argc := api.DecodeU32(stack[3])

	res, err := vcallArgs(ctx, mod, this, slot, argv, argc)
	if err != nil {
		if ce, ok := ctx.Value(callErrorKey{}).(*callError); ok && ce.err == nil {
			ce.err = err
		}
		panic(err)
	}
	stack[0] = 0
	if len(res) > 0 {
		stack[0] = res[0]
	}
}

func vcallArgs(ctx context.Context, mod api.Module, this, slot, argv, argc uint32) ([]uint64, error) {
	params := make([]uint64, argc)
	for i := range params {
		v, ok := mod.Memory().ReadUint64Le(argv + uint32(i)*8)
		if !ok {
			return nil, oob(argv+uint32(i)*8, 8)
		}
		params[i] = v
	}
	return native.CallVirtual(ctx, this, slot, params...)
}
