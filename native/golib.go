package native

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/cxxbridge"
	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
)

// GoFunc implements a native symbol in Go. mem is the library's linear
// memory; params holds raw argument slots, receiver first for members.
type GoFunc func(ctx context.Context, mem *LinearMemory, params []uint64) ([]uint64, error)

// GoOptions configures a GoLibrary.
type GoOptions struct {
	Model      abi.DataModel
	MemorySize uint32 // initial linear memory size in bytes
	MaxMemory  uint32 // growth limit in bytes
	HeapBase   uint32 // first address handed out by the allocator
}

// DefaultGoOptions returns the default options: LP64, 64 KiB of memory
// growing to 16 MiB, heap starting at 1 KiB.
func DefaultGoOptions() GoOptions {
	return GoOptions{
		Model:      abi.LP64,
		MemorySize: 64 << 10,
		MaxMemory:  16 << 20,
		HeapBase:   1 << 10,
	}
}

// GoLibrary is a native library whose symbols are Go functions.
// It is the in-process stand-in for a compiled shared object.
type GoLibrary struct {
	funcs  map[string]GoFunc
	mem    *LinearMemory
	arena  *Arena
	model  abi.DataModel
	mu     sync.RWMutex
	closed bool
}

// NewGoLibrary creates an empty library.
func NewGoLibrary(opts GoOptions) *GoLibrary {
	def := DefaultGoOptions()
	if opts.Model.Name == "" {
		opts.Model = def.Model
	}
	if opts.MemorySize == 0 {
		opts.MemorySize = def.MemorySize
	}
	if opts.MaxMemory == 0 {
		opts.MaxMemory = def.MaxMemory
	}
	if opts.HeapBase == 0 {
		opts.HeapBase = def.HeapBase
	}

	mem := NewLinearMemory(opts.MemorySize, opts.MaxMemory)
	grow := func(need uint32) (uint32, bool) {
		if need <= mem.Size() {
			return mem.Size(), true
		}
		// grow in 64 KiB steps like a wasm memory
		delta := abi.AlignTo(need-mem.Size(), 64<<10)
		if _, ok := mem.Grow(delta); !ok {
			if _, ok := mem.Grow(need - mem.Size()); !ok {
				return mem.Size(), false
			}
		}
		return mem.Size(), true
	}

	return &GoLibrary{
		funcs: make(map[string]GoFunc),
		mem:   mem,
		arena: NewArena(opts.HeapBase, mem.Size(), grow),
		model: opts.Model,
	}
}

// Define exports fn under symbol, replacing any previous definition.
func (l *GoLibrary) Define(symbol string, fn GoFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcs[symbol] = fn
	Logger().Debug("native symbol defined", zap.String("symbol", symbol))
}

// Lookup returns the function exported under symbol.
func (l *GoLibrary) Lookup(symbol string) (Func, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, false
	}
	fn, ok := l.funcs[symbol]
	if !ok {
		return nil, false
	}
	return FuncOf(func(ctx context.Context, params ...uint64) ([]uint64, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn(ctx, l.mem, params)
	}), true
}

// Symbols returns the exported symbols in sorted order.
func (l *GoLibrary) Symbols() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.funcs))
	for s := range l.funcs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (l *GoLibrary) Memory() cxxbridge.Memory       { return l.mem }
func (l *GoLibrary) Allocator() cxxbridge.Allocator { return l.arena }
func (l *GoLibrary) Model() abi.DataModel           { return l.model }

// LinearMemory returns the concrete memory for direct inspection.
func (l *GoLibrary) LinearMemory() *LinearMemory { return l.mem }

// Arena returns the concrete allocator.
func (l *GoLibrary) Arena() *Arena { return l.arena }

// Close drops every symbol. Lookups fail afterwards.
func (l *GoLibrary) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.funcs = nil
	if live := l.arena.Live(); live > 0 {
		Logger().Debug("native library closed with live allocations", zap.Int("live", live))
	}
	return nil
}

var (
	_ Library      = (*GoLibrary)(nil)
	_ SymbolLister = (*GoLibrary)(nil)
)

// MissingSymbol is a Func that always fails with UnresolvedSymbol.
func MissingSymbol(op, symbol string) Func {
	return FuncOf(func(context.Context, ...uint64) ([]uint64, error) {
		return nil, errors.UnresolvedSymbol(op, symbol)
	})
}
