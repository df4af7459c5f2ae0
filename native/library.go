package native

import (
	"context"

	"github.com/wippyai/cxxbridge"
	"github.com/wippyai/cxxbridge/abi"
)

// Func is an exported native function. Parameters and results are raw
// 64-bit slots; for member functions the first parameter is the receiver's
// storage address.
type Func interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// FuncOf adapts a plain function to Func.
type FuncOf func(ctx context.Context, params ...uint64) ([]uint64, error)

func (f FuncOf) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f(ctx, params...)
}

// Library is loaded native code: symbols by mangled name, the linear memory
// its objects live in, and an allocator for object storage and call scratch.
type Library interface {
	Lookup(symbol string) (Func, bool)
	Memory() cxxbridge.Memory
	Allocator() cxxbridge.Allocator
	Model() abi.DataModel
	Close(ctx context.Context) error
}

// SymbolLister is implemented by libraries that can enumerate their exports.
type SymbolLister interface {
	Symbols() []string
}
