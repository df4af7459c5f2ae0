package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/cxxbridge/errors"
)

// mallocAllocator allocates through the module's exported malloc and free.
// malloc results are expected to be aligned for any fundamental type.
type mallocAllocator struct {
	malloc api.Function
	free   api.Function
}

func (a *mallocAllocator) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}
	res, err := a.malloc.Call(context.Background(), api.EncodeU32(size))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseMarshal, errors.KindAllocation, err, "malloc trapped")
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseMarshal, size, align)
	}
	if align > 1 && ptr%align != 0 {
		a.Free(ptr, size, align)
		return 0, errors.New(errors.PhaseMarshal, errors.KindAllocation).
			Detail("malloc returned %#x, not aligned to %d", ptr, align).
			Build()
	}
	return ptr, nil
}

func (a *mallocAllocator) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}
	if _, err := a.free.Call(context.Background(), api.EncodeU32(ptr)); err != nil {
		Logger().Warn("free trapped", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}
