package native

import (
	"sort"
	"sync"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
)

// GrowFunc asks the backing memory for at least need bytes in total and
// returns the new usable limit.
type GrowFunc func(need uint32) (uint32, bool)

// Arena is a first-fit allocator over [base, limit) of a linear memory.
// Freed blocks are coalesced; a block ending at the bump pointer gives the
// space back to it. Address 0 is never returned.
//
// Arena is thread-safe.
type Arena struct {
	live  map[uint32]uint32
	grow  GrowFunc
	free  []block
	base  uint32
	top   uint32
	limit uint32
	mu    sync.Mutex
}

type block struct {
	ptr  uint32
	size uint32
}

const minArenaBase = 8

// NewArena creates an allocator handing out addresses in [base, limit).
// grow may be nil for a fixed-size region.
func NewArena(base, limit uint32, grow GrowFunc) *Arena {
	if base < minArenaBase {
		base = minArenaBase
	}
	return &Arena{
		live:  make(map[uint32]uint32),
		grow:  grow,
		base:  base,
		top:   base,
		limit: limit,
	}
}

// Alloc returns an address aligned to align with size bytes available.
func (a *Arena) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseMarshal, "alignment must be a power of two")
	}
	if size == 0 {
		size = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, b := range a.free {
		p := abi.AlignTo(b.ptr, align)
		end := uint64(p) + uint64(size)
		if end > uint64(b.ptr)+uint64(b.size) {
			continue
		}
		a.free = append(a.free[:i], a.free[i+1:]...)
		if p > b.ptr {
			a.insert(block{ptr: b.ptr, size: p - b.ptr})
		}
		if rest := b.ptr + b.size - uint32(end); rest > 0 {
			a.insert(block{ptr: uint32(end), size: rest})
		}
		a.live[p] = size
		return p, nil
	}

	p := abi.AlignTo(a.top, align)
	end := uint64(p) + uint64(size)
	if end > uint64(a.limit) {
		if end > 1<<32-1 || a.grow == nil {
			return 0, errors.AllocationFailed(errors.PhaseMarshal, size, align)
		}
		limit, ok := a.grow(uint32(end))
		if !ok || uint64(limit) < end {
			return 0, errors.AllocationFailed(errors.PhaseMarshal, size, align)
		}
		a.limit = limit
	}
	if p > a.top {
		a.insert(block{ptr: a.top, size: p - a.top})
	}
	a.top = uint32(end)
	a.live[p] = size
	return p, nil
}

// Free releases a block returned by Alloc. Unknown pointers are ignored.
func (a *Arena) Free(ptr, size, align uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, ok := a.live[ptr]
	if !ok {
		return
	}
	delete(a.live, ptr)
	a.insert(block{ptr: ptr, size: n})

	// hand trailing free space back to the bump pointer
	for len(a.free) > 0 {
		last := a.free[len(a.free)-1]
		if last.ptr+last.size != a.top {
			break
		}
		a.top = last.ptr
		a.free = a.free[:len(a.free)-1]
	}
}

// insert adds b to the sorted free list and merges it with its neighbours.
func (a *Arena) insert(b block) {
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].ptr > b.ptr })
	a.free = append(a.free, block{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = b

	if i+1 < len(a.free) && a.free[i].ptr+a.free[i].size == a.free[i+1].ptr {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].ptr+a.free[i-1].size == a.free[i].ptr {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// Live returns the number of outstanding allocations.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// InUse returns the number of bytes held by outstanding allocations.
func (a *Arena) InUse() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n uint32
	for _, s := range a.live {
		n += s
	}
	return n
}

// Top returns the bump pointer.
func (a *Arena) Top() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.top
}
