package native

import (
	"sync"

	"github.com/wippyai/cxxbridge/abi"
)

// Instance is a live native object: its class and storage address.
type Instance struct {
	Class string
	Addr  uint32
}

// Objects is the handle table for live native objects. Handles are dense,
// start at 1 and are reused after Release. Addresses map back to handles so
// calls arriving from native code with a raw this pointer can be routed.
type Objects struct {
	byAddr   map[uint32]abi.Handle
	entries  []objectEntry
	freeList []abi.Handle
	mu       sync.RWMutex
	closed   bool
}

type objectEntry struct {
	inst  Instance
	valid bool
}

// NewObjects creates an empty handle table.
func NewObjects() *Objects {
	return &Objects{
		byAddr:   make(map[uint32]abi.Handle),
		entries:  make([]objectEntry, 0, 64),
		freeList: make([]abi.Handle, 0, 16),
	}
}

// NewFromRep allocates a handle for the object stored at addr.
// Returns 0 once the table is closed or when addr is already owned.
func (o *Objects) NewFromRep(class string, addr uint32) abi.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || addr == 0 {
		return 0
	}
	if _, taken := o.byAddr[addr]; taken {
		return 0
	}

	e := objectEntry{inst: Instance{Class: class, Addr: addr}, valid: true}

	var h abi.Handle
	if len(o.freeList) > 0 {
		h = o.freeList[len(o.freeList)-1]
		o.freeList = o.freeList[:len(o.freeList)-1]
		o.entries[h-1] = e
	} else {
		o.entries = append(o.entries, e)
		h = abi.Handle(len(o.entries))
	}
	o.byAddr[addr] = h
	return h
}

func (o *Objects) get(h abi.Handle) (objectEntry, bool) {
	if h == 0 || int(h) > len(o.entries) {
		return objectEntry{}, false
	}
	e := o.entries[h-1]
	return e, e.valid
}

// Lookup returns the instance behind a handle.
func (o *Objects) Lookup(h abi.Handle) (Instance, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.get(h)
	return e.inst, ok
}

// Rep returns the storage address for a handle.
func (o *Objects) Rep(h abi.Handle) (uint32, bool) {
	inst, ok := o.Lookup(h)
	return inst.Addr, ok
}

// Class returns the class name for a handle.
func (o *Objects) Class(h abi.Handle) (string, bool) {
	inst, ok := o.Lookup(h)
	return inst.Class, ok
}

// HandleOf maps a storage address back to its handle.
func (o *Objects) HandleOf(addr uint32) (abi.Handle, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.byAddr[addr]
	return h, ok
}

// Release frees a handle and returns the instance it named.
func (o *Objects) Release(h abi.Handle) (Instance, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.get(h)
	if !ok {
		return Instance{}, false
	}
	o.entries[h-1] = objectEntry{}
	delete(o.byAddr, e.inst.Addr)
	o.freeList = append(o.freeList, h)
	return e.inst, true
}

// Len returns the number of live handles.
func (o *Objects) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.byAddr)
}

// Each calls fn for every live handle in handle order until fn returns false.
// fn must not call back into the table.
func (o *Objects) Each(fn func(abi.Handle, Instance) bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for i, e := range o.entries {
		if e.valid && !fn(abi.Handle(i+1), e.inst) {
			return
		}
	}
}

// Close drops every handle. NewFromRep fails afterwards.
func (o *Objects) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.entries = nil
	o.freeList = nil
	o.byAddr = make(map[uint32]abi.Handle)
}
