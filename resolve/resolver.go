package resolve

import (
	"strings"
	"sync"

	"github.com/wippyai/cxxbridge/abi"
)

// Resolver memoizes successful resolutions over one Source, keyed by
// operation name and argument spellings. Failures are not cached.
//
// Caching is only enabled for sources that report themselves sealed.
//
// Resolver is thread-safe.
type Resolver struct {
	src   Source
	cache map[string]*Match
	mu    sync.RWMutex
}

// New creates a resolver over src.
func New(src Source) *Resolver {
	return &Resolver{
		src:   src,
		cache: make(map[string]*Match),
	}
}

// Source returns the underlying overload source.
func (r *Resolver) Source() Source {
	return r.src
}

// Resolve is the cached form of the package-level Resolve.
func (r *Resolver) Resolve(name string, args []abi.Type) (*Match, error) {
	if !r.cacheable() {
		return Resolve(r.src, name, args)
	}

	key := cacheKey(name, args)
	r.mu.RLock()
	m, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := Resolve(r.src, name, args)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = m
	r.mu.Unlock()
	return m, nil
}

// Len returns the number of cached resolutions.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Reset drops every cached resolution.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]*Match)
	r.mu.Unlock()
}

func (r *Resolver) cacheable() bool {
	s, ok := r.src.(interface{ Sealed() bool })
	return ok && s.Sealed()
}

func cacheKey(name string, args []abi.Type) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}
