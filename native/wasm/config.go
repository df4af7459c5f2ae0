package wasm

// Config configures a wasm library.
type Config struct {
	// ModuleName is the instance name inside the runtime. Empty means anonymous.
	ModuleName string

	// HeapBase is the first address the fallback allocator hands out when the
	// module exports no malloc/free. 0 means the module's __heap_base global,
	// or DefaultHeapBase when it exports none.
	HeapBase uint32

	// MemoryLimitPages caps linear memory in 64 KiB pages. 0 means the wazero default.
	MemoryLimitPages uint32
}

// DefaultHeapBase is the fallback allocator origin for modules that export
// neither malloc nor __heap_base.
const DefaultHeapBase = 1024

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{MemoryLimitPages: 256}
}

// Names of the host import module and its functions.
const (
	ImportModule = "cxxabi"
	ImportVCall  = "vcall"
)

// Export names looked up for an allocator.
const (
	exportMalloc   = "malloc"
	exportFree     = "free"
	exportHeapBase = "__heap_base"
)
