package runtime

import (
	"github.com/wippyai/cxxbridge/metrics"
)

// Options configures a Runtime.
type Options struct {
	// Metrics, when set, observes bindings and dispatch.
	Metrics *metrics.Collector

	// Observers are subscribed to the identity registry and the dispatch
	// bridge; each must implement identity.Observer, dispatch.Observer or both.
	Observers []any

	// StrictLink fails Register when a signature's symbol is missing from
	// the library. Otherwise the miss is logged and calls fail with
	// UnresolvedSymbol.
	StrictLink bool
}

// DefaultOptions returns the default runtime options.
func DefaultOptions() Options {
	return Options{}
}
