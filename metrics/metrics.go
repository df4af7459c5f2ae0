// Package metrics exports Prometheus metrics for bindings and dispatched
// calls. A Collector is subscribed to a runtime through
// runtime.Options.Metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wippyai/cxxbridge/dispatch"
	"github.com/wippyai/cxxbridge/errors"
	"github.com/wippyai/cxxbridge/identity"
)

const namespace = "cxxbridge"

// Collector observes an identity registry and a dispatch bridge.
type Collector struct {
	bindings  prometheus.Gauge
	binds     prometheus.Counter
	unbinds   prometheus.Counter
	overrides *prometheus.CounterVec
	calls     *prometheus.CounterVec
	failures  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	started   map[uuid.UUID]time.Time
	now       func() time.Time
	mu        sync.Mutex
}

// New creates a collector and registers its metrics on reg. A nil reg
// uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		// bindings tracks the live host pairings.
		bindings: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "bindings",
			Help:      "Live native-to-host bindings",
		}),
		binds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "binds_total",
			Help:      "Total host bindings created",
		}),
		unbinds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "unbinds_total",
			Help:      "Total host bindings removed",
		}),
		// Labels: operation, state (on, off)
		overrides: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "override_toggles_total",
			Help:      "Override table changes after binding",
		}, []string{"operation", "state"}),
		// Labels: class, operation, resolution (native, override)
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "calls_total",
			Help:      "Calls dispatched across the boundary",
		}, []string{"class", "operation", "resolution"}),
		// Labels: class, operation, kind (error kind)
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "failures_total",
			Help:      "Dispatched calls that returned an error",
		}, []string{"class", "operation", "kind"}),
		// Labels: class, resolution
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time from entry to return of a dispatched call",
			Buckets:   []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 1e-2, 0.1, 1},
		}, []string{"class", "resolution"}),
		started: make(map[uuid.UUID]time.Time),
		now:     time.Now,
	}
}

// OnIdentityEvent implements identity.Observer.
func (c *Collector) OnIdentityEvent(e identity.Event) {
	switch e.Type {
	case identity.EventBound:
		c.binds.Inc()
		c.bindings.Inc()
	case identity.EventUnbound:
		c.unbinds.Inc()
		c.bindings.Dec()
	case identity.EventOverride:
		state := "off"
		if e.Overridden {
			state = "on"
		}
		c.overrides.WithLabelValues(e.Operation, state).Inc()
	}
}

// OnDispatchEvent implements dispatch.Observer.
func (c *Collector) OnDispatchEvent(e dispatch.Event) {
	call := e.Call
	switch e.To {
	case dispatch.StateEntered:
		c.mu.Lock()
		c.started[call.ID] = c.now()
		c.mu.Unlock()

	case dispatch.StateReturned:
		class, op := call.Signature.Class, call.Signature.Name
		res := resolution(call)
		c.calls.WithLabelValues(class, op, res).Inc()

		if call.Err != nil {
			kind := "unknown"
			if ce, ok := errors.AsError(call.Err); ok {
				kind = string(ce.Kind)
			}
			c.failures.WithLabelValues(class, op, kind).Inc()
		}

		c.mu.Lock()
		start, ok := c.started[call.ID]
		delete(c.started, call.ID)
		c.mu.Unlock()
		if ok {
			c.latency.WithLabelValues(class, res).Observe(c.now().Sub(start).Seconds())
		}
	}
}

func resolution(call *dispatch.Call) string {
	if call.Overridden() {
		return "override"
	}
	return "native"
}

var (
	_ identity.Observer = (*Collector)(nil)
	_ dispatch.Observer = (*Collector)(nil)
)
