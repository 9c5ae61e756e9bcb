// Package metrics provides runtime metrics collection.
// It wraps Prometheus collectors on a private registry and implements
// runtime.Metrics, so a Collector can be passed to runtime.WithMetrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/resource"
)

// Collector provides runtime metrics collection.
type Collector struct {
	registry *prometheus.Registry

	// Binding metrics
	nativeCalls    *prometheus.CounterVec
	missingEntries *prometheus.CounterVec

	// Dispatch metrics
	eventsDispatched *prometheus.CounterVec
	asyncErrors      *prometheus.CounterVec
	guestTraps       *prometheus.CounterVec
	flushLatency     prometheus.Histogram

	// Token metrics
	liveTokens    prometheus.Gauge
	tokensCreated prometheus.Counter
	tokensDropped prometheus.Counter

	uptime    prometheus.GaugeFunc
	startTime time.Time

	mu       sync.Mutex
	observed []*resource.Table
}

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "ecsact"
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	c.nativeCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "native",
			Name:      "calls_total",
			Help:      "Total number of calls into resolved entry points",
		},
		[]string{"symbol"},
	)

	c.missingEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "native",
			Name:      "missing_entry_points_total",
			Help:      "Total number of operations that failed because an entry point did not resolve",
		},
		[]string{"symbol"},
	)

	c.eventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dispatched_total",
			Help:      "Total number of component events delivered to subscribers",
		},
		[]string{"event"},
	)

	c.asyncErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "async",
			Name:      "errors_total",
			Help:      "Total number of async errors reported by the runtime",
		},
		[]string{"error"},
	)

	c.guestTraps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guest",
			Name:      "traps_total",
			Help:      "Total number of faults raised inside guest systems",
		},
		[]string{"system"},
	)

	c.flushLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "async",
			Name:      "flush_duration_seconds",
			Help:      "Time taken by one runner tick",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~200ms
		},
	)

	c.liveTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "live",
			Help:      "Current number of user-data tokens handed to native code",
		},
	)

	c.tokensCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "created_total",
			Help:      "Total number of user-data tokens created",
		},
	)

	c.tokensDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "dropped_total",
			Help:      "Total number of user-data tokens released",
		},
	)

	c.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Collector uptime in seconds",
		},
		func() float64 { return time.Since(c.startTime).Seconds() },
	)

	c.registry.MustRegister(
		c.nativeCalls,
		c.missingEntries,
		c.eventsDispatched,
		c.asyncErrors,
		c.guestTraps,
		c.flushLatency,
		c.liveTokens,
		c.tokensCreated,
		c.tokensDropped,
		c.uptime,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// NativeCall counts a call into a resolved entry point.
func (c *Collector) NativeCall(symbol string) {
	c.nativeCalls.WithLabelValues(symbol).Inc()
}

// MissingEntryPoint counts an operation rejected for an unresolved entry point.
func (c *Collector) MissingEntryPoint(symbol string) {
	c.missingEntries.WithLabelValues(symbol).Inc()
}

// EventDispatched counts a component event delivered to subscribers.
func (c *Collector) EventDispatched(ev abi.Event) {
	c.eventsDispatched.WithLabelValues(ev.String()).Inc()
}

// AsyncError counts an async error event.
func (c *Collector) AsyncError(err abi.AsyncError) {
	c.asyncErrors.WithLabelValues(err.String()).Inc()
}

// GuestTrap counts a guest system fault.
func (c *Collector) GuestTrap(system abi.SystemID) {
	c.guestTraps.WithLabelValues(strconv.Itoa(int(system))).Inc()
}

// RecordFlush records the duration of one runner tick.
func (c *Collector) RecordFlush(d time.Duration) {
	c.flushLatency.Observe(d.Seconds())
}

// Observe counts tokens of t. The live gauge starts from the table's
// current size.
func (c *Collector) Observe(t *resource.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.observed {
		if o == t {
			return
		}
	}
	c.observed = append(c.observed, t)
	c.liveTokens.Add(float64(t.Len()))
	t.Subscribe(c)
}

// Stop detaches the collector from every observed table.
func (c *Collector) Stop() {
	c.mu.Lock()
	observed := c.observed
	c.observed = nil
	c.mu.Unlock()
	for _, t := range observed {
		t.Unsubscribe(c)
	}
}

// OnResourceEvent implements resource.Observer.
func (c *Collector) OnResourceEvent(e resource.Event) {
	switch e.Type {
	case resource.EventCreated:
		c.tokensCreated.Inc()
		c.liveTokens.Inc()
	case resource.EventDropped:
		c.tokensDropped.Inc()
		c.liveTokens.Dec()
	}
}
