package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "fleetdispatch"
	subsystem = "core"
)

// Collector holds the dispatch core's Prometheus instruments
type Collector struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	scorerEngine     *prometheus.CounterVec
	routeSource      *prometheus.CounterVec
	breakerState     prometheus.Gauge
	timerFirings     *prometheus.CounterVec
	sweeperRecovered prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	deviceQueueDepth prometheus.Gauge
}

// NewCollector creates and registers the core's instruments on a fresh registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "dispatch_total",
			Help: "Dispatch decisions by outcome (dispatched, no_candidate, wrong_state, contended, error)",
		}, []string{"outcome"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name:    "dispatch_duration_seconds",
			Help:    "Latency of one dispatch decision",
			Buckets: prometheus.DefBuckets,
		}),
		scorerEngine: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "scorer_selections_total",
			Help: "Candidate selections by scorer engine (rule, ml)",
		}, []string{"engine"}),
		routeSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "routes_computed_total",
			Help: "Computed routes by source (external, fallback, cache)",
		}, []string{"source"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "routing_breaker_state",
			Help: "Routing circuit breaker state (0 closed, 1 half-open, 2 open)",
		}),
		timerFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "timer_firings_total",
			Help: "Timer callbacks fired by kind (ack_timeout, auto_resolve, sweeper)",
		}, []string{"kind"}),
		sweeperRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "sweeper_recovered_vehicles_total",
			Help: "Vehicles returned to AVAILABLE by the sweeper",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "cache_hits_total",
			Help: "Process-local cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "cache_misses_total",
			Help: "Process-local cache misses",
		}),
		deviceQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "device_queue_depth",
			Help: "Outbound device commands queued while disconnected",
		}),
	}

	registry.MustRegister(
		c.dispatchTotal,
		c.dispatchDuration,
		c.scorerEngine,
		c.routeSource,
		c.breakerState,
		c.timerFirings,
		c.sweeperRecovered,
		c.cacheHits,
		c.cacheMisses,
		c.deviceQueueDepth,
	)
	return c
}

// Registry returns the registry backing /metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordDispatch records one dispatch decision outcome
func (c *Collector) RecordDispatch(outcome string, seconds float64) {
	c.dispatchTotal.WithLabelValues(outcome).Inc()
	c.dispatchDuration.Observe(seconds)
}

// RecordScorer records which engine selected the candidate
func (c *Collector) RecordScorer(engine string) {
	c.scorerEngine.WithLabelValues(engine).Inc()
}

// RecordRoute records a computed route by source
func (c *Collector) RecordRoute(source string) {
	c.routeSource.WithLabelValues(source).Inc()
}

// SetBreakerState publishes the routing breaker state
func (c *Collector) SetBreakerState(state float64) {
	c.breakerState.Set(state)
}

// RecordTimerFiring records one timer callback by kind
func (c *Collector) RecordTimerFiring(kind string) {
	c.timerFirings.WithLabelValues(kind).Inc()
}

// RecordSweeperRecovery records vehicles the sweeper returned to AVAILABLE
func (c *Collector) RecordSweeperRecovery(n int) {
	c.sweeperRecovered.Add(float64(n))
}

// RecordCache records a cache lookup
func (c *Collector) RecordCache(hit bool) {
	if hit {
		c.cacheHits.Inc()
	} else {
		c.cacheMisses.Inc()
	}
}

// SetDeviceQueueDepth publishes the outbound device queue depth
func (c *Collector) SetDeviceQueueDepth(n int) {
	c.deviceQueueDepth.Set(float64(n))
}
