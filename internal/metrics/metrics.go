package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "vipsync"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"

	// OutcomeNotFound marks a replace that found no existing route.
	OutcomeNotFound = "not_found"
)

// Operation label values for route table mutations.
const (
	OperationReplace = "replace"
	OperationCreate  = "create"
)

// Metrics holds every counter vipsync maintains. A nil *Metrics is valid and
// records nothing, so components can be constructed without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	routeOperations   *prometheus.CounterVec
	peerRoutes        *prometheus.CounterVec
	ticks             *prometheus.CounterVec
	bootstrapAttempts *prometheus.CounterVec
	resolutionMisses  prometheus.Counter
	unknownInterfaces prometheus.Counter
	routeTables       prometheus.Gauge
}

// New creates a Metrics instance registered on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		routeOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_operations_total",
			Help:      "VPC route table mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		peerRoutes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_routes_total",
			Help:      "Host peer route insertions by outcome.",
		}, []string{"outcome"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Reconciliation ticks by outcome.",
		}, []string{"outcome"}),
		bootstrapAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_attempts_total",
			Help:      "Discovery bootstrap attempts by outcome.",
		}, []string{"outcome"}),
		resolutionMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_misses_total",
			Help:      "Addresses that matched no cataloged subnet.",
		}),
		unknownInterfaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_interface_total",
			Help:      "Observed interfaces that were not discovered at bootstrap.",
		}),
		routeTables: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "route_tables",
			Help:      "Route tables in the client pool.",
		}),
	}

	m.registry.MustRegister(
		m.routeOperations,
		m.peerRoutes,
		m.ticks,
		m.bootstrapAttempts,
		m.resolutionMisses,
		m.unknownInterfaces,
		m.routeTables,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRouteOperation counts one route table mutation.
func (m *Metrics) ObserveRouteOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.routeOperations.WithLabelValues(operation, outcome).Inc()
}

// ObservePeerRoute counts one host peer route insertion.
func (m *Metrics) ObservePeerRoute(outcome string) {
	if m == nil {
		return
	}
	m.peerRoutes.WithLabelValues(outcome).Inc()
}

// ObserveTick counts one reconciliation tick.
func (m *Metrics) ObserveTick(outcome string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
}

// ObserveBootstrap counts one bootstrap attempt.
func (m *Metrics) ObserveBootstrap(outcome string) {
	if m == nil {
		return
	}
	m.bootstrapAttempts.WithLabelValues(outcome).Inc()
}

// IncResolutionMiss counts an address that matched no cataloged subnet.
func (m *Metrics) IncResolutionMiss() {
	if m == nil {
		return
	}
	m.resolutionMisses.Inc()
}

// IncUnknownInterface counts an observed interface missing from the
// bootstrap identity.
func (m *Metrics) IncUnknownInterface() {
	if m == nil {
		return
	}
	m.unknownInterfaces.Inc()
}

// SetRouteTables records the size of the route table pool.
func (m *Metrics) SetRouteTables(n int) {
	if m == nil {
		return
	}
	m.routeTables.Set(float64(n))
}

// RouteOperations returns the counter for one operation/outcome pair.
func (m *Metrics) RouteOperations(operation, outcome string) prometheus.Counter {
	return m.routeOperations.WithLabelValues(operation, outcome)
}

// PeerRoutes returns the peer route counter for outcome.
func (m *Metrics) PeerRoutes(outcome string) prometheus.Counter {
	return m.peerRoutes.WithLabelValues(outcome)
}

// Ticks returns the tick counter for outcome.
func (m *Metrics) Ticks(outcome string) prometheus.Counter {
	return m.ticks.WithLabelValues(outcome)
}

// BootstrapAttempts returns the bootstrap counter for outcome.
func (m *Metrics) BootstrapAttempts(outcome string) prometheus.Counter {
	return m.bootstrapAttempts.WithLabelValues(outcome)
}
