package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the core touches. Built against
// its own *prometheus.Registry (rather than promauto's package-level
// default registerer, which the teacher uses) so that more than one Race
// instance — or one per test — can exist in the same process without a
// duplicate-registration panic.
type Metrics struct {
	Registry *prometheus.Registry

	ContextsActive   *prometheus.GaugeVec
	ContextsCreated  *prometheus.CounterVec
	OperationsTotal  *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	PackagesSent     *prometheus.CounterVec
	PackagesReceived prometheus.Counter
	PluginQueueDepth *prometheus.GaugeVec
}

// NewMetrics constructs and registers the core's metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ContextsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raceboat_contexts_active",
			Help: "Number of API contexts currently held by the manager, by kind.",
		}, []string{"kind"}),
		ContextsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raceboat_contexts_created_total",
			Help: "Total API contexts created, by kind.",
		}, []string{"kind"}),
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raceboat_operations_total",
			Help: "Total public API operations completed, by operation and status.",
		}, []string{"operation", "status"}),
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "raceboat_operation_duration_seconds",
			Help:    "Public API operation latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		PackagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raceboat_packages_sent_total",
			Help: "Total packages successfully sent, by channel.",
		}, []string{"channel"}),
		PackagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "raceboat_packages_received_total",
			Help: "Total inbound packages delivered to a conduit or listener.",
		}),
		PluginQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raceboat_plugin_queue_utilization",
			Help: "Reported queue utilization per plugin (0..1).",
		}, []string{"plugin"}),
	}
}
