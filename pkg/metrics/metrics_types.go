package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Simulation Metrics
	SimulationTicksTotal    prometheus.Counter
	SimulationTickDuration  prometheus.Histogram
	SimulationStageDuration *prometheus.HistogramVec
	SimulationEntitiesTotal *prometheus.GaugeVec
	SimulationState         *prometheus.GaugeVec
	SimulationTickFailures  *prometheus.CounterVec

	// Detection Metrics
	VulnerabilitiesOpen     *prometheus.GaugeVec
	VulnerabilitiesFound    *prometheus.CounterVec
	VulnerabilitiesResolved prometheus.Counter
	AnomalyScore            prometheus.Histogram
	AnomaliesFlagged        *prometheus.CounterVec
	ModelRetrainsTotal      prometheus.Counter

	// Prediction Metrics
	ScenariosGenerated  *prometheus.CounterVec
	ScenarioProbability *prometheus.HistogramVec

	// Scoring Metrics
	FleetCompositeScore prometheus.Gauge
	FleetDomainScore    *prometheus.GaugeVec

	// Resilience Metrics
	RecommendationsPending prometheus.Gauge
	RecommendationsApplied *prometheus.CounterVec

	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initSimulationMetrics()
	r.initDetectionMetrics()
	r.initPredictionMetrics()
	r.initScoringMetrics()
	r.initHTTPMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
