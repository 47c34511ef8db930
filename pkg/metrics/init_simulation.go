package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSimulationMetrics() {
	r.SimulationTicksTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "twinsec_simulation_ticks_total",
			Help: "Total number of completed simulation ticks",
		},
	)

	r.SimulationTickDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "twinsec_simulation_tick_duration_seconds",
			Help:    "Full tick duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.SimulationStageDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "twinsec_simulation_stage_duration_seconds",
			Help:    "Per-stage duration within a tick in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"stage"},
	)

	r.SimulationEntitiesTotal = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "twinsec_simulation_entities_total",
			Help: "Number of entities in the twin population by type",
		},
		[]string{"type"},
	)

	r.SimulationState = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "twinsec_simulation_state",
			Help: "Current orchestrator state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	r.SimulationTickFailures = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "twinsec_simulation_tick_failures_total",
			Help: "Per-entity stage failures skipped during a tick",
		},
		[]string{"stage"},
	)
}
