package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPredictionMetrics() {
	r.ScenariosGenerated = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "twinsec_scenarios_generated_total",
			Help: "Attack scenarios generated by attack type",
		},
		[]string{"attack_type"},
	)

	r.ScenarioProbability = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "twinsec_scenario_probability",
			Help:    "Predicted probability distribution by attack type",
			Buckets: prometheus.LinearBuckets(0, 0.1, 10),
		},
		[]string{"attack_type"},
	)
}
