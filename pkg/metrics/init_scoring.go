package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initScoringMetrics() {
	r.FleetCompositeScore = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "twinsec_fleet_composite_score",
			Help: "Fleet-wide weighted composite security score (0-100)",
		},
	)

	r.FleetDomainScore = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "twinsec_fleet_domain_score",
			Help: "Fleet-wide mean score per security domain (0-100)",
		},
		[]string{"domain"},
	)

	r.RecommendationsPending = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "twinsec_recommendations_pending",
			Help: "Recommendations currently awaiting application",
		},
	)

	r.RecommendationsApplied = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "twinsec_recommendations_applied_total",
			Help: "Recommendations applied by action",
		},
		[]string{"action"},
	)
}
