package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initDetectionMetrics() {
	r.VulnerabilitiesOpen = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "twinsec_vulnerabilities_open",
			Help: "Currently open vulnerabilities by severity",
		},
		[]string{"severity"},
	)

	r.VulnerabilitiesFound = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "twinsec_vulnerabilities_found_total",
			Help: "Vulnerabilities discovered by category and severity",
		},
		[]string{"category", "severity"},
	)

	r.VulnerabilitiesResolved = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "twinsec_vulnerabilities_resolved_total",
			Help: "Vulnerabilities closed by applied recommendations",
		},
	)

	r.AnomalyScore = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "twinsec_anomaly_score",
			Help:    "Distribution of isolation scores across the population",
			Buckets: prometheus.LinearBuckets(0, 0.1, 10),
		},
	)

	r.AnomaliesFlagged = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "twinsec_anomalies_flagged_total",
			Help: "Entities flagged anomalous by severity",
		},
		[]string{"severity"},
	)

	r.ModelRetrainsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "twinsec_model_retrains_total",
			Help: "Anomaly model retrain operations",
		},
	)
}
