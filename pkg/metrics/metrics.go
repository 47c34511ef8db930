package metrics

import (
	"runtime"
	"time"
)

// RecordTick records one completed simulation tick with its duration
func (r *Registry) RecordTick(duration time.Duration) {
	r.SimulationTicksTotal.Inc()
	r.SimulationTickDuration.Observe(duration.Seconds())
}

// RecordStage records the duration of one analysis stage within a tick
func (r *Registry) RecordStage(stage string, duration time.Duration) {
	r.SimulationStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStageFailure counts a per-entity failure skipped during a stage
func (r *Registry) RecordStageFailure(stage string) {
	r.SimulationTickFailures.WithLabelValues(stage).Inc()
}

// SetSimulationState sets the orchestrator state gauge, resetting the
// other known states so exactly one reads 1
func (r *Registry) SetSimulationState(state string) {
	for _, s := range []string{"idle", "running", "paused", "stopped"} {
		r.SimulationState.WithLabelValues(s).Set(0)
	}
	r.SimulationState.WithLabelValues(state).Set(1)
}

// RecordVulnerability counts a discovered finding
func (r *Registry) RecordVulnerability(category, severity string) {
	r.VulnerabilitiesFound.WithLabelValues(category, severity).Inc()
}

// RecordAnomaly records an isolation score and, when flagged, the
// flagged severity
func (r *Registry) RecordAnomaly(score float64, flagged bool, severity string) {
	r.AnomalyScore.Observe(score)
	if flagged {
		r.AnomaliesFlagged.WithLabelValues(severity).Inc()
	}
}

// RecordScenario counts a generated attack scenario and its probability
func (r *Registry) RecordScenario(attackType string, probability float64) {
	r.ScenariosGenerated.WithLabelValues(attackType).Inc()
	r.ScenarioProbability.WithLabelValues(attackType).Observe(probability)
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// UpdateSystemMetrics refreshes process-level gauges
func (r *Registry) UpdateSystemMetrics(startTime time.Time) {
	r.UptimeSeconds.Set(time.Since(startTime).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocBytes.Set(float64(m.Alloc))
}
