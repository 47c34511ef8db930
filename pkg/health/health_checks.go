package health

import (
	"fmt"
	"time"
)

// Health checks for the simulation engine.

// ModelTrainedCheck reports whether the anomaly model has seen enough
// data to score. An untrained model is degraded, not unhealthy: the
// detector still runs its rule and pattern passes.
func ModelTrainedCheck(trained func() bool) CheckFunc {
	return func() Check {
		check := Check{
			Name: "anomaly_model",
		}

		if trained() {
			check.Status = StatusHealthy
			check.Message = "Model trained"
		} else {
			check.Status = StatusDegraded
			check.Message = "Cold start, ML pass inactive"
		}

		return check
	}
}

// TickLatencyCheck reports whether tick processing keeps up with the
// configured interval
func TickLatencyCheck(interval time.Duration, lastTickDuration func() time.Duration) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "tick_latency",
			Details: make(map[string]any),
		}

		d := lastTickDuration()
		check.Details["last_tick_ms"] = d.Milliseconds()
		check.Details["interval_ms"] = interval.Milliseconds()

		switch {
		case d > interval:
			check.Status = StatusUnhealthy
			check.Message = "Tick processing slower than the tick interval"
		case d > interval/2:
			check.Status = StatusDegraded
			check.Message = "Tick processing near the tick interval"
		default:
			check.Status = StatusHealthy
			check.Message = fmt.Sprintf("Last tick took %v", d)
		}

		return check
	}
}

// HistoryCheck reports whether snapshot history is being retained
func HistoryCheck(depth func() (current, max int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "snapshot_history",
			Details: make(map[string]any),
		}

		current, max := depth()
		check.Details["snapshots"] = current
		check.Details["capacity"] = max

		if current == 0 {
			check.Status = StatusDegraded
			check.Message = "No snapshots recorded yet"
		} else {
			check.Status = StatusHealthy
			check.Message = fmt.Sprintf("%d of %d snapshots retained", current, max)
		}

		return check
	}
}

// EngineStateCheck reports the orchestrator state. A stopped engine is
// unhealthy for readiness purposes: no new snapshots will arrive.
func EngineStateCheck(state func() string) CheckFunc {
	return func() Check {
		check := Check{
			Name: "engine_state",
		}

		s := state()
		check.Message = s
		switch s {
		case "running":
			check.Status = StatusHealthy
		case "paused", "idle":
			check.Status = StatusDegraded
		default:
			check.Status = StatusUnhealthy
		}

		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		usagePercent := float64(alloc) / float64(sys) * 100

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}
