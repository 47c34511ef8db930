package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/dd0wney/cluso-twinsec/pkg/predict"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// Report is the end-of-run summary emitted by the headless runner
type Report struct {
	Ticks                  int                       `json:"ticks"`
	Entities               int                       `json:"entities"`
	Elapsed                time.Duration             `json:"elapsed"`
	DiscoveredBySeverity   map[twin.Severity]int     `json:"discovered_by_severity"`
	OpenFindings           int                       `json:"open_findings"`
	ScenariosByType        map[predict.AttackType]int `json:"scenarios_by_type"`
	TopScenarioProbability float64                   `json:"top_scenario_probability"`
	FinalFleetScore        float64                   `json:"final_fleet_score"`
	PendingRecommendations int                       `json:"pending_recommendations"`
	AppliedRecommendations int                       `json:"applied_recommendations"`
}

// Report summarizes the run so far
func (e *Engine) Report() Report {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r := Report{
		Ticks:                e.tick,
		Entities:             len(e.pop),
		Elapsed:              time.Since(e.startedAt),
		DiscoveredBySeverity: make(map[twin.Severity]int, len(e.discoveredBySeverity)),
		ScenariosByType:      make(map[predict.AttackType]int),
		AppliedRecommendations: e.appliedActions,
	}
	for sev, n := range e.discoveredBySeverity {
		r.DiscoveredBySeverity[sev] = n
	}

	if len(e.history) == 0 {
		return r
	}
	latest := e.history[len(e.history)-1]

	r.OpenFindings = len(latest.Vulnerabilities)
	r.FinalFleetScore = latest.FleetScore.Composite
	r.PendingRecommendations = len(latest.Recommendations)
	for _, s := range latest.Scenarios {
		r.ScenariosByType[s.AttackType]++
		if s.Probability > r.TopScenarioProbability {
			r.TopScenarioProbability = s.Probability
		}
	}
	return r
}

// String renders the report for terminal output
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "simulation finished: %d ticks over %d entities in %v\n", r.Ticks, r.Entities, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "  findings discovered:")
	for _, sev := range []twin.Severity{twin.SeverityCritical, twin.SeverityHigh, twin.SeverityMedium, twin.SeverityLow} {
		fmt.Fprintf(&b, " %s=%d", sev, r.DiscoveredBySeverity[sev])
	}
	fmt.Fprintf(&b, "\n  open findings: %d\n", r.OpenFindings)
	fmt.Fprintf(&b, "  attack scenarios:")
	for t, n := range r.ScenariosByType {
		fmt.Fprintf(&b, " %s=%d", t, n)
	}
	fmt.Fprintf(&b, " (top probability %.2f)\n", r.TopScenarioProbability)
	fmt.Fprintf(&b, "  fleet composite score: %.1f\n", r.FinalFleetScore)
	fmt.Fprintf(&b, "  recommendations: %d pending, %d applied\n", r.PendingRecommendations, r.AppliedRecommendations)
	return b.String()
}
