package evaluate

import (
	"sort"
	"time"
)

// FleetScore aggregates entity scores across the whole population,
// with the composite distribution retained for drill-down
type FleetScore struct {
	SecurityScore
	Entities int     `json:"entities"`
	Min      float64 `json:"min"`
	Median   float64 `json:"median"`
	Max      float64 `json:"max"`
}

// EvaluateFleet aggregates per-entity scores: the fleet composite and
// domain scores are means over entities, and the composite distribution
// (min/median/max) is kept for drill-down
func (ev *Evaluator) EvaluateFleet(scores []SecurityScore) FleetScore {
	fs := FleetScore{
		SecurityScore: SecurityScore{
			Scope:      ScopeFleet,
			ComputedAt: time.Now(),
		},
		Entities: len(scores),
	}
	if len(scores) == 0 {
		return fs
	}

	composites := make([]float64, 0, len(scores))
	var d DomainScores
	for _, s := range scores {
		composites = append(composites, s.Composite)
		d.AccessControl += s.Domains.AccessControl
		d.DataProtection += s.Domains.DataProtection
		d.NetworkSecurity += s.Domains.NetworkSecurity
		d.VulnerabilityManagement += s.Domains.VulnerabilityManagement
		d.IncidentResponse += s.Domains.IncidentResponse
		d.Compliance += s.Domains.Compliance
	}

	n := float64(len(scores))
	fs.Domains = DomainScores{
		AccessControl:           d.AccessControl / n,
		DataProtection:          d.DataProtection / n,
		NetworkSecurity:         d.NetworkSecurity / n,
		VulnerabilityManagement: d.VulnerabilityManagement / n,
		IncidentResponse:        d.IncidentResponse / n,
		Compliance:              d.Compliance / n,
	}

	sort.Float64s(composites)
	sum := 0.0
	for _, c := range composites {
		sum += c
	}
	fs.Composite = sum / n
	fs.Min = composites[0]
	fs.Max = composites[len(composites)-1]
	fs.Median = median(composites)

	return fs
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
