package evaluate

import (
	"math"
	"time"

	"github.com/dd0wney/cluso-twinsec/pkg/config"
	"github.com/dd0wney/cluso-twinsec/pkg/detect"
	"github.com/dd0wney/cluso-twinsec/pkg/predict"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// Scope distinguishes entity-level from fleet-level scores
type Scope string

const (
	ScopeEntity Scope = "entity"
	ScopeFleet  Scope = "fleet"
)

// DomainScores holds the six fixed per-domain scores, each 0-100. The
// struct is fixed-field so exhaustiveness is checked at compile time
// instead of at call time.
type DomainScores struct {
	AccessControl           float64 `json:"access_control"`
	DataProtection          float64 `json:"data_protection"`
	NetworkSecurity         float64 `json:"network_security"`
	VulnerabilityManagement float64 `json:"vulnerability_management"`
	IncidentResponse        float64 `json:"incident_response"`
	Compliance              float64 `json:"compliance"`
}

// SecurityScore is the evaluator's output for one entity or the fleet
type SecurityScore struct {
	Scope      Scope        `json:"scope"`
	EntityID   string       `json:"entity_id,omitempty"`
	Domains    DomainScores `json:"domain_scores"`
	Composite  float64      `json:"composite_score"`
	ComputedAt time.Time    `json:"computed_at"`
}

// Evaluator computes weighted multi-domain security scores. The weights
// are fixed at construction and validated to sum to 1.0, keeping scores
// comparable across the whole run.
type Evaluator struct {
	weights config.DomainWeights
}

// NewEvaluator creates an evaluator, rejecting invalid weight sets
func NewEvaluator(weights config.DomainWeights) (*Evaluator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{weights: weights}, nil
}

// Composite applies the contractual weighted sum to a domain vector
func (ev *Evaluator) Composite(d DomainScores) float64 {
	w := ev.weights
	return d.AccessControl*w.AccessControl +
		d.DataProtection*w.DataProtection +
		d.NetworkSecurity*w.NetworkSecurity +
		d.VulnerabilityManagement*w.VulnerabilityManagement +
		d.IncidentResponse*w.IncidentResponse +
		d.Compliance*w.Compliance
}

// EvaluateEntity scores one entity from its posture, its open findings,
// and the attack scenarios that target it. Each domain score is
// monotonic: an additional open finding in the domain's categories can
// only lower it, and resolving one can only raise it.
func (ev *Evaluator) EvaluateEntity(e *twin.Entity, vulns []detect.Vulnerability, scenarios []predict.Scenario) SecurityScore {
	open := openByCategory(vulns)
	threat := maxProbabilityTargeting(e.ID, scenarios)

	d := DomainScores{
		AccessControl:           scoreAccessControl(e, open),
		DataProtection:          scoreDataProtection(e, open),
		NetworkSecurity:         scoreNetworkSecurity(e, open),
		VulnerabilityManagement: scoreVulnerabilityManagement(e, open),
		IncidentResponse:        scoreIncidentResponse(e, open, threat),
		Compliance:              scoreCompliance(e, vulns),
	}

	return SecurityScore{
		Scope:      ScopeEntity,
		EntityID:   e.ID,
		Domains:    d,
		Composite:  ev.Composite(d),
		ComputedAt: time.Now(),
	}
}

// openByCategory buckets open findings by category
func openByCategory(vulns []detect.Vulnerability) map[detect.Category][]detect.Vulnerability {
	out := make(map[detect.Category][]detect.Vulnerability)
	for _, v := range vulns {
		if v.Status == detect.StatusOpen {
			out[v.Category] = append(out[v.Category], v)
		}
	}
	return out
}

// deduction is the score penalty for the open findings in the given
// categories: 12 points per severity rank, so a critical costs 48
func deduction(open map[detect.Category][]detect.Vulnerability, cats ...detect.Category) float64 {
	total := 0.0
	for _, c := range cats {
		for _, v := range open[c] {
			total += float64(v.Severity.Rank()) * 12
		}
	}
	return total
}

func scoreAccessControl(e *twin.Entity, open map[detect.Category][]detect.Vulnerability) float64 {
	base := 20.0
	switch e.SecurityConfig.AuthStrength {
	case twin.AuthStrong:
		base = 90
	case twin.AuthWeak:
		base = 50
	}
	if e.SecurityConfig.NetworkIsolation {
		base += 10
	}
	return clampScore(base - deduction(open, detect.CategoryAuthentication))
}

func scoreDataProtection(e *twin.Entity, open map[detect.Category][]detect.Vulnerability) float64 {
	base := 10.0
	if e.SecurityConfig.EncryptionEnabled {
		base += 55
	}
	if e.SecurityConfig.BackupEnabled {
		base += 20
	}
	if e.Connectivity.UnencryptedPeerCount() == 0 {
		base += 15
	}
	return clampScore(base - deduction(open, detect.CategoryEncryption))
}

func scoreNetworkSecurity(e *twin.Entity, open map[detect.Category][]detect.Vulnerability) float64 {
	base := 10.0
	if e.SecurityConfig.FirewallEnabled {
		base += 40
	}
	if e.SecurityConfig.IntrusionDetection {
		base += 20
	}
	if e.SecurityConfig.NetworkIsolation {
		base += 15
	}
	if !e.Attributes.PublicFacing {
		base += 15
	}
	return clampScore(base - deduction(open, detect.CategoryNetwork))
}

func scoreVulnerabilityManagement(e *twin.Entity, open map[detect.Category][]detect.Vulnerability) float64 {
	// Patch recency dominates: a year without patching erodes 70 points
	age := math.Min(float64(e.SecurityConfig.PatchAgeDays), 365)
	base := 100 - age/365*70
	return clampScore(base - deduction(open, detect.CategoryConfiguration))
}

func scoreIncidentResponse(e *twin.Entity, open map[detect.Category][]detect.Vulnerability, threat float64) float64 {
	base := 0.0
	if e.SecurityConfig.AuditLoggingEnabled {
		base += 40
	}
	if e.SecurityConfig.IntrusionDetection {
		base += 35
	}
	if e.SecurityConfig.BackupEnabled {
		base += 25
	}
	base -= threat * 10
	return clampScore(base - deduction(open, detect.CategoryPerformanceAnomaly))
}

// scoreCompliance applies static policy checks modelled on HIPAA-style
// technical safeguards, then penalizes every open finding lightly
func scoreCompliance(e *twin.Entity, vulns []detect.Vulnerability) float64 {
	base := 0.0
	if e.SecurityConfig.EncryptionEnabled {
		base += 35
	}
	switch e.SecurityConfig.AuthStrength {
	case twin.AuthStrong:
		base += 25
	case twin.AuthWeak:
		base += 10
	}
	if e.SecurityConfig.AuditLoggingEnabled {
		base += 25
	}
	if e.SecurityConfig.NetworkIsolation {
		base += 15
	}
	for _, v := range vulns {
		if v.Status == detect.StatusOpen {
			base -= 5
		}
	}
	return clampScore(base)
}

func maxProbabilityTargeting(entityID string, scenarios []predict.Scenario) float64 {
	max := 0.0
	for _, s := range scenarios {
		for _, id := range s.TargetEntityIDs {
			if id == entityID && s.Probability > max {
				max = s.Probability
			}
		}
	}
	return max
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
