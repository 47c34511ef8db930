package predict

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-twinsec/pkg/detect"
	"github.com/dd0wney/cluso-twinsec/pkg/logging"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// severityLoad weights a finding's contribution to attack likelihood
var severityLoad = map[twin.Severity]float64{
	twin.SeverityLow:      0.5,
	twin.SeverityMedium:   1.0,
	twin.SeverityHigh:     2.0,
	twin.SeverityCritical: 3.0,
}

// Options tunes the predictor
type Options struct {
	ProbabilityFloor float64
	MaxTargets       int
	RecentEventCount int
}

// Predictor enumerates plausible attack scenarios from the current
// population, its open vulnerabilities, and the recent event log
type Predictor struct {
	opts   Options
	logger logging.Logger
}

// NewPredictor creates a predictor
func NewPredictor(opts Options, logger logging.Logger) *Predictor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.MaxTargets <= 0 {
		opts.MaxTargets = 5
	}
	return &Predictor{
		opts:   opts,
		logger: logger.With(logging.Component("predictor")),
	}
}

// candidate couples an entity with its enabling vulnerability load
type candidate struct {
	entity *twin.Entity
	load   float64
}

// Predict generates scenarios for every attack type whose enabling
// vulnerability categories intersect the open findings. Results are
// sorted by expected risk descending, ties broken by attack type name,
// and scenarios below the probability floor are dropped.
func (p *Predictor) Predict(pop twin.Population, open []detect.Vulnerability, events []Event) []Scenario {
	byEntity := groupOpenByEntity(open)
	activity := p.threatActivity(events)
	density := vulnerabilityDensity(byEntity, len(pop))

	now := time.Now()
	var scenarios []Scenario

	for _, at := range attackTypes {
		prof := attackProfiles[at]
		cands := p.selectCandidates(at, prof, pop, byEntity)
		if len(cands) == 0 {
			continue
		}

		totalLoad := 0.0
		targets := make([]string, 0, len(cands))
		for _, c := range cands {
			totalLoad += c.load
			targets = append(targets, c.entity.ID)
		}

		probability := p.probability(prof.baseRate, totalLoad, activity, density)
		if probability < p.opts.ProbabilityFloor {
			continue
		}

		scenarios = append(scenarios, Scenario{
			ID:                  uuid.NewString(),
			AttackType:          at,
			TargetEntityIDs:     targets,
			Probability:         probability,
			EstimatedImpact:     p.impact(cands),
			DetectionDifficulty: p.detectionDifficulty(prof, cands),
			MitigationEffort:    p.mitigationEffort(prof, cands),
			Description:         prof.description,
			GeneratedAt:         now,
		})
	}

	sort.Slice(scenarios, func(i, j int) bool {
		ri, rj := scenarios[i].ExpectedRisk(), scenarios[j].ExpectedRisk()
		if ri != rj {
			return ri > rj
		}
		return scenarios[i].AttackType < scenarios[j].AttackType
	})

	if len(scenarios) > 0 {
		p.logger.Debug("attack scenarios generated",
			logging.Count("scenarios", len(scenarios)),
			logging.AttackType(string(scenarios[0].AttackType)),
			logging.Probability(scenarios[0].Probability),
		)
	}
	return scenarios
}

// selectCandidates returns entities whose open findings intersect the
// attack's enabling categories, highest load first, capped at MaxTargets
func (p *Predictor) selectCandidates(at AttackType, prof profile, pop twin.Population, byEntity map[string][]detect.Vulnerability) []candidate {
	var cands []candidate
	for id, vulns := range byEntity {
		e, ok := pop[id]
		if !ok {
			continue
		}
		if prof.medicalDevicesOnly && !e.Type.IsMedicalDevice() {
			continue
		}
		load := 0.0
		for _, v := range vulns {
			if v.Status != detect.StatusOpen {
				continue
			}
			for _, c := range prof.enabling {
				if v.Category == c {
					load += severityLoad[v.Severity] * v.Confidence
					break
				}
			}
		}
		if load > 0 {
			cands = append(cands, candidate{entity: e, load: load})
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].load != cands[j].load {
			return cands[i].load > cands[j].load
		}
		return cands[i].entity.ID < cands[j].entity.ID
	})
	if len(cands) > p.opts.MaxTargets {
		cands = cands[:p.opts.MaxTargets]
	}
	return cands
}

// probability combines the attack's base rate with a saturating function
// of the enabling vulnerability load and the recent threat activity.
// More and severer findings raise the probability with diminishing
// returns; no single finding can push it to 1.0.
func (p *Predictor) probability(baseRate, load, activity, density float64) float64 {
	saturated := 1 - math.Exp(-0.3*load)
	prob := baseRate + (1-baseRate)*saturated*0.8
	prob *= 1 + 0.2*activity + 0.1*math.Min(density/3, 1)
	return math.Min(prob, 0.99)
}

// impact derives from entity criticality, type weighting, and blast
// radius (connected peer count)
func (p *Predictor) impact(cands []candidate) float64 {
	if len(cands) == 0 {
		return 0
	}
	typeImpact := map[twin.EntityType]float64{
		twin.TypeImagingDevice:  0.90,
		twin.TypePatientMonitor: 1.00,
		twin.TypeServer:         0.70,
		twin.TypeNetworkDevice:  0.50,
		twin.TypeDatabase:       0.95,
	}
	critImpact := map[twin.Criticality]float64{
		twin.CriticalityLow:    0.3,
		twin.CriticalityMedium: 0.6,
		twin.CriticalityHigh:   0.9,
	}

	max := 0.0
	for _, c := range cands {
		blast := math.Min(float64(c.entity.Connectivity.PeerCount())/10, 1)
		v := 0.5*typeImpact[c.entity.Type] + 0.3*critImpact[c.entity.Criticality] + 0.2*blast
		if v > max {
			max = v
		}
	}
	return math.Min(max, 1)
}

// detectionDifficulty starts from the attack baseline and drops when the
// targets run audit logging or intrusion detection
func (p *Predictor) detectionDifficulty(prof profile, cands []candidate) float64 {
	d := prof.detectionDifficulty
	if allTargets(cands, func(e *twin.Entity) bool { return e.SecurityConfig.AuditLoggingEnabled }) {
		d -= 0.15
	}
	if allTargets(cands, func(e *twin.Entity) bool { return e.SecurityConfig.IntrusionDetection }) {
		d -= 0.10
	}
	return clamp01(d)
}

// mitigationEffort starts from the attack baseline and drops when the
// targets have a firewall in place
func (p *Predictor) mitigationEffort(prof profile, cands []candidate) float64 {
	m := prof.mitigationEffort
	if allTargets(cands, func(e *twin.Entity) bool { return e.SecurityConfig.FirewallEnabled }) {
		m -= 0.10
	}
	return clamp01(m)
}

// threatActivity scores the recent event log into [0, 1]
func (p *Predictor) threatActivity(events []Event) float64 {
	recent := events
	if len(recent) > p.opts.RecentEventCount {
		recent = recent[len(recent)-p.opts.RecentEventCount:]
	}
	score := 0.0
	for _, ev := range recent {
		if ev.Type != EventVulnerability {
			continue
		}
		score += float64(ev.Severity.Rank())
	}
	return math.Min(score/40, 1)
}

func vulnerabilityDensity(byEntity map[string][]detect.Vulnerability, population int) float64 {
	if population == 0 {
		return 0
	}
	total := 0
	for _, vulns := range byEntity {
		total += len(vulns)
	}
	return float64(total) / float64(population)
}

func groupOpenByEntity(open []detect.Vulnerability) map[string][]detect.Vulnerability {
	byEntity := make(map[string][]detect.Vulnerability)
	for _, v := range open {
		if v.Status == detect.StatusOpen {
			byEntity[v.EntityID] = append(byEntity[v.EntityID], v)
		}
	}
	return byEntity
}

func allTargets(cands []candidate, pred func(*twin.Entity) bool) bool {
	for _, c := range cands {
		if !pred(c.entity) {
			return false
		}
	}
	return len(cands) > 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
