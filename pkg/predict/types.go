package predict

import (
	"time"

	"github.com/dd0wney/cluso-twinsec/pkg/detect"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// AttackType names one of the six modelled threat classes
type AttackType string

const (
	AttackRansomware   AttackType = "ransomware"
	AttackDataBreach   AttackType = "data-breach"
	AttackDoS          AttackType = "dos"
	AttackInsider      AttackType = "insider"
	AttackAPT          AttackType = "apt"
	AttackDeviceHijack AttackType = "device-hijack"
)

// attackTypes is the fixed evaluation order, alphabetical for
// deterministic tie-breaking downstream
var attackTypes = []AttackType{
	AttackAPT,
	AttackDataBreach,
	AttackDeviceHijack,
	AttackDoS,
	AttackInsider,
	AttackRansomware,
}

// Scenario is one predicted threat against one or more entities.
// Scenarios are recomputed fresh each tick, never carried over.
type Scenario struct {
	ID                  string     `json:"id"`
	AttackType          AttackType `json:"attack_type"`
	TargetEntityIDs     []string   `json:"target_entity_ids"`
	Probability         float64    `json:"probability"`
	EstimatedImpact     float64    `json:"estimated_impact"`
	DetectionDifficulty float64    `json:"detection_difficulty"`
	MitigationEffort    float64    `json:"mitigation_effort"`
	Description         string     `json:"description"`
	GeneratedAt         time.Time  `json:"generated_at"`
}

// ExpectedRisk is the ranking key: probability weighted by impact
func (s Scenario) ExpectedRisk() float64 {
	return s.Probability * s.EstimatedImpact
}

// EventType classifies a security event in the rolling log
type EventType string

const (
	EventVulnerability EventType = "vulnerability"
	EventRemediation   EventType = "remediation"
)

// Event is one entry of the security event log the predictor consumes
// for recency weighting
type Event struct {
	Type      EventType     `json:"type"`
	EntityID  string        `json:"entity_id"`
	Severity  twin.Severity `json:"severity"`
	Timestamp time.Time     `json:"timestamp"`
}

// profile is the static threat-intelligence table entry for one attack
// type: base rate, the vulnerability categories that enable it, and the
// detectability/mitigation baselines
type profile struct {
	baseRate            float64
	enabling            []detect.Category
	detectionDifficulty float64
	mitigationEffort    float64
	medicalDevicesOnly  bool
	description         string
}

var attackProfiles = map[AttackType]profile{
	AttackRansomware: {
		baseRate:            0.15,
		enabling:            []detect.Category{detect.CategoryConfiguration, detect.CategoryAuthentication},
		detectionDifficulty: 0.40,
		mitigationEffort:    0.60,
		description:         "ransomware spread through unpatched, weakly authenticated systems",
	},
	AttackDataBreach: {
		baseRate:            0.25,
		enabling:            []detect.Category{detect.CategoryEncryption, detect.CategoryAuthentication},
		detectionDifficulty: 0.55,
		mitigationEffort:    0.55,
		description:         "exfiltration of patient records via unencrypted or unauthenticated access",
	},
	AttackDoS: {
		baseRate:            0.20,
		enabling:            []detect.Category{detect.CategoryNetwork, detect.CategoryPerformanceAnomaly},
		detectionDifficulty: 0.25,
		mitigationEffort:    0.35,
		description:         "service exhaustion against exposed network services",
	},
	AttackInsider: {
		baseRate:            0.10,
		enabling:            []detect.Category{detect.CategoryAuthentication, detect.CategoryConfiguration},
		detectionDifficulty: 0.75,
		mitigationEffort:    0.65,
		description:         "privilege abuse by an internal actor on poorly audited systems",
	},
	AttackAPT: {
		baseRate:            0.05,
		enabling:            []detect.Category{detect.CategoryConfiguration, detect.CategoryNetwork, detect.CategoryPerformanceAnomaly},
		detectionDifficulty: 0.85,
		mitigationEffort:    0.85,
		description:         "long-term stealth presence across weakly configured infrastructure",
	},
	AttackDeviceHijack: {
		baseRate:            0.12,
		enabling:            []detect.Category{detect.CategoryNetwork, detect.CategoryAuthentication},
		detectionDifficulty: 0.60,
		mitigationEffort:    0.70,
		medicalDevicesOnly:  true,
		description:         "unauthorized control of patient-facing medical equipment",
	},
}
