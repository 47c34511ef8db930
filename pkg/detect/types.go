package detect

import (
	"time"

	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// Category classifies what part of the posture a finding concerns
type Category string

const (
	CategoryEncryption         Category = "encryption"
	CategoryAuthentication     Category = "authentication"
	CategoryNetwork            Category = "network"
	CategoryConfiguration      Category = "configuration"
	CategoryPerformanceAnomaly Category = "performance-anomaly"
)

// Method identifies which detection pass produced a finding. The set is
// fixed and closed: findings are merged by a single reducer, not
// dispatched through an open plugin registry.
type Method string

const (
	MethodRule    Method = "rule"
	MethodPattern Method = "pattern"
	MethodML      Method = "ml"
)

// Status tracks a finding's lifecycle
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Vulnerability is a single finding against one entity. Once emitted a
// finding is immutable apart from its status transition to resolved.
type Vulnerability struct {
	ID           string        `json:"id"`
	EntityID     string        `json:"entity_id"`
	Category     Category      `json:"category"`
	Severity     twin.Severity `json:"severity"`
	Methods      []Method      `json:"detection_methods"`
	Description  string        `json:"description"`
	Confidence   float64       `json:"confidence"`
	Status       Status        `json:"status"`
	DiscoveredAt time.Time     `json:"discovered_at"`
}

// FoundBy reports whether the finding carries provenance from the method
func (v *Vulnerability) FoundBy(m Method) bool {
	for _, got := range v.Methods {
		if got == m {
			return true
		}
	}
	return false
}
