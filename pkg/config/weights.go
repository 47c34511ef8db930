package config

import (
	"fmt"
	"math"
)

// weightTolerance is the floating tolerance for the weight-sum check
const weightTolerance = 1e-9

// DomainWeights assigns a weight to each of the six security domains.
// The struct is deliberately fixed-field rather than a map so that
// exhaustiveness and the sum-to-one rule are enforced at construction.
type DomainWeights struct {
	AccessControl           float64 `yaml:"access_control" json:"access_control"`
	DataProtection          float64 `yaml:"data_protection" json:"data_protection"`
	NetworkSecurity         float64 `yaml:"network_security" json:"network_security"`
	VulnerabilityManagement float64 `yaml:"vulnerability_management" json:"vulnerability_management"`
	IncidentResponse        float64 `yaml:"incident_response" json:"incident_response"`
	Compliance              float64 `yaml:"compliance" json:"compliance"`
}

// DefaultDomainWeights returns the contractual default weighting
func DefaultDomainWeights() DomainWeights {
	return DomainWeights{
		AccessControl:           0.25,
		DataProtection:          0.20,
		NetworkSecurity:         0.20,
		VulnerabilityManagement: 0.15,
		IncidentResponse:        0.10,
		Compliance:              0.10,
	}
}

// Sum returns the total of all six weights
func (w DomainWeights) Sum() float64 {
	return w.AccessControl + w.DataProtection + w.NetworkSecurity +
		w.VulnerabilityManagement + w.IncidentResponse + w.Compliance
}

// Validate rejects weight sets that do not sum to 1.0 or leave a domain
// unweighted. Weights are never silently renormalized.
func (w DomainWeights) Validate() error {
	fields := map[string]float64{
		"access_control":           w.AccessControl,
		"data_protection":          w.DataProtection,
		"network_security":         w.NetworkSecurity,
		"vulnerability_management": w.VulnerabilityManagement,
		"incident_response":        w.IncidentResponse,
		"compliance":               w.Compliance,
	}
	for name, v := range fields {
		if v <= 0 {
			return fmt.Errorf("domain weight %s must be positive, got %v", name, v)
		}
		if v > 1 {
			return fmt.Errorf("domain weight %s must not exceed 1, got %v", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("domain weights must sum to 1.0, got %v", sum)
	}
	return nil
}
