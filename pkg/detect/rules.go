package detect

import (
	"fmt"

	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// finding is a pass-internal result before IDs and timestamps are attached
type finding struct {
	category    Category
	severity    twin.Severity
	description string
	confidence  float64
}

// rule is one independently evaluable configuration check. Rules are
// order-independent: each looks only at the entity it is given.
type rule struct {
	name  string
	check func(e *twin.Entity, patchAgeThreshold int) *finding
}

var configRules = []rule{
	{
		name: "encryption-disabled",
		check: func(e *twin.Entity, _ int) *finding {
			if e.SecurityConfig.EncryptionEnabled {
				return nil
			}
			return &finding{
				category:    CategoryEncryption,
				severity:    twin.SeverityCritical,
				description: "encryption disabled for data at rest and in transit",
				confidence:  0.95,
			}
		},
	},
	{
		name: "weak-authentication",
		check: func(e *twin.Entity, _ int) *finding {
			// An unset enum degrades to the weakest posture, never an error
			if e.SecurityConfig.AuthStrength == twin.AuthStrong {
				return nil
			}
			desc := "weak authentication configured"
			if e.SecurityConfig.AuthStrength == twin.AuthNone || e.SecurityConfig.AuthStrength == "" {
				desc = "no authentication required for access"
			}
			return &finding{
				category:    CategoryAuthentication,
				severity:    twin.SeverityHigh,
				description: desc,
				confidence:  0.90,
			}
		},
	},
	{
		name: "firewall-disabled",
		check: func(e *twin.Entity, _ int) *finding {
			if e.SecurityConfig.FirewallEnabled {
				return nil
			}
			return &finding{
				category:    CategoryNetwork,
				severity:    twin.SeverityHigh,
				description: "firewall disabled, network traffic unfiltered",
				confidence:  0.85,
			}
		},
	},
	{
		name: "audit-logging-missing",
		check: func(e *twin.Entity, _ int) *finding {
			if e.SecurityConfig.AuditLoggingEnabled {
				return nil
			}
			return &finding{
				category:    CategoryConfiguration,
				severity:    twin.SeverityMedium,
				description: "audit logging not enabled",
				confidence:  0.80,
			}
		},
	},
	{
		name: "outdated-patch-level",
		check: func(e *twin.Entity, patchAgeThreshold int) *finding {
			if e.SecurityConfig.PatchAgeDays <= patchAgeThreshold {
				return nil
			}
			return &finding{
				category:    CategoryConfiguration,
				severity:    twin.SeverityHigh,
				description: fmt.Sprintf("patch level %d days old, beyond the %d day threshold", e.SecurityConfig.PatchAgeDays, patchAgeThreshold),
				confidence:  0.85,
			}
		},
	},
}

// runRulePass evaluates every configuration rule against the entity
func runRulePass(e *twin.Entity, patchAgeThreshold int) []finding {
	var out []finding
	for _, r := range configRules {
		if f := r.check(e, patchAgeThreshold); f != nil {
			out = append(out, *f)
		}
	}
	return out
}
