package resilience

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-twinsec/pkg/config"
	"github.com/dd0wney/cluso-twinsec/pkg/detect"
	"github.com/dd0wney/cluso-twinsec/pkg/evaluate"
	"github.com/dd0wney/cluso-twinsec/pkg/logging"
	"github.com/dd0wney/cluso-twinsec/pkg/predict"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// Action is one remediation the enhancer can recommend
type Action string

const (
	ActionEnableEncryption   Action = "enable-encryption"
	ActionStrengthenAuth     Action = "strengthen-auth"
	ActionConfigureFirewall  Action = "configure-firewall"
	ActionApplyPatch         Action = "apply-patch"
	ActionIsolateNetwork     Action = "isolate-network"
	ActionEnableAuditLogging Action = "enable-audit-logging"
)

// Status tracks a recommendation through its lifecycle
type Status string

const (
	StatusPending   Status = "pending"
	StatusApplied   Status = "applied"
	StatusDismissed Status = "dismissed"
)

// ApplyResult reports what happened when a recommendation was applied
type ApplyResult string

const (
	ResultApplied        ApplyResult = "applied"
	ResultAlreadyApplied ApplyResult = "already-applied"
)

// Recommendation is one actionable remediation for one entity. The
// numeric priority is stored so ordering is deterministic and testable.
type Recommendation struct {
	ID             string  `json:"id"`
	TargetEntityID string  `json:"target_entity_id"`
	Action         Action  `json:"action"`
	Priority       float64 `json:"priority"`
	Rationale      string  `json:"rationale"`
	Status         Status  `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// actionForCategory is the static finding-category to action mapping
var actionForCategory = map[detect.Category]Action{
	detect.CategoryEncryption:         ActionEnableEncryption,
	detect.CategoryAuthentication:     ActionStrengthenAuth,
	detect.CategoryNetwork:            ActionConfigureFirewall,
	detect.CategoryConfiguration:      ActionApplyPatch,
	detect.CategoryPerformanceAnomaly: ActionIsolateNetwork,
}

// CategoriesForAction is the reverse mapping, used by the orchestrator
// to resolve findings closed out by an applied recommendation
func CategoriesForAction(a Action) []detect.Category {
	var out []detect.Category
	for c, action := range actionForCategory {
		if action == a {
			out = append(out, c)
		}
	}
	return out
}

// Enhancer turns detector findings and evaluator gaps into a ranked,
// deduplicated set of pending recommendations. It is stateful across
// ticks: regenerating for an unchanged entity updates the existing
// pending entries instead of duplicating them.
type Enhancer struct {
	weights config.DomainWeights
	logger  logging.Logger

	mu      sync.Mutex
	pending map[string]map[Action]*Recommendation // entity -> action -> rec
}

// NewEnhancer creates an enhancer using the evaluator's domain weights
// for prioritization
func NewEnhancer(weights config.DomainWeights, logger logging.Logger) *Enhancer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Enhancer{
		weights: weights,
		logger:  logger.With(logging.Component("resilience")),
		pending: make(map[string]map[Action]*Recommendation),
	}
}

// domainWeightFor returns the weight of the domain a category's gap
// belongs to, used as a priority factor
func (en *Enhancer) domainWeightFor(c detect.Category) float64 {
	switch c {
	case detect.CategoryEncryption:
		return en.weights.DataProtection
	case detect.CategoryAuthentication:
		return en.weights.AccessControl
	case detect.CategoryNetwork:
		return en.weights.NetworkSecurity
	case detect.CategoryConfiguration:
		return en.weights.VulnerabilityManagement
	case detect.CategoryPerformanceAnomaly:
		return en.weights.IncidentResponse
	default:
		return 0.1
	}
}

// Recommend generates the pending recommendation set for one entity from
// its open findings and domain-score gaps. At most one pending
// recommendation exists per (entity, action); regeneration updates
// rationale and priority in place.
func (en *Enhancer) Recommend(e *twin.Entity, vulns []detect.Vulnerability, domains evaluate.DomainScores, scenarios []predict.Scenario) []Recommendation {
	threat := maxProbabilityTargeting(e.ID, scenarios)

	en.mu.Lock()
	defer en.mu.Unlock()

	for _, v := range vulns {
		if v.Status != detect.StatusOpen {
			continue
		}
		action, ok := actionForCategory[v.Category]
		if !ok {
			continue
		}
		priority := float64(v.Severity.Rank()) * en.domainWeightFor(v.Category) * 100 * (1 + threat)
		rationale := fmt.Sprintf("open %s finding (%s): %s", v.Category, v.Severity, v.Description)
		en.upsert(e.ID, action, priority, rationale)
	}

	// Evaluator gaps produce recommendations even without a matching
	// finding, e.g. a weak incident-response posture
	if domains.IncidentResponse < 50 && !e.SecurityConfig.AuditLoggingEnabled {
		en.upsert(e.ID, ActionEnableAuditLogging,
			(50-domains.IncidentResponse)*en.weights.IncidentResponse*(1+threat),
			fmt.Sprintf("incident-response score %.0f below target without audit logging", domains.IncidentResponse))
	}
	if domains.NetworkSecurity < 40 && !e.SecurityConfig.NetworkIsolation {
		en.upsert(e.ID, ActionIsolateNetwork,
			(40-domains.NetworkSecurity)*en.weights.NetworkSecurity*(1+threat),
			fmt.Sprintf("network-security score %.0f below target without isolation", domains.NetworkSecurity))
	}

	return en.pendingForLocked(e.ID)
}

// upsert creates or refreshes the pending recommendation for the action
func (en *Enhancer) upsert(entityID string, action Action, priority float64, rationale string) {
	byAction := en.pending[entityID]
	if byAction == nil {
		byAction = make(map[Action]*Recommendation)
		en.pending[entityID] = byAction
	}
	if rec, ok := byAction[action]; ok {
		rec.Priority = priority
		rec.Rationale = rationale
		rec.UpdatedAt = time.Now()
		return
	}
	now := time.Now()
	byAction[action] = &Recommendation{
		ID:             uuid.NewString(),
		TargetEntityID: entityID,
		Action:         action,
		Priority:       priority,
		Rationale:      rationale,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Pending returns the pending recommendations for one entity, highest
// priority first
func (en *Enhancer) Pending(entityID string) []Recommendation {
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.pendingForLocked(entityID)
}

func (en *Enhancer) pendingForLocked(entityID string) []Recommendation {
	var out []Recommendation
	for _, rec := range en.pending[entityID] {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Apply executes a pending recommendation against the population: the
// target entity's security config moves to the safer value and the
// recommendation leaves the pending set. Applying an already-closed gap
// or re-applying is a no-op reported as already-applied, not an error.
func (en *Enhancer) Apply(recID string, pop twin.Population) (ApplyResult, error) {
	en.mu.Lock()
	defer en.mu.Unlock()

	for entityID, byAction := range en.pending {
		for action, rec := range byAction {
			if rec.ID != recID {
				continue
			}
			e, ok := pop[entityID]
			if !ok {
				return "", fmt.Errorf("recommendation %s targets unknown entity %s", recID, entityID)
			}

			changed := applyAction(action, e)
			rec.Status = StatusApplied
			rec.UpdatedAt = time.Now()
			delete(byAction, action)

			if !changed {
				return ResultAlreadyApplied, nil
			}
			e.LastUpdated = time.Now()
			en.logger.Info("recommendation applied",
				logging.EntityID(entityID),
				logging.String("action", string(action)),
			)
			return ResultApplied, nil
		}
	}
	// Unknown or previously applied: idempotent no-op
	return ResultAlreadyApplied, nil
}

// Find looks a pending recommendation up by ID
func (en *Enhancer) Find(recID string) (Recommendation, bool) {
	en.mu.Lock()
	defer en.mu.Unlock()

	for _, byAction := range en.pending {
		for _, rec := range byAction {
			if rec.ID == recID {
				return *rec, true
			}
		}
	}
	return Recommendation{}, false
}

// Dismiss drops a pending recommendation without touching the entity
func (en *Enhancer) Dismiss(recID string) bool {
	en.mu.Lock()
	defer en.mu.Unlock()

	for _, byAction := range en.pending {
		for action, rec := range byAction {
			if rec.ID == recID {
				rec.Status = StatusDismissed
				delete(byAction, action)
				return true
			}
		}
	}
	return false
}

// applyAction mutates the entity's config toward the safer value and
// reports whether anything actually changed
func applyAction(a Action, e *twin.Entity) bool {
	sc := &e.SecurityConfig
	switch a {
	case ActionEnableEncryption:
		if sc.EncryptionEnabled {
			return false
		}
		sc.EncryptionEnabled = true
	case ActionStrengthenAuth:
		if sc.AuthStrength == twin.AuthStrong {
			return false
		}
		sc.AuthStrength = twin.AuthStrong
	case ActionConfigureFirewall:
		if sc.FirewallEnabled {
			return false
		}
		sc.FirewallEnabled = true
	case ActionApplyPatch:
		if sc.PatchAgeDays == 0 {
			return false
		}
		sc.PatchAgeDays = 0
	case ActionIsolateNetwork:
		if sc.NetworkIsolation {
			return false
		}
		sc.NetworkIsolation = true
	case ActionEnableAuditLogging:
		if sc.AuditLoggingEnabled {
			return false
		}
		sc.AuditLoggingEnabled = true
	default:
		return false
	}
	return true
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
