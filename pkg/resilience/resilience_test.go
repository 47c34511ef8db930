package resilience

import (
	"testing"
	"time"

	"github.com/dd0wney/cluso-twinsec/pkg/config"
	"github.com/dd0wney/cluso-twinsec/pkg/detect"
	"github.com/dd0wney/cluso-twinsec/pkg/evaluate"
	"github.com/dd0wney/cluso-twinsec/pkg/logging"
	"github.com/dd0wney/cluso-twinsec/pkg/predict"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

func newTestEnhancer() *Enhancer {
	return NewEnhancer(config.DefaultDomainWeights(), logging.NewNopLogger())
}

func exposedEntity(id string) *twin.Entity {
	return &twin.Entity{
		ID:          id,
		Type:        twin.TypeDatabase,
		Criticality: twin.CriticalityHigh,
		SecurityConfig: twin.SecurityConfig{
			AuthStrength: twin.AuthWeak,
			PatchAgeDays: 200,
		},
	}
}

func openFinding(entityID string, cat detect.Category, sev twin.Severity) detect.Vulnerability {
	return detect.Vulnerability{
		ID:           entityID + "-" + string(cat),
		EntityID:     entityID,
		Category:     cat,
		Severity:     sev,
		Status:       detect.StatusOpen,
		DiscoveredAt: time.Now(),
	}
}

func healthyDomains() evaluate.DomainScores {
	return evaluate.DomainScores{
		AccessControl:           90,
		DataProtection:          90,
		NetworkSecurity:         90,
		VulnerabilityManagement: 90,
		IncidentResponse:        90,
		Compliance:              90,
	}
}

func TestFindingCategoriesMapToActions(t *testing.T) {
	en := newTestEnhancer()
	e := exposedEntity("a")
	vulns := []detect.Vulnerability{
		openFinding("a", detect.CategoryEncryption, twin.SeverityCritical),
		openFinding("a", detect.CategoryAuthentication, twin.SeverityHigh),
		openFinding("a", detect.CategoryNetwork, twin.SeverityHigh),
		openFinding("a", detect.CategoryConfiguration, twin.SeverityMedium),
	}

	recs := en.Recommend(e, vulns, healthyDomains(), nil)

	got := make(map[Action]bool)
	for _, r := range recs {
		got[r.Action] = true
		if r.Status != StatusPending {
			t.Errorf("New recommendation %s should be pending, got %s", r.Action, r.Status)
		}
		if r.TargetEntityID != "a" {
			t.Errorf("Recommendation targets %s, want a", r.TargetEntityID)
		}
	}
	for _, want := range []Action{
		ActionEnableEncryption, ActionStrengthenAuth,
		ActionConfigureFirewall, ActionApplyPatch,
	} {
		if !got[want] {
			t.Errorf("Missing recommendation %s", want)
		}
	}
}

func TestResolvedFindingsProduceNoRecommendation(t *testing.T) {
	en := newTestEnhancer()
	e := exposedEntity("a")
	v := openFinding("a", detect.CategoryEncryption, twin.SeverityCritical)
	v.Status = detect.StatusResolved

	recs := en.Recommend(e, []detect.Vulnerability{v}, healthyDomains(), nil)
	for _, r := range recs {
		if r.Action == ActionEnableEncryption {
			t.Error("Resolved finding must not generate a recommendation")
		}
	}
}

func TestRegenerationUpdatesInsteadOfDuplicating(t *testing.T) {
	en := newTestEnhancer()
	e := exposedEntity("a")
	vulns := []detect.Vulnerability{
		openFinding("a", detect.CategoryEncryption, twin.SeverityCritical),
	}

	first := en.Recommend(e, vulns, healthyDomains(), nil)
	second := en.Recommend(e, vulns, healthyDomains(), nil)

	if len(first) != len(second) {
		t.Fatalf("Regeneration changed pending count: %d then %d", len(first), len(second))
	}
	if first[0].ID != second[0].ID {
		t.Error("Regeneration must update the existing recommendation, not mint a new one")
	}
}

func TestPriorityOrdersBySeverityAndDomainWeight(t *testing.T) {
	en := newTestEnhancer()
	e := exposedEntity("a")
	vulns := []detect.Vulnerability{
		openFinding("a", detect.CategoryConfiguration, twin.SeverityLow),
		openFinding("a", detect.CategoryEncryption, twin.SeverityCritical),
	}

	recs := en.Recommend(e, vulns, healthyDomains(), nil)
	if len(recs) < 2 {
		t.Fatalf("Expected at least 2 recommendations, got %d", len(recs))
	}
	if recs[0].Action != ActionEnableEncryption {
		t.Errorf("Critical encryption gap should rank first, got %s", recs[0].Action)
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Priority > recs[i-1].Priority {
			t.Error("Recommendations must be sorted by priority descending")
		}
	}
}

func TestAttackScenarioRaisesPriority(t *testing.T) {
	en1 := newTestEnhancer()
	en2 := newTestEnhancer()
	e := exposedEntity("a")
	vulns := []detect.Vulnerability{
		openFinding("a", detect.CategoryEncryption, twin.SeverityHigh),
	}
	scenarios := []predict.Scenario{{
		AttackType:      predict.AttackDataBreach,
		TargetEntityIDs: []string{"a"},
		Probability:     0.6,
	}}

	quiet := en1.Recommend(e, vulns, healthyDomains(), nil)
	threatened := en2.Recommend(e, vulns, healthyDomains(), scenarios)
	if threatened[0].Priority <= quiet[0].Priority {
		t.Error("An active attack scenario targeting the entity should raise priority")
	}
}

func TestEvaluatorGapRecommendsAuditLogging(t *testing.T) {
	en := newTestEnhancer()
	e := exposedEntity("a")
	d := healthyDomains()
	d.IncidentResponse = 20

	recs := en.Recommend(e, nil, d, nil)
	found := false
	for _, r := range recs {
		if r.Action == ActionEnableAuditLogging {
			found = true
		}
	}
	if !found {
		t.Error("Low incident-response score without audit logging should recommend enabling it")
	}
}

func TestApplyMutatesEntityAndClearsPending(t *testing.T) {
	en := newTestEnhancer()
	e := exposedEntity("a")
	pop := twin.Population{"a": e}
	vulns := []detect.Vulnerability{
		openFinding("a", detect.CategoryEncryption, twin.SeverityCritical),
	}

	recs := en.Recommend(e, vulns, healthyDomains(), nil)
	var encRec Recommendation
	for _, r := range recs {
		if r.Action == ActionEnableEncryption {
			encRec = r
		}
	}

	result, err := en.Apply(encRec.ID, pop)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if result != ResultApplied {
		t.Errorf("Apply result = %s, want %s", result, ResultApplied)
	}
	if !e.SecurityConfig.EncryptionEnabled {
		t.Error("Applying enable-encryption must flip the entity's encryption flag")
	}
	for _, r := range en.Pending("a") {
		if r.Action == ActionEnableEncryption {
			t.Error("Applied recommendation must leave the pending set")
		}
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	en := newTestEnhancer()
	e := exposedEntity("a")
	pop := twin.Population{"a": e}
	recs := en.Recommend(e, []detect.Vulnerability{
		openFinding("a", detect.CategoryEncryption, twin.SeverityCritical),
	}, healthyDomains(), nil)

	if _, err := en.Apply(recs[0].ID, pop); err != nil {
		t.Fatalf("First apply failed: %v", err)
	}
	result, err := en.Apply(recs[0].ID, pop)
	if err != nil {
		t.Fatalf("Re-apply must not error: %v", err)
	}
	if result != ResultAlreadyApplied {
		t.Errorf("Re-apply result = %s, want %s", result, ResultAlreadyApplied)
	}
}

func TestApplyOnAlreadyClosedGapReportsAlreadyApplied(t *testing.T) {
	en := newTestEnhancer()
	e := exposedEntity("a")
	pop := twin.Population{"a": e}
	recs := en.Recommend(e, []detect.Vulnerability{
		openFinding("a", detect.CategoryEncryption, twin.SeverityCritical),
	}, healthyDomains(), nil)

	// Gap closed out of band before the recommendation is applied
	e.SecurityConfig.EncryptionEnabled = true

	result, err := en.Apply(recs[0].ID, pop)
	if err != nil {
		t.Fatalf("Apply on closed gap must not error: %v", err)
	}
	if result != ResultAlreadyApplied {
		t.Errorf("Apply on closed gap = %s, want %s", result, ResultAlreadyApplied)
	}
}

func TestDismissRemovesPending(t *testing.T) {
	en := newTestEnhancer()
	e := exposedEntity("a")
	recs := en.Recommend(e, []detect.Vulnerability{
		openFinding("a", detect.CategoryNetwork, twin.SeverityHigh),
	}, healthyDomains(), nil)

	if !en.Dismiss(recs[0].ID) {
		t.Fatal("Dismiss of a pending recommendation should report true")
	}
	if len(en.Pending("a")) != 0 {
		t.Error("Dismissed recommendation must leave the pending set")
	}
	if en.Dismiss(recs[0].ID) {
		t.Error("Dismissing twice should report false")
	}
}

func TestCategoriesForActionRoundTrip(t *testing.T) {
	cats := CategoriesForAction(ActionEnableEncryption)
	if len(cats) != 1 || cats[0] != detect.CategoryEncryption {
		t.Errorf("CategoriesForAction(enable-encryption) = %v", cats)
	}
	if len(CategoriesForAction(ActionEnableAuditLogging)) != 0 {
		t.Error("Gap-driven audit action has no finding category")
	}
}
