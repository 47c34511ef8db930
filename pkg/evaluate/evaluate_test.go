package evaluate

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-twinsec/pkg/config"
	"github.com/dd0wney/cluso-twinsec/pkg/detect"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	ev, err := NewEvaluator(config.DefaultDomainWeights())
	if err != nil {
		t.Fatalf("NewEvaluator failed: %v", err)
	}
	return ev
}

func secureEntity(id string) *twin.Entity {
	return &twin.Entity{
		ID:          id,
		Type:        twin.TypeDatabase,
		Criticality: twin.CriticalityHigh,
		SecurityConfig: twin.SecurityConfig{
			EncryptionEnabled:   true,
			AuthStrength:        twin.AuthStrong,
			FirewallEnabled:     true,
			AuditLoggingEnabled: true,
			IntrusionDetection:  true,
			BackupEnabled:       true,
			NetworkIsolation:    true,
			PatchAgeDays:        5,
		},
	}
}

func TestRejectsInvalidWeights(t *testing.T) {
	w := config.DefaultDomainWeights()
	w.AccessControl = 0.5
	if _, err := NewEvaluator(w); err == nil {
		t.Error("Evaluator must reject weights that do not sum to 1.0")
	}
}

func TestCompositeMatchesWeightedSum(t *testing.T) {
	ev := newTestEvaluator(t)
	d := DomainScores{
		AccessControl:           80,
		DataProtection:          70,
		NetworkSecurity:         60,
		VulnerabilityManagement: 50,
		IncidentResponse:        40,
		Compliance:              30,
	}
	want := 80*0.25 + 70*0.20 + 60*0.20 + 50*0.15 + 40*0.10 + 30*0.10
	if got := ev.Composite(d); math.Abs(got-want) > 1e-9 {
		t.Errorf("Composite = %v, want %v", got, want)
	}
}

func TestEvaluationIsDeterministic(t *testing.T) {
	ev := newTestEvaluator(t)
	e := secureEntity("a")
	vulns := []detect.Vulnerability{{
		EntityID: "a", Category: detect.CategoryNetwork,
		Severity: twin.SeverityHigh, Status: detect.StatusOpen,
	}}

	s1 := ev.EvaluateEntity(e, vulns, nil)
	s2 := ev.EvaluateEntity(e, vulns, nil)
	if s1.Composite != s2.Composite || s1.Domains != s2.Domains {
		t.Error("Identical inputs must yield identical scores")
	}
}

func TestOpenVulnerabilityLowersDomainScore(t *testing.T) {
	ev := newTestEvaluator(t)
	e := secureEntity("a")

	clean := ev.EvaluateEntity(e, nil, nil)
	withVuln := ev.EvaluateEntity(e, []detect.Vulnerability{{
		EntityID: "a", Category: detect.CategoryAuthentication,
		Severity: twin.SeverityHigh, Status: detect.StatusOpen,
	}}, nil)

	if withVuln.Domains.AccessControl >= clean.Domains.AccessControl {
		t.Error("Open authentication finding must lower the access-control score")
	}
	if withVuln.Composite >= clean.Composite {
		t.Error("Open finding must lower the composite score")
	}
}

func TestResolvingVulnerabilityNeverLowersScore(t *testing.T) {
	ev := newTestEvaluator(t)
	e := secureEntity("a")
	vuln := detect.Vulnerability{
		EntityID: "a", Category: detect.CategoryEncryption,
		Severity: twin.SeverityCritical, Status: detect.StatusOpen,
	}

	before := ev.EvaluateEntity(e, []detect.Vulnerability{vuln}, nil)
	vuln.Status = detect.StatusResolved
	after := ev.EvaluateEntity(e, []detect.Vulnerability{vuln}, nil)

	if after.Domains.DataProtection < before.Domains.DataProtection {
		t.Error("Resolving a finding must never lower the domain score")
	}
	if after.Composite < before.Composite {
		t.Error("Resolving a finding must never lower the composite score")
	}
}

func TestWeakerPostureScoresLower(t *testing.T) {
	ev := newTestEvaluator(t)

	strong := secureEntity("strong")
	weak := secureEntity("weak")
	weak.SecurityConfig.EncryptionEnabled = false
	weak.SecurityConfig.AuthStrength = twin.AuthWeak

	ss := ev.EvaluateEntity(strong, nil, nil)
	ws := ev.EvaluateEntity(weak, nil, nil)
	if ws.Composite >= ss.Composite {
		t.Errorf("Weaker posture composite %v should be below stronger %v", ws.Composite, ss.Composite)
	}
}

func TestDomainScoresStayInRange(t *testing.T) {
	ev := newTestEvaluator(t)
	e := secureEntity("a")
	e.SecurityConfig = twin.SecurityConfig{AuthStrength: twin.AuthNone, PatchAgeDays: 1000}

	var vulns []detect.Vulnerability
	for i := 0; i < 20; i++ {
		vulns = append(vulns, detect.Vulnerability{
			EntityID: "a", Category: detect.CategoryConfiguration,
			Severity: twin.SeverityCritical, Status: detect.StatusOpen,
		})
	}

	s := ev.EvaluateEntity(e, vulns, nil)
	for name, v := range map[string]float64{
		"access_control":           s.Domains.AccessControl,
		"data_protection":          s.Domains.DataProtection,
		"network_security":         s.Domains.NetworkSecurity,
		"vulnerability_management": s.Domains.VulnerabilityManagement,
		"incident_response":        s.Domains.IncidentResponse,
		"compliance":               s.Domains.Compliance,
		"composite":                s.Composite,
	} {
		if v < 0 || v > 100 {
			t.Errorf("Score %s out of range: %v", name, v)
		}
	}
}

func TestFleetAggregate(t *testing.T) {
	ev := newTestEvaluator(t)

	var scores []SecurityScore
	for _, c := range []float64{20, 40, 60, 80} {
		scores = append(scores, SecurityScore{
			Scope:     ScopeEntity,
			Composite: c,
			Domains:   DomainScores{AccessControl: c},
		})
	}

	fs := ev.EvaluateFleet(scores)
	if fs.Scope != ScopeFleet {
		t.Errorf("Fleet scope = %s", fs.Scope)
	}
	if fs.Composite != 50 {
		t.Errorf("Fleet composite = %v, want 50", fs.Composite)
	}
	if fs.Min != 20 || fs.Max != 80 || fs.Median != 50 {
		t.Errorf("Distribution min/median/max = %v/%v/%v, want 20/50/80", fs.Min, fs.Median, fs.Max)
	}
	if fs.Domains.AccessControl != 50 {
		t.Errorf("Fleet domain mean = %v, want 50", fs.Domains.AccessControl)
	}
	if fs.Entities != 4 {
		t.Errorf("Fleet entity count = %d, want 4", fs.Entities)
	}
}

func TestFleetAggregateEmpty(t *testing.T) {
	ev := newTestEvaluator(t)
	fs := ev.EvaluateFleet(nil)
	if fs.Entities != 0 || fs.Composite != 0 {
		t.Error("Empty fleet should aggregate to zeros, not panic")
	}
}

// TestCompositeProperty verifies the weighted-sum contract over random
// domain vectors and valid weight sets
func TestCompositeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	ev := newTestEvaluator(t)
	w := config.DefaultDomainWeights()

	properties.Property("composite equals weighted sum", prop.ForAll(
		func(a, b, c, d, e, f float64) bool {
			scores := DomainScores{
				AccessControl:           a,
				DataProtection:          b,
				NetworkSecurity:         c,
				VulnerabilityManagement: d,
				IncidentResponse:        e,
				Compliance:              f,
			}
			want := a*w.AccessControl + b*w.DataProtection + c*w.NetworkSecurity +
				d*w.VulnerabilityManagement + e*w.IncidentResponse + f*w.Compliance
			return math.Abs(ev.Composite(scores)-want) < 1e-9
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
	))

	properties.Property("composite is bounded by domain extremes", prop.ForAll(
		func(a, b, c, d, e, f float64) bool {
			scores := DomainScores{a, b, c, d, e, f}
			got := ev.Composite(scores)
			lo := math.Min(a, math.Min(b, math.Min(c, math.Min(d, math.Min(e, f)))))
			hi := math.Max(a, math.Max(b, math.Max(c, math.Max(d, math.Max(e, f)))))
			return got >= lo-1e-9 && got <= hi+1e-9
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}
