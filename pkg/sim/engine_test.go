package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-twinsec/pkg/config"
	"github.com/dd0wney/cluso-twinsec/pkg/detect"
	"github.com/dd0wney/cluso-twinsec/pkg/predict"
	"github.com/dd0wney/cluso-twinsec/pkg/pubsub"
	"github.com/dd0wney/cluso-twinsec/pkg/resilience"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Simulation.TickInterval = 10 * time.Millisecond
	cfg.Simulation.EntityCount = 5
	cfg.Simulation.HistoryLength = 3
	return cfg
}

func hardenedEntity(id string, typ twin.EntityType) *twin.Entity {
	return &twin.Entity{
		ID:          id,
		Type:        typ,
		Name:        id,
		Criticality: twin.CriticalityMedium,
		SecurityConfig: twin.SecurityConfig{
			EncryptionEnabled:   true,
			AuthStrength:        twin.AuthStrong,
			FirewallEnabled:     true,
			AuditLoggingEnabled: true,
			IntrusionDetection:  true,
			BackupEnabled:       true,
			NetworkIsolation:    true,
			PatchAgeDays:        3,
		},
		Attributes: twin.Attributes{
			FirmwareVersion: "FW-5.2.1",
			OperatingSystem: "Ubuntu 24.04",
		},
		Performance: twin.PerformanceMetrics{
			CPUUsage: 30, MemoryUsage: 40, NetworkUsage: 20,
			DiskUsage: 35, ResponseTimeMS: 40, ErrorRate: 0.001, Uptime: 0.999,
		},
		CreatedAt:   time.Now(),
		LastUpdated: time.Now(),
	}
}

// clinicFleet is the canonical five-entity test population: four
// hardened servers and one patient-records database with encryption
// disabled and weak authentication
func clinicFleet() twin.Population {
	pop := twin.Population{}
	for _, id := range []string{"srv-1", "srv-2", "srv-3", "srv-4"} {
		pop[id] = hardenedEntity(id, twin.TypeServer)
	}
	db := hardenedEntity("db-records", twin.TypeDatabase)
	db.Criticality = twin.CriticalityHigh
	db.SecurityConfig.EncryptionEnabled = false
	db.SecurityConfig.AuthStrength = twin.AuthWeak
	pop["db-records"] = db
	return pop
}

func newTestEngine(t *testing.T, pop twin.Population) *Engine {
	t.Helper()
	e, err := NewEngine(testConfig(), nil)
	require.NoError(t, err)
	if pop != nil {
		require.NoError(t, e.SetPopulation(pop))
	}
	return e
}

func TestEngineLifecycle(t *testing.T) {
	e := newTestEngine(t, nil)

	assert.Equal(t, StateIdle, e.State())
	require.NoError(t, e.Start())
	assert.Equal(t, StateRunning, e.State())

	require.NoError(t, e.Pause())
	assert.Equal(t, StatePaused, e.State())

	require.NoError(t, e.Resume())
	assert.Equal(t, StateRunning, e.State())

	e.Stop()
	assert.Equal(t, StateStopped, e.State())
}

func TestEngineInvalidTransitions(t *testing.T) {
	e := newTestEngine(t, nil)

	require.Error(t, e.Pause(), "Pause from Idle must fail")
	require.Error(t, e.Resume(), "Resume from Idle must fail")

	require.NoError(t, e.Start())
	err := e.Start()
	require.ErrorIs(t, err, ErrNotIdle, "Double start must fail")

	e.Stop()
	e.Stop() // Idempotent
	assert.Equal(t, StateStopped, e.State())

	require.Error(t, e.Start(), "Start after Stop must fail; Stopped is terminal")
	require.ErrorIs(t, e.Step(), ErrNotRunning)
}

func TestStepRequiresRunning(t *testing.T) {
	e := newTestEngine(t, nil)

	require.ErrorIs(t, e.Step(), ErrNotRunning)

	require.NoError(t, e.Start())
	require.NoError(t, e.Step())
	assert.Equal(t, 1, e.CurrentTick())

	require.NoError(t, e.Pause())
	require.ErrorIs(t, e.Step(), ErrNotRunning, "Paused engine must not tick")
}

func TestTickCommitsSnapshot(t *testing.T) {
	e := newTestEngine(t, clinicFleet())
	require.NoError(t, e.Start())

	require.Nil(t, e.Latest(), "No snapshot before the first tick")

	require.NoError(t, e.Step())

	snap := e.Latest()
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Tick)
	assert.Len(t, snap.Entities, 5)
	assert.NotEmpty(t, snap.EntityScores)
	assert.Equal(t, 5, snap.FleetScore.Entities)
}

func TestHistoryIsBounded(t *testing.T) {
	e := newTestEngine(t, clinicFleet())
	require.NoError(t, e.Start())

	for i := 0; i < 7; i++ {
		require.NoError(t, e.Step())
	}

	history := e.History()
	require.Len(t, history, 3, "History must hold at most HistoryLength snapshots")
	assert.Equal(t, 5, history[0].Tick, "Oldest snapshots must be evicted first")
	assert.Equal(t, 7, history[2].Tick)
}

func TestUnencryptedDatabasePipeline(t *testing.T) {
	e := newTestEngine(t, clinicFleet())
	require.NoError(t, e.Start())
	require.NoError(t, e.Step())

	snap := e.Latest()
	require.NotNil(t, snap)

	// The detector must flag the unencrypted database as critical and
	// its weak authentication as high
	var encFinding, authFinding *detect.Vulnerability
	for i := range snap.Vulnerabilities {
		v := &snap.Vulnerabilities[i]
		if v.EntityID != "db-records" {
			continue
		}
		switch v.Category {
		case detect.CategoryEncryption:
			encFinding = v
		case detect.CategoryAuthentication:
			authFinding = v
		}
	}
	require.NotNil(t, encFinding, "Expected an encryption finding on the unencrypted database")
	assert.Equal(t, twin.SeverityCritical, encFinding.Severity)
	require.NotNil(t, authFinding, "Expected an authentication finding on the weak-auth database")
	assert.Equal(t, twin.SeverityHigh, authFinding.Severity)

	// The predictor must produce data-breach and ransomware scenarios
	// targeting it
	var breach, ransom *predict.Scenario
	for i := range snap.Scenarios {
		switch snap.Scenarios[i].AttackType {
		case predict.AttackDataBreach:
			breach = &snap.Scenarios[i]
		case predict.AttackRansomware:
			ransom = &snap.Scenarios[i]
		}
	}
	require.NotNil(t, breach, "Expected a data-breach scenario")
	assert.Contains(t, breach.TargetEntityIDs, "db-records")
	require.NotNil(t, ransom, "Expected a ransomware scenario from the weak authentication")
	assert.Contains(t, ransom.TargetEntityIDs, "db-records")

	// The database must score below the hardened servers
	var dbComposite, srvComposite float64
	for _, s := range snap.EntityScores {
		if s.EntityID == "db-records" {
			dbComposite = s.Composite
		}
		if s.EntityID == "srv-1" {
			srvComposite = s.Composite
		}
	}
	assert.Less(t, dbComposite, srvComposite,
		"Unencrypted database must score below a hardened server")

	// The enhancer must recommend enabling encryption and strengthening
	// authentication
	var encRec, authRec *resilience.Recommendation
	for i := range snap.Recommendations {
		r := &snap.Recommendations[i]
		if r.TargetEntityID != "db-records" {
			continue
		}
		switch r.Action {
		case resilience.ActionEnableEncryption:
			encRec = r
		case resilience.ActionStrengthenAuth:
			authRec = r
		}
	}
	require.NotNil(t, encRec, "Expected an enable-encryption recommendation")
	assert.Equal(t, resilience.StatusPending, encRec.Status)
	require.NotNil(t, authRec, "Expected a strengthen-auth recommendation")
}

func TestApplyingRecommendationClosesTheGap(t *testing.T) {
	e := newTestEngine(t, clinicFleet())
	require.NoError(t, e.Start())
	require.NoError(t, e.Step())

	before := e.Latest()
	require.NotNil(t, before)

	var recID string
	var dbBefore float64
	for _, r := range before.Recommendations {
		if r.TargetEntityID == "db-records" && r.Action == resilience.ActionEnableEncryption {
			recID = r.ID
		}
	}
	for _, s := range before.EntityScores {
		if s.EntityID == "db-records" {
			dbBefore = s.Composite
		}
	}
	require.NotEmpty(t, recID)

	result, err := e.ApplyRecommendation(recID)
	require.NoError(t, err)
	assert.Equal(t, resilience.ResultApplied, result)

	require.NoError(t, e.Step())
	after := e.Latest()

	for _, v := range after.Vulnerabilities {
		if v.EntityID == "db-records" && v.Category == detect.CategoryEncryption {
			t.Error("Encryption finding must disappear once encryption is enabled")
		}
	}
	var dbAfter float64
	for _, s := range after.EntityScores {
		if s.EntityID == "db-records" {
			dbAfter = s.Composite
		}
	}
	assert.Greater(t, dbAfter, dbBefore,
		"Applying the recommendation must raise the entity's composite score")
}

func TestApplyRecommendationIdempotent(t *testing.T) {
	e := newTestEngine(t, clinicFleet())
	require.NoError(t, e.Start())
	require.NoError(t, e.Step())

	var recID string
	for _, r := range e.Latest().Recommendations {
		if r.TargetEntityID == "db-records" && r.Action == resilience.ActionEnableEncryption {
			recID = r.ID
		}
	}
	require.NotEmpty(t, recID)

	first, err := e.ApplyRecommendation(recID)
	require.NoError(t, err)
	assert.Equal(t, resilience.ResultApplied, first)

	second, err := e.ApplyRecommendation(recID)
	require.NoError(t, err)
	assert.Equal(t, resilience.ResultAlreadyApplied, second)
}

func TestSnapshotFanOut(t *testing.T) {
	e := newTestEngine(t, clinicFleet())

	sub, err := e.Broker().Subscribe(context.Background(), pubsub.TopicSnapshots)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, e.Start())
	require.NoError(t, e.Step())

	select {
	case msg := <-sub.Channel():
		snap, ok := msg.(*Snapshot)
		require.True(t, ok, "Published message should be a snapshot")
		assert.Equal(t, 1, snap.Tick)
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for the published snapshot")
	}
}

func TestSnapshotEncodeRoundTrip(t *testing.T) {
	e := newTestEngine(t, clinicFleet())
	require.NoError(t, e.Start())
	require.NoError(t, e.Step())

	snap := e.Latest()
	data, err := snap.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap.Tick, decoded.Tick)
	assert.Len(t, decoded.Entities, len(snap.Entities))
	assert.Equal(t, snap.FleetScore.Composite, decoded.FleetScore.Composite)
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	_, err := DecodeSnapshot([]byte("not snappy data"))
	require.Error(t, err)
}

func TestRunLoopHonorsContext(t *testing.T) {
	e := newTestEngine(t, clinicFleet())
	require.NoError(t, e.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := e.Run(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, StateStopped, e.State())
	assert.Greater(t, e.CurrentTick(), 0, "The loop should have ticked before the deadline")
}

func TestSnapshotImmutability(t *testing.T) {
	e := newTestEngine(t, clinicFleet())
	require.NoError(t, e.Start())
	require.NoError(t, e.Step())

	snap := e.Latest()
	var db *twin.Entity
	for i := range snap.Entities {
		if snap.Entities[i].ID == "db-records" {
			db = &snap.Entities[i]
		}
	}
	require.NotNil(t, db)
	wasEncrypted := db.SecurityConfig.EncryptionEnabled

	// Mutate the live population through later ticks
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Step())
	}

	assert.Equal(t, wasEncrypted, db.SecurityConfig.EncryptionEnabled,
		"Committed snapshots must not observe later mutation")
}

func TestReportSummarizesRun(t *testing.T) {
	e := newTestEngine(t, clinicFleet())
	require.NoError(t, e.Start())
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Step())
	}

	r := e.Report()
	assert.Equal(t, 3, r.Ticks)
	assert.Equal(t, 5, r.Entities)
	assert.Greater(t, r.FinalFleetScore, 0.0)
	assert.Greater(t, r.OpenFindings, 0, "The unencrypted database keeps a finding open")
	assert.NotEmpty(t, r.String())
}

func TestTickRefreshesProcessInstrumentation(t *testing.T) {
	cfg := testConfig()
	cfg.Anomaly.MinPopulation = 5 // the five-entity fleet trains on the first tick

	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, e.SetPopulation(clinicFleet()))
	require.NoError(t, e.Start())
	require.NoError(t, e.Step())
	require.NoError(t, e.Step())

	families, err := e.Metrics().GetPrometheusRegistry().Gather()
	require.NoError(t, err)

	var sawUptime, sawAnomaly bool
	for _, fam := range families {
		switch fam.GetName() {
		case "twinsec_uptime_seconds":
			sawUptime = true
			require.NotEmpty(t, fam.GetMetric())
			assert.Greater(t, fam.GetMetric()[0].GetGauge().GetValue(), 0.0,
				"Uptime gauge must be refreshed by the tick loop")
		case "twinsec_anomaly_score":
			sawAnomaly = true
			require.NotEmpty(t, fam.GetMetric())
			assert.Equal(t, uint64(10), fam.GetMetric()[0].GetHistogram().GetSampleCount(),
				"Every scored entity must observe into the anomaly histogram")
		}
	}
	assert.True(t, sawUptime, "twinsec_uptime_seconds must be exposed")
	assert.True(t, sawAnomaly, "twinsec_anomaly_score must be exposed once the model is trained")
}

func TestHealthIncludesMemoryCheck(t *testing.T) {
	e := newTestEngine(t, clinicFleet())

	resp := e.HealthChecker().Check()
	check, ok := resp.Checks["memory"]
	require.True(t, ok, "The memory check must be registered")
	assert.Contains(t, check.Details, "alloc_bytes")
}

func TestApplyDuringTicksIsSerialized(t *testing.T) {
	e := newTestEngine(t, clinicFleet())
	require.NoError(t, e.Start())
	require.NoError(t, e.Step())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			snap := e.Latest()
			if snap == nil {
				continue
			}
			for _, r := range snap.Recommendations {
				e.ApplyRecommendation(r.ID)
			}
		}
	}()

	for i := 0; i < 10; i++ {
		require.NoError(t, e.Step())
	}
	<-done

	assert.Equal(t, StateRunning, e.State())
}
