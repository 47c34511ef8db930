package sim

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dd0wney/cluso-twinsec/pkg/anomaly"
	"github.com/dd0wney/cluso-twinsec/pkg/config"
	"github.com/dd0wney/cluso-twinsec/pkg/detect"
	"github.com/dd0wney/cluso-twinsec/pkg/evaluate"
	"github.com/dd0wney/cluso-twinsec/pkg/health"
	"github.com/dd0wney/cluso-twinsec/pkg/logging"
	"github.com/dd0wney/cluso-twinsec/pkg/metrics"
	"github.com/dd0wney/cluso-twinsec/pkg/parallel"
	"github.com/dd0wney/cluso-twinsec/pkg/predict"
	"github.com/dd0wney/cluso-twinsec/pkg/pubsub"
	"github.com/dd0wney/cluso-twinsec/pkg/resilience"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// State is the orchestrator lifecycle state
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

var (
	ErrNotIdle    = errors.New("engine already started")
	ErrNotRunning = errors.New("engine is not running")
	ErrNotPaused  = errors.New("engine is not paused")
	ErrStopped    = errors.New("engine is stopped")
)

// Engine drives the assessment pipeline: each tick mutates the twin
// population, detects vulnerabilities, predicts attack scenarios,
// scores the fleet, generates recommendations, and commits an immutable
// snapshot. Consumers only ever see committed snapshots.
type Engine struct {
	cfg     *config.Config
	logger  logging.Logger
	metrics *metrics.Registry
	broker  *pubsub.Broker
	checker *health.Checker

	generator *twin.Generator
	scorer    *anomaly.Scorer
	detector  *detect.Detector
	predictor *predict.Predictor
	evaluator *evaluate.Evaluator
	enhancer  *resilience.Enhancer

	mu          sync.RWMutex
	state       State
	tick        int
	pop         twin.Population
	openVulns   map[string][]detect.Vulnerability
	events      []predict.Event
	history     []*Snapshot
	lastTickDur time.Duration

	// Lifetime counters for the final report
	discoveredBySeverity map[twin.Severity]int
	appliedActions       int
	startedAt            time.Time
}

// NewEngine builds the full pipeline from configuration. The population
// is generated up front so an Idle engine can already be inspected.
func NewEngine(cfg *config.Config, logger logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	evaluator, err := evaluate.NewEvaluator(cfg.Scoring.Weights)
	if err != nil {
		return nil, err
	}

	scorer := anomaly.NewScorer(
		cfg.Anomaly.Contamination,
		cfg.Anomaly.EnsembleSize,
		cfg.Anomaly.SampleSize,
		cfg.Anomaly.MinPopulation,
		cfg.Simulation.Seed,
	)

	generator := twin.NewGenerator(cfg.Simulation.Seed)
	reg := metrics.NewRegistry()

	e := &Engine{
		cfg:     cfg,
		logger:  logger.With(logging.Component("engine")),
		metrics: reg,
		broker:  pubsub.NewBroker(),
		checker: health.NewChecker(),

		generator: generator,
		scorer:    scorer,
		detector: detect.NewDetector(detect.Options{
			PatchAgeThresholdDays:   cfg.Detection.PatchAgeThresholdDays,
			PatternConfidenceCutoff: cfg.Detection.PatternConfidenceCutoff,
			AnomalyObserver:         reg.RecordAnomaly,
		}, scorer, logger),
		predictor: predict.NewPredictor(predict.Options{
			ProbabilityFloor: cfg.Prediction.ProbabilityFloor,
			MaxTargets:       cfg.Prediction.MaxTargets,
			RecentEventCount: cfg.Prediction.RecentEventCount,
		}, logger),
		evaluator: evaluator,
		enhancer:  resilience.NewEnhancer(cfg.Scoring.Weights, logger),

		state:                StateIdle,
		pop:                  generator.Generate(cfg.Simulation.EntityCount),
		openVulns:            make(map[string][]detect.Vulnerability),
		discoveredBySeverity: make(map[twin.Severity]int),
		startedAt:            time.Now(),
	}

	e.registerHealthChecks()
	e.metrics.SetSimulationState(string(StateIdle))

	return e, nil
}

func (e *Engine) registerHealthChecks() {
	e.checker.RegisterCheck("anomaly_model", health.ModelTrainedCheck(e.scorer.Trained))
	e.checker.RegisterCheck("tick_latency", health.TickLatencyCheck(e.cfg.Simulation.TickInterval, func() time.Duration {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return e.lastTickDur
	}))
	e.checker.RegisterCheck("snapshot_history", health.HistoryCheck(func() (int, int) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return len(e.history), e.cfg.Simulation.HistoryLength
	}))
	e.checker.RegisterReadinessCheck("engine_state", health.EngineStateCheck(func() string {
		return string(e.State())
	}))
	e.checker.RegisterCheck("memory", health.MemoryCheck(func() (uint64, uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}))
	e.checker.RegisterLivenessCheck("engine", func() health.Check {
		return health.Check{Name: "engine", Status: health.StatusHealthy}
	})
}

// SetPopulation replaces the generated population before the run
// starts. Callers that model a real fleet use this instead of the
// built-in generator.
func (e *Engine) SetPopulation(pop twin.Population) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		return fmt.Errorf("%w: population is fixed once started", ErrNotIdle)
	}
	e.pop = pop.Clone()
	for _, ent := range e.pop {
		ent.SecurityConfig.Normalize()
	}
	return nil
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Start moves the engine from Idle to Running
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		return fmt.Errorf("%w: state is %s", ErrNotIdle, e.state)
	}
	e.state = StateRunning
	e.metrics.SetSimulationState(string(StateRunning))
	e.logger.Info("simulation started",
		logging.Int("entities", len(e.pop)),
		logging.Duration("tick_interval", e.cfg.Simulation.TickInterval),
	)
	return nil
}

// Pause suspends tick processing at the next tick boundary. Only a
// running engine can pause.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return fmt.Errorf("%w: state is %s", ErrNotRunning, e.state)
	}
	e.state = StatePaused
	e.metrics.SetSimulationState(string(StatePaused))
	e.logger.Info("simulation paused", logging.Tick(uint64(e.tick)))
	return nil
}

// Resume returns a paused engine to Running
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused {
		return fmt.Errorf("%w: state is %s", ErrNotPaused, e.state)
	}
	e.state = StateRunning
	e.metrics.SetSimulationState(string(StateRunning))
	e.logger.Info("simulation resumed", logging.Tick(uint64(e.tick)))
	return nil
}

// Stop terminates the engine. Safe to call from any state, idempotent,
// and terminal: a stopped engine never runs another tick.
func (e *Engine) Stop() {
	e.mu.Lock()
	alreadyStopped := e.state == StateStopped
	e.state = StateStopped
	tick := e.tick
	e.mu.Unlock()

	if alreadyStopped {
		return
	}
	e.metrics.SetSimulationState(string(StateStopped))
	e.broker.Shutdown()
	e.logger.Info("simulation stopped", logging.Tick(uint64(tick)))
}

// Run drives the tick loop until the engine stops or the context is
// cancelled. Paused ticks are skipped, not queued.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Simulation.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return ctx.Err()
		case <-ticker.C:
			switch e.State() {
			case StateRunning:
				if err := e.Step(); err != nil {
					return err
				}
			case StatePaused:
				// Skip the tick entirely
			case StateStopped:
				return nil
			}
		}
	}
}

// Step executes exactly one tick synchronously. The engine must be
// Running.
func (e *Engine) Step() error {
	if s := e.State(); s != StateRunning {
		return fmt.Errorf("%w: state is %s", ErrNotRunning, s)
	}

	start := time.Now()

	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	e.stageMutate(tick)
	e.stageRetrain(tick)
	vulns := e.stageDetect(tick)
	scenarios := e.stagePredict(tick, vulns)
	scores, fleet := e.stageEvaluate(tick, vulns, scenarios)
	recs := e.stageRecommend(tick, vulns, scores, scenarios)
	e.commitSnapshot(tick, vulns, scenarios, scores, fleet, recs)

	elapsed := time.Since(start)
	e.mu.Lock()
	e.lastTickDur = elapsed
	e.mu.Unlock()

	e.metrics.RecordTick(elapsed)
	e.metrics.UpdateSystemMetrics(e.startedAt)
	e.logger.Debug("tick committed",
		logging.Tick(uint64(tick)),
		logging.Duration("elapsed", elapsed),
		logging.Count("findings", len(vulns)),
	)
	return nil
}

// stageMutate drifts the population one step. The generator's random
// source is not safe for concurrent use, so mutation is sequential.
func (e *Engine) stageMutate(tick int) {
	start := time.Now()

	e.mu.Lock()
	for _, ent := range e.pop {
		e.generator.Mutate(ent)
	}
	e.mu.Unlock()

	e.metrics.RecordStage("mutate", time.Since(start))
}

// stageRetrain refits the anomaly model on the drifted population at
// the configured cadence. The first tick always trains.
func (e *Engine) stageRetrain(tick int) {
	if tick != 1 && tick%e.cfg.Anomaly.RetrainEvery != 0 {
		return
	}
	start := time.Now()

	e.mu.RLock()
	pop := e.pop.Clone()
	e.mu.RUnlock()

	e.scorer.Train(pop)
	e.metrics.ModelRetrainsTotal.Inc()
	e.metrics.RecordStage("retrain", time.Since(start))
}

// stageDetect fans detection out across the population. A failure on
// one entity is logged and skipped; the tick carries on with the rest.
func (e *Engine) stageDetect(tick int) []detect.Vulnerability {
	start := time.Now()

	e.mu.RLock()
	ids := e.pop.IDs()
	sort.Strings(ids)
	prevOpen := e.openVulns
	e.mu.RUnlock()

	var collectMu sync.Mutex
	found := make(map[string][]detect.Vulnerability, len(ids))

	parallel.ForEach(e.workers(), ids, func(id string) {
		defer func() {
			if r := recover(); r != nil {
				e.metrics.RecordStageFailure("detect")
				e.logger.Warn("detection failed for entity, skipping",
					logging.EntityID(id),
					logging.String("panic", fmt.Sprint(r)),
				)
			}
		}()

		// The read lock is held across the scan so a concurrent
		// ApplyRecommendation cannot mutate the posture mid-read
		e.mu.RLock()
		defer e.mu.RUnlock()
		ent := e.pop[id]
		if ent == nil {
			return
		}

		vulns := e.detector.Detect(ent)
		collectMu.Lock()
		found[id] = vulns
		collectMu.Unlock()
	})

	// Record newly discovered (entity, category) pairs as security
	// events for the predictor's recency weighting
	var all []detect.Vulnerability
	var newEvents []predict.Event
	for id, vulns := range found {
		seen := make(map[detect.Category]bool)
		for _, v := range prevOpen[id] {
			seen[v.Category] = true
		}
		for _, v := range vulns {
			all = append(all, v)
			if !seen[v.Category] {
				e.metrics.RecordVulnerability(string(v.Category), string(v.Severity))
				newEvents = append(newEvents, predict.Event{
					Type:      predict.EventVulnerability,
					EntityID:  id,
					Severity:  v.Severity,
					Timestamp: time.Now(),
				})
				e.mu.Lock()
				e.discoveredBySeverity[v.Severity]++
				e.mu.Unlock()
			}
		}
	}
	sortVulnerabilities(all)

	e.updateOpenGauge(all)

	e.mu.Lock()
	e.openVulns = found
	e.events = append(e.events, newEvents...)
	if max := e.cfg.Prediction.RecentEventCount * 4; len(e.events) > max {
		e.events = e.events[len(e.events)-max:]
	}
	e.mu.Unlock()

	e.metrics.RecordStage("detect", time.Since(start))
	return all
}

func (e *Engine) updateOpenGauge(all []detect.Vulnerability) {
	counts := map[twin.Severity]int{
		twin.SeverityLow: 0, twin.SeverityMedium: 0,
		twin.SeverityHigh: 0, twin.SeverityCritical: 0,
	}
	for _, v := range all {
		if v.Status == detect.StatusOpen {
			counts[v.Severity]++
		}
	}
	for sev, n := range counts {
		e.metrics.VulnerabilitiesOpen.WithLabelValues(string(sev)).Set(float64(n))
	}
}

func (e *Engine) stagePredict(tick int, vulns []detect.Vulnerability) []predict.Scenario {
	start := time.Now()

	e.mu.RLock()
	pop := e.pop
	events := make([]predict.Event, len(e.events))
	copy(events, e.events)
	e.mu.RUnlock()

	scenarios := e.predictor.Predict(pop, vulns, events)
	for _, s := range scenarios {
		e.metrics.RecordScenario(string(s.AttackType), s.Probability)
	}

	e.metrics.RecordStage("predict", time.Since(start))
	return scenarios
}

func (e *Engine) stageEvaluate(tick int, vulns []detect.Vulnerability, scenarios []predict.Scenario) ([]evaluate.SecurityScore, evaluate.FleetScore) {
	start := time.Now()

	byEntity := make(map[string][]detect.Vulnerability)
	for _, v := range vulns {
		byEntity[v.EntityID] = append(byEntity[v.EntityID], v)
	}

	e.mu.RLock()
	ids := e.pop.IDs()
	sort.Strings(ids)
	e.mu.RUnlock()

	var collectMu sync.Mutex
	scores := make([]evaluate.SecurityScore, 0, len(ids))

	parallel.ForEach(e.workers(), ids, func(id string) {
		defer func() {
			if r := recover(); r != nil {
				e.metrics.RecordStageFailure("evaluate")
				e.logger.Warn("evaluation failed for entity, skipping",
					logging.EntityID(id),
					logging.String("panic", fmt.Sprint(r)),
				)
			}
		}()

		e.mu.RLock()
		defer e.mu.RUnlock()
		ent := e.pop[id]
		if ent == nil {
			return
		}

		score := e.evaluator.EvaluateEntity(ent, byEntity[id], scenarios)
		collectMu.Lock()
		scores = append(scores, score)
		collectMu.Unlock()
	})

	sort.Slice(scores, func(i, j int) bool { return scores[i].EntityID < scores[j].EntityID })

	fleet := e.evaluator.EvaluateFleet(scores)
	e.metrics.FleetCompositeScore.Set(fleet.Composite)
	e.metrics.FleetDomainScore.WithLabelValues("access_control").Set(fleet.Domains.AccessControl)
	e.metrics.FleetDomainScore.WithLabelValues("data_protection").Set(fleet.Domains.DataProtection)
	e.metrics.FleetDomainScore.WithLabelValues("network_security").Set(fleet.Domains.NetworkSecurity)
	e.metrics.FleetDomainScore.WithLabelValues("vulnerability_management").Set(fleet.Domains.VulnerabilityManagement)
	e.metrics.FleetDomainScore.WithLabelValues("incident_response").Set(fleet.Domains.IncidentResponse)
	e.metrics.FleetDomainScore.WithLabelValues("compliance").Set(fleet.Domains.Compliance)

	e.metrics.RecordStage("evaluate", time.Since(start))
	return scores, fleet
}

func (e *Engine) stageRecommend(tick int, vulns []detect.Vulnerability, scores []evaluate.SecurityScore, scenarios []predict.Scenario) []resilience.Recommendation {
	start := time.Now()

	byEntity := make(map[string][]detect.Vulnerability)
	for _, v := range vulns {
		byEntity[v.EntityID] = append(byEntity[v.EntityID], v)
	}
	domainsByEntity := make(map[string]evaluate.DomainScores, len(scores))
	for _, s := range scores {
		domainsByEntity[s.EntityID] = s.Domains
	}

	var recs []resilience.Recommendation
	e.mu.RLock()
	ids := e.pop.IDs()
	sort.Strings(ids)
	e.mu.RUnlock()

	for _, id := range ids {
		e.mu.RLock()
		ent := e.pop[id]
		if ent == nil {
			e.mu.RUnlock()
			continue
		}
		entRecs := e.enhancer.Recommend(ent, byEntity[id], domainsByEntity[id], scenarios)
		e.mu.RUnlock()
		recs = append(recs, entRecs...)
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority > recs[j].Priority
		}
		return recs[i].TargetEntityID < recs[j].TargetEntityID
	})

	e.metrics.RecommendationsPending.Set(float64(len(recs)))
	e.metrics.RecordStage("recommend", time.Since(start))
	return recs
}

func (e *Engine) commitSnapshot(tick int, vulns []detect.Vulnerability, scenarios []predict.Scenario, scores []evaluate.SecurityScore, fleet evaluate.FleetScore, recs []resilience.Recommendation) {
	start := time.Now()

	e.mu.Lock()
	snap := &Snapshot{
		Tick:            tick,
		Timestamp:       time.Now(),
		Entities:        snapshotEntities(e.pop.Clone()),
		Vulnerabilities: vulns,
		Scenarios:       scenarios,
		EntityScores:    scores,
		FleetScore:      fleet,
		Recommendations: recs,
	}
	e.history = append(e.history, snap)
	if len(e.history) > e.cfg.Simulation.HistoryLength {
		e.history = e.history[len(e.history)-e.cfg.Simulation.HistoryLength:]
	}
	typeCounts := make(map[twin.EntityType]int)
	for _, ent := range e.pop {
		typeCounts[ent.Type]++
	}
	e.mu.Unlock()

	for t, n := range typeCounts {
		e.metrics.SimulationEntitiesTotal.WithLabelValues(string(t)).Set(float64(n))
	}

	e.broker.Publish(pubsub.TopicSnapshots, snap)
	e.metrics.RecordStage("snapshot", time.Since(start))
}

// workers returns the stage fan-out width
func (e *Engine) workers() int {
	if e.cfg.Simulation.Workers > 0 {
		return e.cfg.Simulation.Workers
	}
	return 4
}

// Latest returns the most recently committed snapshot, or nil before
// the first tick
func (e *Engine) Latest() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.history) == 0 {
		return nil
	}
	return e.history[len(e.history)-1]
}

// History returns the retained snapshots, oldest first
func (e *Engine) History() []*Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Snapshot, len(e.history))
	copy(out, e.history)
	return out
}

// CurrentTick returns the index of the last committed tick
func (e *Engine) CurrentTick() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tick
}

// HealthChecker exposes the engine's health checks for the server
func (e *Engine) HealthChecker() *health.Checker {
	return e.checker
}

// Metrics exposes the engine's metrics registry for the server
func (e *Engine) Metrics() *metrics.Registry {
	return e.metrics
}

// Broker exposes the snapshot fan-out broker
func (e *Engine) Broker() *pubsub.Broker {
	return e.broker
}

// ApplyRecommendation executes a pending recommendation against the
// live population. On success the matching open findings resolve on
// the next tick because the posture gap is closed; a remediation event
// feeds back into the predictor.
func (e *Engine) ApplyRecommendation(recID string) (resilience.ApplyResult, error) {
	// The write lock serializes the posture mutation against stage
	// workers, which read entity fields under the read lock.
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return "", ErrStopped
	}

	rec, known := e.enhancer.Find(recID)
	result, err := e.enhancer.Apply(recID, e.pop)
	if err != nil {
		e.mu.Unlock()
		return result, err
	}

	applied := result == resilience.ResultApplied
	if applied {
		e.appliedActions++
		e.events = append(e.events, predict.Event{
			Type:      predict.EventRemediation,
			Timestamp: time.Now(),
		})
	}
	e.mu.Unlock()

	if applied {
		if known {
			e.metrics.RecommendationsApplied.WithLabelValues(string(rec.Action)).Inc()
		}
		e.metrics.VulnerabilitiesResolved.Inc()
	}
	return result, nil
}
