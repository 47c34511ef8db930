package detect

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-twinsec/pkg/anomaly"
	"github.com/dd0wney/cluso-twinsec/pkg/logging"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// Options tunes the detector
type Options struct {
	PatchAgeThresholdDays   int
	PatternConfidenceCutoff float64

	// AnomalyObserver, when set, receives every ML-pass score. Must be
	// safe for concurrent use: entities are scanned in parallel.
	AnomalyObserver func(score float64, flagged bool, severity string)
}

// Detector runs the three detection passes over an entity and merges
// their findings. Detect is stateless per entity and safe for
// concurrent use across entities.
type Detector struct {
	opts   Options
	scorer *anomaly.Scorer
	logger logging.Logger
}

// NewDetector creates a detector backed by the given anomaly scorer
func NewDetector(opts Options, scorer *anomaly.Scorer, logger logging.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Detector{
		opts:   opts,
		scorer: scorer,
		logger: logger.With(logging.Component("detector")),
	}
}

// Detect runs the rule, pattern, and ml passes over one entity and
// merges the results by category. Merging keeps the highest severity,
// the maximum confidence, and the union of detection-method provenance;
// it never downgrades a severity.
func (d *Detector) Detect(e *twin.Entity) []Vulnerability {
	merged := make(map[Category]*Vulnerability)

	for _, f := range runRulePass(e, d.opts.PatchAgeThresholdDays) {
		d.merge(merged, e.ID, f, MethodRule)
	}
	for _, f := range runPatternPass(e, d.opts.PatternConfidenceCutoff) {
		d.merge(merged, e.ID, f, MethodPattern)
	}
	if f := d.runMLPass(e); f != nil {
		d.merge(merged, e.ID, *f, MethodML)
	}

	out := make([]Vulnerability, 0, len(merged))
	for _, v := range merged {
		out = append(out, *v)
	}
	// Deterministic output order: severity descending, then category
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].Category < out[j].Category
	})

	if len(out) > 0 {
		d.logger.Debug("entity scan complete",
			logging.EntityID(e.ID),
			logging.Count("findings", len(out)),
			logging.SeverityField(string(out[0].Severity)),
		)
	}
	return out
}

// runMLPass turns an anomalous scorer result into a performance-anomaly
// finding whose severity mirrors the scorer's bucket and whose
// confidence is the normalized anomaly score
func (d *Detector) runMLPass(e *twin.Entity) *finding {
	res := d.scorer.Score(e)
	if d.opts.AnomalyObserver != nil && d.scorer.Trained() {
		d.opts.AnomalyObserver(res.Score, res.IsAnomaly, string(res.Severity))
	}
	if !res.IsAnomaly {
		return nil
	}
	desc := res.Reason
	if desc == "" {
		desc = fmt.Sprintf("behavioral anomaly detected (score %.3f)", res.Score)
	}
	return &finding{
		category:    CategoryPerformanceAnomaly,
		severity:    res.Severity,
		description: desc,
		confidence:  res.Score,
	}
}

func (d *Detector) merge(merged map[Category]*Vulnerability, entityID string, f finding, m Method) {
	existing, ok := merged[f.category]
	if !ok {
		merged[f.category] = &Vulnerability{
			ID:           uuid.NewString(),
			EntityID:     entityID,
			Category:     f.category,
			Severity:     f.severity,
			Methods:      []Method{m},
			Description:  f.description,
			Confidence:   f.confidence,
			Status:       StatusOpen,
			DiscoveredAt: time.Now(),
		}
		return
	}

	if f.severity.Rank() > existing.Severity.Rank() {
		existing.Severity = f.severity
		existing.Description = f.description
	}
	if f.confidence > existing.Confidence {
		existing.Confidence = f.confidence
	}
	if !existing.FoundBy(m) {
		existing.Methods = append(existing.Methods, m)
	}
}
