package anomaly

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// Result is the outcome of scoring one entity against the trained model
type Result struct {
	Score     float64       `json:"score"`
	IsAnomaly bool          `json:"is_anomaly"`
	Severity  twin.Severity `json:"severity,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// model is one trained generation of the scorer. Models are immutable;
// retraining builds a fresh model and swaps the pointer, so scoring
// never observes a half-updated model.
type model struct {
	forest        *Forest
	flagThreshold float64 // contamination quantile: above this is anomalous
	highThreshold float64 // 90th percentile of training scores
	critThreshold float64 // 97.5th percentile of training scores
	population    int
}

// Scorer is the unsupervised outlier model over entity feature vectors.
// Score is safe for concurrent use; Train replaces the model atomically.
type Scorer struct {
	contamination float64
	ensembleSize  int
	sampleSize    int
	minPopulation int

	current atomic.Pointer[model]

	mu  sync.Mutex // serializes training
	rng *rand.Rand
}

// NewScorer creates an untrained scorer. Until the first successful
// Train with enough entities, every entity scores as non-anomalous.
func NewScorer(contamination float64, ensembleSize, sampleSize, minPopulation int, seed int64) *Scorer {
	return &Scorer{
		contamination: contamination,
		ensembleSize:  ensembleSize,
		sampleSize:    sampleSize,
		minPopulation: minPopulation,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Trained reports whether a model is available
func (s *Scorer) Trained() bool {
	return s.current.Load() != nil
}

// TrainedOn returns the population size of the active model, 0 if none
func (s *Scorer) TrainedOn() int {
	if m := s.current.Load(); m != nil {
		return m.population
	}
	return 0
}

// Train fits a new model on the population's feature vectors and swaps
// it in. With fewer than the minimum population the call is a no-op:
// there is not enough data to model normal behavior, and the previous
// model (if any) stays active.
func (s *Scorer) Train(pop twin.Population) {
	if len(pop) < s.minPopulation {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vectors := make([][]float64, 0, len(pop))
	for _, e := range pop {
		vectors = append(vectors, ExtractFeatures(e))
	}

	forest := NewForest(vectors, s.ensembleSize, s.sampleSize, s.rng)

	scores := make([]float64, len(vectors))
	for i, v := range vectors {
		scores[i] = forest.Score(v)
	}
	sort.Float64s(scores)

	s.current.Store(&model{
		forest:        forest,
		flagThreshold: quantile(scores, 1-s.contamination),
		highThreshold: quantile(scores, 0.90),
		critThreshold: quantile(scores, 0.975),
		population:    len(vectors),
	})
}

// Score evaluates one entity against the last trained model. Cold start
// (no model yet) returns a well-defined non-anomalous result.
func (s *Scorer) Score(e *twin.Entity) Result {
	m := s.current.Load()
	if m == nil {
		return Result{}
	}

	score := m.forest.Score(ExtractFeatures(e))
	if score <= m.flagThreshold {
		return Result{Score: score}
	}

	severity := twin.SeverityMedium
	if score > m.critThreshold {
		severity = twin.SeverityCritical
	} else if score > m.highThreshold {
		severity = twin.SeverityHigh
	}

	return Result{
		Score:     score,
		IsAnomaly: true,
		Severity:  severity,
		Reason:    describeAnomaly(e, score),
	}
}

// quantile returns the q-quantile of an ascending-sorted slice
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// describeAnomaly names the dominant deviations behind a flagged entity
func describeAnomaly(e *twin.Entity, score float64) string {
	var causes []string

	m := e.Performance
	if m.CPUUsage > 90 {
		causes = append(causes, "unusually high CPU usage")
	}
	if m.MemoryUsage > 95 {
		causes = append(causes, "unusually high memory usage")
	}
	if m.ErrorRate > 0.1 {
		causes = append(causes, "elevated error rate")
	}
	if !e.SecurityConfig.EncryptionEnabled {
		causes = append(causes, "encryption disabled")
	}
	if e.SecurityConfig.AuthStrength == twin.AuthNone {
		causes = append(causes, "no authentication required")
	}
	if e.Connectivity.PeerCount() > 10 {
		causes = append(causes, "unusually high peer count")
	}

	if len(causes) == 0 {
		return fmt.Sprintf("statistical outlier in %s behavior (score %.3f)", e.Type, score)
	}
	return fmt.Sprintf("anomalous %s: %s", e.Type, strings.Join(causes, "; "))
}
