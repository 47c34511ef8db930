package sim

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-twinsec/pkg/detect"
	"github.com/dd0wney/cluso-twinsec/pkg/evaluate"
	"github.com/dd0wney/cluso-twinsec/pkg/predict"
	"github.com/dd0wney/cluso-twinsec/pkg/resilience"
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// Snapshot is the immutable result of one committed tick. Everything in
// it is deep-copied from the live population, so holding a snapshot
// never observes later mutation.
type Snapshot struct {
	Tick            int                         `json:"tick"`
	Timestamp       time.Time                   `json:"timestamp"`
	Entities        []twin.Entity               `json:"entities"`
	Vulnerabilities []detect.Vulnerability      `json:"vulnerabilities"`
	Scenarios       []predict.Scenario          `json:"scenarios"`
	EntityScores    []evaluate.SecurityScore    `json:"entity_scores"`
	FleetScore      evaluate.FleetScore         `json:"fleet_score"`
	Recommendations []resilience.Recommendation `json:"recommendations"`
}

// Encode serializes the snapshot as snappy-compressed JSON, the wire
// form handed to external persistence or streaming consumers
func (s *Snapshot) Encode() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %d: %w", s.Tick, err)
	}
	return snappy.Encode(nil, raw), nil
}

// DecodeSnapshot reverses Encode
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// snapshotEntities flattens a cloned population into a slice ordered by
// entity ID so snapshots are deterministic
func snapshotEntities(pop twin.Population) []twin.Entity {
	ids := pop.IDs()
	sort.Strings(ids)
	out := make([]twin.Entity, 0, len(pop))
	for _, id := range ids {
		out = append(out, *pop[id])
	}
	return out
}

// sortVulnerabilities orders findings for stable snapshot output:
// severity descending, then entity, then category
func sortVulnerabilities(vulns []detect.Vulnerability) {
	sort.Slice(vulns, func(i, j int) bool {
		if vulns[i].Severity.Rank() != vulns[j].Severity.Rank() {
			return vulns[i].Severity.Rank() > vulns[j].Severity.Rank()
		}
		if vulns[i].EntityID != vulns[j].EntityID {
			return vulns[i].EntityID < vulns[j].EntityID
		}
		return vulns[i].Category < vulns[j].Category
	})
}
