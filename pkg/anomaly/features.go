package anomaly

import (
	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// NumFeatures is the length of every extracted feature vector
const NumFeatures = 18

var typeEncoding = map[twin.EntityType]float64{
	twin.TypeImagingDevice:  1.0,
	twin.TypePatientMonitor: 2.0,
	twin.TypeServer:         3.0,
	twin.TypeNetworkDevice:  4.0,
	twin.TypeDatabase:       5.0,
}

var criticalityEncoding = map[twin.Criticality]float64{
	twin.CriticalityLow:    1.0,
	twin.CriticalityMedium: 2.0,
	twin.CriticalityHigh:   3.0,
}

// ExtractFeatures converts an entity into a fixed-order numeric vector.
// The order and normalization are stable: the same entity state always
// yields the same vector. Missing enum values encode as 0, the weakest
// posture, so extraction never fails.
func ExtractFeatures(e *twin.Entity) []float64 {
	f := make([]float64, 0, NumFeatures)

	// Performance metrics, normalized to [0, 1]
	m := e.Performance
	f = append(f,
		m.CPUUsage/100,
		m.MemoryUsage/100,
		m.NetworkUsage/100,
		m.DiskUsage/100,
		m.ResponseTimeMS/1000,
		m.ErrorRate,
		m.Uptime,
	)

	// Connectivity
	c := e.Connectivity
	f = append(f,
		float64(c.PeerCount()),
		c.TotalBandwidth/1000,
		c.LatencyMS/100,
	)

	// Security configuration, binary encoded
	sc := e.SecurityConfig
	f = append(f,
		boolFeature(sc.EncryptionEnabled),
		boolFeature(sc.AuthStrength == twin.AuthStrong),
		boolFeature(sc.FirewallEnabled),
		boolFeature(sc.IntrusionDetection),
		boolFeature(sc.AuditLoggingEnabled),
		boolFeature(sc.BackupEnabled),
	)

	// Threat indicators and identity encodings
	f = append(f,
		float64(len(e.ThreatIndicators)),
		typeEncoding[e.Type]+criticalityEncoding[e.Criticality]/10,
	)

	return f
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
