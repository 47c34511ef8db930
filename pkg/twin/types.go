package twin

import (
	"time"
)

// EntityType classifies a digital twin by the infrastructure it models
type EntityType string

const (
	TypeImagingDevice  EntityType = "imaging-device"
	TypePatientMonitor EntityType = "patient-monitor"
	TypeServer         EntityType = "server"
	TypeNetworkDevice  EntityType = "network-device"
	TypeDatabase       EntityType = "database"
)

// EntityTypes lists all entity types in a stable order
var EntityTypes = []EntityType{
	TypeImagingDevice,
	TypePatientMonitor,
	TypeServer,
	TypeNetworkDevice,
	TypeDatabase,
}

// IsMedicalDevice reports whether the type is patient-facing equipment
func (t EntityType) IsMedicalDevice() bool {
	return t == TypeImagingDevice || t == TypePatientMonitor
}

// Severity represents the severity of a finding, ordered low to critical
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal position of the severity for comparisons.
// Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Criticality expresses how important an entity is to clinical operations
type Criticality string

const (
	CriticalityLow    Criticality = "low"
	CriticalityMedium Criticality = "medium"
	CriticalityHigh   Criticality = "high"
)

// AuthStrength is the authentication posture of an entity
type AuthStrength string

const (
	AuthNone   AuthStrength = "none"
	AuthWeak   AuthStrength = "weak"
	AuthStrong AuthStrength = "strong"
)

// SecurityConfig holds the mutable security posture of an entity.
// Every field is always present; zero values are the weakest posture,
// so detectors can evaluate any entity without nil checks.
type SecurityConfig struct {
	EncryptionEnabled   bool         `json:"encryption_enabled"`
	AuthStrength        AuthStrength `json:"auth_strength"`
	FirewallEnabled     bool         `json:"firewall_enabled"`
	AuditLoggingEnabled bool         `json:"audit_logging_enabled"`
	IntrusionDetection  bool         `json:"intrusion_detection"`
	BackupEnabled       bool         `json:"backup_enabled"`
	NetworkIsolation    bool         `json:"network_isolation"`
	PatchAgeDays        int          `json:"patch_age_days"`
}

// Normalize fills enum fields that arrived empty with their weakest value
func (c *SecurityConfig) Normalize() {
	if c.AuthStrength == "" {
		c.AuthStrength = AuthNone
	}
}

// PerformanceMetrics is one tick's sample of an entity's runtime behavior.
// Usage values are percentages, response time is milliseconds, error rate
// and uptime are fractions in [0, 1].
type PerformanceMetrics struct {
	CPUUsage       float64 `json:"cpu_usage"`
	MemoryUsage    float64 `json:"memory_usage"`
	NetworkUsage   float64 `json:"network_usage"`
	DiskUsage      float64 `json:"disk_usage"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	ErrorRate      float64 `json:"error_rate"`
	Uptime         float64 `json:"uptime"`
}

// Peer describes one network connection from an entity
type Peer struct {
	TargetID  string  `json:"target_id"`
	Protocol  string  `json:"protocol"`
	Port      int     `json:"port"`
	Encrypted bool    `json:"encrypted"`
	Bandwidth float64 `json:"bandwidth_mbps"`
}

// Connectivity describes an entity's network neighborhood
type Connectivity struct {
	Peers          []Peer  `json:"peers"`
	TotalBandwidth float64 `json:"total_bandwidth_mbps"`
	LatencyMS      float64 `json:"latency_ms"`
}

// PeerCount returns the number of connected peers
func (c Connectivity) PeerCount() int {
	return len(c.Peers)
}

// UnencryptedPeerCount returns the number of peers reached without encryption
func (c Connectivity) UnencryptedPeerCount() int {
	n := 0
	for _, p := range c.Peers {
		if !p.Encrypted {
			n++
		}
	}
	return n
}

// Attributes carries type-specific metadata used by the pattern detector
type Attributes struct {
	Manufacturer    string   `json:"manufacturer"`
	Model           string   `json:"model"`
	FirmwareVersion string   `json:"firmware_version"`
	OperatingSystem string   `json:"operating_system"`
	NetworkSegment  string   `json:"network_segment"`
	OpenPorts       []int    `json:"open_ports"`
	Protocols       []string `json:"protocols"`
	PublicFacing    bool     `json:"public_facing"`
}

// Entity is a digital twin of one piece of healthcare infrastructure.
// Entities are created once, mutated in place each tick by the orchestrator,
// and replaced only at population reset.
type Entity struct {
	ID               string             `json:"id"`
	Type             EntityType         `json:"type"`
	Name             string             `json:"name"`
	Criticality      Criticality        `json:"criticality"`
	Attributes       Attributes         `json:"attributes"`
	SecurityConfig   SecurityConfig     `json:"security_config"`
	Performance      PerformanceMetrics `json:"performance_metrics"`
	Connectivity     Connectivity       `json:"connectivity"`
	ThreatIndicators []string           `json:"threat_indicators,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	LastUpdated      time.Time          `json:"last_updated"`
}

// Clone returns a deep copy safe to place in an immutable snapshot
func (e *Entity) Clone() *Entity {
	cp := *e
	cp.Connectivity.Peers = append([]Peer(nil), e.Connectivity.Peers...)
	cp.Attributes.OpenPorts = append([]int(nil), e.Attributes.OpenPorts...)
	cp.Attributes.Protocols = append([]string(nil), e.Attributes.Protocols...)
	cp.ThreatIndicators = append([]string(nil), e.ThreatIndicators...)
	return &cp
}

// Population is the fleet of entities keyed by ID
type Population map[string]*Entity

// IDs returns the entity IDs in unspecified order
func (p Population) IDs() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	return ids
}

// Clone deep-copies the population for snapshotting
func (p Population) Clone() Population {
	out := make(Population, len(p))
	for id, e := range p {
		out[id] = e.Clone()
	}
	return out
}
