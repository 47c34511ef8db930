package twin

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// typeProfile controls how entities of one type are generated
type typeProfile struct {
	weight       float64
	namePrefixes []string
	criticality  []Criticality
	protocols    []string
}

var typeProfiles = map[EntityType]typeProfile{
	TypeImagingDevice: {
		weight:       0.30,
		namePrefixes: []string{"MRI", "CT", "XRay", "Ultrasound", "ECG"},
		criticality:  []Criticality{CriticalityHigh, CriticalityMedium, CriticalityLow},
		protocols:    []string{"DICOM", "HL7", "HTTP"},
	},
	TypePatientMonitor: {
		weight:       0.25,
		namePrefixes: []string{"Monitor", "VitalSigns", "ICU", "ER"},
		criticality:  []Criticality{CriticalityHigh, CriticalityHigh, CriticalityMedium},
		protocols:    []string{"HL7", "MQTT", "HTTP"},
	},
	TypeServer: {
		weight:       0.20,
		namePrefixes: []string{"AppServer", "Mainframe", "Backup", "Archive"},
		criticality:  []Criticality{CriticalityHigh, CriticalityMedium, CriticalityMedium},
		protocols:    []string{"HTTPS", "SSH", "SMB"},
	},
	TypeNetworkDevice: {
		weight:       0.15,
		namePrefixes: []string{"Router", "Switch", "Gateway", "AccessPoint"},
		criticality:  []Criticality{CriticalityMedium, CriticalityMedium, CriticalityLow},
		protocols:    []string{"SNMP", "SSH", "Telnet"},
	},
	TypeDatabase: {
		weight:       0.10,
		namePrefixes: []string{"PatientDB", "MedicalDB", "ResearchDB", "ArchiveDB"},
		criticality:  []Criticality{CriticalityHigh, CriticalityHigh, CriticalityMedium},
		protocols:    []string{"TCP", "TLS", "HTTP"},
	},
}

var networkSegments = []string{
	"patient-care",
	"administrative",
	"research",
	"emergency",
	"isolation",
}

var manufacturers = []string{"Siemens", "GE", "Philips", "Cisco", "Dell", "HP"}

var operatingSystems = []string{"Linux", "Windows", "Embedded", "Custom"}

var indicatorTypes = []string{
	"suspicious-network-activity",
	"unusual-login-attempts",
	"data-exfiltration",
	"malware-detection",
	"privilege-escalation",
}

// Generator produces and mutates digital twin populations. It is the
// inbound data-source collaborator for the simulation engine: any
// population conforming to the entity model can replace it.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator with a deterministic seed
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate creates count fresh entities with randomized but bounded state
func (g *Generator) Generate(count int) Population {
	pop := make(Population, count)
	for i := 0; i < count; i++ {
		e := g.newEntity(g.pickType())
		pop[e.ID] = e
	}
	return pop
}

func (g *Generator) pickType() EntityType {
	r := g.rng.Float64()
	acc := 0.0
	for _, t := range EntityTypes {
		acc += typeProfiles[t].weight
		if r < acc {
			return t
		}
	}
	return TypeDatabase
}

func (g *Generator) newEntity(t EntityType) *Entity {
	profile := typeProfiles[t]
	now := time.Now()

	e := &Entity{
		ID:          uuid.NewString(),
		Type:        t,
		Name:        fmt.Sprintf("%s-%04d", profile.namePrefixes[g.rng.Intn(len(profile.namePrefixes))], g.rng.Intn(9000)+1000),
		Criticality: profile.criticality[g.rng.Intn(len(profile.criticality))],
		Attributes: Attributes{
			Manufacturer:    manufacturers[g.rng.Intn(len(manufacturers))],
			Model:           fmt.Sprintf("Model-%d", g.rng.Intn(900)+100),
			FirmwareVersion: fmt.Sprintf("FW-%d.%d", g.rng.Intn(5)+1, g.rng.Intn(10)),
			OperatingSystem: operatingSystems[g.rng.Intn(len(operatingSystems))],
			NetworkSegment:  networkSegments[g.rng.Intn(len(networkSegments))],
			OpenPorts:       g.openPorts(),
			Protocols:       profile.protocols,
			PublicFacing:    g.rng.Float64() < 0.15,
		},
		SecurityConfig: SecurityConfig{
			EncryptionEnabled:   g.rng.Float64() < 0.5,
			AuthStrength:        []AuthStrength{AuthNone, AuthWeak, AuthStrong}[g.rng.Intn(3)],
			FirewallEnabled:     g.rng.Float64() < 0.5,
			AuditLoggingEnabled: g.rng.Float64() < 0.5,
			IntrusionDetection:  g.rng.Float64() < 0.4,
			BackupEnabled:       g.rng.Float64() < 0.5,
			NetworkIsolation:    g.rng.Float64() < 0.3,
			PatchAgeDays:        g.rng.Intn(365),
		},
		Performance: PerformanceMetrics{
			CPUUsage:       g.uniform(10, 90),
			MemoryUsage:    g.uniform(20, 85),
			NetworkUsage:   g.uniform(5, 80),
			DiskUsage:      g.uniform(15, 95),
			ResponseTimeMS: g.uniform(10, 500),
			ErrorRate:      g.uniform(0, 0.05),
			Uptime:         g.uniform(0.8, 0.999),
		},
		Connectivity: g.connectivity(),
		CreatedAt:    now,
		LastUpdated:  now,
	}
	e.SecurityConfig.Normalize()
	return e
}

func (g *Generator) openPorts() []int {
	n := g.rng.Intn(4) + 1
	ports := make([]int, n)
	candidates := []int{21, 22, 23, 80, 104, 161, 443, 445, 2575, 3306, 5432, 8080, 11112}
	for i := range ports {
		ports[i] = candidates[g.rng.Intn(len(candidates))]
	}
	return ports
}

func (g *Generator) connectivity() Connectivity {
	n := g.rng.Intn(5) + 1
	peers := make([]Peer, n)
	total := 0.0
	for i := range peers {
		bw := g.uniform(10, 1000)
		peers[i] = Peer{
			TargetID:  uuid.NewString(),
			Protocol:  []string{"TCP", "UDP", "HTTP", "HTTPS", "SSH"}[g.rng.Intn(5)],
			Port:      g.rng.Intn(65535) + 1,
			Encrypted: g.rng.Float64() < 0.5,
			Bandwidth: bw,
		}
		total += bw
	}
	return Connectivity{
		Peers:          peers,
		TotalBandwidth: total,
		LatencyMS:      g.uniform(1, 100),
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// Mutate applies one tick of bounded random-walk drift to an entity.
// Performance metrics drift by up to ±10% and are clamped to their
// valid ranges; patch age advances; threat indicators appear rarely.
func (g *Generator) Mutate(e *Entity) {
	m := &e.Performance
	m.CPUUsage = clamp(g.drift(m.CPUUsage), 0, 100)
	m.MemoryUsage = clamp(g.drift(m.MemoryUsage), 0, 100)
	m.NetworkUsage = clamp(g.drift(m.NetworkUsage), 0, 100)
	m.DiskUsage = clamp(g.drift(m.DiskUsage), 0, 100)
	m.ResponseTimeMS = clamp(g.drift(m.ResponseTimeMS), 0, 10000)
	m.ErrorRate = clamp(g.drift(m.ErrorRate), 0, 1)
	m.Uptime = clamp(g.drift(m.Uptime), 0, 1)

	e.Connectivity.LatencyMS = clamp(e.Connectivity.LatencyMS+g.uniform(-5, 5), 0, 1000)
	total := 0.0
	for i := range e.Connectivity.Peers {
		p := &e.Connectivity.Peers[i]
		p.Bandwidth = clamp(p.Bandwidth+g.uniform(-10, 10), 0, 10000)
		total += p.Bandwidth
	}
	e.Connectivity.TotalBandwidth = total

	if g.rng.Float64() < 0.02 {
		e.SecurityConfig.PatchAgeDays++
	}
	if g.rng.Float64() < 0.01 {
		e.ThreatIndicators = append(e.ThreatIndicators, indicatorTypes[g.rng.Intn(len(indicatorTypes))])
	}

	e.LastUpdated = time.Now()
}

func (g *Generator) drift(v float64) float64 {
	return v * (1 + g.uniform(-0.1, 0.1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
