package detect

import (
	"regexp"

	"github.com/dd0wney/cluso-twinsec/pkg/twin"
)

// signature is one entry of the static known-vulnerability table. A
// signature matches against entity attributes and emits a finding with
// the fixed severity and confidence recorded here.
type signature struct {
	name        string
	match       func(e *twin.Entity) bool
	category    Category
	severity    twin.Severity
	description string
	confidence  float64
}

var (
	legacyFirmware = regexp.MustCompile(`^FW-[12]\.`)
	embeddedOS     = regexp.MustCompile(`(?i)^(embedded|custom)$`)
)

// insecure service ports: telnet, ftp, smb, unauthenticated dicom
var insecurePorts = map[int]string{
	23:    "telnet",
	21:    "ftp",
	445:   "smb",
	11112: "dicom",
}

var insecureProtocols = map[string]bool{
	"Telnet": true,
	"FTP":    true,
	"SMB":    true,
}

var signatureTable = []signature{
	{
		name: "legacy-firmware",
		match: func(e *twin.Entity) bool {
			return legacyFirmware.MatchString(e.Attributes.FirmwareVersion)
		},
		category:    CategoryConfiguration,
		severity:    twin.SeverityHigh,
		description: "firmware version matches known-vulnerable legacy release line",
		confidence:  0.85,
	},
	{
		name: "insecure-service-port",
		match: func(e *twin.Entity) bool {
			for _, p := range e.Attributes.OpenPorts {
				if _, ok := insecurePorts[p]; ok {
					return true
				}
			}
			return false
		},
		category:    CategoryNetwork,
		severity:    twin.SeverityHigh,
		description: "listening on a port associated with an insecure legacy service",
		confidence:  0.80,
	},
	{
		name: "cleartext-protocol",
		match: func(e *twin.Entity) bool {
			for _, p := range e.Attributes.Protocols {
				if insecureProtocols[p] {
					return true
				}
			}
			return false
		},
		category:    CategoryNetwork,
		severity:    twin.SeverityMedium,
		description: "cleartext management protocol advertised",
		confidence:  0.75,
	},
	{
		name: "public-facing-medical-device",
		match: func(e *twin.Entity) bool {
			return e.Type.IsMedicalDevice() && e.Attributes.PublicFacing
		},
		category:    CategoryNetwork,
		severity:    twin.SeverityCritical,
		description: "medical device exposed outside the clinical network",
		confidence:  0.90,
	},
	{
		name: "unsupported-embedded-os",
		match: func(e *twin.Entity) bool {
			return embeddedOS.MatchString(e.Attributes.OperatingSystem) &&
				e.SecurityConfig.PatchAgeDays > 180
		},
		category:    CategoryConfiguration,
		severity:    twin.SeverityMedium,
		description: "unpatched embedded operating system",
		confidence:  0.70,
	},
}

// runPatternPass matches the signature table against entity attributes.
// Signatures below the confidence cutoff are suppressed, which is how
// detection sensitivity trades recall against false positives.
func runPatternPass(e *twin.Entity, confidenceCutoff float64) []finding {
	var out []finding
	for _, sig := range signatureTable {
		if sig.confidence < confidenceCutoff {
			continue
		}
		if sig.match(e) {
			out = append(out, finding{
				category:    sig.category,
				severity:    sig.severity,
				description: sig.description,
				confidence:  sig.confidence,
			})
		}
	}
	return out
}
