package scanner

import "fmt"

// cveTemplate is one knowledge-base entry for a service.
type cveTemplate struct {
	ID             string
	Score          float64
	Severity       string
	Description    string
	Recommendation string
}

// cveKnowledgeBase maps catalog service names to known issues. A static,
// illustrative data set, not a live CVE feed.
var cveKnowledgeBase = map[string][]cveTemplate{
	"SSH": {
		{
			ID:             "CVE-2020-15778",
			Score:          7.8,
			Severity:       SeverityHigh,
			Description:    "OpenSSH privilege escalation vulnerability",
			Recommendation: "Update to OpenSSH 8.3 or later",
		},
	},
	"HTTP": {
		{
			ID:             "CVE-2021-44228",
			Score:          10.0,
			Severity:       SeverityCritical,
			Description:    "Apache Log4j RCE vulnerability",
			Recommendation: "Update Log4j to version 2.17.0 or later",
		},
	},
	"FTP": {
		{
			ID:             "CVE-2019-12815",
			Score:          9.8,
			Severity:       SeverityCritical,
			Description:    "ProFTPD file copy vulnerability",
			Recommendation: "Update ProFTPD to version 1.3.6b or later",
		},
	},
	"Telnet": {
		{
			ID:             "CVE-2020-10188",
			Score:          9.8,
			Severity:       SeverityCritical,
			Description:    "telnetd remote code execution via crafted option handling",
			Recommendation: "Disable Telnet entirely and use SSH for remote access",
		},
	},
	"MySQL": {
		{
			ID:             "CVE-2012-2122",
			Score:          5.1,
			Severity:       SeverityMedium,
			Description:    "MySQL authentication bypass via repeated login attempts",
			Recommendation: "Upgrade MySQL and restrict network access to trusted hosts",
		},
	},
	"RDP": {
		{
			ID:             "CVE-2019-0708",
			Score:          9.8,
			Severity:       SeverityCritical,
			Description:    "BlueKeep remote code execution in Remote Desktop Services",
			Recommendation: "Apply the May 2019 security update and require Network Level Authentication",
		},
	},
}

// Correlator joins open-port findings against the CVE knowledge base. It has
// no I/O and cannot fail.
type Correlator struct{}

// Correlate instantiates one finding per knowledge-base match per open port.
// Multiple open ports running the same service each yield their own
// findings; services without a table entry contribute nothing.
func (Correlator) Correlate(ports []PortFinding) []VulnerabilityFinding {
	findings := []VulnerabilityFinding{}
	for _, p := range ports {
		for _, tpl := range cveKnowledgeBase[p.Service] {
			findings = append(findings, VulnerabilityFinding{
				CVEID:           tpl.ID,
				Score:           tpl.Score,
				Severity:        tpl.Severity,
				Description:     tpl.Description,
				AffectedService: fmt.Sprintf("%s (port %d)", p.Service, p.Port),
				Recommendation:  tpl.Recommendation,
			})
		}
	}
	return findings
}
