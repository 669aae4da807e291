package scanner

import (
	"fmt"
	"time"
)

// Depth selects how wide the port prober casts its net.
type Depth string

const (
	DepthQuick Depth = "quick"
	DepthDeep  Depth = "deep"
)

// ParseDepth normalizes a depth string, defaulting to quick when empty.
func ParseDepth(s string) (Depth, error) {
	switch Depth(s) {
	case DepthQuick, DepthDeep:
		return Depth(s), nil
	case "":
		return DepthQuick, nil
	}
	return "", fmt.Errorf("invalid scan depth %q (use %q or %q)", s, DepthQuick, DepthDeep)
}

// Stage identifies one unit of scan work.
type Stage string

const (
	StagePorts   Stage = "ports"
	StageHeaders Stage = "headers"
	StageTLS     Stage = "tls"
	StageCVE     Stage = "cve"
)

// DefaultStages returns every stage in execution order.
func DefaultStages() []Stage {
	return []Stage{StagePorts, StageHeaders, StageTLS, StageCVE}
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StagePorts, StageHeaders, StageTLS, StageCVE:
		return Stage(s), nil
	}
	return "", fmt.Errorf("invalid scan stage %q", s)
}

// Severity labels shared by every finding kind.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Port states and header statuses.
const (
	StateOpen   = "open"
	StateClosed = "closed"

	StatusPresent = "present"
	StatusMissing = "missing"
	StatusWeak    = "weak"
)

// Request describes one scan invocation. It is treated as immutable once
// handed to the Scanner.
type Request struct {
	Target string  `json:"target"`
	Depth  Depth   `json:"depth"`
	Stages []Stage `json:"stages"`
}

// HasStage reports whether the request enables the given stage. An empty
// stage list enables everything.
func (r Request) HasStage(stage Stage) bool {
	if len(r.Stages) == 0 {
		return true
	}
	for _, s := range r.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// PortFinding records one probed port. Only open ports make it into a
// Result; closed and unreachable ports stay internal.
type PortFinding struct {
	Port    int    `json:"port"`
	State   string `json:"state"`
	Service string `json:"service"`
	Banner  string `json:"banner,omitempty"`
}

// HeaderFinding records the analysis of one checklist header.
type HeaderFinding struct {
	Header         string `json:"header"`
	Value          string `json:"value,omitempty"`
	Status         string `json:"status"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation"`
}

// TLSFinding records one protocol-version handshake attempt.
type TLSFinding struct {
	Version         string   `json:"version"`
	Supported       bool     `json:"supported"`
	CipherSuites    []string `json:"cipher_suites"`
	Vulnerabilities []string `json:"vulnerabilities"`
}

// VulnerabilityFinding is a knowledge-base match against a discovered
// service. Derived data, never user supplied.
type VulnerabilityFinding struct {
	CVEID           string  `json:"cve_id"`
	Score           float64 `json:"score"`
	Severity        string  `json:"severity"`
	Description     string  `json:"description"`
	AffectedService string  `json:"affected_service"`
	Recommendation  string  `json:"recommendation"`
}

// Summary counts issues by severity. Open ports are not themselves issues
// and never contribute here.
type Summary struct {
	TotalIssues int `json:"total_issues"`
	Critical    int `json:"critical"`
	High        int `json:"high"`
	Medium      int `json:"medium"`
	Low         int `json:"low"`
}

// Result is the sole artifact a scan produces. Immutable after construction.
type Result struct {
	Target          string                 `json:"target"`
	Depth           Depth                  `json:"depth"`
	StartedAt       time.Time              `json:"started_at"`
	DurationSeconds float64                `json:"duration_seconds"`
	Summary         Summary                `json:"summary"`
	PortScan        []PortFinding          `json:"port_scan"`
	SecurityHeaders []HeaderFinding        `json:"security_headers"`
	TLSAnalysis     []TLSFinding           `json:"tls_analysis"`
	Vulnerabilities []VulnerabilityFinding `json:"vulnerabilities"`
}

// summarize folds header, TLS and vulnerability findings into severity
// counts. Each missing or weak header counts once at its own severity, each
// TLS vulnerability tag counts as medium, and each CVE match counts at the
// template's severity.
func summarize(headers []HeaderFinding, tlsFindings []TLSFinding, vulns []VulnerabilityFinding) Summary {
	var s Summary

	add := func(severity string) {
		switch severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		default:
			return
		}
		s.TotalIssues++
	}

	for _, h := range headers {
		if h.Status == StatusMissing || h.Status == StatusWeak {
			add(h.Severity)
		}
	}
	for _, t := range tlsFindings {
		for range t.Vulnerabilities {
			add(SeverityMedium)
		}
	}
	for _, v := range vulns {
		add(v.Severity)
	}

	return s
}
