package scanner

import (
	"context"
	"errors"
	"testing"
)

type fakePorts struct {
	findings []PortFinding
	err      error
	calls    int
}

func (f *fakePorts) Scan(ctx context.Context, target string, depth Depth) ([]PortFinding, error) {
	f.calls++
	return f.findings, f.err
}

type fakeHeaders struct {
	findings []HeaderFinding
	calls    int
}

func (f *fakeHeaders) Analyze(ctx context.Context, target string) []HeaderFinding {
	f.calls++
	return f.findings
}

type fakeTLS struct {
	findings []TLSFinding
	calls    int
}

func (f *fakeTLS) Probe(ctx context.Context, target string) []TLSFinding {
	f.calls++
	return f.findings
}

type fakeVulns struct {
	findings []VulnerabilityFinding
	gotPorts []PortFinding
	calls    int
}

func (f *fakeVulns) Correlate(ports []PortFinding) []VulnerabilityFinding {
	f.calls++
	f.gotPorts = ports
	return f.findings
}

func newFakeScanner(ports *fakePorts, headers *fakeHeaders, tls *fakeTLS, vulns *fakeVulns) *Scanner {
	s := New(Config{}, nil)
	s.ports = ports
	s.headers = headers
	s.tls = tls
	s.vulns = vulns
	return s
}

func TestScanRunsAllStages(t *testing.T) {
	ports := &fakePorts{findings: []PortFinding{{Port: 22, State: StateOpen, Service: "SSH"}}}
	headers := &fakeHeaders{findings: []HeaderFinding{
		{Header: "Strict-Transport-Security", Status: StatusMissing, Severity: SeverityCritical},
	}}
	tlsStage := &fakeTLS{findings: []TLSFinding{
		{Version: "TLSv1.0", Supported: true, Vulnerabilities: []string{deprecatedProtocolTag}},
	}}
	vulns := &fakeVulns{findings: []VulnerabilityFinding{
		{CVEID: "CVE-2020-15778", Severity: SeverityHigh},
	}}
	s := newFakeScanner(ports, headers, tlsStage, vulns)

	var progress []int
	result, err := s.Scan(context.Background(), Request{Target: "example.com"}, func(p int) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ports.calls != 1 || headers.calls != 1 || tlsStage.calls != 1 || vulns.calls != 1 {
		t.Errorf("expected each stage to run once, got ports=%d headers=%d tls=%d cve=%d",
			ports.calls, headers.calls, tlsStage.calls, vulns.calls)
	}
	if len(vulns.gotPorts) != 1 || vulns.gotPorts[0].Port != 22 {
		t.Errorf("expected correlator to see port findings, got %v", vulns.gotPorts)
	}

	if result.Depth != DepthQuick {
		t.Errorf("expected default depth quick, got %q", result.Depth)
	}
	if result.DurationSeconds < 0 {
		t.Errorf("negative duration: %v", result.DurationSeconds)
	}

	s2 := result.Summary
	if s2.Critical != 1 || s2.High != 1 || s2.Medium != 1 || s2.TotalIssues != 3 {
		t.Errorf("unexpected summary: %+v", s2)
	}

	// Progress is monotone and ends at 100.
	if len(progress) == 0 {
		t.Fatal("expected progress callbacks")
	}
	last := -1
	for _, p := range progress {
		if p < last {
			t.Fatalf("progress went backwards: %v", progress)
		}
		last = p
	}
	if last != 100 {
		t.Errorf("expected final progress 100, got %d", last)
	}
	if progress[0] != 25 {
		t.Errorf("expected first stage of four to report 25, got %d", progress[0])
	}
}

func TestScanStageSelection(t *testing.T) {
	ports := &fakePorts{findings: []PortFinding{{Port: 80, Service: "HTTP"}}}
	headers := &fakeHeaders{findings: []HeaderFinding{
		{Header: "Content-Security-Policy", Status: StatusMissing, Severity: SeverityHigh},
	}}
	tlsStage := &fakeTLS{}
	vulns := &fakeVulns{findings: []VulnerabilityFinding{{CVEID: "CVE-2021-44228", Severity: SeverityCritical}}}
	s := newFakeScanner(ports, headers, tlsStage, vulns)

	result, err := s.Scan(context.Background(), Request{
		Target: "example.com",
		Stages: []Stage{StageHeaders},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ports.calls != 0 || tlsStage.calls != 0 || vulns.calls != 0 {
		t.Errorf("expected only headers to run, got ports=%d tls=%d cve=%d",
			ports.calls, tlsStage.calls, vulns.calls)
	}
	if len(result.PortScan) != 0 || len(result.TLSAnalysis) != 0 || len(result.Vulnerabilities) != 0 {
		t.Errorf("disabled stages must yield empty findings: %+v", result)
	}
	if result.PortScan == nil || result.TLSAnalysis == nil || result.Vulnerabilities == nil {
		t.Error("disabled stage slices must be empty, not nil")
	}
	if result.Summary.TotalIssues != 1 || result.Summary.High != 1 {
		t.Errorf("unexpected summary: %+v", result.Summary)
	}
}

func TestScanCVEWithoutPortsYieldsNothing(t *testing.T) {
	ports := &fakePorts{findings: []PortFinding{{Port: 22, Service: "SSH"}}}
	vulns := &fakeVulns{findings: []VulnerabilityFinding{{CVEID: "CVE-2020-15778", Severity: SeverityHigh}}}
	s := newFakeScanner(ports, &fakeHeaders{}, &fakeTLS{}, vulns)

	result, err := s.Scan(context.Background(), Request{
		Target: "example.com",
		Stages: []Stage{StageCVE},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vulns.calls != 0 {
		t.Error("correlator must not run without port findings")
	}
	if len(result.Vulnerabilities) != 0 {
		t.Errorf("expected no vulnerabilities, got %v", result.Vulnerabilities)
	}
}

func TestScanPortErrorAborts(t *testing.T) {
	ports := &fakePorts{err: errors.New("boom")}
	headers := &fakeHeaders{}
	s := newFakeScanner(ports, headers, &fakeTLS{}, &fakeVulns{})

	result, err := s.Scan(context.Background(), Request{Target: "example.com"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if result != nil {
		t.Errorf("expected no partial result, got %+v", result)
	}
	if headers.calls != 0 {
		t.Error("later stages must not run after a port scan failure")
	}
}

func TestScanCanceledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ports := &fakePorts{}
	s := newFakeScanner(ports, &fakeHeaders{}, &fakeTLS{}, &fakeVulns{})

	cancel()
	_, err := s.Scan(ctx, Request{Target: "example.com", Stages: []Stage{StageHeaders}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProgressReporterClamps(t *testing.T) {
	var got []int
	r := &progressReporter{fn: func(p int) { got = append(got, p) }}

	r.report(40)
	r.report(20)  // must not go backwards
	r.report(120) // must cap at 100

	want := []int{40, 40, 100}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
