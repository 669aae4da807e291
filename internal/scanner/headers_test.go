package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHeaderAnalyzerFallsBackToHTTP(t *testing.T) {
	// Plain HTTP server: the HTTPS attempt against it fails and the
	// analyzer must retry on http.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		w.Header().Set("X-Frame-Options", "DENY")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target := strings.TrimPrefix(srv.URL, "http://")
	analyzer := NewHeaderAnalyzer(nil)
	analyzer.Timeout = 2 * time.Second

	findings := analyzer.Analyze(context.Background(), target)
	if len(findings) != len(headerChecklist) {
		t.Fatalf("expected %d findings, got %d", len(headerChecklist), len(findings))
	}

	// Findings follow checklist order.
	for i, spec := range headerChecklist {
		if findings[i].Header != spec.Name {
			t.Errorf("finding %d: expected header %q, got %q", i, spec.Name, findings[i].Header)
		}
	}

	hsts := findings[0]
	if hsts.Status != StatusPresent {
		t.Errorf("expected HSTS present, got %q (%q)", hsts.Status, hsts.Value)
	}
	xfo := findings[2]
	if xfo.Status != StatusPresent || xfo.Value != "DENY" {
		t.Errorf("unexpected X-Frame-Options finding: %+v", xfo)
	}

	csp := findings[1]
	if csp.Status != StatusMissing || csp.Severity != SeverityHigh {
		t.Errorf("expected CSP missing at high severity, got %+v", csp)
	}
}

func TestHeaderAnalyzerUnreachableTarget(t *testing.T) {
	analyzer := NewHeaderAnalyzer(nil)
	analyzer.Timeout = 500 * time.Millisecond

	// Reserved port on localhost that nothing listens on.
	findings := analyzer.Analyze(context.Background(), "127.0.0.1:1")
	if len(findings) != len(headerChecklist) {
		t.Fatalf("expected %d findings, got %d", len(headerChecklist), len(findings))
	}
	for i, f := range findings {
		if f.Status != StatusMissing {
			t.Errorf("finding %d (%s): expected missing, got %q", i, f.Header, f.Status)
		}
		if f.Severity != headerChecklist[i].MissingSeverity {
			t.Errorf("finding %d (%s): expected severity %q, got %q",
				i, f.Header, headerChecklist[i].MissingSeverity, f.Severity)
		}
	}
}

func TestAnalyzeHeaderRules(t *testing.T) {
	tests := []struct {
		name         string
		spec         headerSpec
		value        string
		wantStatus   string
		wantSeverity string
	}{
		{
			name:         "missing header uses table severity",
			spec:         headerSpec{Name: "Strict-Transport-Security", MissingSeverity: SeverityCritical},
			value:        "",
			wantStatus:   StatusMissing,
			wantSeverity: SeverityCritical,
		},
		{
			name:         "hsts without max-age is weak",
			spec:         headerSpec{Name: "Strict-Transport-Security", MissingSeverity: SeverityCritical},
			value:        "includeSubDomains",
			wantStatus:   StatusWeak,
			wantSeverity: SeverityMedium,
		},
		{
			name:         "hsts with max-age is present",
			spec:         headerSpec{Name: "Strict-Transport-Security", MissingSeverity: SeverityCritical},
			value:        "max-age=63072000; includeSubDomains",
			wantStatus:   StatusPresent,
			wantSeverity: SeverityLow,
		},
		{
			name:         "csp with unsafe-inline is weak",
			spec:         headerSpec{Name: "Content-Security-Policy", MissingSeverity: SeverityHigh},
			value:        "default-src 'self'; script-src 'unsafe-inline'",
			wantStatus:   StatusWeak,
			wantSeverity: SeverityMedium,
		},
		{
			name:         "csp with unsafe-eval is weak",
			spec:         headerSpec{Name: "Content-Security-Policy", MissingSeverity: SeverityHigh},
			value:        "script-src 'unsafe-eval'",
			wantStatus:   StatusWeak,
			wantSeverity: SeverityMedium,
		},
		{
			name:         "strict csp is present",
			spec:         headerSpec{Name: "Content-Security-Policy", MissingSeverity: SeverityHigh},
			value:        "default-src 'self'",
			wantStatus:   StatusPresent,
			wantSeverity: SeverityLow,
		},
		{
			name:         "other header with any value is present",
			spec:         headerSpec{Name: "X-Content-Type-Options", MissingSeverity: SeverityMedium},
			value:        "nosniff",
			wantStatus:   StatusPresent,
			wantSeverity: SeverityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzeHeader(tt.spec, tt.value)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Severity != tt.wantSeverity {
				t.Errorf("severity = %q, want %q", got.Severity, tt.wantSeverity)
			}
			if got.Recommendation == "" {
				t.Error("expected a recommendation")
			}
		})
	}
}
