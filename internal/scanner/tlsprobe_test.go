package scanner

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func tlsTestTarget(t *testing.T, srv *httptest.Server) (host string, port int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "https://"))
	if err != nil {
		t.Fatalf("failed to parse server URL %q: %v", srv.URL, err)
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("failed to parse port from %q: %v", srv.URL, err)
	}
	return host, port
}

func TestTLSProberAgainstModernServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	host, port := tlsTestTarget(t, srv)
	prober := NewTLSProber(nil)
	prober.Port = port
	prober.Timeout = 2 * time.Second

	findings := prober.Probe(context.Background(), host)
	if len(findings) != len(tlsAttempts) {
		t.Fatalf("expected %d findings, got %d: %v", len(tlsAttempts), len(findings), findings)
	}

	if findings[0].Version != "SSLv3" || findings[0].Supported {
		t.Errorf("expected SSLv3 unsupported, got %+v", findings[0])
	}

	v12 := findings[3]
	if !v12.Supported || v12.Version != "TLSv1.2" {
		t.Errorf("expected TLSv1.2 supported, got %+v", v12)
	}
	if len(v12.CipherSuites) == 0 || v12.CipherSuites[0] == "" {
		t.Errorf("expected a negotiated cipher for TLSv1.2, got %v", v12.CipherSuites)
	}
	if len(v12.Vulnerabilities) != 0 {
		t.Errorf("TLSv1.2 must not carry deprecation tags, got %v", v12.Vulnerabilities)
	}

	best := findings[4]
	if !best.Supported || best.Version != "TLSv1.3" {
		t.Errorf("expected best-available handshake to negotiate TLSv1.3, got %+v", best)
	}

	// Deprecated versions carry the tag only when actually negotiated.
	for _, f := range findings {
		if !f.Supported && len(f.Vulnerabilities) != 0 {
			t.Errorf("unsupported version %s must not carry vulnerabilities, got %v", f.Version, f.Vulnerabilities)
		}
	}
}

func TestTLSProberUnreachableTarget(t *testing.T) {
	prober := NewTLSProber(nil)
	prober.Port = 1 // nothing listens here
	prober.Timeout = 500 * time.Millisecond

	findings := prober.Probe(context.Background(), "127.0.0.1")
	if len(findings) != 1 {
		t.Fatalf("expected a single failure finding, got %d: %v", len(findings), findings)
	}

	f := findings[0]
	if f.Version != "unknown" || f.Supported {
		t.Errorf("unexpected failure finding: %+v", f)
	}
	if len(f.Vulnerabilities) != 1 || !strings.HasPrefix(f.Vulnerabilities[0], "TLS analysis failed:") {
		t.Errorf("expected a failure tag, got %v", f.Vulnerabilities)
	}
}

func TestTLSVersionString(t *testing.T) {
	tests := []struct {
		version uint16
		want    string
	}{
		{versionSSL30, "SSLv3"},
		{0x0301, "TLSv1.0"},
		{0x0302, "TLSv1.1"},
		{0x0303, "TLSv1.2"},
		{0x0304, "TLSv1.3"},
	}
	for _, tt := range tests {
		if got := tlsVersionString(tt.version); got != tt.want {
			t.Errorf("tlsVersionString(0x%04x) = %q, want %q", tt.version, got, tt.want)
		}
	}
	if got := tlsVersionString(0x9999); !strings.HasPrefix(got, "unknown") {
		t.Errorf("expected unknown label, got %q", got)
	}
}
