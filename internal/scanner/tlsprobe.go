package scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// versionSSL30 is the legacy SSL 3.0 protocol version (0x0300), defined
// locally so we can name it without the deprecated tls.VersionSSL30 symbol.
const versionSSL30 uint16 = 0x0300

// deprecatedProtocolTag marks findings for protocol versions that should no
// longer be offered.
const deprecatedProtocolTag = "Deprecated protocol version"

// tlsAttempt pins a handshake to one protocol version. Zero Min/Max means
// "best the local stack offers".
type tlsAttempt struct {
	Label      string
	Min, Max   uint16
	Deprecated bool
}

// tlsAttempts is the fixed attempt order; the finding list preserves it.
var tlsAttempts = []tlsAttempt{
	{Label: "SSLv3", Min: versionSSL30, Max: versionSSL30, Deprecated: true},
	{Label: "TLSv1.0", Min: tls.VersionTLS10, Max: tls.VersionTLS10, Deprecated: true},
	{Label: "TLSv1.1", Min: tls.VersionTLS11, Max: tls.VersionTLS11, Deprecated: true},
	{Label: "TLSv1.2", Min: tls.VersionTLS12, Max: tls.VersionTLS12},
	{Label: "TLSv1.3"},
}

const (
	defaultTLSPort    = 443
	defaultTLSTimeout = 5 * time.Second
)

// TLSProber measures which TLS protocol versions a target is reachable on.
// It deliberately skips certificate and hostname verification: the question
// is protocol reachability, not trust chain validity.
type TLSProber struct {
	Port    int
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewTLSProber returns a prober for the standard HTTPS port.
func NewTLSProber(logger *zap.Logger) *TLSProber {
	return &TLSProber{Port: defaultTLSPort, Timeout: defaultTLSTimeout, Logger: logger}
}

// Probe attempts one independent handshake per protocol version. When a
// handshake succeeds the negotiated version and cipher are recorded; local
// or remote stacks may refuse or upgrade a requested legacy constraint, so
// the negotiated outcome is authoritative, not the requested label. A
// handshake or connection failure yields supported=false for that attempt.
// If the target never accepts a TCP connection at all, a single "unknown"
// finding with a failure tag is returned so the stage is never empty-handed.
func (t *TLSProber) Probe(ctx context.Context, target string) []TLSFinding {
	findings := make([]TLSFinding, 0, len(tlsAttempts))

	dialFailures := 0
	var lastDialErr error
	for _, attempt := range tlsAttempts {
		finding, dialErr := t.attempt(ctx, target, attempt)
		if dialErr != nil {
			dialFailures++
			lastDialErr = dialErr
		}
		findings = append(findings, finding)
	}

	if dialFailures == len(tlsAttempts) {
		t.logger().Debug("tls target unreachable", zap.String("target", target), zap.Error(lastDialErr))
		return []TLSFinding{{
			Version:         "unknown",
			Supported:       false,
			CipherSuites:    []string{},
			Vulnerabilities: []string{fmt.Sprintf("TLS analysis failed: %v", lastDialErr)},
		}}
	}
	return findings
}

// attempt runs one fresh connection and handshake. The error return is
// non-nil only for TCP-level dial failures; a refused handshake is an
// ordinary unsupported-version outcome, not an error.
func (t *TLSProber) attempt(ctx context.Context, target string, attempt tlsAttempt) (TLSFinding, error) {
	finding := TLSFinding{
		Version:         attempt.Label,
		CipherSuites:    []string{},
		Vulnerabilities: []string{},
	}

	addr := net.JoinHostPort(target, strconv.Itoa(t.port()))
	dialer := &net.Dialer{Timeout: t.timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return finding, err
	}
	defer conn.Close()

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         target,
		InsecureSkipVerify: true, // reachability measurement, not trust validation
		MinVersion:         attempt.Min,
		MaxVersion:         attempt.Max,
	})

	hsCtx, cancel := context.WithTimeout(ctx, t.timeout())
	defer cancel()
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		return finding, nil
	}

	state := tlsConn.ConnectionState()
	finding.Supported = true
	finding.Version = tlsVersionString(state.Version)
	finding.CipherSuites = []string{tls.CipherSuiteName(state.CipherSuite)}
	if attempt.Deprecated {
		finding.Vulnerabilities = append(finding.Vulnerabilities, deprecatedProtocolTag)
	}
	return finding, nil
}

// tlsVersionString converts a negotiated version constant to the labels the
// attempt table uses.
func tlsVersionString(version uint16) string {
	switch version {
	case versionSSL30:
		return "SSLv3"
	case tls.VersionTLS10:
		return "TLSv1.0"
	case tls.VersionTLS11:
		return "TLSv1.1"
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS13:
		return "TLSv1.3"
	default:
		return fmt.Sprintf("unknown (0x%04x)", version)
	}
}

func (t *TLSProber) port() int {
	if t.Port > 0 {
		return t.Port
	}
	return defaultTLSPort
}

func (t *TLSProber) timeout() time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return defaultTLSTimeout
}

func (t *TLSProber) logger() *zap.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return zap.NewNop()
}
