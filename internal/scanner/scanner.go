package scanner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ProgressFunc receives coarse completion percentages as stages finish. It
// may block; it must not be called concurrently.
type ProgressFunc func(percent int)

// Stage collaborators as narrow interfaces so the orchestrator can be
// exercised with fakes.
type portScanner interface {
	Scan(ctx context.Context, target string, depth Depth) ([]PortFinding, error)
}

type headerAnalyzer interface {
	Analyze(ctx context.Context, target string) []HeaderFinding
}

type tlsProber interface {
	Probe(ctx context.Context, target string) []TLSFinding
}

type vulnCorrelator interface {
	Correlate(ports []PortFinding) []VulnerabilityFinding
}

// Config carries the engine tunables. Zero values fall back to the stage
// defaults.
type Config struct {
	Concurrency    int
	ConnectTimeout time.Duration
	BannerTimeout  time.Duration
	HTTPTimeout    time.Duration
	TLSTimeout     time.Duration
	TLSPort        int
}

// Scanner sequences the probing stages for a single target and folds their
// findings into one Result. It is stateless per invocation and safe for
// concurrent scans.
type Scanner struct {
	ports   portScanner
	headers headerAnalyzer
	tls     tlsProber
	vulns   vulnCorrelator
	logger  *zap.Logger
}

// New builds a scanner with the standard stage implementations.
func New(cfg Config, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}

	ports := NewPortProber(logger)
	if cfg.Concurrency > 0 {
		ports.Concurrency = cfg.Concurrency
	}
	if cfg.ConnectTimeout > 0 {
		ports.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.BannerTimeout > 0 {
		ports.BannerTimeout = cfg.BannerTimeout
	}

	headers := NewHeaderAnalyzer(logger)
	if cfg.HTTPTimeout > 0 {
		headers.Timeout = cfg.HTTPTimeout
	}

	tlsProbe := NewTLSProber(logger)
	if cfg.TLSTimeout > 0 {
		tlsProbe.Timeout = cfg.TLSTimeout
	}
	if cfg.TLSPort > 0 {
		tlsProbe.Port = cfg.TLSPort
	}

	return &Scanner{
		ports:   ports,
		headers: headers,
		tls:     tlsProbe,
		vulns:   Correlator{},
		logger:  logger,
	}
}

// Scan runs the enabled stages exactly once, in the fixed order
// ports, headers, tls, cve. CVE correlation consumes port results and yields
// nothing when port scanning is disabled. The progress callback is invoked
// with monotonically increasing percentages after each stage, ending at 100.
//
// Network failures inside a stage are encoded as findings per the stage
// contracts; Scan returns an error only for failures outside those
// degradation paths (cancellation, invalid configuration), and then returns
// no partial result.
func (s *Scanner) Scan(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	result := &Result{
		Target:          req.Target,
		Depth:           req.Depth,
		StartedAt:       start.UTC(),
		PortScan:        []PortFinding{},
		SecurityHeaders: []HeaderFinding{},
		TLSAnalysis:     []TLSFinding{},
		Vulnerabilities: []VulnerabilityFinding{},
	}
	if result.Depth == "" {
		result.Depth = DepthQuick
	}

	enabled := 0
	for _, stage := range DefaultStages() {
		if req.HasStage(stage) {
			enabled++
		}
	}

	reporter := &progressReporter{fn: progress}
	completed := 0
	stageDone := func(stage Stage) {
		completed++
		reporter.report(completed * 100 / enabled)
		s.logger.Debug("stage complete",
			zap.String("target", req.Target),
			zap.String("stage", string(stage)),
			zap.Int("completed", completed),
			zap.Int("enabled", enabled),
		)
	}

	if req.HasStage(StagePorts) {
		findings, err := s.ports.Scan(ctx, req.Target, result.Depth)
		if err != nil {
			return nil, fmt.Errorf("port scan: %w", err)
		}
		result.PortScan = findings
		stageDone(StagePorts)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.HasStage(StageHeaders) {
		result.SecurityHeaders = s.headers.Analyze(ctx, req.Target)
		stageDone(StageHeaders)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.HasStage(StageTLS) {
		result.TLSAnalysis = s.tls.Probe(ctx, req.Target)
		stageDone(StageTLS)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.HasStage(StageCVE) {
		if req.HasStage(StagePorts) {
			result.Vulnerabilities = s.vulns.Correlate(result.PortScan)
		}
		stageDone(StageCVE)
	}

	result.Summary = summarize(result.SecurityHeaders, result.TLSAnalysis, result.Vulnerabilities)
	result.DurationSeconds = time.Since(start).Seconds()
	reporter.report(100)
	return result, nil
}

// progressReporter clamps callback percentages so callers always observe a
// monotonically increasing sequence capped at 100.
type progressReporter struct {
	fn   ProgressFunc
	last int
}

func (p *progressReporter) report(percent int) {
	if p.fn == nil {
		return
	}
	if percent < p.last {
		percent = p.last
	}
	if percent > 100 {
		percent = 100
	}
	p.last = percent
	p.fn(percent)
}
