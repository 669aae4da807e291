package scanner

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dialer abstracts outbound TCP connections so tests can substitute an
// instrumented implementation.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// quickPorts is the common-service set probed on a quick scan.
var quickPorts = []int{21, 22, 23, 25, 53, 80, 110, 143, 443, 993, 995, 8080, 8443}

// deepExtraPorts are high-value services above the 1-1024 range that a deep
// scan covers in addition.
var deepExtraPorts = []int{1433, 1521, 3306, 3389, 5432, 5900, 6379, 8000, 8080, 8443, 9000, 27017}

// Banner behavior per port. FTP, SSH, SMTP and POP3 greet first; HTTP-like
// ports answer a request; everything else gets a newline poke.
var (
	greetFirstPorts = map[int]bool{21: true, 22: true, 25: true, 110: true}
	httpProbePorts  = map[int]bool{80: true, 8000: true, 8080: true}
)

const (
	defaultConcurrency    = 50
	defaultConnectTimeout = 3 * time.Second
	defaultBannerTimeout  = 2 * time.Second
)

// PortProber probes a target's TCP ports under a global concurrency cap and
// grabs best-effort banners from connections that open.
type PortProber struct {
	Dialer         Dialer
	Concurrency    int
	ConnectTimeout time.Duration
	BannerTimeout  time.Duration
	Logger         *zap.Logger
}

// NewPortProber returns a prober with the default limits.
func NewPortProber(logger *zap.Logger) *PortProber {
	return &PortProber{
		Dialer:         &net.Dialer{},
		Concurrency:    defaultConcurrency,
		ConnectTimeout: defaultConnectTimeout,
		BannerTimeout:  defaultBannerTimeout,
		Logger:         logger,
	}
}

func (p *PortProber) portSet(depth Depth) []int {
	if depth == DepthDeep {
		ports := make([]int, 0, 1024+len(deepExtraPorts))
		for port := 1; port <= 1024; port++ {
			ports = append(ports, port)
		}
		return append(ports, deepExtraPorts...)
	}
	return append([]int(nil), quickPorts...)
}

// Scan probes every port in the depth's port set and returns findings for
// the ports found open, in no particular order. Refused, unreachable and
// timed-out ports are counted internally and excluded from the result; a
// single probe can never fail the stage.
func (p *PortProber) Scan(ctx context.Context, target string, depth Depth) ([]PortFinding, error) {
	if p.Concurrency <= 0 {
		return nil, fmt.Errorf("port prober: concurrency must be positive, got %d", p.Concurrency)
	}

	ports := p.portSet(depth)
	sem := make(chan struct{}, p.Concurrency)

	var (
		mu     sync.Mutex
		open   []PortFinding
		closed int
		wg     sync.WaitGroup
	)

	start := time.Now()
	for _, port := range ports {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			finding, ok := p.probe(ctx, target, port)
			mu.Lock()
			if ok {
				open = append(open, finding)
			} else {
				closed++
			}
			mu.Unlock()
		}(port)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger().Debug("port scan complete",
		zap.String("target", target),
		zap.String("depth", string(depth)),
		zap.Int("open", len(open)),
		zap.Int("closed", closed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return open, nil
}

// probe connects to a single port. The second return value is false when the
// port is closed in any sense: refused, filtered, timed out or an OS error.
func (p *PortProber) probe(ctx context.Context, target string, port int) (PortFinding, bool) {
	dialCtx, cancel := context.WithTimeout(ctx, p.connectTimeout())
	defer cancel()

	conn, err := p.dialer().DialContext(dialCtx, "tcp", net.JoinHostPort(target, strconv.Itoa(port)))
	if err != nil {
		return PortFinding{}, false
	}
	defer conn.Close()

	return PortFinding{
		Port:    port,
		State:   StateOpen,
		Service: ServiceName(port),
		Banner:  p.grabBanner(conn, port),
	}, true
}

// grabBanner performs a single protocol-aware read. Any write or read
// failure, including a deadline, yields an absent banner.
func (p *PortProber) grabBanner(conn net.Conn, port int) string {
	_ = conn.SetDeadline(time.Now().Add(p.bannerTimeout()))

	switch {
	case greetFirstPorts[port]:
		// Service talks first; just listen.
	case httpProbePorts[port]:
		if _, err := conn.Write([]byte("GET / HTTP/1.0\r\n\r\n")); err != nil {
			return ""
		}
	default:
		if _, err := conn.Write([]byte("\n")); err != nil {
			return ""
		}
	}

	buf := make([]byte, 1024)
	n, _ := conn.Read(buf)
	if n == 0 {
		return ""
	}

	banner := decodeBanner(buf[:n])
	if httpProbePorts[port] {
		// Only the status line is interesting.
		if i := strings.IndexByte(banner, '\n'); i >= 0 {
			banner = banner[:i]
		}
	}
	return strings.TrimSpace(banner)
}

// decodeBanner drops bytes that are not valid text instead of failing on them.
func decodeBanner(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}

func (p *PortProber) dialer() Dialer {
	if p.Dialer != nil {
		return p.Dialer
	}
	return &net.Dialer{}
}

func (p *PortProber) connectTimeout() time.Duration {
	if p.ConnectTimeout > 0 {
		return p.ConnectTimeout
	}
	return defaultConnectTimeout
}

func (p *PortProber) bannerTimeout() time.Duration {
	if p.BannerTimeout > 0 {
		return p.BannerTimeout
	}
	return defaultBannerTimeout
}

func (p *PortProber) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}
