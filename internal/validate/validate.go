// Package validate holds the input-syntax checks performed at the CLI and
// API boundaries. The scan engine itself assumes targets are already
// well-formed.
package validate

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/khanhnv2901/securescan/internal/scanner"
)

var hostnamePattern = regexp.MustCompile(
	`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// Target normalizes a raw target string to a bare host and validates it as a
// hostname or IP address. Accepted inputs may carry an http/https scheme or
// a path; both are stripped.
func Target(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", fmt.Errorf("target cannot be empty")
	}

	if i := strings.Index(target, "://"); i >= 0 {
		scheme := target[:i]
		if scheme != "http" && scheme != "https" {
			return "", fmt.Errorf("unsupported scheme %q", scheme)
		}
		target = target[i+len("://"):]
	}
	target = strings.SplitN(target, "/", 2)[0]
	if target == "" {
		return "", fmt.Errorf("target cannot be empty")
	}

	if ip := net.ParseIP(target); ip != nil {
		return target, nil
	}
	if !hostnamePattern.MatchString(target) {
		return "", fmt.Errorf("invalid domain or IP address format: %q", raw)
	}
	return target, nil
}

// Stages parses a list of stage names, defaulting to all stages when the
// list is empty. Duplicates are collapsed.
func Stages(names []string) ([]scanner.Stage, error) {
	if len(names) == 0 {
		return scanner.DefaultStages(), nil
	}

	seen := make(map[scanner.Stage]bool, len(names))
	stages := make([]scanner.Stage, 0, len(names))
	for _, name := range names {
		stage, err := scanner.ParseStage(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			return nil, err
		}
		if seen[stage] {
			continue
		}
		seen[stage] = true
		stages = append(stages, stage)
	}
	return stages, nil
}
