package cmd

import (
	"testing"

	"github.com/fatih/color"
)

func TestFormatSeverityWithColor(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	for _, severity := range []string{"critical", "high", "medium", "low", "CRITICAL"} {
		if got := formatSeverityWithColor(severity); got != severity {
			t.Errorf("formatSeverityWithColor(%q) = %q, want the input text", severity, got)
		}
	}
	if got := formatSeverityWithColor("unknown"); got != "unknown" {
		t.Errorf("unexpected passthrough: %q", got)
	}
}

func TestFormatHeaderStatusWithColor(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	for _, status := range []string{"present", "weak", "missing"} {
		if got := formatHeaderStatusWithColor(status); got != status {
			t.Errorf("formatHeaderStatusWithColor(%q) = %q, want the input text", status, got)
		}
	}
}
