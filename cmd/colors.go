package cmd

import (
	"strings"

	"github.com/fatih/color"
)

var (
	colorSuccess  = color.New(color.FgGreen).SprintFunc()
	colorInfo     = color.New(color.FgCyan).SprintFunc()
	colorWarn     = color.New(color.FgYellow).SprintFunc()
	colorError    = color.New(color.FgRed).SprintFunc()
	colorCritical = color.New(color.FgRed, color.Bold).SprintFunc()
)

func formatSeverityWithColor(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return colorCritical(severity)
	case "high":
		return colorError(severity)
	case "medium":
		return colorWarn(severity)
	case "low":
		return colorInfo(severity)
	default:
		return severity
	}
}

func formatHeaderStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "present":
		return colorSuccess(status)
	case "weak":
		return colorWarn(status)
	case "missing":
		return colorError(status)
	default:
		return status
	}
}
