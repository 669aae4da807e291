// Package report renders a completed scan result for distribution, either as
// indented JSON or as a PDF document.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/khanhnv2901/securescan/internal/scanner"
)

// RenderJSON produces the canonical JSON rendition of a scan result.
func RenderJSON(res *scanner.Result) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("no scan result to render")
	}
	return json.MarshalIndent(res, "", "  ")
}

// RenderPDF produces a printable report of a scan result.
func RenderPDF(res *scanner.Result) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("no scan result to render")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Security Scan Report: %s", res.Target), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Metadata
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Target: %s", res.Target), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Depth: %s", res.Depth), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Started: %s", res.StartedAt.Format(time.RFC3339)), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Duration: %.1fs", res.DurationSeconds), "", 1, "", false, 0, "")
	pdf.Ln(5)

	// Summary
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total issues: %d", res.Summary.TotalIssues), "", 1, "", false, 0, "")
	writeSeverityRow(pdf, "Critical", res.Summary.Critical, scanner.SeverityCritical)
	writeSeverityRow(pdf, "High", res.Summary.High, scanner.SeverityHigh)
	writeSeverityRow(pdf, "Medium", res.Summary.Medium, scanner.SeverityMedium)
	writeSeverityRow(pdf, "Low", res.Summary.Low, scanner.SeverityLow)
	pdf.Ln(5)

	// Open ports
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Open Ports", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if len(res.PortScan) == 0 {
		pdf.CellFormat(0, 5, "No open ports found.", "", 1, "", false, 0, "")
	}
	for _, p := range res.PortScan {
		breakPageIfNeeded(pdf)
		line := fmt.Sprintf("Port %d (%s)", p.Port, p.Service)
		if p.Banner != "" {
			line += fmt.Sprintf(" - %s", firstLine(p.Banner))
		}
		pdf.MultiCell(0, 5, line, "", "", false)
	}
	pdf.Ln(3)

	// Security headers
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Security Headers", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, h := range res.SecurityHeaders {
		breakPageIfNeeded(pdf)
		pdf.MultiCell(0, 5,
			fmt.Sprintf("%s: %s [%s] - %s", h.Header, strings.ToUpper(h.Status), h.Severity, h.Recommendation),
			"", "", false)
	}
	pdf.Ln(3)

	// TLS analysis
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "TLS Analysis", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, t := range res.TLSAnalysis {
		breakPageIfNeeded(pdf)
		line := fmt.Sprintf("%s: supported=%t", t.Version, t.Supported)
		if len(t.CipherSuites) > 0 {
			line += fmt.Sprintf(" cipher=%s", strings.Join(t.CipherSuites, ", "))
		}
		if len(t.Vulnerabilities) > 0 {
			line += fmt.Sprintf(" (%s)", strings.Join(t.Vulnerabilities, "; "))
		}
		pdf.MultiCell(0, 5, line, "", "", false)
	}
	pdf.Ln(3)

	// Vulnerabilities
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Known Vulnerabilities", "", 1, "", false, 0, "")
	if len(res.Vulnerabilities) == 0 {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, "No known vulnerabilities matched.", "", 1, "", false, 0, "")
	}
	for _, v := range res.Vulnerabilities {
		breakPageIfNeeded(pdf)
		pdf.SetFont("Arial", "B", 10)
		r, g, b := severityFill(v.Severity)
		pdf.SetFillColor(r, g, b)
		pdf.CellFormat(0, 6,
			fmt.Sprintf("%s (%.1f, %s) - %s", v.CVEID, v.Score, v.Severity, v.AffectedService),
			"", 1, "", true, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, v.Description, "", "", false)
		pdf.MultiCell(0, 5, fmt.Sprintf("Remediation: %s", v.Recommendation), "", "", false)
		pdf.Ln(1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSeverityRow(pdf *gofpdf.Fpdf, label string, count int, severity string) {
	r, g, b := severityFill(severity)
	pdf.SetFillColor(r, g, b)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s: %d", label, count), "", 1, "", count > 0, 0, "")
}

func severityFill(severity string) (int, int, int) {
	switch severity {
	case scanner.SeverityCritical:
		return 255, 205, 210
	case scanner.SeverityHigh:
		return 255, 224, 178
	case scanner.SeverityMedium:
		return 255, 249, 196
	case scanner.SeverityLow:
		return 200, 230, 201
	default:
		return 240, 240, 240
	}
}

func breakPageIfNeeded(pdf *gofpdf.Fpdf) {
	if pdf.GetY() > 260 {
		pdf.AddPage()
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
