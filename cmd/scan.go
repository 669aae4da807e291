package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/securescan/internal/report"
	"github.com/khanhnv2901/securescan/internal/scanner"
	"github.com/khanhnv2901/securescan/internal/validate"
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Run a security scan against a single target",
	Long: `Scan resolves the target, probes its TCP ports, inspects HTTP security
headers, tests supported TLS protocol versions and correlates exposed
services against known CVEs.

Examples:
  securescan scan example.com
  securescan scan example.com --depth deep
  securescan scan example.com --stages ports,tls --json
  securescan scan example.com --out report.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		depthFlag, _ := cmd.Flags().GetString("depth")
		stageNames, _ := cmd.Flags().GetStringSlice("stages")
		jsonOut, _ := cmd.Flags().GetBool("json")
		outFile, _ := cmd.Flags().GetString("out")
		showProgress, _ := cmd.Flags().GetBool("progress")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		target, err := validate.Target(args[0])
		if err != nil {
			return err
		}
		depth, err := scanner.ParseDepth(depthFlag)
		if err != nil {
			return err
		}
		stages, err := validate.Stages(stageNames)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		engine := scanner.New(cliConfig.Scan.scannerConfig(), logger)

		var progress scanner.ProgressFunc
		var printer *progressPrinter
		if showProgress && !jsonOut {
			printer = newProgressPrinter(os.Stdout)
			progress = printer.Update
		}

		logger.Info("scan_started",
			zap.String("target", target),
			zap.String("depth", string(depth)),
		)

		result, err := engine.Scan(ctx, scanner.Request{Target: target, Depth: depth, Stages: stages}, progress)
		if printer != nil {
			printer.Stop()
		}
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if outFile != "" {
			data, err := report.RenderJSON(result)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outFile, data, 0o600); err != nil {
				return fmt.Errorf("failed to write results: %w", err)
			}
			fmt.Printf("%s Results saved to %s\n", colorSuccess("✓"), outFile)
		}

		if jsonOut {
			data, err := report.RenderJSON(result)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		printResult(result)
		return nil
	},
}

func init() {
	scanCmd.Flags().String("depth", "quick", "Scan depth: quick or deep")
	scanCmd.Flags().StringSlice("stages", nil, "Stages to run: ports,headers,tls,cve (default all)")
	scanCmd.Flags().Bool("json", false, "Print raw JSON instead of the summary view")
	scanCmd.Flags().String("out", "", "Write JSON results to a file")
	scanCmd.Flags().Bool("progress", true, "Show a progress bar")
	scanCmd.Flags().Duration("timeout", 0, "Overall scan timeout (0 = none)")
}

func printResult(result *scanner.Result) {
	fmt.Printf("\n%s Scan of %s completed in %.2fs\n\n", colorInfo("→"), result.Target, result.DurationSeconds)

	s := result.Summary
	fmt.Printf("  Issues: %d total", s.TotalIssues)
	if s.TotalIssues > 0 {
		parts := []string{}
		if s.Critical > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", formatSeverityWithColor("critical"), s.Critical))
		}
		if s.High > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", formatSeverityWithColor("high"), s.High))
		}
		if s.Medium > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", formatSeverityWithColor("medium"), s.Medium))
		}
		if s.Low > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", formatSeverityWithColor("low"), s.Low))
		}
		fmt.Printf(" (%s)", strings.Join(parts, " "))
	}
	fmt.Println()

	if len(result.PortScan) > 0 {
		fmt.Printf("\n  %s Open ports:\n", colorInfo("→"))
		for _, p := range result.PortScan {
			line := fmt.Sprintf("    %5d  %s", p.Port, p.Service)
			if p.Banner != "" {
				line += "  " + truncate(p.Banner, 60)
			}
			fmt.Println(line)
		}
	}

	if len(result.SecurityHeaders) > 0 {
		fmt.Printf("\n  %s Security headers:\n", colorInfo("→"))
		for _, h := range result.SecurityHeaders {
			fmt.Printf("    %-27s %s", h.Header, formatHeaderStatusWithColor(h.Status))
			if h.Status != scanner.StatusPresent {
				fmt.Printf("  [%s] %s", formatSeverityWithColor(h.Severity), h.Recommendation)
			}
			fmt.Println()
		}
	}

	if len(result.TLSAnalysis) > 0 {
		fmt.Printf("\n  %s TLS protocol support:\n", colorInfo("→"))
		for _, f := range result.TLSAnalysis {
			status := colorSuccess("supported")
			if !f.Supported {
				status = "not supported"
			}
			fmt.Printf("    %-8s %s", f.Version, status)
			if len(f.Vulnerabilities) > 0 {
				fmt.Printf("  %s %s", colorWarn("!"), strings.Join(f.Vulnerabilities, "; "))
			}
			fmt.Println()
		}
	}

	if len(result.Vulnerabilities) > 0 {
		fmt.Printf("\n  %s Known vulnerabilities:\n", colorInfo("→"))
		for _, v := range result.Vulnerabilities {
			fmt.Printf("    %s [%s %.1f] %s\n", v.CVEID, formatSeverityWithColor(v.Severity), v.Score, v.AffectedService)
			fmt.Printf("      %s\n", v.Description)
		}
	}

	fmt.Println()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
