package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/securescan/internal/report"
	"github.com/khanhnv2901/securescan/internal/scanner"
)

var reportCmd = &cobra.Command{
	Use:   "report <results.json>",
	Short: "Render saved scan results as a JSON or PDF report",
	Long: `Report reads the JSON results written by 'scan --out' and renders them
as a formatted report.

Examples:
  securescan report results.json --format pdf --out report.pdf
  securescan report results.json --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		outFile, _ := cmd.Flags().GetString("out")

		data, err := os.ReadFile(args[0]) // #nosec G304 -- operator-supplied results path.
		if err != nil {
			return fmt.Errorf("failed to read results: %w", err)
		}

		var result scanner.Result
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("failed to parse results: %w", err)
		}

		var rendered []byte
		switch strings.ToLower(format) {
		case "json":
			rendered, err = report.RenderJSON(&result)
		case "pdf":
			rendered, err = report.RenderPDF(&result)
		default:
			return fmt.Errorf("unsupported format %q (use json or pdf)", format)
		}
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}

		if outFile == "" {
			if strings.EqualFold(format, "pdf") {
				return fmt.Errorf("--out is required for pdf output")
			}
			fmt.Println(string(rendered))
			return nil
		}

		if err := os.WriteFile(outFile, rendered, 0o600); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("%s Report saved to %s\n", colorSuccess("✓"), outFile)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("format", "json", "Report format: json or pdf")
	reportCmd.Flags().String("out", "", "Output file (stdout for json when omitted)")
}
