package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/config"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show past scan results",
		Long: `History lists past scans stored in the local database.

Without arguments, it lists every scanned target. With a target URL, it
shows the scan runs for that target with their risk summaries.

Examples:
  # List all scanned targets
  scan history

  # Show scan runs for one target
  scan history https://example.com

  # Dump the latest stored report for a target as JSON
  scan history --json https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output the latest report for the target as JSON")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		if strings.Contains(err.Error(), "database not found") {
			fmt.Fprintln(cmd.OutOrStdout(), "No scan history yet. Run a scan first.")
			return nil
		}
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	if len(args) == 0 {
		targets, err := db.ListScannedTargets(ctx)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scan history yet. Run a scan first.")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Scanned targets (%d):\n", len(targets))
		for _, target := range targets {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", target)
		}
		return nil
	}

	target := args[0]

	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if jsonOut {
		return printLatestReportJSON(cmd, db, target)
	}

	history, err := db.GetScanHistoryWithMetadata(ctx, target)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No scans recorded for %s\n", target)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scan history for %s (%d runs):\n", target, len(history))
	for _, meta := range history {
		fmt.Fprintf(cmd.OutOrStdout(), "  #%d  %s  risk=%s  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			displayRisk(meta.OverallRisk),
			formatRiskSummary(meta.RiskSummary),
		)
	}

	return nil
}

// printLatestReportJSON writes the most recent stored report for a
// target to stdout.
func printLatestReportJSON(cmd *cobra.Command, db *database.ScanDB, target string) error {
	scan, err := db.GetLatestScanReport(cmd.Context(), target)
	if err != nil {
		return err
	}
	if scan == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No scans recorded for %s\n", target)
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(scan)
}

// displayRisk normalizes an empty risk string for display.
func displayRisk(risk string) string {
	if risk == "" {
		return "unknown"
	}
	return risk
}

// formatRiskSummary renders non-zero severity counts as a compact string.
func formatRiskSummary(summary map[string]int) string {
	if len(summary) == 0 {
		return "no findings"
	}

	var parts []string
	for _, level := range []string{"critical", "high", "medium", "low", "info"} {
		if n := summary[level]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", level, n))
		}
	}
	if len(parts) == 0 {
		return "no findings"
	}
	return strings.Join(parts, " ")
}
