package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chanonchantad/anon-pipeline/internal/report"
)

// NewLegendCmd creates the legend command.
func NewLegendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legend <run-id>",
		Short: "Export the shifted date legend of a run",
		Long: `Legend writes the original and shifted dates of a run as CSV.

The same file is written to anon/legend.csv by the run itself; this
command recovers it from the run ledger after the workspace was cleaned
up or released.

Examples:
  # Print the legend
  anonpipe legend 6f1c2a9e-0d7b-4b53-9a51-3c1f0e2d8b47

  # Write it to a file
  anonpipe legend 6f1c2a9e-0d7b-4b53-9a51-3c1f0e2d8b47 -o legend.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runLegendCmd,
	}

	cmd.Flags().StringP("output", "o", "", "Write the legend to this file instead of stdout")
	addDBDirFlag(cmd)

	return cmd
}

func runLegendCmd(cmd *cobra.Command, args []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	ledger, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runID := args[0]
	summary, err := ledger.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if summary == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	entries, err := ledger.GetLegend(ctx, runID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("run %s did not shift any dates", runID)
	}

	if output == "" {
		return report.WriteLegend(cmd.OutOrStdout(), entries)
	}

	f, err := createOutputFile(output, os.O_TRUNC)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.WriteLegend(f, entries); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d dates to %s\n", len(entries), output)
	return nil
}
