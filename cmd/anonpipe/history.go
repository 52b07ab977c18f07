package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chanonchantad/anon-pipeline/internal/config"
	"github.com/chanonchantad/anon-pipeline/internal/database"
	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// This command reads the run ledger written by 'anonpipe run'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past runs from the run ledger",
		Long: `History lists the runs recorded in the run ledger, newest first.

With a run ID it prints that run's report again, including the images
that failed or were quarantined.

Examples:
  # List the last 20 runs
  anonpipe history

  # List every run
  anonpipe history --limit 0

  # Show one run
  anonpipe history 6f1c2a9e-0d7b-4b53-9a51-3c1f0e2d8b47

  # Only the quarantined images of a run, as JSON
  anonpipe history 6f1c2a9e-0d7b-4b53-9a51-3c1f0e2d8b47 --label QUAR --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Number of runs to list (0 lists every run)")
	cmd.Flags().StringP("label", "l", "", "Only show images with this log label (ANON, QUAR, ERRS)")
	cmd.Flags().BoolP("json", "j", false, "Output the run in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output the run in Markdown format")
	addDBDirFlag(cmd)

	return cmd
}

// addDBDirFlag registers the ledger directory flag shared by the commands
// that touch the ledger.
func addDBDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the run ledger")
}

// openLedger opens the ledger in the directory named by --db-dir.
func openLedger(cmd *cobra.Command) (*database.Ledger, error) {
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	ledger, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return ledger, nil
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	label, err := flags.GetString("label")
	if err != nil {
		return err
	}
	logLabel, err := parseLabel(label)
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return config.ErrConflictingReportFormats
	}
	cfg.Verbose = getVerboseFlag(cmd)

	ledger, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 0 {
		limit, err := flags.GetInt("limit")
		if err != nil {
			return err
		}
		return listRuns(ctx, ledger, limit, cmd.OutOrStdout())
	}
	return showRun(ctx, ledger, cfg, args[0], logLabel, cmd.OutOrStdout())
}

// parseLabel validates a --label value.
func parseLabel(s string) (model.LogLabel, error) {
	label := model.LogLabel(strings.ToUpper(strings.TrimSpace(s)))
	switch label {
	case "", model.LabelAnonymized, model.LabelQuarantined, model.LabelError:
		return label, nil
	default:
		return "", fmt.Errorf("invalid label %q (use ANON, QUAR or ERRS)", s)
	}
}

// listRuns prints one line per run, newest first.
func listRuns(ctx context.Context, ledger *database.Ledger, limit int, w io.Writer) error {
	runs, err := ledger.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in the database.")
		fmt.Fprintln(w, "\nUse 'anonpipe run <workspace>' to process a workspace.")
		return nil
	}

	fmt.Fprintf(w, "Runs (%d):\n\n", len(runs))
	fmt.Fprintf(w, "  %-36s  %-19s  %6s  %6s  %6s  %6s  %s\n",
		"Run", "Started", "Total", "Anon", "Quar", "Errs", "Workspace")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 100))
	for _, run := range runs {
		fmt.Fprintf(w, "  %-36s  %-19s  %6d  %6d  %6d  %6d  %s\n",
			run.RunID,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Total,
			run.Anonymized,
			run.Quarantined,
			run.Errored,
			run.Workspace,
		)
	}
	fmt.Fprintln(w, "\nUse 'anonpipe history <run-id>' to show a run.")

	return nil
}

// showRun prints the report of one stored run.
func showRun(ctx context.Context, ledger *database.Ledger, cfg *config.Config, runID string, label model.LogLabel, w io.Writer) error {
	summary, err := ledger.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if summary == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	records, err := ledger.GetRecords(ctx, runID, label)
	if err != nil {
		return err
	}

	_, err = newReportWriter(cfg, w).Write(summary, records)
	return err
}
