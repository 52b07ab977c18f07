package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chanonchantad/anon-pipeline/internal/config"
	"github.com/chanonchantad/anon-pipeline/internal/database"
	"github.com/chanonchantad/anon-pipeline/internal/dateshift"
	"github.com/chanonchantad/anon-pipeline/internal/deid"
	"github.com/chanonchantad/anon-pipeline/internal/hasher"
	anonlog "github.com/chanonchantad/anon-pipeline/internal/log"
	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/pipeline"
	"github.com/chanonchantad/anon-pipeline/internal/quarantine"
	"github.com/chanonchantad/anon-pipeline/internal/redact"
	"github.com/chanonchantad/anon-pipeline/internal/report"
	"github.com/chanonchantad/anon-pipeline/internal/rules"
	"github.com/chanonchantad/anon-pipeline/internal/workspace"
)

// errRunCancelled is returned when a signal stopped the run early.
var errRunCancelled = errors.New("run cancelled: unprocessed images remain in the workspace")

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workspace>",
		Short: "De-identify the images of a workspace",
		Long: `Run processes every DICOM file under <workspace>/flat.

Files are sorted into sorted/<accession>/<series>/, screened by the
quarantine rules, redacted when they are known secondary captures and
moved to anon/ or quarantine/. Released images are then de-identified in
place according to the tag rule table.

Every image gets a line in logs/anon.txt:
  ANON: <accession> | <path>
  QUAR: <accession> | <path> | <reason>
  ERRS: <accession> | <path> | <error>

Examples:
  # De-identify a workspace
  anonpipe run /data/study42 --salt salt.txt --tag-rules tags.csv

  # Also shift dates and write the run summary as Markdown
  anonpipe run /data/study42 --shift --markdown -o study42.md

  # Sort and screen only, leave headers untouched
  anonpipe run /data/study42 --raw

Interrupting a run (Ctrl+C) lets the images in flight finish; the rest
stay where they are and are picked up by the next run.`,
		Args: cobra.ExactArgs(1),
		RunE: runRunCmd,
	}

	cmd.Flags().StringP("salt", "s", "", "Salt file for hashing and date shifting")
	cmd.Flags().StringP("tag-rules", "t", "", "Tag rule table (CSV)")
	cmd.Flags().StringP("redaction-rules", "r", "", "Redaction rules for secondary captures (YAML)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .anonpipe.yaml in current, XDG config or home directory)")

	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Number of images processed concurrently")
	cmd.Flags().Bool("shift", false, "Shift dates listed under the shift column")
	cmd.Flags().Bool("keep-private", false, "Keep private tags")
	cmd.Flags().Bool("salt-line-break", false, "Keep the salt file's trailing line break in the salt")
	cmd.Flags().Bool("raw", false, "Sort and screen only: no redaction, no de-identification")
	cmd.Flags().Bool("no-sort", false, "Skip sorting and screening: de-identify flat/ directly")
	cmd.Flags().String("hash", config.DefaultHashAlgorithm, "Digest for hashed values (sha1, blake2b-160)")
	cmd.Flags().String("cache-scope", string(dateshift.ScopeDate), "Date shift memo scope (date, patient)")
	cmd.Flags().String("redaction-policy", string(redact.FirstMatch), "Redaction rule composition (first-match, union)")

	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-db", false, "Do not record the run in the history database")
	addDBDirFlag(cmd)

	return cmd
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runWorkspace(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the config file and the
// command flags, in that order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cf.Apply(cfg)
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	stringFlags := map[string]*string{
		"salt":             &cfg.SaltPath,
		"tag-rules":        &cfg.TagRulesPath,
		"redaction-rules":  &cfg.RedactionRulesPath,
		"hash":             &cfg.HashAlgorithm,
		"cache-scope":      &cfg.CacheScope,
		"redaction-policy": &cfg.RedactionPolicy,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	boolFlags := map[string]*bool{
		"shift":           &cfg.ShiftDates,
		"keep-private":    &cfg.KeepPrivate,
		"salt-line-break": &cfg.KeepSaltLineBreak,
		"raw":             &cfg.Raw,
		"no-sort":         &cfg.NoSort,
	}
	for name, dst := range boolFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetBool(name); err != nil {
			return nil, err
		}
	}

	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	cfg.Verbose = getVerboseFlag(cmd)
	if len(args) > 0 {
		cfg.Workspace = args[0]
	}

	return cfg, nil
}

// setupLogger creates a structured logger that masks patient data.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return anonlog.NewSecureLogger(w, verbose)
}

// runWorkspace executes one run and writes its log, legend, ledger entry
// and report.
func runWorkspace(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	layout := workspace.New(cfg.Workspace)
	if info, err := os.Stat(layout.Root); err != nil || !info.IsDir() {
		return fmt.Errorf("workspace %s is not a directory", layout.Root)
	}

	lock, err := layout.Lock()
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Error("failed to release workspace lock", "error", err)
		}
	}()

	opts, engine, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	var ledger *database.Ledger
	if cfg.SaveToDB {
		ledger, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer ledger.Close()
		logger.Info("database opened", "path", ledger.Path())
	}

	summary := model.NewRunSummary(uuid.NewString(), layout.Root)
	logger.Info("starting run",
		"run_id", summary.RunID,
		"workspace", layout.Root,
		"raw", cfg.Raw,
		"no_sort", cfg.NoSort,
		"shift_dates", cfg.ShiftDates,
		"workers", cfg.Workers,
	)

	opts = append(opts, pipeline.WithProgress(stderr))
	res, runErr := pipeline.NewRunner(layout, opts...).Run(ctx)
	if res == nil {
		return runErr
	}

	for _, r := range res.Records {
		summary.Add(r)
	}
	summary.Cancelled = res.Cancelled
	summary.FinishedAt = time.Now()

	var legend []dateshift.Entry
	if engine != nil && engine.ShiftsDates() {
		legend = engine.DateMap()
		summary.ShiftedDates = len(legend)
	}

	if err := writeRunLog(layout.LogFile(), summary, res.Records); err != nil {
		logger.Error("failed to write run log", "path", layout.LogFile(), "error", err)
	}
	if legend != nil {
		if err := writeLegendFile(layout.LegendFile(), legend); err != nil {
			logger.Error("failed to write legend", "path", layout.LegendFile(), "error", err)
		}
	}
	if ledger != nil {
		warnReprocessed(ctx, ledger, res.Records, logger)
		if err := saveRun(ctx, ledger, summary, res.Records, legend); err != nil {
			logger.Error("failed to save run", "run_id", summary.RunID, "error", err)
		}
	}

	if err := outputReport(cfg, summary, res.Records, stdout); err != nil {
		logger.Error("report failed", "error", err)
	}

	if runErr != nil {
		return runErr
	}
	if summary.Cancelled {
		return errRunCancelled
	}
	return nil
}

// buildRunner loads the rule files and returns the runner options for the
// configured mode. The engine is nil in raw mode.
func buildRunner(cfg *config.Config, logger *slog.Logger) ([]pipeline.RunnerOption, *deid.Engine, error) {
	opts := []pipeline.RunnerOption{
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithInputPattern(cfg.InputPattern),
		pipeline.WithRunnerLogger(logger),
	}

	if cfg.NoSort {
		opts = append(opts, pipeline.WithNoSort())
	} else {
		classifier, err := quarantine.New(cfg.Quarantine)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid quarantine rules: %w", err)
		}
		opts = append(opts, pipeline.WithClassifier(classifier))
	}

	if cfg.Raw {
		return opts, nil, nil
	}

	redactor, err := buildRedactor(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, pipeline.WithRedactor(redactor), pipeline.WithEngine(engine))
	return opts, engine, nil
}

func buildRedactor(cfg *config.Config, logger *slog.Logger) (*redact.Redactor, error) {
	var rs *rules.RedactionRules
	if cfg.RedactionRulesPath != "" {
		var err error
		rs, err = rules.LoadRedactionRules(cfg.RedactionRulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load redaction rules: %w", err)
		}
		logger.Info("redaction rules loaded", "rules", rs.Len(), "modalities", rs.Modalities())
	} else {
		logger.Warn("no redaction rules configured: every secondary capture will be quarantined")
	}

	policy, err := redact.ParsePolicy(cfg.RedactionPolicy)
	if err != nil {
		return nil, err
	}
	return redact.New(rs,
		redact.WithPolicy(policy),
		redact.WithListFields(cfg.ListFields...),
		redact.WithLogger(logger),
	), nil
}

func buildEngine(cfg *config.Config, logger *slog.Logger) (*deid.Engine, error) {
	var saltOpts []deid.SaltOption
	if cfg.KeepSaltLineBreak {
		saltOpts = append(saltOpts, deid.WithLineBreak())
	}
	salt, err := deid.LoadSalt(cfg.SaltPath, saltOpts...)
	if err != nil {
		return nil, err
	}

	table, err := rules.LoadTagTable(cfg.TagRulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tag rules: %w", err)
	}
	for _, c := range table.Conflicts() {
		logger.Warn("tag listed under several actions", "conflict", c.String())
	}

	h, err := hasher.New(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	opts := []deid.Option{deid.WithHasher(h), deid.WithLogger(logger)}
	if cfg.ShiftDates {
		scope, err := dateshift.ParseScope(cfg.CacheScope)
		if err != nil {
			return nil, err
		}
		opts = append(opts, deid.WithDateShift(scope))
	}
	if cfg.KeepPrivate {
		opts = append(opts, deid.WithKeepPrivate())
	}
	return deid.New(table, salt, opts...)
}

// createOutputFile creates path and its parent directories. Outputs may
// carry identifiers, so files are only readable by the owner.
func createOutputFile(path string, flag int) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|flag, 0600) //nolint:gosec // path is built from the workspace or a flag
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// writeRunLog appends the run's lines to the workspace log.
func writeRunLog(path string, summary *model.RunSummary, records []*model.Record) error {
	f, err := createOutputFile(path, os.O_APPEND)
	if err != nil {
		return err
	}
	defer f.Close()

	w := report.NewLogLineWriter(f)
	if _, err := w.Write(summary, records); err != nil {
		return err
	}
	_, err = w.WriteSummary(summary)
	return err
}

// writeLegendFile replaces the shifted date legend.
func writeLegendFile(path string, legend []dateshift.Entry) error {
	f, err := createOutputFile(path, os.O_TRUNC)
	if err != nil {
		return err
	}
	defer f.Close()
	return report.WriteLegend(f, legend)
}

// warnReprocessed logs images whose exact bytes were seen by an earlier
// run, which usually means the same download was copied in twice.
func warnReprocessed(ctx context.Context, ledger *database.Ledger, records []*model.Record, logger *slog.Logger) {
	for _, r := range records {
		if r.Fingerprint == "" {
			continue
		}
		earlier, err := ledger.FindByFingerprint(ctx, r.Fingerprint)
		if err != nil {
			logger.Debug("fingerprint lookup failed", "error", err)
			return
		}
		if len(earlier) > 0 {
			logger.Warn("image already processed by an earlier run",
				"path", r.Path,
				"previous_output", earlier[0].OutputPath,
			)
		}
	}
}

// saveRun records the run in the ledger. It uses a context that survives
// cancellation so an interrupted run is still recorded.
func saveRun(ctx context.Context, ledger *database.Ledger, summary *model.RunSummary, records []*model.Record, legend []dateshift.Entry) error {
	ctx = context.WithoutCancel(ctx)
	if err := ledger.SaveRun(ctx, summary); err != nil {
		return err
	}
	if err := ledger.SaveRecords(ctx, summary.RunID, records); err != nil {
		return err
	}
	if len(legend) > 0 {
		return ledger.SaveLegend(ctx, summary.RunID, legend)
	}
	return nil
}

// outputReport writes the run summary in the requested format.
func outputReport(cfg *config.Config, summary *model.RunSummary, records []*model.Record, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		f, err := createOutputFile(cfg.ReportFile, os.O_TRUNC)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(cfg, output).Write(summary, records)
	return err
}

// newReportWriter picks the writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
