package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/chanonchantad/anon-pipeline/internal/deid"
	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/quarantine"
	"github.com/chanonchantad/anon-pipeline/internal/redact"
	"github.com/chanonchantad/anon-pipeline/internal/workspace"
)

// ErrNotSorted is recorded for input files left in flat/ because their
// header could not be read.
var ErrNotSorted = errors.New("file could not be sorted")

// Result is the outcome of a workspace run.
type Result struct {
	// Records holds one record per input file, in processing order.
	Records []*model.Record

	// Cancelled is set when the run stopped before every file was handled.
	Cancelled bool
}

// Runner processes one workspace. Build it with NewRunner; it is used for
// a single run.
type Runner struct {
	layout     workspace.Layout
	classifier *quarantine.Classifier
	redactor   *redact.Redactor
	engine     *deid.Engine
	noSort     bool
	pattern    string
	workers    int
	progress   io.Writer
	logger     *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClassifier sets the quarantine classifier. Without one, every image
// is retained, which is what no-sort mode wants.
func WithClassifier(c *quarantine.Classifier) RunnerOption {
	return func(r *Runner) {
		r.classifier = c
	}
}

// WithRedactor sets the pixel redactor. Without one, pixels are left
// untouched, which is what raw mode wants.
func WithRedactor(rd *redact.Redactor) RunnerOption {
	return func(r *Runner) {
		r.redactor = rd
	}
}

// WithEngine sets the de-identification engine. Without one, the second
// pass is skipped.
func WithEngine(e *deid.Engine) RunnerOption {
	return func(r *Runner) {
		r.engine = e
	}
}

// WithNoSort processes files in flat/ directly instead of sorting them
// first.
func WithNoSort() RunnerOption {
	return func(r *Runner) {
		r.noSort = true
	}
}

// WithInputPattern sets the glob that selects input files.
func WithInputPattern(pattern string) RunnerOption {
	return func(r *Runner) {
		r.pattern = pattern
	}
}

// WithWorkers sets the number of images processed concurrently.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithProgress prints per-stage counters to w when it is a terminal.
func WithProgress(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.progress = w
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a runner for the workspace layout.
func NewRunner(layout workspace.Layout, opts ...RunnerOption) *Runner {
	r := &Runner{
		layout:  layout,
		pattern: "**/*.dcm",
		workers: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

func (r *Runner) newProgress(label string) *workspace.Progress {
	if r.progress == nil {
		return nil
	}
	return workspace.NewProgress(r.progress, label)
}

// Run sorts the input, screens every image and de-identifies the ones
// cleared for release. Released files reach anon/ only after they were
// de-identified. After a cancellation the partial result is returned with
// Cancelled set and a nil error; images cleared but not yet de-identified
// are left out of it and stay in the input area for the next run. Other
// errors abort the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.layout.Prepare(); err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}

	res := &Result{}
	paths, err := r.inputs(ctx, res)
	if err != nil {
		return r.finish(res, err)
	}

	records := make([]*model.Record, len(paths))
	for i, p := range paths {
		records[i] = model.NewRecord(p)
	}

	screened, err := r.pass(ctx, "Screening images", records, r.screenFactory(workspace.SeriesSizes(paths)))
	res.Records = append(res.Records, screened...)
	if err != nil {
		return r.finish(res, err)
	}

	if r.engine == nil {
		return res, nil
	}

	var release []*model.Record
	for _, rec := range screened {
		if !rec.Failed() && !rec.Outcome.IsQuarantine() {
			release = append(release, rec)
		}
	}
	done, err := r.pass(ctx, "De-identifying", release, r.deidentifyFactory())
	if err != nil {
		r.logger.Warn("de-identification stopped", "processed", len(done), "total", len(release))
		return r.finish(res, err)
	}
	return res, nil
}

// finish maps a cancellation to a partial result.
func (r *Runner) finish(res *Result, err error) (*Result, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		res.Cancelled = true
		res.Records = settled(res.Records)
		return res, nil
	}
	return res, err
}

// settled drops records whose file was cleared but never routed.
func settled(records []*model.Record) []*model.Record {
	out := records[:0]
	for _, rec := range records {
		if rec.Failed() || rec.OutputPath != "" {
			out = append(out, rec)
		}
	}
	return out
}

// inputs returns the files to screen. Files that cannot be sorted get a
// failed record and stay in flat/.
func (r *Runner) inputs(ctx context.Context, res *Result) ([]string, error) {
	if r.noSort {
		return workspace.Discover(r.layout.Flat(), r.pattern)
	}

	sorted, err := r.layout.Sort(ctx, r.pattern, r.logger, r.newProgress("Sorting files"))
	for _, path := range sorted.Skipped {
		rec := model.NewRecord(path)
		rec.Fail(ErrNotSorted)
		res.Records = append(res.Records, rec)
	}
	if err != nil {
		return nil, err
	}

	// Files sorted by an earlier, interrupted run are picked up as well.
	return workspace.Discover(r.layout.Sorted(), "**/*.dcm")
}

func (r *Runner) pass(ctx context.Context, label string, records []*model.Record, factory func() *Pipeline) ([]*model.Record, error) {
	progress := r.newProgress(label)
	progress.Start(len(records))
	defer progress.Finish()

	bp := NewBatchProcessor(factory,
		WithConcurrency(r.workers),
		WithBatchLogger(r.logger),
	)
	return bp.ProcessBatchWithCallback(ctx, records, func(*model.Record, int) {
		progress.Increment()
	})
}

func (r *Runner) screenFactory(sizes map[string]int) func() *Pipeline {
	return func() *Pipeline {
		p := New(WithLogger(r.logger), WithContinueOnError(true))
		p.AddStep(NewLoadStep(WithSeriesSizes(sizes), WithFingerprint()))
		if r.classifier != nil {
			p.AddStep(NewClassifyStep(r.classifier))
		}
		if r.redactor != nil {
			p.AddSteps(NewRedactStep(r.redactor, r.logger), NewWriteStep(false))
		}
		if r.engine != nil {
			p.AddStep(NewRouteStep(r.layout, WithWithheldOnly()))
		} else {
			p.AddStep(NewRouteStep(r.layout))
		}
		return p
	}
}

func (r *Runner) deidentifyFactory() func() *Pipeline {
	return func() *Pipeline {
		p := New(WithLogger(r.logger), WithContinueOnError(true))
		p.AddSteps(
			NewLoadStep(),
			NewDeidentifyStep(r.engine),
			NewWriteStep(true),
			NewRouteStep(r.layout),
		)
		return p
	}
}
