package pipeline

import (
	"context"
	"log/slog"

	"github.com/chanonchantad/anon-pipeline/internal/dicomio"
	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// Item is the unit of work passed through a pipeline: the record being
// built and, once loaded, the decoded file it describes.
type Item struct {
	Record *model.Record
	File   *dicomio.File
}

// NewItem creates an item for an existing record.
func NewItem(record *model.Record) *Item {
	return &Item{Record: record}
}

// Image returns the decoded image, or nil before loading.
func (it *Item) Image() *model.Image {
	if it.File == nil {
		return nil
	}
	return it.File.Image
}

// Step defines the interface that all pipeline steps must implement.
// Steps run in sequence on one item and record their results on it.
type Step interface {
	// Do executes the step. A returned error is recorded on the item's
	// record; steps that see a failed record generally do nothing.
	Do(ctx context.Context, item *Item) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps running later steps after one fails. The
	// routing step relies on this to move failed files aside.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run the remaining steps
// after one fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps on item in sequence. Cancellation is checked
// before each step. The first step error is recorded on the record and
// returned; with continueOnError the remaining steps still run.
func (p *Pipeline) Execute(ctx context.Context, item *Item) error {
	var firstErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"path", item.Record.Path,
				"reason", err,
			)
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"path", item.Record.Path,
		)

		if err := step.Do(ctx, item); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"path", item.Record.Path,
				"error", err,
			)
			if !item.Record.Failed() {
				item.Record.Fail(err)
			}
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		item.Record.PerformedSteps = append(item.Record.PerformedSteps, step.Name())
	}
	return firstErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
