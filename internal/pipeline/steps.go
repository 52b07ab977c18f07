package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/chanonchantad/anon-pipeline/internal/deid"
	"github.com/chanonchantad/anon-pipeline/internal/dicomio"
	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/quarantine"
	"github.com/chanonchantad/anon-pipeline/internal/redact"
	"github.com/chanonchantad/anon-pipeline/internal/workspace"
)

// Step names, recorded in model.Record.PerformedSteps.
const (
	StepLoad       = "load"
	StepClassify   = "classify"
	StepRedact     = "redact"
	StepDeidentify = "deidentify"
	StepWrite      = "write"
	StepRoute      = "route"
)

// skip reports whether a content step has nothing to do for item.
func skip(item *Item) bool {
	return item.Record.Failed() || item.Record.Outcome.IsQuarantine() || item.File == nil
}

// LoadStep decodes the file at the record's current location and copies
// the identifying header values onto the record.
type LoadStep struct {
	seriesSizes map[string]int
	fingerprint bool
}

// LoadStepOption configures a LoadStep.
type LoadStepOption func(*LoadStep)

// WithSeriesSizes provides the image count of each series directory, used
// by the small series quarantine rule.
func WithSeriesSizes(sizes map[string]int) LoadStepOption {
	return func(s *LoadStep) {
		s.seriesSizes = sizes
	}
}

// WithFingerprint records an xxhash of the input bytes.
func WithFingerprint() LoadStepOption {
	return func(s *LoadStep) {
		s.fingerprint = true
	}
}

// NewLoadStep creates a new load step.
func NewLoadStep(opts ...LoadStepOption) *LoadStep {
	s := &LoadStep{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return StepLoad
}

// Do reads the file.
func (s *LoadStep) Do(_ context.Context, item *Item) error {
	if item.Record.Failed() {
		return nil
	}
	path := item.Record.Source()

	if s.fingerprint {
		fp, err := workspace.Fingerprint(path)
		if err != nil {
			return err
		}
		item.Record.Fingerprint = fp
	}

	f, err := dicomio.Read(path)
	if err != nil {
		return err
	}
	f.Image.Source.SeriesSize = s.seriesSizes[filepath.Dir(path)]
	item.File = f

	r := item.Record
	r.Accession = f.Image.Accession()
	r.Series, _ = f.Image.Text(model.TagSeriesInstanceUID)
	r.Modality, _ = f.Image.Modality()
	return nil
}

// ClassifyStep decides whether the image is retained or quarantined.
type ClassifyStep struct {
	classifier *quarantine.Classifier
}

// NewClassifyStep creates a new classification step.
func NewClassifyStep(classifier *quarantine.Classifier) *ClassifyStep {
	return &ClassifyStep{classifier: classifier}
}

// Name returns the step name.
func (s *ClassifyStep) Name() string {
	return StepClassify
}

// Do classifies the image.
func (s *ClassifyStep) Do(_ context.Context, item *Item) error {
	if skip(item) {
		return nil
	}
	item.Record.Outcome = s.classifier.Classify(item.Image())
	return nil
}

// RedactStep clears burned-in regions of secondary captures. A secondary
// capture that matches no rule, or whose pixels cannot be decoded, is
// quarantined.
type RedactStep struct {
	redactor *redact.Redactor
	logger   *slog.Logger
}

// NewRedactStep creates a new redaction step.
func NewRedactStep(redactor *redact.Redactor, logger *slog.Logger) *RedactStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedactStep{redactor: redactor, logger: logger}
}

// Name returns the step name.
func (s *RedactStep) Name() string {
	return StepRedact
}

// Do redacts the image.
func (s *RedactStep) Do(_ context.Context, item *Item) error {
	if skip(item) {
		return nil
	}

	res, err := s.redactor.Redact(item.Image())
	if errors.Is(err, model.ErrUnsupportedCompression) {
		s.logger.Warn("secondary capture withheld", "path", item.Record.Path, "error", err)
		item.Record.Outcome = model.Quarantined(model.ReasonUnsupportedPixelCodec)
		return nil
	}
	if err != nil {
		return fmt.Errorf("redaction failed: %w", err)
	}

	item.Record.Redaction = res.Status
	if res.Status == model.NoRuleMatched {
		item.Record.Outcome = model.Quarantined(model.ReasonSecondaryNotCleared)
	}
	return nil
}

// DeidentifyStep rewrites the header with the de-identification engine.
type DeidentifyStep struct {
	engine *deid.Engine
}

// NewDeidentifyStep creates a new de-identification step.
func NewDeidentifyStep(engine *deid.Engine) *DeidentifyStep {
	return &DeidentifyStep{engine: engine}
}

// Name returns the step name.
func (s *DeidentifyStep) Name() string {
	return StepDeidentify
}

// Do de-identifies the image.
func (s *DeidentifyStep) Do(_ context.Context, item *Item) error {
	if skip(item) {
		return nil
	}

	res, err := s.engine.Deidentify(item.Image())
	if err != nil {
		return fmt.Errorf("de-identification failed: %w", err)
	}

	r := item.Record
	r.Deidentified = true
	r.PrivateRemoved = res.PrivateRemoved
	for _, tag := range res.UnparseableDates {
		r.UnparseableDates = append(r.UnparseableDates, tag.String())
	}
	return nil
}

// WriteStep writes the image back to its current location.
type WriteStep struct {
	// always writes even when only the header may have changed.
	always bool
}

// NewWriteStep creates a write step. Without always, only images whose
// pixels were modified are written.
func NewWriteStep(always bool) *WriteStep {
	return &WriteStep{always: always}
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return StepWrite
}

// Do writes the file. Quarantined images are never rewritten.
func (s *WriteStep) Do(_ context.Context, item *Item) error {
	if skip(item) {
		return nil
	}
	if !s.always && !item.Image().PixelsModified {
		return nil
	}
	return dicomio.WriteFile(item.Record.Source(), item.File)
}

// RouteStep moves the file to anon/ or quarantine/. It runs for failed
// records too: any failure withholds the file.
type RouteStep struct {
	layout       workspace.Layout
	withheldOnly bool
}

// RouteStepOption configures a RouteStep.
type RouteStepOption func(*RouteStep)

// WithWithheldOnly routes failed and quarantined files only. Files cleared
// for release stay where they are until a later step routes them.
func WithWithheldOnly() RouteStepOption {
	return func(s *RouteStep) {
		s.withheldOnly = true
	}
}

// NewRouteStep creates a new routing step.
func NewRouteStep(layout workspace.Layout, opts ...RouteStepOption) *RouteStep {
	s := &RouteStep{layout: layout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RouteStep) Name() string {
	return StepRoute
}

// Do moves the file.
func (s *RouteStep) Do(_ context.Context, item *Item) error {
	r := item.Record
	area := workspace.Released
	if r.Failed() || r.Outcome.IsQuarantine() {
		area = workspace.Withheld
	} else if s.withheldOnly {
		return nil
	}

	acc, series := s.placement(r)
	dst, err := s.layout.Route(r.Source(), area, acc, series)
	if err != nil {
		return err
	}
	r.OutputPath = dst
	return nil
}

// placement returns the accession and series directories for r. Sorted
// and routed files keep their directories; flat input uses the header
// values read before de-identification.
func (s *RouteStep) placement(r *model.Record) (string, string) {
	if s.layout.InFlat(r.Source()) {
		return r.Accession, r.Series
	}
	return workspace.SeriesKey(r.Source())
}
