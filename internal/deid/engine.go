package deid

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chanonchantad/anon-pipeline/internal/dateshift"
	"github.com/chanonchantad/anon-pipeline/internal/hasher"
	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/rules"
)

// Result reports what Deidentify did to one image.
type Result struct {
	// PrivateRemoved is the number of private tags stripped.
	PrivateRemoved int

	// Removed, Shifted, HashedUIDs and HashedIdentifiers count tags per action.
	Removed           int
	Shifted           int
	HashedUIDs        int
	HashedIdentifiers int

	// UnparseableDates lists date tags whose value could not be parsed and
	// were left unchanged.
	UnparseableDates []model.Tag
}

// Engine applies a tag table to images. One Engine serves a whole run: its
// date shift cache is shared by every image so shifted dates stay
// consistent. It is safe for concurrent use on distinct images.
type Engine struct {
	table         *rules.TagTable
	salt          []byte
	hasher        *hasher.Hasher
	dates         *dateshift.Cache
	shiftDates    bool
	removePrivate bool
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHasher replaces the default SHA-1 hasher.
func WithHasher(h *hasher.Hasher) Option {
	return func(e *Engine) {
		e.hasher = h
	}
}

// WithDateShift enables date shifting using the given cache scope.
// Without it, tags mapped to ShiftDate are left unchanged.
func WithDateShift(scope dateshift.Scope) Option {
	return func(e *Engine) {
		e.shiftDates = true
		e.dates = dateshift.New(e.salt, dateshift.WithScope(scope))
	}
}

// WithKeepPrivate disables stripping of private tags.
func WithKeepPrivate() Option {
	return func(e *Engine) {
		e.removePrivate = false
	}
}

// New creates an engine. The salt must be non-empty; it is shared read-only
// by every image in the run.
func New(table *rules.TagTable, salt []byte, opts ...Option) (*Engine, error) {
	if len(salt) == 0 {
		return nil, model.ErrMissingSalt
	}
	if table == nil {
		table = rules.NewTagTable(nil)
	}

	defaultHasher, err := hasher.New(hasher.SHA1)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		table:         table,
		salt:          append([]byte(nil), salt...),
		hasher:        defaultHasher,
		removePrivate: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// ShiftsDates reports whether date shifting is enabled.
func (e *Engine) ShiftsDates() bool {
	return e.shiftDates
}

// DateMap returns the original to shifted date legend for the run. It is
// empty when shifting is disabled.
func (e *Engine) DateMap() []dateshift.Entry {
	if e.dates == nil {
		return nil
	}
	return e.dates.Snapshot()
}

// Deidentify rewrites the image header in place:
//
//  1. private tags are stripped (unless disabled)
//  2. PatientAge is set to 119Y
//  3. PatientID is captured as the patient key for date shifting
//  4. every tag listed in the table has its action applied
//
// Unparseable dates are left unchanged and reported in the result. An
// image without PatientID fails with model.ErrMissingHeader when date
// shifting is on. A value of a kind that cannot be hashed fails with
// model.ErrInvalidInputKind, which callers treat as a configuration error.
func (e *Engine) Deidentify(img *model.Image) (Result, error) {
	var res Result

	if e.removePrivate {
		res.PrivateRemoved = img.RemovePrivateTags()
	}

	img.Set(model.TagPatientAge, "AS", model.Text(model.AnonymizedPatientAge))

	patientKey, hasPatient := img.Text(model.TagPatientID)
	if e.shiftDates && (!hasPatient || patientKey == "") {
		return res, fmt.Errorf("%w: PatientID", model.ErrMissingHeader)
	}

	for _, el := range img.Elements() {
		action, ok := e.table.Action(el.Tag)
		if !ok {
			continue
		}

		switch action {
		case rules.HashIdentifier:
			digest, err := e.hasher.HashIdentifier(el.Value)
			if err != nil {
				return res, fmt.Errorf("%s: %w", el.Tag, err)
			}
			el.Value = model.Text(digest)
			res.HashedIdentifiers++

		case rules.HashAsUID:
			uid, err := e.hasher.HashAsUID(el.Value, e.salt)
			if err != nil {
				return res, fmt.Errorf("%s: %w", el.Tag, err)
			}
			el.Value = model.Text(uid)
			res.HashedUIDs++

		case rules.ShiftDate:
			if !e.shiftDates {
				continue
			}
			if e.shiftElement(el, patientKey, &res) {
				res.Shifted++
			}

		case rules.Remove:
			el.Value = el.Value.Empty()
			res.Removed++
		}
	}

	return res, nil
}

// shiftElement shifts each value of a date element. It reports whether the
// element was changed.
func (e *Engine) shiftElement(el *model.Element, patientKey string, res *Result) bool {
	if el.Value.Kind() != model.KindText || el.Value.IsEmpty() {
		return false
	}

	values := el.Value.Strings()
	shifted := make([]string, len(values))
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			shifted[i] = v
			continue
		}
		out, err := e.dates.Shift(v, patientKey)
		if err != nil {
			if errors.Is(err, model.ErrUnparseableDate) {
				e.logger.Debug("date left unchanged", "tag", el.Tag.String(), "error", err)
				res.UnparseableDates = append(res.UnparseableDates, el.Tag)
			}
			return false
		}
		shifted[i] = out
	}
	el.Value = model.Text(shifted...)
	return true
}
