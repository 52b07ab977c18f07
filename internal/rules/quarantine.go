package rules

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Quarantine rule names. Each names a predicate evaluated by the
// quarantine classifier.
const (
	SmallSeries      = "small_series"
	NoPixelArray     = "no_pixel_array"
	SecondaryCapture = "secondary_capture"
	BurnedAnnotation = "burned_annotation"
	RGB              = "rgb"
	Description      = "desc"
	EmbeddedExif     = "embedded_exif"
)

// KnownQuarantineRules lists every predicate name the classifier implements.
var KnownQuarantineRules = []string{
	SmallSeries, NoPixelArray, SecondaryCapture, BurnedAnnotation, RGB, Description, EmbeddedExif,
}

// DefaultMinSeriesImages is the series size at or below which the
// small_series rule fires.
const DefaultMinSeriesImages = 10

// ErrUnknownQuarantineRule is returned when configuration names a rule the
// classifier does not implement.
var ErrUnknownQuarantineRule = errors.New("unknown quarantine rule")

// QuarantineRules configures the classifier: which rules run for each
// modality, in what order, and which are switched on.
type QuarantineRules struct {
	// Modalities maps each recognised modality to its ordered rule list.
	// A modality with an empty list is recognised and always retained.
	Modalities map[string][]string `yaml:"modalities"`

	// Enabled switches rules on or off globally.
	Enabled map[string]bool `yaml:"enabled"`

	// MinSeriesImages is the small_series threshold.
	MinSeriesImages int `yaml:"min_series_images"`

	// DescriptionDenylist lists series descriptions that trigger desc.
	DescriptionDenylist []string `yaml:"description_denylist"`
}

// DefaultQuarantineRules returns the built-in rule table.
func DefaultQuarantineRules() *QuarantineRules {
	all := []string{SmallSeries, NoPixelArray, SecondaryCapture, BurnedAnnotation, RGB, Description}
	nuclear := []string{SmallSeries, NoPixelArray, Description}

	return &QuarantineRules{
		Modalities: map[string][]string{
			"CT":     slices.Clone(all),
			"MR":     slices.Clone(all),
			"PT":     slices.Clone(nuclear),
			"CTOTPT": slices.Clone(nuclear),
			"OT":     slices.Clone(nuclear),
			"CR":     {NoPixelArray, SecondaryCapture, BurnedAnnotation, RGB},
			"US":     {NoPixelArray, SecondaryCapture},
			"XA":     {NoPixelArray, SecondaryCapture},
			"XR":     {},
			"NM":     {},
			"SR":     {},
		},
		Enabled: map[string]bool{
			SmallSeries:      false,
			NoPixelArray:     true,
			SecondaryCapture: true,
			BurnedAnnotation: true,
			RGB:              true,
			Description:      true,
			EmbeddedExif:     false,
		},
		MinSeriesImages:     DefaultMinSeriesImages,
		DescriptionDenylist: []string{"DOSE REPORT"},
	}
}

// Merge overlays non-empty settings from o onto q. Modality entries and
// switches in o replace those in q one by one.
func (q *QuarantineRules) Merge(o *QuarantineRules) {
	if o == nil {
		return
	}
	for m, list := range o.Modalities {
		q.Modalities[strings.ToUpper(m)] = slices.Clone(list)
	}
	for name, on := range o.Enabled {
		q.Enabled[name] = on
	}
	if o.MinSeriesImages > 0 {
		q.MinSeriesImages = o.MinSeriesImages
	}
	if len(o.DescriptionDenylist) > 0 {
		q.DescriptionDenylist = slices.Clone(o.DescriptionDenylist)
	}
}

// Validate checks that every referenced rule is implemented.
func (q *QuarantineRules) Validate() error {
	for m, list := range q.Modalities {
		for _, name := range list {
			if !slices.Contains(KnownQuarantineRules, name) {
				return fmt.Errorf("%w: %q for modality %s", ErrUnknownQuarantineRule, name, m)
			}
		}
	}
	for name := range q.Enabled {
		if !slices.Contains(KnownQuarantineRules, name) {
			return fmt.Errorf("%w: %q in enabled", ErrUnknownQuarantineRule, name)
		}
	}
	return nil
}

// IsEnabled reports whether the named rule is switched on.
func (q *QuarantineRules) IsEnabled(name string) bool {
	return q.Enabled[name]
}
