package redact

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chanonchantad/anon-pipeline/internal/dicomio"
	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/pixel"
	"github.com/chanonchantad/anon-pipeline/internal/rules"
)

// Policy decides how many matching rules are applied to one image.
type Policy string

const (
	// FirstMatch applies only the first matching rule.
	FirstMatch Policy = "first-match"

	// Union applies the regions of every matching rule.
	Union Policy = "union"
)

// ErrInvalidPolicy is returned by ParsePolicy for unknown names.
var ErrInvalidPolicy = errors.New("invalid redaction policy")

// ParsePolicy converts a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(s)) {
	case "", FirstMatch:
		return FirstMatch, nil
	case Union:
		return Union, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// DefaultListFields are the fields matched element by element.
var DefaultListFields = []string{"ImageType"}

// Result reports what Redact did.
type Result struct {
	Status model.RedactionStatus

	// Rules lists the labels of the applied rules.
	Rules []string

	// Regions is the number of regions zeroed.
	Regions int

	// Decompressed is set when encapsulated frames were decoded.
	Decompressed bool
}

// Redactor clears burned-in regions on secondary capture images. It is
// immutable after construction and safe for concurrent use.
type Redactor struct {
	rules      *rules.RedactionRules
	policy     Policy
	listFields map[string]bool
	logger     *slog.Logger
}

// Option configures a Redactor.
type Option func(*Redactor)

// WithPolicy sets the rule composition policy. The default is FirstMatch.
func WithPolicy(p Policy) Option {
	return func(r *Redactor) {
		r.policy = p
	}
}

// WithListFields replaces the set of fields matched element by element.
func WithListFields(fields ...string) Option {
	return func(r *Redactor) {
		r.listFields = make(map[string]bool, len(fields))
		for _, f := range fields {
			r.listFields[f] = true
		}
	}
}

// WithLogger sets the redactor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Redactor) {
		r.logger = logger
	}
}

// New creates a redactor over rs. A nil rs behaves as an empty rule set, so
// every secondary capture ends up NoRuleMatched.
func New(rs *rules.RedactionRules, opts ...Option) *Redactor {
	if rs == nil {
		rs = rules.NewRedactionRules(nil)
	}
	r := &Redactor{rules: rs, policy: FirstMatch}
	WithListFields(DefaultListFields...)(r)
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Redact clears the regions of the matching rules on a secondary capture.
//
// Images whose ImageType does not contain SECONDARY are NotApplicable and
// left untouched. A secondary capture that matches no rule is
// NoRuleMatched and also left untouched; callers must not release it. On a
// match, encapsulated JPEG frames are decoded, YBR_FULL pixels are
// converted to RGB, and the regions are zeroed on every frame.
func (r *Redactor) Redact(img *model.Image) (Result, error) {
	if !img.ImageTypeContains("SECONDARY") {
		return Result{Status: model.NotApplicable}, nil
	}

	modality, _ := img.Modality()
	matched := r.match(img, modality)
	if len(matched) == 0 {
		return Result{Status: model.NoRuleMatched}, nil
	}

	res := Result{Status: model.Cleared}
	decompressed, err := preparePixels(img)
	if err != nil {
		return Result{}, err
	}
	res.Decompressed = decompressed

	for _, rule := range matched {
		img.Pixels.ZeroAll(rule.Regions)
		res.Rules = append(res.Rules, rule.Label())
		res.Regions += len(rule.Regions)
	}
	img.PixelsModified = true

	r.logger.Debug("regions cleared",
		"path", img.Source.Path,
		"rules", strings.Join(res.Rules, ";"),
		"regions", res.Regions,
	)
	return res, nil
}

// match returns the rules to apply under the configured policy.
func (r *Redactor) match(img *model.Image, modality string) []rules.RedactionRule {
	var matched []rules.RedactionRule
	for _, rule := range r.rules.Candidates(modality) {
		if !r.matches(img, rule) {
			continue
		}
		matched = append(matched, rule)
		if r.policy == FirstMatch {
			break
		}
	}
	return matched
}

// matches reports whether every field of rule is present in img with an
// equal value. Values are compared upper-cased with whitespace removed.
// List fields match when any one of their values is equal under the same
// folding, so "derived" in ImageType matches a rule value "DERIVED".
func (r *Redactor) matches(img *model.Image, rule rules.RedactionRule) bool {
	for _, f := range rule.Fields {
		el, ok := img.Lookup(f.Field)
		if !ok {
			return false
		}
		want := rules.FoldCompact(f.Value)

		if r.listFields[f.Field] || r.listFields[el.Keyword] {
			found := false
			for _, v := range el.Value.Strings() {
				if rules.FoldCompact(v) == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}

		if rules.FoldCompact(el.Value.String()) != want {
			return false
		}
	}
	return true
}

// preparePixels makes img.Pixels an editable RGB or grey buffer. It reports
// whether encapsulated frames were decoded.
func preparePixels(img *model.Image) (bool, error) {
	decompressed := false
	if img.Pixels == nil {
		if len(img.Encapsulated) == 0 {
			return false, fmt.Errorf("%w: PixelData", model.ErrMissingHeader)
		}
		buf, err := pixel.DecodeJPEG(img.Encapsulated)
		if err != nil {
			return false, fmt.Errorf("%w: %w", model.ErrUnsupportedCompression, err)
		}
		img.Pixels = buf
		img.Encapsulated = nil
		decompressed = true
		setNativeHeader(img, buf)
	}

	photometric, _ := img.Text(model.TagPhotometricInterpretation)
	if pixel.IsYBRFull(photometric) && img.Pixels.Samples == 3 {
		if err := img.Pixels.YBRFullToRGB(); err != nil {
			return decompressed, err
		}
		img.Set(model.TagPhotometricInterpretation, "CS", model.Text(pixel.PhotometricRGB))
	}
	return decompressed, nil
}

// setNativeHeader rewrites the pixel description after decompression.
func setNativeHeader(img *model.Image, buf *pixel.Buffer) {
	dicomio.AttachPixels(img, buf)
	img.Set(model.TagTransferSyntaxUID, "UI", model.Text(model.ExplicitVRLittleEndian))
}
