package quarantine

import (
	"fmt"
	"slices"

	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/rules"
)

// descriptor is a resolved rule: its name and predicate.
type descriptor struct {
	name string
	fire Predicate
}

// Classifier decides whether an image is retained or quarantined. Rule
// names are resolved to predicates once, in New; Classify only walks the
// resolved per-modality lists. A Classifier is immutable and safe for
// concurrent use.
type Classifier struct {
	byModality map[string][]descriptor
}

// New resolves cfg into a classifier. Disabled rules are dropped from every
// modality list. An unknown rule name is an error.
func New(cfg *rules.QuarantineRules) (*Classifier, error) {
	if cfg == nil {
		cfg = rules.DefaultQuarantineRules()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Classifier{byModality: make(map[string][]descriptor, len(cfg.Modalities))}
	for modality, names := range cfg.Modalities {
		list := make([]descriptor, 0, len(names))
		for _, name := range names {
			if !cfg.IsEnabled(name) {
				continue
			}
			fire, ok := predicateFor(name, cfg)
			if !ok {
				return nil, fmt.Errorf("%w: %q", rules.ErrUnknownQuarantineRule, name)
			}
			list = append(list, descriptor{name: name, fire: fire})
		}
		c.byModality[rules.Fold(modality)] = list
	}
	return c, nil
}

// Recognized reports whether the modality has a rule list.
func (c *Classifier) Recognized(modality string) bool {
	_, ok := c.byModality[rules.Fold(modality)]
	return ok
}

// ActiveRules returns the enabled rule names for a modality, in order.
func (c *Classifier) ActiveRules(modality string) []string {
	list := c.byModality[rules.Fold(modality)]
	names := make([]string, len(list))
	for i, d := range list {
		names[i] = d.name
	}
	return names
}

// Modalities returns the recognised modalities, sorted.
func (c *Classifier) Modalities() []string {
	out := make([]string, 0, len(c.byModality))
	for m := range c.byModality {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Classify returns the outcome for img without modifying it.
//
// Images without a Modality, or with a modality that has no rule list, are
// quarantined. Otherwise the modality's enabled rules are evaluated in
// declared order and the first one that fires names the reason.
func (c *Classifier) Classify(img *model.Image) model.Outcome {
	modality, ok := img.Modality()
	if !ok {
		return model.Quarantined(model.ReasonModalityMissing)
	}

	list, ok := c.byModality[rules.Fold(modality)]
	if !ok {
		return model.Quarantined(model.ReasonModalityUnknown)
	}

	for _, d := range list {
		if d.fire(img) {
			return model.Quarantined(d.name)
		}
	}
	return model.Retained()
}
