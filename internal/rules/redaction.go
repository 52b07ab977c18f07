package rules

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chanonchantad/anon-pipeline/internal/model"
	"github.com/chanonchantad/anon-pipeline/internal/pixel"
)

// OtherModality is the bucket for redaction rules without a Modality field.
// Its rules are candidates for every secondary capture.
const OtherModality = "OTHER"

// ErrInvalidRedactionRule is returned for rules without fields or regions.
var ErrInvalidRedactionRule = errors.New("invalid redaction rule")

// FieldMatch is one field/value pair a redaction rule requires.
type FieldMatch struct {
	// Field is a keyword or a bracketed tag "[gggg,eeee]".
	Field string

	// Value is the expected value as written in the rule file.
	Value string
}

// RedactionRule identifies a class of secondary-capture images by exact
// field values and lists the regions to clear on them.
type RedactionRule struct {
	// Name is an optional label used in logs.
	Name string

	// Modality is the Modality field value, or OtherModality.
	Modality string

	// Fields are the required matches, sorted by field name.
	Fields []FieldMatch

	// Regions are cleared on every frame when the rule matches.
	Regions []pixel.Region
}

// Label returns the rule name, or a description built from its fields.
func (r RedactionRule) Label() string {
	if r.Name != "" {
		return r.Name
	}
	parts := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		parts[i] = f.Field + "=" + f.Value
	}
	return strings.Join(parts, ",")
}

// redactionRuleFile is the YAML shape of one rule.
type redactionRuleFile struct {
	Name   string            `yaml:"name,omitempty"`
	Fields map[string]string `yaml:"fields"`
	Coords []pixel.Region    `yaml:"coords"`
}

// RedactionRules holds redaction rules stratified by modality. Declaration
// order is preserved within each modality.
type RedactionRules struct {
	byModality map[string][]RedactionRule
}

// NewRedactionRules stratifies rules by their Modality.
func NewRedactionRules(list []RedactionRule) *RedactionRules {
	rs := &RedactionRules{byModality: map[string][]RedactionRule{OtherModality: nil}}
	for _, r := range list {
		key := r.Modality
		if key == "" {
			key = OtherModality
		}
		rs.byModality[key] = append(rs.byModality[key], r)
	}
	return rs
}

// LoadRedactionRules reads a redaction rule YAML file.
func LoadRedactionRules(path string) (*RedactionRules, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided rule path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read redaction rules: %w", err)
	}
	rs, err := ParseRedactionRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// ParseRedactionRules parses a YAML list of rules of the form
//
//	- fields: {Modality: US, Manufacturer: ACME}
//	  coords:
//	    - {y0: 0, y1: 50, x0: 0, x1: 640}
//
// Rules whose fields include Modality are filed under that modality; the
// rest go to OTHER.
func ParseRedactionRules(data []byte) (*RedactionRules, error) {
	var raw []redactionRuleFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse redaction rules: %w", err)
	}

	list := make([]RedactionRule, 0, len(raw))
	for i, rf := range raw {
		rule, err := rf.toRule()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		list = append(list, rule)
	}
	return NewRedactionRules(list), nil
}

func (rf redactionRuleFile) toRule() (RedactionRule, error) {
	if len(rf.Fields) == 0 {
		return RedactionRule{}, fmt.Errorf("%w: no fields", ErrInvalidRedactionRule)
	}
	if len(rf.Coords) == 0 {
		return RedactionRule{}, fmt.Errorf("%w: no coords", ErrInvalidRedactionRule)
	}

	rule := RedactionRule{Name: rf.Name, Modality: OtherModality}
	for field, value := range rf.Fields {
		if model.IsBracketedTag(field) {
			if _, err := model.ParseTag(field); err != nil {
				return RedactionRule{}, fmt.Errorf("%w: %w", ErrInvalidRedactionRule, err)
			}
		}
		if field == "Modality" {
			rule.Modality = strings.ToUpper(strings.TrimSpace(value))
		}
		rule.Fields = append(rule.Fields, FieldMatch{Field: field, Value: value})
	}
	sort.Slice(rule.Fields, func(i, j int) bool { return rule.Fields[i].Field < rule.Fields[j].Field })

	for _, c := range rf.Coords {
		if err := c.Validate(); err != nil {
			return RedactionRule{}, err
		}
	}
	rule.Regions = append(rule.Regions, rf.Coords...)
	return rule, nil
}

// Candidates returns the rules to try for an image: the modality's own
// rules followed by the OTHER rules. An empty modality yields OTHER only.
func (rs *RedactionRules) Candidates(modality string) []RedactionRule {
	other := rs.byModality[OtherModality]
	if modality == "" || modality == OtherModality {
		return other
	}
	own := rs.byModality[strings.ToUpper(modality)]
	out := make([]RedactionRule, 0, len(own)+len(other))
	out = append(out, own...)
	return append(out, other...)
}

// Len returns the total number of rules.
func (rs *RedactionRules) Len() int {
	n := 0
	for _, list := range rs.byModality {
		n += len(list)
	}
	return n
}

// Modalities returns the modality buckets, sorted.
func (rs *RedactionRules) Modalities() []string {
	out := make([]string, 0, len(rs.byModality))
	for m := range rs.byModality {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
