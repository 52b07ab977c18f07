package model

// Decision is the routing decision for one image.
type Decision int

const (
	// Retain keeps the image for de-identification.
	Retain Decision = iota

	// Quarantine withholds the image from release.
	Quarantine
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Retain:
		return "retain"
	case Quarantine:
		return "quarantine"
	default:
		return "unknown"
	}
}

// Quarantine reasons produced outside the rule table.
const (
	ReasonModalityMissing       = "modality header missing"
	ReasonModalityUnknown       = "modality not recognized"
	ReasonSecondaryNotCleared   = "secondary capture not cleared"
	ReasonProcessingError       = "processing error"
	ReasonUnsupportedPixelCodec = "unsupported pixel compression"
)

// Outcome is the result of classifying one image.
type Outcome struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
}

// Retained returns a Retain outcome.
func Retained() Outcome {
	return Outcome{Decision: Retain}
}

// Quarantined returns a Quarantine outcome with the given reason.
func Quarantined(reason string) Outcome {
	return Outcome{Decision: Quarantine, Reason: reason}
}

// IsQuarantine reports whether the outcome withholds the image.
func (o Outcome) IsQuarantine() bool {
	return o.Decision == Quarantine
}

// RedactionStatus is the result of the pixel redaction stage.
type RedactionStatus int

const (
	// NotApplicable means the image is not a secondary capture.
	NotApplicable RedactionStatus = iota

	// Cleared means a rule matched and its regions were zeroed.
	Cleared

	// NoRuleMatched means a secondary capture matched no rule. The image
	// must not be released.
	NoRuleMatched
)

// String returns the status name.
func (s RedactionStatus) String() string {
	switch s {
	case NotApplicable:
		return "not_applicable"
	case Cleared:
		return "cleared"
	case NoRuleMatched:
		return "no_rule_matched"
	default:
		return "unknown"
	}
}
