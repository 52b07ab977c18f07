package rules

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fold upper-cases s and trims surrounding whitespace. DICOM pads string
// values with spaces, so header values are always compared folded.
func Fold(s string) string {
	// A Caser is stateful; build one per call so Fold is safe for
	// concurrent use.
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}

// FoldCompact folds s and removes all whitespace, so "DOSE REPORT" and
// "Dose  report" compare equal.
func FoldCompact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, Fold(s))
}
