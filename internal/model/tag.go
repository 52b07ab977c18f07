package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag identifies a DICOM data element by its (group, element) pair.
type Tag struct {
	Group   uint16
	Element uint16
}

// NewTag returns the tag for the given group and element numbers.
func NewTag(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// String returns the tag in the conventional "(gggg,eeee)" form with
// upper-case hexadecimal digits.
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// Bracketed returns the tag in the "[gggg,eeee]" form used by redaction
// rule field names.
func (t Tag) Bracketed() string {
	return fmt.Sprintf("[%04X,%04X]", t.Group, t.Element)
}

// IsPrivate reports whether the tag belongs to a private (odd-numbered) group.
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// Less orders tags by group, then element. Data sets are stored in this order.
func (t Tag) Less(other Tag) bool {
	if t.Group != other.Group {
		return t.Group < other.Group
	}
	return t.Element < other.Element
}

// ParseTag parses a tag written in any of the forms found in rule tables:
//
//	(0010,0010)  (0010, 0010)  [0010,0010]  0010,0010  00100010
//
// Hexadecimal digits may be upper or lower case.
func ParseTag(s string) (Tag, error) {
	raw := strings.TrimSpace(s)
	trimmed := strings.Trim(raw, "()[] ")
	trimmed = strings.ReplaceAll(trimmed, " ", "")

	var groupText, elementText string
	if before, after, found := strings.Cut(trimmed, ","); found {
		groupText, elementText = before, after
	} else if len(trimmed) == 8 {
		groupText, elementText = trimmed[:4], trimmed[4:]
	} else {
		return Tag{}, fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}

	if len(groupText) != 4 || len(elementText) != 4 {
		return Tag{}, fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}

	group, err := strconv.ParseUint(groupText, 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}
	element, err := strconv.ParseUint(elementText, 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}

	return Tag{Group: uint16(group), Element: uint16(element)}, nil
}

// MustParseTag is like ParseTag but panics on malformed input.
// It is intended for package-level tables of well-known tags.
func MustParseTag(s string) Tag {
	t, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return t
}

// IsBracketedTag reports whether s looks like a "[gggg,eeee]" field reference.
func IsBracketedTag(s string) bool {
	return len(s) == 11 && s[0] == '[' && s[10] == ']' && s[5] == ','
}
