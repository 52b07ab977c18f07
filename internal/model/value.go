package model

import (
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	// KindText holds one or more strings (multi-valued elements keep each
	// value separately).
	KindText Kind = iota

	// KindInt holds one or more integers.
	KindInt

	// KindFloat holds one or more floating point numbers.
	KindFloat

	// KindBytes holds raw bytes (OB/UN and similar).
	KindBytes

	// KindSequence marks a nested sequence. Sequences are carried opaquely:
	// the codec keeps the original items unless the value is cleared.
	KindSequence

	// KindPixel marks the pixel data element. The pixels themselves live in
	// Image.Pixels or Image.Encapsulated.
	KindPixel
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindSequence:
		return "sequence"
	case KindPixel:
		return "pixel"
	default:
		return "unknown"
	}
}

// Value is the tagged value of a data element.
type Value struct {
	kind    Kind
	texts   []string
	ints    []int
	floats  []float64
	raw     []byte
	cleared bool
}

// Text returns a text value holding the given strings.
func Text(values ...string) Value {
	return Value{kind: KindText, texts: append([]string(nil), values...)}
}

// Int returns an integer value.
func Int(values ...int) Value {
	return Value{kind: KindInt, ints: append([]int(nil), values...)}
}

// Float returns a floating point value.
func Float(values ...float64) Value {
	return Value{kind: KindFloat, floats: append([]float64(nil), values...)}
}

// Bytes returns a raw byte value.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: append([]byte(nil), b...)}
}

// Sequence returns an opaque sequence marker.
func Sequence() Value {
	return Value{kind: KindSequence}
}

// Pixel returns the pixel data marker.
func Pixel() Value {
	return Value{kind: KindPixel}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// Strings returns the text values. It is nil for non-text kinds.
func (v Value) Strings() []string { return v.texts }

// Ints returns the integer values. It is nil for non-integer kinds.
func (v Value) Ints() []int { return v.ints }

// Floats returns the floating point values.
func (v Value) Floats() []float64 { return v.floats }

// Raw returns the raw bytes of a bytes value.
func (v Value) Raw() []byte { return v.raw }

// Cleared reports whether the value was emptied by Empty. The codec uses it
// to drop the content of opaque sequences.
func (v Value) Cleared() bool { return v.cleared }

// First returns the first text value, or the first number formatted as
// decimal text. It returns "" for empty values and opaque kinds.
func (v Value) First() string {
	switch v.kind {
	case KindText:
		if len(v.texts) > 0 {
			return v.texts[0]
		}
	case KindInt:
		if len(v.ints) > 0 {
			return strconv.Itoa(v.ints[0])
		}
	case KindFloat:
		if len(v.floats) > 0 {
			return strconv.FormatFloat(v.floats[0], 'f', -1, 64)
		}
	}
	return ""
}

// String returns a printable form. Multiple values are joined with the
// DICOM value separator "\".
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return strings.Join(v.texts, `\`)
	case KindInt:
		parts := make([]string, len(v.ints))
		for i, n := range v.ints {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, `\`)
	case KindFloat:
		parts := make([]string, len(v.floats))
		for i, f := range v.floats {
			parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.Join(parts, `\`)
	case KindBytes:
		return string(v.raw)
	default:
		return ""
	}
}

// IsEmpty reports whether v carries no content.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindText:
		for _, s := range v.texts {
			if s != "" {
				return false
			}
		}
		return true
	case KindInt:
		return len(v.ints) == 0
	case KindFloat:
		return len(v.floats) == 0
	case KindBytes:
		return len(v.raw) == 0
	case KindSequence:
		return v.cleared
	default:
		return false
	}
}

// Empty returns an empty value of the same kind. Text becomes a single
// empty string so the element stays present with a zero-length value.
func (v Value) Empty() Value {
	switch v.kind {
	case KindText:
		return Text("")
	case KindInt:
		return Value{kind: KindInt}
	case KindFloat:
		return Value{kind: KindFloat}
	case KindBytes:
		return Value{kind: KindBytes}
	case KindSequence:
		return Value{kind: KindSequence, cleared: true}
	default:
		return v
	}
}

// Equal reports whether two values hold the same kind and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind || v.cleared != other.cleared {
		return false
	}
	return v.String() == other.String()
}
