package rules

import "fmt"

// TagAction is the transformation applied to a tag during de-identification.
type TagAction int

const (
	// Remove replaces the value with an empty value of the same kind.
	Remove TagAction = iota

	// ShiftDate moves a YYYYMMDD date by the patient's offset.
	ShiftDate

	// HashAsUID replaces the value with a salted hash formatted as a UID.
	HashAsUID

	// HashIdentifier replaces the value with its unsalted hex digest.
	HashIdentifier
)

// String returns the action name used in logs.
func (a TagAction) String() string {
	switch a {
	case Remove:
		return "remove"
	case ShiftDate:
		return "shift"
	case HashAsUID:
		return "hashuid"
	case HashIdentifier:
		return "hashptid"
	default:
		return fmt.Sprintf("TagAction(%d)", int(a))
	}
}

// Column returns the CSV column header the action is read from.
func (a TagAction) Column() string {
	return a.String() + "_tag"
}

// outranks reports whether a wins over b when a tag is listed under both.
// Hashing the patient identifier wins over UID hashing, which wins over
// date shifting, which wins over removal.
func (a TagAction) outranks(b TagAction) bool {
	return a > b
}

// actionColumns lists the CSV columns in the order they are read.
var actionColumns = []TagAction{Remove, ShiftDate, HashAsUID, HashIdentifier}
