package model

import "errors"

// Processing errors shared by every pipeline stage.
// Callers match them with errors.Is; stages wrap them with context.
var (
	// ErrDecode is returned when an input file cannot be parsed as DICOM.
	ErrDecode = errors.New("cannot decode image")

	// ErrMissingHeader is returned when a required header element is absent.
	ErrMissingHeader = errors.New("required header missing")

	// ErrUnknownModality is returned when a modality has no configured rules.
	ErrUnknownModality = errors.New("modality not recognized")

	// ErrUnparseableDate is returned when a date value is not YYYYMMDD.
	ErrUnparseableDate = errors.New("unparseable date")

	// ErrMissingSalt is returned when the salt source is absent or empty.
	// It is fatal: no image is processed without a salt.
	ErrMissingSalt = errors.New("salt missing or empty")

	// ErrInvalidInputKind is returned when a value of an unsupported kind is
	// handed to the hasher. It indicates a rule table configuration error and
	// aborts the run.
	ErrInvalidInputKind = errors.New("value kind cannot be hashed")

	// ErrInvalidTag is returned when a tag string cannot be parsed.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrUnsupportedCompression is returned when encapsulated pixel data uses
	// a compression scheme that cannot be decoded.
	ErrUnsupportedCompression = errors.New("unsupported pixel compression")
)
