package model

import "time"

// LogLabel is the outcome label written to the run log.
type LogLabel string

// Run log labels.
const (
	LabelQuarantined LogLabel = "QUAR"
	LabelAnonymized  LogLabel = "ANON"
	LabelError       LogLabel = "ERRS"
)

// Record accumulates what happened to one image as it moves through the
// pipeline steps. It is the unit stored in the run ledger and summarised in
// reports.
type Record struct {
	// Path is the path of the input file when the record was created.
	Path string `json:"path"`

	// OutputPath is where the file ended up after routing.
	OutputPath string `json:"output_path,omitempty"`

	// Accession is the AccessionNumber read from the header.
	Accession string `json:"accession"`

	// Series is the SeriesInstanceUID read from the header.
	Series string `json:"series,omitempty"`

	// Modality is the Modality read from the header.
	Modality string `json:"modality,omitempty"`

	// Fingerprint is the hex xxhash of the input file bytes.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Outcome is the classification result.
	Outcome Outcome `json:"outcome"`

	// Redaction is the result of the pixel redaction step.
	Redaction RedactionStatus `json:"redaction"`

	// Deidentified is set when the de-identification step completed.
	Deidentified bool `json:"deidentified"`

	// PrivateRemoved is the number of private tags stripped.
	PrivateRemoved int `json:"private_removed"`

	// UnparseableDates lists date tags left unchanged because their value
	// could not be parsed.
	UnparseableDates []string `json:"unparseable_dates,omitempty"`

	// PerformedSteps lists completed steps in order.
	PerformedSteps []string `json:"performed_steps"`

	// Error holds the processing error, if any. Not serialised.
	Error error `json:"-"`

	// ErrorMessage is the serialisable form of Error.
	ErrorMessage string `json:"error,omitempty"`

	// ProcessedAt is when the record was created.
	ProcessedAt time.Time `json:"processed_at"`
}

// NewRecord creates a record for the file at path.
func NewRecord(path string) *Record {
	return &Record{
		Path:           path,
		PerformedSteps: make([]string, 0),
		ProcessedAt:    time.Now(),
	}
}

// Source returns the current location of the file: OutputPath once the
// file was routed, Path before.
func (r *Record) Source() string {
	if r.OutputPath != "" {
		return r.OutputPath
	}
	return r.Path
}

// Fail records a processing error.
func (r *Record) Fail(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Failed reports whether the record carries an error.
func (r *Record) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}

// Label returns the run log label for the record.
func (r *Record) Label() LogLabel {
	switch {
	case r.Failed():
		return LabelError
	case r.Outcome.IsQuarantine():
		return LabelQuarantined
	default:
		return LabelAnonymized
	}
}

// Detail returns the trailing log field: the error message for failures,
// the quarantine reason for quarantined images, and "" otherwise.
func (r *Record) Detail() string {
	switch {
	case r.Failed():
		return r.ErrorMessage
	case r.Outcome.IsQuarantine():
		return r.Outcome.Reason
	default:
		return ""
	}
}
