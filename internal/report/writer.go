package report

import (
	"io"

	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// Writer defines the interface for run report output.
type Writer interface {
	// Write outputs the run summary followed by per-image details.
	Write(summary *model.RunSummary, records []*model.Record) (int, error)

	// WriteSummary outputs only the run totals.
	WriteSummary(summary *model.RunSummary) (int, error)
}

// MultiWriter writes to multiple Writers in order and stops on the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run report to all configured Writers.
func (m *MultiWriter) Write(summary *model.RunSummary, records []*model.Record) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary, records)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the run totals to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.RunSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// attention returns the records a reader has to look at: failures first,
// then quarantined images.
func attention(records []*model.Record) (errored, quarantined []*model.Record) {
	for _, r := range records {
		switch r.Label() {
		case model.LabelError:
			errored = append(errored, r)
		case model.LabelQuarantined:
			quarantined = append(quarantined, r)
		}
	}
	return errored, quarantined
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
