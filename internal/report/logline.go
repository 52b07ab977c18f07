package report

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// LogLineWriter writes the per-run outcome log, one line per image:
//
//	<LABEL>: <accession> | <path> [| <detail>]
//
// The log is meant to be shared with the data requester, so values that
// look like patient identifiers are masked.
type LogLineWriter struct {
	baseWriter
	mask []*regexp.Regexp
}

// identifierPatterns match values that should never appear in the log.
var identifierPatterns = []*regexp.Regexp{
	// DICOM person names: FAMILY^GIVEN
	regexp.MustCompile(`[A-Za-z'\-]+\^[A-Za-z'\-^]*`),
	// US social security numbers
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
}

// NewLogLineWriter creates a LogLineWriter that outputs to the given writer.
func NewLogLineWriter(output io.Writer) *LogLineWriter {
	return &LogLineWriter{baseWriter: newBaseWriter(output), mask: identifierPatterns}
}

// Write outputs one line per record. The summary is not written.
func (w *LogLineWriter) Write(_ *model.RunSummary, records []*model.Record) (int, error) {
	bw := bufio.NewWriter(w.output)
	var total int
	for _, r := range records {
		n, err := bw.WriteString(w.Line(r) + "\n")
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// WriteSummary outputs a trailing totals line.
func (w *LogLineWriter) WriteSummary(s *model.RunSummary) (int, error) {
	return fmt.Fprintf(w.output, "TOTAL: %d | %s=%d %s=%d %s=%d\n",
		s.Total,
		model.LabelAnonymized, s.Anonymized,
		model.LabelQuarantined, s.Quarantined,
		model.LabelError, s.Errored)
}

// Line formats one record.
func (w *LogLineWriter) Line(r *model.Record) string {
	parts := []string{r.Accession, r.Path}
	if detail := r.Detail(); detail != "" {
		parts = append(parts, w.redact(detail))
	}
	return fmt.Sprintf("%s: %s", r.Label(), strings.Join(parts, " | "))
}

func (w *LogLineWriter) redact(s string) string {
	for _, re := range w.mask {
		s = re.ReplaceAllString(s, redactedValue)
	}
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

const redactedValue = "***REDACTED***"
