package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// SimpleWriter outputs human-readable text run reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every quarantined image instead of only the counts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every quarantined image.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary followed by failed and quarantined images.
func (w *SimpleWriter) Write(summary *model.RunSummary, records []*model.Record) (int, error) {
	var sb strings.Builder
	w.writeSummary(&sb, summary)

	errored, quarantined := attention(records)
	if len(errored) > 0 {
		w.writeSection(&sb, "ERRORS")
		for _, r := range errored {
			fmt.Fprintf(&sb, "  %s\n    %s\n", r.Path, r.ErrorMessage)
		}
	}
	if w.verbose && len(quarantined) > 0 {
		w.writeSection(&sb, "QUARANTINED")
		for _, r := range quarantined {
			fmt.Fprintf(&sb, "  [%s] %s\n", r.Outcome.Reason, r.Path)
		}
	}

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the run totals only.
func (w *SimpleWriter) WriteSummary(summary *model.RunSummary) (int, error) {
	var sb strings.Builder
	w.writeSummary(&sb, summary)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, s *model.RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("  ANONPIPE RUN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  Run:         %s\n", s.RunID)
	fmt.Fprintf(sb, "  Workspace:   %s\n", s.Workspace)
	fmt.Fprintf(sb, "  Started:     %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if d := s.Duration(); d > 0 {
		fmt.Fprintf(sb, "  Duration:    %s\n", d.Round(100_000_000))
	}
	if s.Cancelled {
		sb.WriteString("  Status:      CANCELLED (partial results)\n")
	}

	w.writeSection(sb, "OUTCOMES")
	fmt.Fprintf(sb, "  Images:       %6d\n", s.Total)
	fmt.Fprintf(sb, "  Anonymized:   %6d\n", s.Anonymized)
	fmt.Fprintf(sb, "  Quarantined:  %6d\n", s.Quarantined)
	fmt.Fprintf(sb, "  Errors:       %6d\n", s.Errored)
	fmt.Fprintf(sb, "  Redacted:     %6d\n", s.Redacted)
	if s.ShiftedDates > 0 {
		fmt.Fprintf(sb, "  Dates shifted:%6d\n", s.ShiftedDates)
	}

	if reasons := s.SortedReasons(); len(reasons) > 0 {
		w.writeSection(sb, "QUARANTINE REASONS")
		for _, c := range reasons {
			fmt.Fprintf(sb, "  %-32s %6d\n", c.Name, c.Count)
		}
	}

	if modalities := s.SortedModalities(); len(modalities) > 0 {
		w.writeSection(sb, "MODALITIES")
		for _, c := range modalities {
			fmt.Fprintf(sb, "  %-32s %6d\n", c.Name, c.Count)
		}
	}
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", len(title)))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
