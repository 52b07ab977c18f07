package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// MarkdownWriter outputs run reports in GitHub flavored Markdown, for
// attaching to a data release request.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary followed by failed and quarantined images.
func (w *MarkdownWriter) Write(summary *model.RunSummary, records []*model.Record) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcomes(md, summary)
	w.writeReasons(md, summary)
	w.writeModalities(md, summary)

	errored, quarantined := attention(records)
	w.writeRecords(md, "Errors", errored)
	w.writeErrorDetails(md, errored)
	w.writeRecords(md, "Quarantined Images", quarantined)

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteSummary outputs the run totals only.
func (w *MarkdownWriter) WriteSummary(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcomes(md, summary)
	w.writeReasons(md, summary)

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.RunSummary) {
	md.H1("De-identification Run Report")
	md.PlainText("")

	rows := [][]string{
		{"Run", "`" + s.RunID + "`"},
		{"Workspace", "`" + s.Workspace + "`"},
		{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Status", statusText(s)},
	}
	if d := s.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(100_000_000).String()})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusText(s *model.RunSummary) string {
	switch {
	case s.Cancelled:
		return "⚠️ Cancelled (partial results)"
	case s.Errored > 0:
		return "❌ Completed with errors"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, s *model.RunSummary) {
	md.H2("Outcomes")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Images"},
		Rows: [][]string{
			{"🟢 Anonymized", strconv.Itoa(s.Anonymized)},
			{"🟡 Quarantined", strconv.Itoa(s.Quarantined)},
			{"🔴 Errors", strconv.Itoa(s.Errored)},
			{"Redacted secondary captures", strconv.Itoa(s.Redacted)},
			{"Shifted dates", strconv.Itoa(s.ShiftedDates)},
			{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
		},
	})
	md.PlainText("")

	if s.Total > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Image Outcomes"),
			piechart.WithShowData(true),
		)
		if s.Anonymized > 0 {
			chart.LabelAndIntValue("Anonymized", uint64(s.Anonymized))
		}
		if s.Quarantined > 0 {
			chart.LabelAndIntValue("Quarantined", uint64(s.Quarantined))
		}
		if s.Errored > 0 {
			chart.LabelAndIntValue("Errors", uint64(s.Errored))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case s.Errored > 0:
		md.Cautionf("%d image(s) failed and were withheld. Review the errors before release.", s.Errored)
	case s.Cancelled:
		md.Warningf("The run was cancelled after %d image(s). Unprocessed images remain in the workspace.", s.Total)
	case s.Quarantined > 0:
		md.Importantf("%d image(s) were quarantined and are not part of the release.", s.Quarantined)
	case s.Total == 0:
		md.Note("No images were found in the workspace.")
	default:
		md.Tip("Every image was anonymized.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeReasons(md *markdown.Markdown, s *model.RunSummary) {
	reasons := s.SortedReasons()
	if len(reasons) == 0 {
		return
	}

	md.H2("Quarantine Reasons")
	md.PlainText("")
	md.Table(countTable("Reason", reasons))
	md.PlainText("")
}

func (w *MarkdownWriter) writeModalities(md *markdown.Markdown, s *model.RunSummary) {
	modalities := s.SortedModalities()
	if len(modalities) == 0 {
		return
	}

	md.H2("Modalities")
	md.PlainText("")
	md.Table(countTable("Modality", modalities))
	md.PlainText("")
}

func countTable(header string, counts []model.Count) markdown.TableSet {
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.Name, strconv.Itoa(c.Count)}
	}
	return markdown.TableSet{
		Header: []string{header, "Images"},
		Rows:   rows,
	}
}

func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, title string, records []*model.Record) {
	if len(records) == 0 {
		return
	}

	md.H2(title)
	md.PlainText("")

	rows := make([][]string, len(records))
	for i, r := range records {
		acc := r.Accession
		if acc == "" {
			acc = "-"
		}
		rows[i] = []string{
			acc,
			truncateString(r.Path, 60),
			truncateString(r.Detail(), 50),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Accession", "Path", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeErrorDetails lists the full error of every failed image in
// collapsible blocks, since the table truncates them.
func (w *MarkdownWriter) writeErrorDetails(md *markdown.Markdown, records []*model.Record) {
	for _, r := range records {
		md.Details(r.Path, r.ErrorMessage)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by anonpipe*")
}
