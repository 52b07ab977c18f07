// Package report renders the results of a de-identification run.
//
// Writers implement the Writer interface and can be combined with
// MultiWriter:
//   - SimpleWriter: text summary for the terminal
//   - MarkdownWriter: Markdown summary with an outcome chart
//   - JSONWriter: structured output for tooling
//   - LogLineWriter: the per-image run log kept in the workspace
//
// WriteLegend writes the original to shifted date legend as CSV.
package report
