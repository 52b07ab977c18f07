// Package workspace manages the directory layout of a run: input
// discovery, sorting flat downloads by accession and series, routing files
// into the release or quarantine areas, the per-workspace run lock, and
// terminal progress counters.
package workspace
