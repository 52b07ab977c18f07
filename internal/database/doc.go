// Package database provides the SQLite run ledger.
//
// The Ledger stores:
//   - one summary row per pipeline run
//   - the outcome record of every image the run handled
//   - the original to shifted date legend of runs with date shifting
//
// Patient identifiers are never stored: records carry paths, accession
// numbers, modalities and outcomes only. The database is a single file
// opened through modernc.org/sqlite, so no cgo toolchain is needed.
package database
