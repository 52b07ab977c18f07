// Package model defines the data structures shared by every pipeline stage.
//
// This package contains the following main types:
//   - Tag and Value: a data element's identity and tagged value
//   - Image: an ordered header plus optional native or encapsulated pixels
//   - Outcome and RedactionStatus: per-image stage results
//   - Record: everything that happened to one image during a run
//   - RunSummary: aggregate counts for one run
//
// The shared sentinel errors live in errors.go.
package model
