// Package pipeline runs images through the de-identification stages.
//
// A Pipeline executes Steps in order on one Item. Steps record their
// results on the item's model.Record; a step that fails marks the record
// and later steps skip it, except routing, which moves failed files to
// quarantine.
//
// BatchProcessor runs one pipeline per image with bounded concurrency
// using errgroup. Runner ties the stages to a workspace in two passes:
//
//  1. screen: load, classify, redact, write, route to anon/ or quarantine/
//  2. de-identify: load, rewrite the header, write, route failures aside
//
// Splitting the passes keeps every file that reaches the de-identification
// step already screened and sitting in its release directory.
package pipeline
