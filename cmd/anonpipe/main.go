// Package main provides the entry point for the anonpipe CLI.
//
// anonpipe prepares DICOM downloads for research release: it sorts the
// files of a workspace, withholds images that may carry burned-in
// identifiers, clears known regions on secondary captures and rewrites
// the headers of everything it releases.
//
// Usage:
//
//	anonpipe run <workspace> --salt salt.txt --tag-rules tags.csv
//	anonpipe history
//	anonpipe legend <run-id>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
