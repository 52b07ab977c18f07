package workspace

import (
	"path/filepath"
	"strings"
)

// Directory names under the workspace root.
const (
	FlatDir       = "flat"
	SortedDir     = "sorted"
	AnonDir       = "anon"
	QuarantineDir = "quarantine"
	LogsDir       = "logs"

	// LogFileName is the per-run outcome log inside LogsDir.
	LogFileName = "anon.txt"

	// LegendFileName is the shifted-date legend written next to the
	// released files.
	LegendFileName = "legend.csv"

	lockFileName = ".anonpipe.lock"
)

// UnknownComponent replaces an empty accession or series in output paths.
const UnknownComponent = "UNKNOWN"

// Area is a routing destination.
type Area int

const (
	// Released holds files cleared for release.
	Released Area = iota

	// Withheld holds quarantined and failed files.
	Withheld
)

// Layout is the directory structure of one workspace:
//
//	<root>/flat/**/*.dcm                      unsorted input
//	<root>/sorted/<accession>/<series>/*.dcm  sorted input
//	<root>/anon/<accession>/<series>/         released files
//	<root>/quarantine/<accession>/<series>/   withheld files
//	<root>/logs/anon.txt                      run log
type Layout struct {
	Root string
}

// New returns the layout rooted at root.
func New(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// Flat returns the unsorted input directory.
func (l Layout) Flat() string { return filepath.Join(l.Root, FlatDir) }

// Sorted returns the sorted input directory.
func (l Layout) Sorted() string { return filepath.Join(l.Root, SortedDir) }

// Anon returns the release directory.
func (l Layout) Anon() string { return filepath.Join(l.Root, AnonDir) }

// Quarantine returns the withheld directory.
func (l Layout) Quarantine() string { return filepath.Join(l.Root, QuarantineDir) }

// Logs returns the log directory.
func (l Layout) Logs() string { return filepath.Join(l.Root, LogsDir) }

// LogFile returns the run log path.
func (l Layout) LogFile() string { return filepath.Join(l.Logs(), LogFileName) }

// LegendFile returns the shifted-date legend path.
func (l Layout) LegendFile() string { return filepath.Join(l.Anon(), LegendFileName) }

// Dir returns the root directory of area.
func (l Layout) Dir(area Area) string {
	if area == Released {
		return l.Anon()
	}
	return l.Quarantine()
}

// Prepare creates the output directories.
func (l Layout) Prepare() error {
	for _, dir := range []string{l.Sorted(), l.Anon(), l.Quarantine(), l.Logs()} {
		if err := mkdir(dir); err != nil {
			return err
		}
	}
	return nil
}

// SeriesKey returns the accession and series directory names of a file
// stored as .../<accession>/<series>/<file>.
func SeriesKey(path string) (accession, series string) {
	dir := filepath.Dir(path)
	return filepath.Base(filepath.Dir(dir)), filepath.Base(dir)
}

// component makes a header value safe to use as one path element.
func component(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool { return r == 0 || r == ' ' })
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return UnknownComponent
	}
	return s
}

// InFlat reports whether path lies under the unsorted input directory.
func (l Layout) InFlat(path string) bool {
	rel, err := filepath.Rel(l.Flat(), path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
