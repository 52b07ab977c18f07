package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
)

// ErrInvalidPattern is returned for a malformed input glob.
var ErrInvalidPattern = errors.New("invalid input pattern")

// Discover returns the files under dir matching the doublestar pattern,
// sorted. A missing dir yields no files.
func Discover(dir, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", dir, err)
	}

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	sort.Strings(paths)
	return paths, nil
}

// SeriesSizes counts the files of each directory. In a sorted workspace a
// directory is one series.
func SeriesSizes(paths []string) map[string]int {
	sizes := make(map[string]int)
	for _, p := range paths {
		sizes[filepath.Dir(p)]++
	}
	return sizes
}

// Fingerprint returns the hex xxhash of the file contents. It identifies
// an input across runs without storing anything derived from the header.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from discovery
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
