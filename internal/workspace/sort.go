package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/chanonchantad/anon-pipeline/internal/dicomio"
	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// SortResult lists what Sort did.
type SortResult struct {
	// Sorted are the new paths of moved files.
	Sorted []string

	// Skipped are input files left in place because their header could
	// not be read or lacks an identifier.
	Skipped []string
}

// Sort moves every file under flat/ matching pattern to
// sorted/<AccessionNumber>/<SeriesInstanceUID>/<SOPInstanceUID>.dcm.
// Files that cannot be sorted stay where they are. Cancellation is
// checked between files; the partial result is returned with ctx.Err().
func (l Layout) Sort(ctx context.Context, pattern string, logger *slog.Logger, progress *Progress) (SortResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res SortResult
	paths, err := Discover(l.Flat(), pattern)
	if err != nil {
		return res, err
	}
	progress.Start(len(paths))
	defer progress.Finish()

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		progress.Increment()

		dst, err := l.sortedPath(path)
		if err != nil {
			logger.Warn("file not sorted", "path", path, "error", err)
			res.Skipped = append(res.Skipped, path)
			continue
		}
		if err := moveFile(path, dst); err != nil {
			logger.Warn("file not sorted", "path", path, "error", err)
			res.Skipped = append(res.Skipped, path)
			continue
		}
		res.Sorted = append(res.Sorted, dst)
	}

	logger.Info("sorting complete", "sorted", len(res.Sorted), "skipped", len(res.Skipped))
	return res, nil
}

// sortedPath reads the identifiers of the file at path and creates its
// destination directory.
func (l Layout) sortedPath(path string) (string, error) {
	img, err := dicomio.ReadHeader(path)
	if err != nil {
		return "", err
	}

	acc := img.Accession()
	series, _ := img.Text(model.TagSeriesInstanceUID)
	sop, _ := img.Text(model.TagSOPInstanceUID)
	if sop == "" {
		return "", fmt.Errorf("%w: SOPInstanceUID", model.ErrMissingHeader)
	}

	dir := filepath.Join(l.Sorted(), component(acc), component(series))
	if err := mkdir(dir); err != nil {
		return "", err
	}
	return filepath.Join(dir, component(sop)+".dcm"), nil
}
