package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Route moves the file at path into area under <accession>/<series>/,
// keeping its name, and returns the new path. A file already in place is
// left alone.
func (l Layout) Route(path string, area Area, accession, series string) (string, error) {
	dir := filepath.Join(l.Dir(area), component(accession), component(series))
	dst := filepath.Join(dir, filepath.Base(path))
	if filepath.Clean(path) == dst {
		return dst, nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := moveFile(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// moveFile renames src to dst, falling back to copy and remove when the
// two are on different file systems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src) //nolint:gosec // src comes from discovery
	if err != nil {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // dst is built from the layout
	if err != nil {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}
