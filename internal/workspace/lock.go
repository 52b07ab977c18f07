package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another run holds the workspace lock.
var ErrLocked = errors.New("workspace is in use by another run")

// Lock is an exclusive hold on a workspace.
type Lock struct {
	fl *flock.Flock
}

// Lock acquires the workspace lock without waiting.
func (l Layout) Lock() (*Lock, error) {
	if err := mkdir(l.Root); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(l.Root, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, l.Root)
	}
	return &Lock{fl: fl}, nil
}

// Unlock releases the lock.
func (lk *Lock) Unlock() error {
	return lk.fl.Unlock()
}

func mkdir(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
