package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the output root while a run is active.
const LockFileName = ".scribe.lock"

// ErrLocked reports that another run holds the output root.
var ErrLocked = errors.New("output root locked by another scribe run")

// AcquireLock takes an exclusive, non-blocking lock on outputDir.
func AcquireLock(outputDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure output dir: %w", err)
	}
	lock := flock.New(filepath.Join(outputDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}
	return lock, nil
}
