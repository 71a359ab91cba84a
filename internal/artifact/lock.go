package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

// LockFile is the name of the lock file kept in an output directory.
const LockFile = ".build.lock"

// DirLock is an exclusive cross-process lock on an output directory.
type DirLock struct {
	flock *flock.Flock
}

// Lock takes the output-directory lock without blocking. A directory
// already locked by another build fails with ErrLocked.
func Lock(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, LockFile)
	fl := flock.New(path)
	acquired, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring %s: %w", path, err)
	}
	if !acquired {
		return nil, apperrors.Newf(apperrors.ErrLocked, "%s", dir)
	}
	return &DirLock{flock: fl}, nil
}

// Unlock releases the lock. Calling it more than once is safe.
func (l *DirLock) Unlock() error {
	if l == nil || !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("releasing build lock: %w", err)
	}
	return nil
}
