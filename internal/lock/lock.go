// Package lock provides the non-blocking advisory file locks that keep two
// runs from working on the same day at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lock held by another process")

// GateName is the lock taken by publish gate commands.
const GateName = "gate"

// Lock is an acquired advisory lock. A nil *Lock is a valid no-op.
type Lock struct {
	path string
	file *flock.Flock
}

// Path returns the lock file.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release unlocks. Calling it more than once is harmless.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := l.file.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// Acquire takes dir/<name>.lock without blocking. With enabled false it
// returns a nil lock so callers can release unconditionally.
func Acquire(dir, name string, enabled bool) (*Lock, error) {
	if !enabled {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, name+".lock")
	file := flock.New(path)
	ok, err := file.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Lock{path: path, file: file}, nil
}
