// Package lockfile serializes local snapshot commits across concurrent lb
// processes in the same repository. The lock guards the read-modify-commit
// section only; it is never held across fetch or push.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLocked reports that another process holds the lock.
var ErrLocked = errors.New("store lock already held by another process")

// Lock is an exclusive file lock on the repository's store.
type Lock struct {
	f *os.File
}

// Acquire takes a non-blocking exclusive lock under gitDir. It fails fast
// with ErrLocked rather than waiting, since local commits are quick and a
// retry at the CLI level is cheap.
func Acquire(gitDir string) (*Lock, error) {
	lockDir := filepath.Join(gitDir, "litebrite")
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	path := filepath.Join(lockDir, "store.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := flockExclusive(f); err != nil {
		f.Close()
		return nil, err
	}
	// Record the holder for debugging; contents are informational only.
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	return &Lock{f: f}, nil
}

// Release drops the lock. Safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
