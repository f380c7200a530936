// Package filelock guards on-disk artifacts that several yarascope processes
// may touch at once, such as exclusion profiles. It combines advisory flock
// locking with temp-file-and-rename writes so readers never observe a partial
// file.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is an advisory exclusive lock on a path. The lock file itself carries
// no payload; callers lock a sibling ".lock" path next to the real file.
type Lock struct {
	fl   *flock.Flock
	path string
}

// New returns an unacquired lock for path.
func New(path string) *Lock {
	return &Lock{fl: flock.New(path), path: path}
}

// Acquire blocks until the exclusive lock is held.
func (l *Lock) Acquire() error {
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	return nil
}

// TryAcquire attempts the lock without blocking and reports whether it was
// obtained.
func (l *Lock) TryAcquire() (bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", l.path, err)
	}
	return ok, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// AtomicWrite replaces the contents of path without exposing intermediate
// states: the data goes to a temp file in the target directory, is synced and
// chmodded, then renamed over the target. On failure the original file is
// left untouched.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Temp file must live on the same filesystem as the target or the final
	// rename stops being atomic.
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tmp = nil // renamed, skip cleanup
	return nil
}

// WriteLocked serializes writers on path+".lock" and then writes atomically.
func WriteLocked(path string, data []byte, perm os.FileMode) error {
	lock := New(path + ".lock")
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	return AtomicWrite(path, data, perm)
}

// ReadLocked reads path while holding the same ".lock" sibling writers use,
// so a read never races a concurrent locked write.
func ReadLocked(path string) ([]byte, error) {
	lock := New(path + ".lock")
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer lock.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
