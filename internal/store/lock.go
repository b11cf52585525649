package store

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	noteerr "github.com/noterank/noterank/internal/errors"
)

// BuildLock is the coarse cross-process write lock guarding a store build.
// Exactly one build may hold it at a time; readers never acquire it.
type BuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewBuildLock returns a lock file sitting next to the store at
// <storePath>.build.lock.
func NewBuildLock(storePath string) *BuildLock {
	path := storePath + ".build.lock"
	return &BuildLock{path: path, flock: flock.New(path)}
}

// TryLock attempts to acquire the build lock without blocking, returning
// Store::Locked (BuildError::Busy) if another build already holds it.
func (l *BuildLock) TryLock() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return noteerr.StoreMigration(err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return noteerr.StoreMigration(err)
	}
	if !acquired {
		return noteerr.StoreLocked(nil)
	}
	l.locked = true
	return nil
}

// Unlock releases the build lock. Safe to call on an unlocked BuildLock.
func (l *BuildLock) Unlock() error {
	if !l.locked {
		return nil
	}
	err := l.flock.Unlock()
	l.locked = false
	return err
}
