package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// How often a waiting writer checks whether the store lock was released.
const lockRetry = 250 * time.Millisecond

// DBLock serializes writers of the category store across starlight
// processes. The lock is the file <store>.lock next to the store.
type DBLock struct {
	file *flock.Flock
}

// NewDBLock returns the lock guarding the store at dbPath, "" being the
// default store location. Nothing is locked yet.
func NewDBLock(dbPath string) (*DBLock, error) {
	store, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not resolve store path: %w", err)
	}
	return &DBLock{file: flock.New(store + ".lock")}, nil
}

// Path returns the lock file path.
func (l *DBLock) Path() string { return l.file.Path() }

// Lock acquires the lock. While another process holds it, Lock keeps
// retrying until the lock is free or ctx is done.
func (l *DBLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	locked, err := l.file.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.Path(), err)
	}
	if locked {
		return nil
	}

	Log.Warnf("another starlight process is writing to %s, waiting for it to finish", l.Path())
	if _, err := l.file.TryLockContext(ctx, lockRetry); err != nil {
		return fmt.Errorf("gave up waiting for lock on %s: %w", l.Path(), err)
	}
	return nil
}

// Unlock releases the lock. Releasing a lock that was never taken is not an
// error.
func (l *DBLock) Unlock() error {
	if err := l.file.Unlock(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock on %s: %w", l.Path(), err)
	}
	return nil
}

// WithDBLock runs fn while holding the lock of the store at dbPath. A failure
// to release the lock is logged, fn's error is returned.
func WithDBLock(ctx context.Context, dbPath string, fn func() error) error {
	lock, err := NewDBLock(dbPath)
	if err != nil {
		return err
	}
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			Log.Warnf("%v", err)
		}
	}()
	return fn()
}

// GetAbsDBPath resolves the store path; "" means the default location under
// the user's config directory.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "starlight", "starlight.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
