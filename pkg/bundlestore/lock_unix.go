//go:build unix

package bundlestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// FlockLocker adds advisory cross-process exclusion with flock(2) on
// <root>/.<bundle>.lock. Cooperating processes must all use it.
// The lock file is left in place after release.
type FlockLocker struct {
	local *KeyedLocker
}

// NewFlockLocker returns a FlockLocker.
func NewFlockLocker() (*FlockLocker, error) {
	return &FlockLocker{local: NewKeyedLocker()}, nil
}

// Lock implements Locker.
func (l *FlockLocker) Lock(ctx context.Context, root, bundleID string) (func(), error) {
	release, err := l.local.Lock(ctx, root, bundleID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		release()
		return nil, fmt.Errorf("create root: %w", err)
	}
	path := filepath.Join(root, "."+bundleID+".lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		release()
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		f.Close()
		release()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		release()
	}, nil
}
