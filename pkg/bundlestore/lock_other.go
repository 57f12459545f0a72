//go:build !unix

package bundlestore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// FlockLocker is only available on unix platforms.
type FlockLocker struct{}

// NewFlockLocker fails on platforms without flock(2).
func NewFlockLocker() (*FlockLocker, error) {
	return nil, fmt.Errorf("flock locking on %s: %w", runtime.GOOS, errors.ErrUnsupported)
}

// Lock implements Locker.
func (*FlockLocker) Lock(context.Context, string, string) (func(), error) {
	return nil, errors.ErrUnsupported
}
