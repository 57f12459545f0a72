package bundlestore

import (
	"context"
	"path/filepath"
	"sync"
)

// Locker serializes mutations of one bundle.
// Lock blocks until the bundle is held and returns the release function.
type Locker interface {
	Lock(ctx context.Context, root, bundleID string) (unlock func(), err error)
}

// processLocker is shared by every Store in the process so two stores on the
// same root still serialize writers.
var processLocker = NewKeyedLocker()

// KeyedLocker is an in-process Locker holding one mutex per bundle
// directory. Entries are dropped once no caller holds or waits on them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// NewKeyedLocker returns an empty KeyedLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*refMutex)}
}

// Lock implements Locker.
func (k *KeyedLocker) Lock(ctx context.Context, root, bundleID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := filepath.Join(root, bundleID)

	k.mu.Lock()
	m := k.locks[key]
	if m == nil {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}, nil
}

// held reports the number of bundles with a holder or waiter.
func (k *KeyedLocker) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
