package catalog

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryCatalog keeps entries in memory. Data is lost when the process exits.
type MemoryCatalog struct {
	mu      sync.RWMutex
	bundles map[string]map[entryKey]Entry
	closed  bool
}

type entryKey struct {
	version string
	tag     string
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		bundles: make(map[string]map[entryKey]Entry),
	}
}

// Put implements Catalog.
func (m *MemoryCatalog) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.bundles[e.BundleID] == nil {
		m.bundles[e.BundleID] = make(map[entryKey]Entry)
	}
	if e.State == "" {
		e.State = StateCurrent
	}
	e.CreatedAt = e.CreatedAt.UTC()
	m.bundles[e.BundleID][entryKey{e.VersionID, e.FormatTag}] = e
	return nil
}

// Archive implements Catalog.
func (m *MemoryCatalog) Archive(_ context.Context, bundleID string, versionIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for k, e := range m.bundles[bundleID] {
		if slices.Contains(versionIDs, k.version) {
			e.State = StateArchived
			m.bundles[bundleID][k] = e
		}
	}
	return nil
}

// Delete implements Catalog.
func (m *MemoryCatalog) Delete(_ context.Context, bundleID string, versionIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for k := range m.bundles[bundleID] {
		if slices.Contains(versionIDs, k.version) {
			delete(m.bundles[bundleID], k)
		}
	}
	return nil
}

// Forget implements Catalog.
func (m *MemoryCatalog) Forget(_ context.Context, bundleID string, archivedOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if !archivedOnly {
		delete(m.bundles, bundleID)
		return nil
	}
	for k, e := range m.bundles[bundleID] {
		if e.State == StateArchived {
			delete(m.bundles[bundleID], k)
		}
	}
	return nil
}

// Entries implements Catalog.
func (m *MemoryCatalog) Entries(_ context.Context, bundleID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	entries := make([]Entry, 0, len(m.bundles[bundleID]))
	for _, e := range m.bundles[bundleID] {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].VersionID != entries[j].VersionID {
			return entries[i].VersionID < entries[j].VersionID
		}
		return entries[i].FormatTag < entries[j].FormatTag
	})
	return entries, nil
}

// Close implements Catalog.
func (m *MemoryCatalog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.bundles = nil
	return nil
}
