// Package catalog indexes the artifacts written by a bundle store.
//
// The filesystem stays authoritative for what a bundle holds. A catalog is
// an audit trail recording when each version was written, its size and
// digest, and whether it is still current.
package catalog

import (
	"context"
	"errors"
	"time"
)

// State is the lifecycle position of an indexed artifact.
type State string

const (
	StateCurrent  State = "current"
	StateArchived State = "archived"
)

// Entry describes one version artifact.
type Entry struct {
	BundleID  string
	VersionID string
	FormatTag string
	Size      int64
	SHA256    string
	State     State
	CreatedAt time.Time
}

// Catalog records artifact metadata.
// Implementations must be safe for concurrent use.
type Catalog interface {
	// Put inserts or replaces the entry keyed by bundle, version and tag.
	Put(ctx context.Context, e Entry) error

	// Archive marks the named versions of a bundle as archived.
	// Unknown versions are ignored.
	Archive(ctx context.Context, bundleID string, versionIDs []string) error

	// Delete drops the named versions of a bundle.
	// Unknown versions are ignored.
	Delete(ctx context.Context, bundleID string, versionIDs []string) error

	// Forget drops every entry of a bundle, or only its archived entries.
	Forget(ctx context.Context, bundleID string, archivedOnly bool) error

	// Entries returns a bundle's entries ordered by version id then tag.
	// Returns an empty slice (not error) for unknown bundles.
	Entries(ctx context.Context, bundleID string) ([]Entry, error)

	// Close releases any resources (connections, files).
	Close() error
}

// ErrClosed indicates the catalog has been closed.
var ErrClosed = errors.New("catalog closed")
