package bundlestore

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore/rootpath"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/table"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrConfiguration indicates the storage root could not be resolved.
	ErrConfiguration = rootpath.ErrConfiguration

	// ErrInvalidBundleID indicates a bundle id that cannot be used as a directory name.
	ErrInvalidBundleID = errors.New("invalid bundle id")

	// ErrBundleNotFound indicates the bundle directory does not exist.
	ErrBundleNotFound = errors.New("bundle not found")

	// ErrAmbiguousBundle indicates a bundle without exactly one current version.
	ErrAmbiguousBundle = errors.New("bundle does not have exactly one current version")

	// ErrSerialization indicates the codec failed to write a table.
	ErrSerialization = errors.New("serialization failed")

	// ErrDeserialization indicates the codec failed to read an artifact.
	ErrDeserialization = errors.New("deserialization failed")

	// ErrUnsupportedColumnType indicates a column the codec cannot represent.
	ErrUnsupportedColumnType = errors.New("unsupported column type")

	// ErrVersionCollision indicates a version id was reused within a bundle.
	ErrVersionCollision = errors.New("version id already exists")

	// ErrVersionNotFound indicates LoadVersion found no artifact for the id.
	ErrVersionNotFound = errors.New("version not found")
)

// ConfigurationError reports an unresolvable storage root.
type ConfigurationError = rootpath.ConfigurationError

// BundleNotFoundError is returned when a bundle directory does not exist.
type BundleNotFoundError struct {
	BundleID string
	Path     string
}

// Error implements the error interface.
func (e *BundleNotFoundError) Error() string {
	return fmt.Sprintf("bundle %s not found at %s", e.BundleID, e.Path)
}

// Unwrap returns ErrBundleNotFound for errors.Is support.
func (e *BundleNotFoundError) Unwrap() error {
	return ErrBundleNotFound
}

// AmbiguousBundleError is returned when a bundle directory holds zero or
// several current versions.
type AmbiguousBundleError struct {
	BundleID string
	Path     string
	// Count is the number of current entries observed.
	Count int
}

// Error implements the error interface.
func (e *AmbiguousBundleError) Error() string {
	return fmt.Sprintf("bundle %s at %s has %d current versions, want 1", e.BundleID, e.Path, e.Count)
}

// Unwrap returns ErrAmbiguousBundle for errors.Is support.
func (e *AmbiguousBundleError) Unwrap() error {
	return ErrAmbiguousBundle
}

// SerializationError wraps a codec failure while writing a version.
type SerializationError struct {
	BundleID string
	Path     string
	Err      error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize bundle %s to %s: %v", e.BundleID, e.Path, e.Err)
}

// Unwrap returns the codec error for errors.Is/As support.
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Is matches ErrSerialization.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

// DeserializationError wraps a codec failure while reading a version.
type DeserializationError struct {
	BundleID string
	Path     string
	Err      error
}

// Error implements the error interface.
func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialize bundle %s from %s: %v", e.BundleID, e.Path, e.Err)
}

// Unwrap returns the codec error for errors.Is/As support.
func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// Is matches ErrDeserialization.
func (e *DeserializationError) Is(target error) bool {
	return target == ErrDeserialization
}

// UnsupportedColumnTypeError is returned by Save before anything is written
// when a column type has no encoding in the chosen format.
type UnsupportedColumnTypeError struct {
	BundleID  string
	Column    string
	Type      table.Type
	FormatTag string
}

// Error implements the error interface.
func (e *UnsupportedColumnTypeError) Error() string {
	return fmt.Sprintf("bundle %s: column %q has type %s, not supported by %s",
		e.BundleID, e.Column, e.Type, e.FormatTag)
}

// Unwrap returns ErrUnsupportedColumnType for errors.Is support.
func (e *UnsupportedColumnTypeError) Unwrap() error {
	return ErrUnsupportedColumnType
}

// VersionCollisionError is returned when Save would overwrite an existing
// artifact because a version id was reused.
type VersionCollisionError struct {
	BundleID string
	Path     string
}

// Error implements the error interface.
func (e *VersionCollisionError) Error() string {
	return fmt.Sprintf("bundle %s: %s already exists", e.BundleID, e.Path)
}

// Unwrap returns ErrVersionCollision for errors.Is support.
func (e *VersionCollisionError) Unwrap() error {
	return ErrVersionCollision
}

// VersionNotFoundError is returned by LoadVersion.
type VersionNotFoundError struct {
	BundleID  string
	VersionID string
}

// Error implements the error interface.
func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("bundle %s has no version %s", e.BundleID, e.VersionID)
}

// Unwrap returns ErrVersionNotFound for errors.Is support.
func (e *VersionNotFoundError) Unwrap() error {
	return ErrVersionNotFound
}

// RemovalNoOpWarning describes a Remove whose target did not exist.
// It is logged and attached to the span, never returned.
type RemovalNoOpWarning struct {
	BundleID    string
	Path        string
	ArchiveOnly bool
}

// Error implements the error interface.
func (w *RemovalNoOpWarning) Error() string {
	return fmt.Sprintf("remove bundle %s: nothing at %s", w.BundleID, w.Path)
}
