package bundlestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore/catalog"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/codec"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/config"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/ident"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/observability"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/retry"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/rootpath"
	"go.opentelemetry.io/otel/attribute"
)

// ArchiveDir is the per-bundle subdirectory holding superseded versions.
const ArchiveDir = "archive"

// Store manages bundles under a storage root.
// A Store is safe for concurrent use.
type Store struct {
	root     string
	resolver *rootpath.Resolver
	ids      *ident.Generator
	codecs   *codec.Registry
	format   string
	archive  bool
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	catalog  catalog.Catalog
	retry    retry.Config
	locker   Locker
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{
		resolver: rootpath.New(),
		ids:      ident.New(),
		codecs:   codec.DefaultRegistry(),
		format:   codec.DefaultTag,
		archive:  true,
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		retry:    retry.New(retry.WithRetryable(catalog.IsBusy)),
		locker:   processLocker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromSettings builds a Store from loaded settings. The logger writes to
// stderr; opts are applied last and may override anything.
// Close the store to release the catalog database.
func FromSettings(settings config.Settings, opts ...Option) (*Store, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if _, err := codec.DefaultRegistry().Lookup(settings.Format); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	logger, err := observability.NewLogger(os.Stderr, settings.LogLevel, settings.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	base := []Option{
		WithRoot(settings.Root),
		WithFormat(settings.Format),
		WithArchiveDefault(settings.Archive),
		WithLogger(logger),
	}
	if settings.Metrics {
		base = append(base, WithMetrics(observability.NewMetricsRecorder()))
	}
	if settings.Tracing {
		base = append(base, WithSpans(observability.NewSpanManager()))
	}
	if settings.Locking == config.LockingFlock {
		fl, err := NewFlockLocker()
		if err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
		base = append(base, WithLocker(fl))
	}
	if settings.CatalogPath != "" {
		cat, err := catalog.NewSQLiteCatalog(settings.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
		base = append(base, WithCatalog(cat))
		if settings.CatalogRetries > 0 {
			base = append(base, WithCatalogRetry(retry.New(
				retry.WithMaxAttempts(settings.CatalogRetries),
				retry.WithRetryable(catalog.IsBusy),
			)))
		}
	}

	return New(append(base, opts...)...), nil
}

// Close closes the catalog, if any.
func (s *Store) Close() error {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Close()
}

// resolveRoot picks the per-call override, then the pinned root, then the
// resolver.
func (s *Store) resolveRoot(override string) (string, error) {
	if override == "" {
		override = s.root
	}
	return s.resolver.Resolve(override)
}

// validateBundleID rejects ids that are not a single safe path element.
func validateBundleID(id string) error {
	if id == "" || id == "." || id == ".." || id == ArchiveDir || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidBundleID, id)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidBundleID, id)
	}
	for _, r := range id {
		if r == '/' || r == '\\' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidBundleID, id, r)
		}
	}
	return nil
}

// currentEntries lists the names directly under a bundle directory that are
// neither the archive directory nor dot-prefixed staging files.
func currentEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Name() == ArchiveDir || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// bundleDirExists reports whether dir exists and is a directory.
func bundleDirExists(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// recordCatalog runs fn against the catalog under the retry policy, logging
// and counting the final failure.
// The update runs even if ctx is canceled, since the filesystem change it
// mirrors has already been made.
func (s *Store) recordCatalog(ctx context.Context, bundleID, op string, fn func(context.Context, catalog.Catalog) error) {
	if s.catalog == nil {
		return
	}
	attempts, err := retry.Do(context.WithoutCancel(ctx), s.retry, func(ctx context.Context) error {
		return fn(ctx, s.catalog)
	})
	if attempts > 1 {
		s.spans.AddSpanEvent(ctx, "catalog_retried", attribute.Int("attempts", attempts))
	}
	if err != nil {
		s.metrics.RecordCatalogError(ctx, op)
		observability.LogCatalogError(s.logger, bundleID, op, err)
	}
}
