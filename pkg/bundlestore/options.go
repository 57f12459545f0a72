package bundlestore

import (
	"log/slog"
	"maps"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore/catalog"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/codec"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/ident"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/observability"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/retry"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/rootpath"
)

// Option configures a Store.
type Option func(*Store)

// WithRoot pins the storage root. Without it the root is resolved from
// BUNDLESTORE_ROOT or the platform cache directory on every call.
func WithRoot(path string) Option {
	return func(s *Store) {
		s.root = path
	}
}

// WithResolver sets the resolver consulted when no root is pinned.
func WithResolver(r *rootpath.Resolver) Option {
	return func(s *Store) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithIdentGenerator sets the generator for bundle and version ids.
func WithIdentGenerator(g *ident.Generator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithCodecs sets the codec registry. Default: codec.DefaultRegistry().
func WithCodecs(r *codec.Registry) Option {
	return func(s *Store) {
		if r != nil {
			s.codecs = r
		}
	}
}

// WithFormat sets the default format tag for Save.
// Default: codec.DefaultTag ("json.snappy").
func WithFormat(tag string) Option {
	return func(s *Store) {
		if tag != "" {
			s.format = tag
		}
	}
}

// WithArchiveDefault sets whether Save archives superseded versions when the
// call does not say. Default: true.
func WithArchiveDefault(archive bool) Option {
	return func(s *Store) {
		s.archive = archive
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Default: observability.NoopMetrics{}.
//
// Example:
//
//	store := bundlestore.New(bundlestore.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSpans sets the span manager. Default: observability.NoopSpanManager{}.
func WithSpans(sm observability.SpanManager) Option {
	return func(s *Store) {
		if sm != nil {
			s.spans = sm
		}
	}
}

// WithCatalog records every saved artifact in c.
// Catalog failures are logged and never fail a store operation.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Store) {
		s.catalog = c
	}
}

// WithCatalogRetry sets the retry policy for catalog updates.
// Default: three attempts, retrying only SQLite busy errors.
func WithCatalogRetry(cfg retry.Config) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

// WithLocker sets the per-bundle lock used by Save and Remove.
// Default: a process-wide keyed mutex.
func WithLocker(l Locker) Option {
	return func(s *Store) {
		if l != nil {
			s.locker = l
		}
	}
}

// saveConfig holds per-call Save settings.
type saveConfig struct {
	bundleID   string
	archive    bool
	formatTag  string
	root       string
	metadata   map[string]string
	columnMeta map[string]map[string]string
}

// SaveOption configures a single Save call.
type SaveOption func(*saveConfig)

// WithBundleID names the bundle. Without it a fresh id is generated.
func WithBundleID(id string) SaveOption {
	return func(c *saveConfig) {
		c.bundleID = id
	}
}

// WithArchive controls whether the superseded version is moved to archive/
// (true) or deleted (false).
func WithArchive(archive bool) SaveOption {
	return func(c *saveConfig) {
		c.archive = archive
	}
}

// WithFormatTag overrides the store's default format tag for this call.
func WithFormatTag(tag string) SaveOption {
	return func(c *saveConfig) {
		c.formatTag = tag
	}
}

// WithMetadata attaches bundle-level metadata. Keys override metadata
// already carried by the table.
func WithMetadata(meta map[string]string) SaveOption {
	return func(c *saveConfig) {
		if c.metadata == nil {
			c.metadata = make(map[string]string, len(meta))
		}
		maps.Copy(c.metadata, meta)
	}
}

// WithColumnMetadata attaches per-column metadata.
func WithColumnMetadata(meta map[string]map[string]string) SaveOption {
	return func(c *saveConfig) {
		if c.columnMeta == nil {
			c.columnMeta = make(map[string]map[string]string, len(meta))
		}
		for col, m := range meta {
			c.columnMeta[col] = maps.Clone(m)
		}
	}
}

// IntoRoot writes under root instead of the store's root for this call.
func IntoRoot(root string) SaveOption {
	return func(c *saveConfig) {
		c.root = root
	}
}

// callConfig holds per-call settings for reads and removal.
type callConfig struct {
	root        string
	archiveOnly bool
}

// CallOption configures Load, LoadVersion, Versions, List and Remove.
type CallOption func(*callConfig)

// FromRoot reads from (or removes under) root instead of the store's root.
func FromRoot(root string) CallOption {
	return func(c *callConfig) {
		c.root = root
	}
}

// ArchiveOnly restricts Remove to the bundle's archive directory.
// Other operations ignore it.
func ArchiveOnly() CallOption {
	return func(c *callConfig) {
		c.archiveOnly = true
	}
}
