package bundlestore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore/codec"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/observability"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/table"
)

// Load reads the current version of a bundle.
//
// It returns *BundleNotFoundError when the bundle directory is missing and
// *AmbiguousBundleError when the directory holds zero or several current
// versions. Load takes no lock; a concurrent Save may surface as either
// error, never as a silently chosen version.
func (s *Store) Load(ctx context.Context, bundleID string, opts ...CallOption) (*table.Table, error) {
	return s.observeLoad(ctx, "load", bundleID, func(ctx context.Context) (*table.Table, string, error) {
		return s.load(ctx, bundleID, callOptions(opts))
	})
}

// LoadVersion reads one version of a bundle, current or archived.
func (s *Store) LoadVersion(ctx context.Context, bundleID, versionID string, opts ...CallOption) (*table.Table, error) {
	return s.observeLoad(ctx, "load_version", bundleID, func(ctx context.Context) (*table.Table, string, error) {
		return s.loadVersion(ctx, bundleID, versionID, callOptions(opts))
	})
}

func callOptions(opts []CallOption) callConfig {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (s *Store) observeLoad(ctx context.Context, op, bundleID string,
	fn func(context.Context) (*table.Table, string, error)) (*table.Table, error) {
	ctx, span := s.spans.StartOpSpan(ctx, op, bundleID)
	start := time.Now()

	tbl, path, err := fn(ctx)

	s.metrics.RecordLoad(ctx, time.Since(start), err)
	s.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogOpError(s.logger, bundleID, op, err)
		return nil, err
	}
	observability.LogLoad(s.logger, bundleID, path, tbl.NumRows(),
		float64(time.Since(start).Microseconds())/1000)
	return tbl, nil
}

func (s *Store) bundleDir(bundleID string, cfg callConfig) (string, error) {
	if err := validateBundleID(bundleID); err != nil {
		return "", err
	}
	root, err := s.resolveRoot(cfg.root)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, bundleID)
	ok, err := bundleDirExists(dir)
	if err != nil {
		return "", fmt.Errorf("stat bundle %s: %w", bundleID, err)
	}
	if !ok {
		return "", &BundleNotFoundError{BundleID: bundleID, Path: dir}
	}
	return dir, nil
}

func (s *Store) load(ctx context.Context, bundleID string, cfg callConfig) (*table.Table, string, error) {
	dir, err := s.bundleDir(bundleID, cfg)
	if err != nil {
		return nil, "", err
	}
	names, err := currentEntries(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", &BundleNotFoundError{BundleID: bundleID, Path: dir}
	}
	if err != nil {
		return nil, "", fmt.Errorf("scan bundle %s: %w", bundleID, err)
	}
	if len(names) != 1 {
		return nil, "", &AmbiguousBundleError{BundleID: bundleID, Path: dir, Count: len(names)}
	}

	path := filepath.Join(dir, names[0])
	tbl, err := s.decodeFile(ctx, bundleID, path)
	if errors.Is(err, fs.ErrNotExist) {
		// Superseded between the scan and the open.
		return nil, "", &AmbiguousBundleError{BundleID: bundleID, Path: dir, Count: 0}
	}
	return tbl, path, err
}

func (s *Store) loadVersion(ctx context.Context, bundleID, versionID string, cfg callConfig) (*table.Table, string, error) {
	versions, err := s.versions(bundleID, cfg)
	if err != nil {
		return nil, "", err
	}
	var matches []Version
	for _, v := range versions {
		if v.ID == versionID {
			matches = append(matches, v)
		}
	}
	switch len(matches) {
	case 0:
		return nil, "", &VersionNotFoundError{BundleID: bundleID, VersionID: versionID}
	case 1:
	default:
		return nil, "", &AmbiguousBundleError{
			BundleID: bundleID,
			Path:     filepath.Dir(matches[0].Path),
			Count:    len(matches),
		}
	}

	tbl, err := s.decodeFile(ctx, bundleID, matches[0].Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", &VersionNotFoundError{BundleID: bundleID, VersionID: versionID}
	}
	return tbl, matches[0].Path, err
}

// decodeFile opens path and decodes it with the codec named by its suffix.
// A missing file is returned as fs.ErrNotExist, everything else as
// *DeserializationError.
func (s *Store) decodeFile(ctx context.Context, bundleID, path string) (*table.Table, error) {
	_, tag, ok := codec.SplitFilename(filepath.Base(path))
	if !ok {
		return nil, &DeserializationError{
			BundleID: bundleID,
			Path:     path,
			Err:      fmt.Errorf("%w: no format tag in %q", codec.ErrUnknownFormat, filepath.Base(path)),
		}
	}
	c, err := s.codecs.Lookup(tag)
	if err != nil {
		return nil, &DeserializationError{BundleID: bundleID, Path: path, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err != nil {
		return nil, &DeserializationError{BundleID: bundleID, Path: path, Err: err}
	}
	defer f.Close()

	tbl, err := c.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, &DeserializationError{BundleID: bundleID, Path: path, Err: err}
	}
	return tbl, nil
}

// Version describes one artifact of a bundle.
type Version struct {
	ID        string
	FormatTag string
	Path      string
	Size      int64
	ModTime   time.Time
	Archived  bool
}

// Versions lists the current and archived artifacts of a bundle ordered by
// version id. Names that do not carry a format tag are skipped.
func (s *Store) Versions(ctx context.Context, bundleID string, opts ...CallOption) ([]Version, error) {
	_, span := s.spans.StartOpSpan(ctx, "versions", bundleID)
	versions, err := s.versions(bundleID, callOptions(opts))
	s.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogOpError(s.logger, bundleID, "versions", err)
		return nil, err
	}
	return versions, nil
}

func (s *Store) versions(bundleID string, cfg callConfig) ([]Version, error) {
	dir, err := s.bundleDir(bundleID, cfg)
	if err != nil {
		return nil, err
	}

	current, err := scanVersions(dir, false)
	if err != nil {
		return nil, fmt.Errorf("scan bundle %s: %w", bundleID, err)
	}
	archived, err := scanVersions(filepath.Join(dir, ArchiveDir), true)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("scan archive of %s: %w", bundleID, err)
	}

	versions := append(archived, current...)
	sort.SliceStable(versions, func(i, j int) bool {
		if versions[i].ID != versions[j].ID {
			return versions[i].ID < versions[j].ID
		}
		return versions[i].FormatTag < versions[j].FormatTag
	})
	return versions, nil
}

func scanVersions(dir string, archived bool) ([]Version, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var versions []Version
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		id, tag, ok := codec.SplitFilename(name)
		if !ok {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		versions = append(versions, Version{
			ID:        id,
			FormatTag: tag,
			Path:      filepath.Join(dir, name),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			Archived:  archived,
		})
	}
	return versions, nil
}

// List returns the bundle ids directly under the root in filesystem
// enumeration order, which is unspecified. A missing root yields an empty
// list. Files and dot-prefixed directories are skipped.
func (s *Store) List(ctx context.Context, opts ...CallOption) ([]string, error) {
	_, span := s.spans.StartOpSpan(ctx, "list", "")
	ids, err := s.list(callOptions(opts))
	s.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogOpError(s.logger, "", "list", err)
		return nil, err
	}
	return ids, nil
}

func (s *Store) list(cfg callConfig) ([]string, error) {
	root, err := s.resolveRoot(cfg.root)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open root: %w", err)
	}
	defer f.Close()

	// (*os.File).ReadDir keeps the directory's native order.
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("read root: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}
