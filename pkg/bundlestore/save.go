package bundlestore

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore/catalog"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/codec"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/observability"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/table"
)

// Save writes tbl as the new current version of a bundle and returns the
// path written. Any previous current version is moved to the archive
// directory, or deleted when archiving is off.
//
// The table is encoded into a staging file first; the old version is only
// touched once the new one is fully on disk, so a failed encode leaves the
// bundle as it was. If moving the old versions aside or promoting the new
// one fails, the versions already moved are put back before the error is
// returned.
//
// Example:
//
//	path, err := store.Save(ctx, tbl,
//	    bundlestore.WithBundleID("prices"),
//	    bundlestore.WithMetadata(map[string]string{"source": "feed"}),
//	)
func (s *Store) Save(ctx context.Context, tbl *table.Table, opts ...SaveOption) (string, error) {
	cfg := saveConfig{archive: s.archive, formatTag: s.format}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bundleID == "" {
		cfg.bundleID = s.ids.Next()
	}

	ctx, span := s.spans.StartOpSpan(ctx, "save", cfg.bundleID)
	start := time.Now()

	res, err := s.save(ctx, tbl, cfg)

	s.metrics.RecordSave(ctx, cfg.formatTag, res.size, time.Since(start), err)
	s.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogOpError(s.logger, cfg.bundleID, "save", err)
		return "", err
	}
	observability.LogSave(s.logger, cfg.bundleID, res.path, len(res.superseded), res.size,
		float64(time.Since(start).Microseconds())/1000)
	return res.path, nil
}

type saveResult struct {
	path       string
	size       int64
	superseded []string
}

func (s *Store) save(ctx context.Context, tbl *table.Table, cfg saveConfig) (saveResult, error) {
	id := cfg.bundleID
	if tbl == nil {
		return saveResult{}, &SerializationError{BundleID: id, Err: errors.New("nil table")}
	}

	c, err := s.codecs.Lookup(cfg.formatTag)
	if err != nil {
		return saveResult{}, &SerializationError{BundleID: id, Err: err}
	}
	for _, col := range tbl.Columns() {
		if !c.Supports(col.Type) {
			return saveResult{}, &UnsupportedColumnTypeError{
				BundleID:  id,
				Column:    col.Name,
				Type:      col.Type,
				FormatTag: c.Tag(),
			}
		}
	}
	meta := codec.Metadata{Table: cfg.metadata, Columns: cfg.columnMeta}
	if v, ok := c.(codec.Validator); ok {
		if err := v.Validate(tbl, meta); err != nil {
			return saveResult{}, &SerializationError{BundleID: id, Err: err}
		}
	}
	if err := validateBundleID(id); err != nil {
		return saveResult{}, err
	}

	root, err := s.resolveRoot(cfg.root)
	if err != nil {
		return saveResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return saveResult{}, err
	}

	unlock, err := s.locker.Lock(ctx, root, id)
	if err != nil {
		return saveResult{}, fmt.Errorf("lock bundle %s: %w", id, err)
	}
	defer unlock()

	dir := filepath.Join(root, id)
	archiveDir := filepath.Join(dir, ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return saveResult{}, fmt.Errorf("create bundle %s: %w", id, err)
	}

	existing, err := currentEntries(dir)
	if err != nil {
		return saveResult{}, fmt.Errorf("scan bundle %s: %w", id, err)
	}

	versionID := s.ids.Next()
	name := codec.JoinFilename(versionID, c.Tag())
	target := filepath.Join(dir, name)
	if err := checkCollisions(id, dir, name, existing, cfg.archive); err != nil {
		return saveResult{}, err
	}

	staged, err := stage(dir, name, c, tbl, meta)
	if err != nil {
		return saveResult{}, &SerializationError{BundleID: id, Path: target, Err: err}
	}
	s.spans.AddSpanEvent(ctx, "staged", attribute.Int64("size_bytes", staged.size))

	moved, err := supersede(dir, existing, cfg.archive)
	if err != nil {
		os.Remove(staged.path)
		return saveResult{}, err
	}
	if err := rename(staged.path, target); err != nil {
		os.Remove(staged.path)
		err = fmt.Errorf("promote %s: %w", target, err)
		if rerr := moved.restore(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return saveResult{}, err
	}
	moved.discard()
	superseded := existing
	s.spans.AddSpanEvent(ctx, "promoted",
		attribute.String("path", target),
		attribute.Int("superseded", len(superseded)),
		attribute.Bool("archived", cfg.archive),
	)

	s.recordSaved(ctx, id, versionID, c.Tag(), staged, superseded, cfg.archive)
	return saveResult{path: target, size: staged.size, superseded: superseded}, nil
}

// rename is os.Rename; tests replace it to inject failures.
var rename = os.Rename

// move is one entry relocated by supersede.
type move struct{ from, to string }

// displaced tracks current entries moved aside by a save so the move can be
// undone until the new version is promoted.
type displaced struct {
	moves   []move
	archive bool
}

// supersede moves every existing current entry into the archive, or to a
// dot-prefixed trash name when archiving is off. On failure the entries
// already moved are put back.
func supersede(dir string, existing []string, archive bool) (*displaced, error) {
	d := &displaced{archive: archive}
	for _, old := range existing {
		src := filepath.Join(dir, old)
		dst := filepath.Join(dir, ArchiveDir, old)
		if !archive {
			dst = filepath.Join(dir, "."+old+"."+uuid.NewString()+".old")
		}
		if err := rename(src, dst); err != nil {
			err = fmt.Errorf("supersede %s: %w", src, err)
			if rerr := d.restore(); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return nil, err
		}
		d.moves = append(d.moves, move{from: src, to: dst})
	}
	return d, nil
}

// restore moves the displaced entries back, newest first.
func (d *displaced) restore() error {
	var errs []error
	for i := len(d.moves) - 1; i >= 0; i-- {
		m := d.moves[i]
		if err := rename(m.to, m.from); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", m.from, err))
		}
	}
	d.moves = nil
	return errors.Join(errs...)
}

// discard deletes trashed entries once the new version is in place.
// Leftovers are dot-prefixed and ignored by every scan.
func (d *displaced) discard() {
	if d.archive {
		return
	}
	for _, m := range d.moves {
		os.RemoveAll(m.to)
	}
}

// checkCollisions fails if the new artifact name is already taken, or if
// archiving an existing entry would replace an archived file.
func checkCollisions(bundleID, dir, name string, existing []string, archive bool) error {
	taken := []string{
		filepath.Join(dir, name),
		filepath.Join(dir, ArchiveDir, name),
	}
	if archive {
		for _, old := range existing {
			taken = append(taken, filepath.Join(dir, ArchiveDir, old))
		}
	}
	for _, p := range taken {
		_, err := os.Lstat(p)
		if err == nil {
			return &VersionCollisionError{BundleID: bundleID, Path: p}
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("check %s: %w", p, err)
		}
	}
	return nil
}

// stagedFile is a fully written, synced artifact waiting to be renamed.
type stagedFile struct {
	path   string
	size   int64
	sha256 string
}

// hashingWriter counts and hashes every byte written through it.
type hashingWriter struct {
	f    *os.File
	hash hash.Hash
	n    int64
}

func (w *hashingWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.hash.Write(p[:n])
	w.n += int64(n)
	return n, err
}

// stage encodes tbl into a dot-prefixed scratch file inside dir.
// On error the scratch file is removed.
func stage(dir, name string, c codec.Codec, tbl *table.Table, meta codec.Metadata) (stagedFile, error) {
	path := filepath.Join(dir, "."+name+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return stagedFile{}, err
	}

	hw := &hashingWriter{f: f, hash: sha256.New()}
	bw := bufio.NewWriter(hw)
	err = c.Encode(bw, tbl, meta)
	if err == nil {
		err = bw.Flush()
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return stagedFile{}, err
	}
	return stagedFile{
		path:   path,
		size:   hw.n,
		sha256: hex.EncodeToString(hw.hash.Sum(nil)),
	}, nil
}

// recordSaved mirrors a committed save into the catalog.
func (s *Store) recordSaved(ctx context.Context, bundleID, versionID, tag string, staged stagedFile, superseded []string, archived bool) {
	var oldVersions []string
	for _, old := range superseded {
		if v, _, ok := codec.SplitFilename(old); ok {
			oldVersions = append(oldVersions, v)
		}
	}
	if len(oldVersions) > 0 {
		if archived {
			s.recordCatalog(ctx, bundleID, "archive", func(ctx context.Context, c catalog.Catalog) error {
				return c.Archive(ctx, bundleID, oldVersions)
			})
		} else {
			s.recordCatalog(ctx, bundleID, "delete", func(ctx context.Context, c catalog.Catalog) error {
				return c.Delete(ctx, bundleID, oldVersions)
			})
		}
	}
	s.recordCatalog(ctx, bundleID, "put", func(ctx context.Context, c catalog.Catalog) error {
		return c.Put(ctx, catalog.Entry{
			BundleID:  bundleID,
			VersionID: versionID,
			FormatTag: tag,
			Size:      staged.size,
			SHA256:    staged.sha256,
			State:     catalog.StateCurrent,
			CreatedAt: time.Now(),
		})
	})
}
