package bundlestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore/catalog"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/observability"
)

// Remove deletes a bundle directory, or only its archive directory with
// ArchiveOnly. Removal is irreversible. A missing target is not an error:
// the call is logged as a *RemovalNoOpWarning and returns nil.
func (s *Store) Remove(ctx context.Context, bundleID string, opts ...CallOption) error {
	cfg := callOptions(opts)
	ctx, span := s.spans.StartOpSpan(ctx, "remove", bundleID)

	noop, err := s.remove(ctx, bundleID, cfg)

	s.metrics.RecordRemove(ctx, cfg.archiveOnly, noop)
	s.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogOpError(s.logger, bundleID, "remove", err)
	}
	return err
}

func (s *Store) remove(ctx context.Context, bundleID string, cfg callConfig) (bool, error) {
	if err := validateBundleID(bundleID); err != nil {
		return false, err
	}
	root, err := s.resolveRoot(cfg.root)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	unlock, err := s.locker.Lock(ctx, root, bundleID)
	if err != nil {
		return false, fmt.Errorf("lock bundle %s: %w", bundleID, err)
	}
	defer unlock()

	target := filepath.Join(root, bundleID)
	if cfg.archiveOnly {
		target = filepath.Join(target, ArchiveDir)
	}

	if _, err := os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
		w := &RemovalNoOpWarning{BundleID: bundleID, Path: target, ArchiveOnly: cfg.archiveOnly}
		observability.LogRemoveNoOp(s.logger, bundleID, target, cfg.archiveOnly)
		s.spans.AddSpanEvent(ctx, "removal_noop",
			attribute.String("path", target),
			attribute.String("warning", w.Error()),
		)
		return true, nil
	} else if err != nil {
		return false, fmt.Errorf("stat %s: %w", target, err)
	}

	if err := os.RemoveAll(target); err != nil {
		return false, fmt.Errorf("remove %s: %w", target, err)
	}
	observability.LogRemove(s.logger, bundleID, target, cfg.archiveOnly)

	s.recordCatalog(ctx, bundleID, "forget", func(ctx context.Context, c catalog.Catalog) error {
		return c.Forget(ctx, bundleID, cfg.archiveOnly)
	})
	return false, nil
}
