package bundlestore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/codec"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/ident"
	"github.com/randalmurphal/bundlestore/pkg/bundlestore/table"
)

// stepClock advances one second per call so every generated id is distinct.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore returns a store rooted in a fresh temp directory.
func newTestStore(t *testing.T, opts ...bundlestore.Option) (*bundlestore.Store, string) {
	t.Helper()
	root := t.TempDir()
	base := []bundlestore.Option{
		bundlestore.WithRoot(root),
		bundlestore.WithIdentGenerator(ident.New(ident.WithClock(stepClock()))),
		bundlestore.WithLogger(discardLogger()),
	}
	return bundlestore.New(append(base, opts...)...), root
}

func pricesV1() *table.Table {
	return table.MustNew(
		table.Strings("ticker", "AAPL", "MSFT"),
		table.Float64s("close", 189.5, 410.25),
		table.Timestamps("at",
			time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC),
		),
	)
}

func pricesV2() *table.Table {
	return table.MustNew(
		table.Strings("ticker", "AAPL", "MSFT", "GOOG"),
		table.Float64s("close", 191, 412.5, 140.1),
		table.Timestamps("at",
			time.Date(2024, 3, 2, 21, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 2, 21, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 2, 21, 0, 0, 0, time.UTC),
		),
	)
}

// listNames returns the non-dot entry names of dir, or nil if it is missing.
func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names
}

// currentFiles returns the current artifact names of a bundle.
func currentFiles(t *testing.T, root, bundleID string) []string {
	t.Helper()
	var out []string
	for _, n := range listNames(t, filepath.Join(root, bundleID)) {
		if n != bundlestore.ArchiveDir {
			out = append(out, n)
		}
	}
	return out
}

func archivedFiles(t *testing.T, root, bundleID string) []string {
	t.Helper()
	return listNames(t, filepath.Join(root, bundleID, bundlestore.ArchiveDir))
}

// dotFiles returns the staging leftovers in a bundle directory.
func dotFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out
}

// failingCodec writes a partial payload then fails.
type failingCodec struct{}

func (failingCodec) Tag() string                { return "broken.none" }
func (failingCodec) Supports(t table.Type) bool { return t.Known() }
func (failingCodec) Encode(w io.Writer, _ *table.Table, _ codec.Metadata) error {
	if _, err := w.Write(bytes.Repeat([]byte("x"), 8192)); err != nil {
		return err
	}
	return errors.New("disk on fire")
}
func (failingCodec) Decode(io.Reader) (*table.Table, error) {
	return nil, errors.New("not implemented")
}

// recordingSpans captures span events by name.
type recordingSpans struct {
	mu     sync.Mutex
	ops    []string
	events []string
}

func (r *recordingSpans) StartOpSpan(ctx context.Context, op, _ string) (context.Context, trace.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return ctx, noop.Span{}
}

func (r *recordingSpans) EndSpanWithError(trace.Span, error) {}

func (r *recordingSpans) AddSpanEvent(_ context.Context, name string, _ ...attribute.KeyValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

// recordingMetrics counts calls.
type recordingMetrics struct {
	mu            sync.Mutex
	saves         int
	saveErrors    int
	loads         int
	removals      int
	noopRemovals  int
	catalogErrors int
}

func (m *recordingMetrics) RecordSave(_ context.Context, _ string, _ int64, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if err != nil {
		m.saveErrors++
	}
}

func (m *recordingMetrics) RecordLoad(context.Context, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
}

func (m *recordingMetrics) RecordRemove(_ context.Context, _, noop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removals++
	if noop {
		m.noopRemovals++
	}
}

func (m *recordingMetrics) RecordCatalogError(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogErrors++
}
