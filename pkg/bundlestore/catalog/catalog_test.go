package catalog_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catalogFactory creates a catalog instance for testing.
type catalogFactory func(t *testing.T) catalog.Catalog

func entry(bundle, version string) catalog.Entry {
	return catalog.Entry{
		BundleID:  bundle,
		VersionID: version,
		FormatTag: "json.snappy",
		Size:      int64(len(version)),
		SHA256:    "ab" + version,
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC),
	}
}

func versions(entries []catalog.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.VersionID)
	}
	return out
}

// catalogContractTest runs contract tests against any Catalog implementation.
func catalogContractTest(t *testing.T, name string, factory catalogFactory) {
	ctx := context.Background()

	t.Run(name+"/Put_and_Entries", func(t *testing.T) {
		c := factory(t)
		defer c.Close()

		require.NoError(t, c.Put(ctx, entry("prices", "v2")))
		require.NoError(t, c.Put(ctx, entry("prices", "v1")))
		require.NoError(t, c.Put(ctx, entry("other", "v9")))

		entries, err := c.Entries(ctx, "prices")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, []string{"v1", "v2"}, versions(entries))

		got := entries[0]
		want := entry("prices", "v1")
		assert.Equal(t, catalog.StateCurrent, got.State, "empty state defaults to current")
		assert.Equal(t, want.FormatTag, got.FormatTag)
		assert.Equal(t, want.Size, got.Size)
		assert.Equal(t, want.SHA256, got.SHA256)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run(name+"/Entries_Unknown", func(t *testing.T) {
		c := factory(t)
		defer c.Close()

		entries, err := c.Entries(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run(name+"/Put_Replaces", func(t *testing.T) {
		c := factory(t)
		defer c.Close()

		e := entry("prices", "v1")
		require.NoError(t, c.Put(ctx, e))
		e.Size = 99
		require.NoError(t, c.Put(ctx, e))

		entries, err := c.Entries(ctx, "prices")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(99), entries[0].Size)
	})

	t.Run(name+"/Archive_and_Forget", func(t *testing.T) {
		c := factory(t)
		defer c.Close()

		for _, v := range []string{"v1", "v2", "v3"} {
			require.NoError(t, c.Put(ctx, entry("prices", v)))
		}
		require.NoError(t, c.Archive(ctx, "prices", []string{"v1", "v2", "missing"}))
		require.NoError(t, c.Archive(ctx, "prices", nil))

		entries, err := c.Entries(ctx, "prices")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, catalog.StateArchived, entries[0].State)
		assert.Equal(t, catalog.StateArchived, entries[1].State)
		assert.Equal(t, catalog.StateCurrent, entries[2].State)

		require.NoError(t, c.Forget(ctx, "prices", true))
		entries, err = c.Entries(ctx, "prices")
		require.NoError(t, err)
		assert.Equal(t, []string{"v3"}, versions(entries))

		require.NoError(t, c.Forget(ctx, "prices", false))
		entries, err = c.Entries(ctx, "prices")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run(name+"/Delete", func(t *testing.T) {
		c := factory(t)
		defer c.Close()

		require.NoError(t, c.Put(ctx, entry("prices", "v1")))
		require.NoError(t, c.Put(ctx, entry("prices", "v2")))
		require.NoError(t, c.Delete(ctx, "prices", []string{"v1"}))
		require.NoError(t, c.Delete(ctx, "prices", nil))

		entries, err := c.Entries(ctx, "prices")
		require.NoError(t, err)
		assert.Equal(t, []string{"v2"}, versions(entries))
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		c := factory(t)
		require.NoError(t, c.Close())
		assert.NoError(t, c.Close(), "close is idempotent")

		assert.ErrorIs(t, c.Put(ctx, entry("prices", "v1")), catalog.ErrClosed)
		assert.ErrorIs(t, c.Archive(ctx, "prices", []string{"v1"}), catalog.ErrClosed)
		assert.ErrorIs(t, c.Delete(ctx, "prices", []string{"v1"}), catalog.ErrClosed)
		assert.ErrorIs(t, c.Forget(ctx, "prices", false), catalog.ErrClosed)
		_, err := c.Entries(ctx, "prices")
		assert.ErrorIs(t, err, catalog.ErrClosed)
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		c := factory(t)
		defer c.Close()

		const workers = 8
		const perWorker = 10
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					assert.NoError(t, c.Put(ctx, entry("prices", fmt.Sprintf("w%02d-%02d", w, i))))
				}
			}(w)
		}
		wg.Wait()

		entries, err := c.Entries(ctx, "prices")
		require.NoError(t, err)
		assert.Len(t, entries, workers*perWorker)
	})
}

func TestMemoryCatalog(t *testing.T) {
	catalogContractTest(t, "Memory", func(t *testing.T) catalog.Catalog {
		return catalog.NewMemoryCatalog()
	})
}

func TestSQLiteCatalog(t *testing.T) {
	catalogContractTest(t, "SQLite", func(t *testing.T) catalog.Catalog {
		c, err := catalog.NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"))
		require.NoError(t, err)
		return c
	})
}

func TestSQLiteCatalog_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	c1, err := catalog.NewSQLiteCatalog(path)
	require.NoError(t, err)
	require.NoError(t, c1.Put(ctx, entry("prices", "v1")))
	require.NoError(t, c1.Close())

	c2, err := catalog.NewSQLiteCatalog(path)
	require.NoError(t, err)
	defer c2.Close()

	entries, err := c2.Entries(ctx, "prices")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, versions(entries))
}

func TestSQLiteCatalog_InvalidPath(t *testing.T) {
	_, err := catalog.NewSQLiteCatalog("/nonexistent/path/catalog.db")
	assert.Error(t, err)
}
