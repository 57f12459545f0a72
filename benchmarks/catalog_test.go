package benchmarks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore/catalog"
)

func BenchmarkMemoryCatalog_Put(b *testing.B) {
	benchmarkPut(b, catalog.NewMemoryCatalog())
}

func BenchmarkSQLiteCatalog_Put(b *testing.B) {
	cat, err := catalog.NewSQLiteCatalog(b.TempDir() + "/catalog.db")
	if err != nil {
		b.Fatal(err)
	}
	defer cat.Close()
	benchmarkPut(b, cat)
}

func BenchmarkSQLiteCatalog_Entries(b *testing.B) {
	cat, err := catalog.NewSQLiteCatalog(b.TempDir() + "/catalog.db")
	if err != nil {
		b.Fatal(err)
	}
	defer cat.Close()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_ = cat.Put(ctx, createEntry(i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cat.Entries(ctx, "bench"); err != nil {
			b.Fatal(err)
		}
	}
}

// Helper functions

func benchmarkPut(b *testing.B, cat catalog.Catalog) {
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := cat.Put(ctx, createEntry(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func createEntry(i int) catalog.Entry {
	return catalog.Entry{
		BundleID:  "bench",
		VersionID: fmt.Sprintf("20240101-000000-%06d", i%1_000_000),
		FormatTag: "json.snappy",
		Size:      4096,
		SHA256:    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		State:     catalog.StateCurrent,
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
}
