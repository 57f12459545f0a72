/*
Package bundlestore provides a local, filesystem-backed store of versioned
tabular datasets.

# Overview

A bundle is a named directory under the storage root. It holds exactly one
current artifact plus an archive/ subdirectory of superseded versions:

	<root>/
	    prices/
	        20240301-143000-123456.json.snappy
	        archive/
	            20240229-090000-000001.json.snappy

Artifact names are <version id>.<format tag>. Version ids are UTC
timestamps (see package ident) so lexical order is chronological order.
The format tag names the serialization and compression (see package codec).

# Basic Usage

	store := bundlestore.New(bundlestore.WithRoot("/var/cache/bundles"))

	tbl := table.MustNew(
	    table.Strings("ticker", "AAPL", "MSFT"),
	    table.Float64s("close", 189.5, 410.2),
	)

	path, err := store.Save(ctx, tbl, bundlestore.WithBundleID("prices"))
	if err != nil {
	    log.Fatal(err)
	}

	latest, err := store.Load(ctx, "prices")

Save encodes into a dot-prefixed staging file in the bundle directory,
then archives (or deletes) the old current version and renames the staging
file into place. A failed encode leaves the bundle unchanged.

# Root Resolution

Without WithRoot the root is resolved on every call: the BUNDLESTORE_ROOT
environment variable, then the platform cache directory. Per-call overrides
are IntoRoot for Save and FromRoot for everything else.

# Errors

All failures are typed and match sentinels with errors.Is:

	_, err := store.Load(ctx, "prices")
	var amb *bundlestore.AmbiguousBundleError
	switch {
	case errors.Is(err, bundlestore.ErrBundleNotFound):
	    // never saved
	case errors.As(err, &amb):
	    log.Printf("%d current versions in %s", amb.Count, amb.Path)
	}

# Concurrency

Save and Remove hold a per-bundle lock; different bundles never block each
other. The default lock is process-wide. Writers in several processes must
all use FlockLocker (unix only). Load takes no lock.

# Observability

Logging uses log/slog. Metrics and traces go through OpenTelemetry when
enabled with WithMetrics and WithSpans. A Catalog (package catalog) can
index every artifact with its size and SHA-256. Catalog failures never fail
a store call; writes that find SQLite busy are retried (see WithCatalogRetry).
*/
package bundlestore
