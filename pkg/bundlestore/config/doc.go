/*
Package config provides type-safe configuration extraction from map[string]any
and the typed Settings used to build a bundle store.

# Basic Usage

	cfg := config.New(map[string]any{
	    "root":    "/var/cache/bundles",
	    "archive": false,
	})

	root := cfg.String("root", "")       // "/var/cache/bundles"
	archive := cfg.Bool("archive", true) // false

All accessors return the default value if the key is missing or the value
cannot be converted to the requested type.

# File Loading

	settings, err := config.LoadSettings("bundlestore.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	store, err := bundlestore.FromSettings(settings)

FromFile picks the parser by extension (.yaml, .yml, .json) and names the
file in its errors; FromReader takes the format explicitly.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
