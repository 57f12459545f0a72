package config

import (
	"errors"
	"fmt"
	"strings"
)

// Locking modes accepted by Settings.Locking.
const (
	LockingProcess = "process"
	LockingFlock   = "flock"
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the typed view of a bundle store configuration file.
//
//	root: /var/cache/bundles
//	format: json.snappy
//	archive: true
//	locking: flock
//	log:
//	  level: info
//	  format: json
//	catalog:
//	  path: /var/cache/bundles/catalog.db
//	  retries: 3
//	metrics: true
//	tracing: false
type Settings struct {
	// Root is the storage root. Empty means resolve from the environment
	// at call time.
	Root string

	// Format is the default format tag for Save.
	Format string

	// Archive controls whether Save keeps superseded versions by default.
	Archive bool

	// Locking is LockingProcess or LockingFlock.
	Locking string

	LogLevel  string
	LogFormat string

	// CatalogPath is the SQLite catalog file. Empty disables the catalog.
	CatalogPath string

	// CatalogRetries is the attempt limit for catalog writes that find the
	// database busy. Zero keeps the store default.
	CatalogRetries int

	Metrics bool
	Tracing bool
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		Format:    "json.snappy",
		Archive:   true,
		Locking:   LockingProcess,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// SettingsFrom extracts Settings from a Config, falling back to
// DefaultSettings for missing keys.
func SettingsFrom(c Config) (Settings, error) {
	d := DefaultSettings()
	log := c.Section("log")
	s := Settings{
		Root:           c.String("root", d.Root),
		Format:         c.String("format", d.Format),
		Archive:        c.Bool("archive", d.Archive),
		Locking:        strings.ToLower(c.String("locking", d.Locking)),
		LogLevel:       log.String("level", d.LogLevel),
		LogFormat:      log.String("format", d.LogFormat),
		CatalogPath:    c.Section("catalog").String("path", d.CatalogPath),
		CatalogRetries: c.Section("catalog").Int("retries", d.CatalogRetries),
		Metrics:        c.Bool("metrics", d.Metrics),
		Tracing:        c.Bool("tracing", d.Tracing),
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads a YAML or JSON file and returns its Settings.
func LoadSettings(path string) (Settings, error) {
	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	s, err := SettingsFrom(c)
	if err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the fields that have a closed set of values.
func (s Settings) Validate() error {
	switch s.Locking {
	case LockingProcess, LockingFlock:
	default:
		return fmt.Errorf("%w: locking %q", ErrInvalidSettings, s.Locking)
	}
	if s.Format == "" {
		return fmt.Errorf("%w: empty format", ErrInvalidSettings)
	}
	if s.CatalogRetries < 0 {
		return fmt.Errorf("%w: negative catalog retries", ErrInvalidSettings)
	}
	return nil
}
