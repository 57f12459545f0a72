// Package rootpath resolves the storage root directory for bundles.
//
// Resolution order:
//  1. an explicit override passed by the caller;
//  2. the BUNDLESTORE_ROOT environment variable, used verbatim;
//  3. a per-platform cache location under the user's home.
//
// No existence check is made on the resolved path.
package rootpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// EnvRoot overrides the storage root.
	EnvRoot = "BUNDLESTORE_ROOT"

	// dirName is the directory created under the platform cache location.
	dirName = "bundlestore"
)

// ErrConfiguration is the sentinel matched by every ConfigurationError.
var ErrConfiguration = errors.New("storage root cannot be resolved")

// ConfigurationError reports why no storage root could be determined.
type ConfigurationError struct {
	// Platform is the GOOS value consulted.
	Platform string
	// Reason describes what was missing.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s on %s: %s (set %s)", ErrConfiguration, e.Platform, e.Reason, EnvRoot)
}

// Unwrap returns ErrConfiguration for errors.Is support.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Resolver determines the storage root. The zero value is not usable; call New.
type Resolver struct {
	lookup   LookupFunc
	platform string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnv sets the environment lookup. Default: os.LookupEnv.
func WithEnv(lookup LookupFunc) Option {
	return func(r *Resolver) {
		if lookup != nil {
			r.lookup = lookup
		}
	}
}

// WithPlatform sets the GOOS value used for the fallback. Default: runtime.GOOS.
func WithPlatform(goos string) Option {
	return func(r *Resolver) {
		r.platform = goos
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{lookup: os.LookupEnv, platform: runtime.GOOS}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns override when non-empty, otherwise the environment
// override, otherwise the platform default.
func (r *Resolver) Resolve(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if v, ok := r.lookup(EnvRoot); ok && v != "" {
		return v, nil
	}
	return r.platformDefault()
}

func (r *Resolver) env(key string) string {
	v, _ := r.lookup(key)
	return v
}

func (r *Resolver) platformDefault() (string, error) {
	switch r.platform {
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly", "solaris", "illumos":
		if xdg := r.env("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, dirName), nil
		}
		if home := r.env("HOME"); home != "" {
			return filepath.Join(home, ".cache", dirName), nil
		}
		return "", &ConfigurationError{Platform: r.platform, Reason: "neither XDG_CACHE_HOME nor HOME is set"}
	case "darwin":
		if home := r.env("HOME"); home != "" {
			return filepath.Join(home, "Library", "Caches", dirName), nil
		}
		return "", &ConfigurationError{Platform: r.platform, Reason: "HOME is not set"}
	case "windows":
		if local := r.env("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, dirName), nil
		}
		return "", &ConfigurationError{Platform: r.platform, Reason: "LOCALAPPDATA is not set"}
	}
	return "", &ConfigurationError{Platform: r.platform, Reason: "no default location for this platform"}
}
