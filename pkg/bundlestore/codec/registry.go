package codec

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps format tags to codecs. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates a registry holding the given codecs.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[string]Codec, len(codecs))}
	for _, c := range codecs {
		r.codecs[c.Tag()] = c
	}
	return r
}

// Formats and compressions combined by DefaultRegistry.
var (
	builtinFormats      = []Format{JSON{}, YAML{}}
	builtinCompressions = []Compression{None{}, Snappy{}, Zappy{}}
)

// DefaultRegistry returns a new registry holding every combination of the
// built-in formats and compressions.
func DefaultRegistry() *Registry {
	var codecs []Codec
	for _, f := range builtinFormats {
		for _, c := range builtinCompressions {
			codecs = append(codecs, New(f, c))
		}
	}
	return NewRegistry(codecs...)
}

// Register adds or replaces the codec for its tag.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Tag()] = c
}

// Lookup returns the codec for a format tag.
// Returns ErrUnknownFormat if none is registered.
func (r *Registry) Lookup(tag string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, tag)
	}
	return c, nil
}

// Tags returns the registered format tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.codecs))
	for tag := range r.codecs {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}
