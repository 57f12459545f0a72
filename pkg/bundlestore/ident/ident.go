// Package ident generates time-derived identifiers used as default bundle
// ids and as version filename stems.
//
// An identifier has the fixed-width form YYYYMMDD-HHMMSS-ffffff (UTC,
// microsecond tick), so lexical order equals chronological order. Two
// identifiers drawn within the same microsecond are equal; callers that need
// uniqueness must detect the collision themselves.
package ident

import (
	"fmt"
	"sync"
	"time"
)

const (
	// Len is the length of every identifier.
	Len = len("20060102-150405-000000")

	secondLayout = "20060102-150405"
)

// Generator produces non-decreasing identifiers from a clock.
// It is safe for concurrent use.
type Generator struct {
	mu    sync.Mutex
	clock func() time.Time
	last  time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the time source. Default: time.Now.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{clock: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next returns the identifier for the current instant. If the clock has
// moved backwards since the previous call, the previous instant is reused.
func (g *Generator) Next() string {
	g.mu.Lock()
	now := g.clock().UTC().Truncate(time.Microsecond)
	if now.Before(g.last) {
		now = g.last
	}
	g.last = now
	g.mu.Unlock()
	return Format(now)
}

var defaultGenerator = New()

// Next returns an identifier from the package default generator.
func Next() string {
	return defaultGenerator.Next()
}

// Format renders t as an identifier.
func Format(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s-%06d", t.Format(secondLayout), t.Nanosecond()/int(time.Microsecond))
}

// Parse decodes an identifier back into its UTC instant.
func Parse(s string) (time.Time, error) {
	if len(s) != Len || s[15] != '-' {
		return time.Time{}, fmt.Errorf("invalid identifier %q", s)
	}
	t, err := time.Parse(secondLayout, s[:15])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	var micros int
	for _, r := range s[16:] {
		if r < '0' || r > '9' {
			return time.Time{}, fmt.Errorf("invalid identifier %q: bad sub-second field", s)
		}
		micros = micros*10 + int(r-'0')
	}
	return t.Add(time.Duration(micros) * time.Microsecond), nil
}

// Valid reports whether s is a well-formed identifier.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
