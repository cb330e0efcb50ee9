// Package cooldown gates upstream channels after failures.
//
// Each (provider, model) pair carries an independent exponential backoff:
// the first failure blocks the channel for the base interval, each
// consecutive failure doubles it up to the cap, and any success resets
// the channel to healthy. The gate only advises; callers decide whether
// a blocked channel fails the request or falls through to another route.
package cooldown

import (
	"log/slog"
	"sync"
	"time"
)

// Gate tracks per-channel failure state.
type Gate struct {
	base time.Duration
	max  time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	// now is swappable for tests.
	now func() time.Time
}

type entry struct {
	failures int
	until    time.Time
}

// New creates a gate with the given base interval and cap.
func New(base, max time.Duration) *Gate {
	return &Gate{
		base:    base,
		max:     max,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func key(provider, model string) string {
	return provider + "/" + model
}

// Allow reports whether the channel may be used right now.
func (g *Gate) Allow(provider, model string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key(provider, model)]
	if !ok {
		return true
	}
	return !g.now().Before(e.until)
}

// Retry returns how long until the channel opens again; zero when it is
// already open.
func (g *Gate) Retry(provider, model string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key(provider, model)]
	if !ok {
		return 0
	}
	if d := e.until.Sub(g.now()); d > 0 {
		return d
	}
	return 0
}

// Failure records an upstream failure and extends the channel's backoff.
func (g *Gate) Failure(provider, model string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := key(provider, model)
	e, ok := g.entries[k]
	if !ok {
		e = &entry{}
		g.entries[k] = e
	}
	e.failures++

	backoff := g.base << (e.failures - 1)
	if backoff > g.max || backoff <= 0 {
		backoff = g.max
	}
	e.until = g.now().Add(backoff)

	slog.Warn("channel cooling down",
		"provider", provider,
		"model", model,
		"failures", e.failures,
		"backoff", backoff,
	)
}

// Success resets the channel to healthy.
func (g *Gate) Success(provider, model string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key(provider, model))
}
