package storage

import (
	"context"
	"time"
)

// Record is a single usage-ledger entry: one upstream request, its
// routing, and the token counts the upstream reported for it.
type Record struct {
	// ID uniquely identifies the record (typically the response ID).
	ID string

	// TenantID scopes the record; empty means unscoped.
	TenantID string

	// Subject is the authenticated caller that issued the request.
	Subject string

	// Provider is the upstream dialect that served the request.
	Provider string

	// Model is the upstream model after route rewriting.
	Model string

	// Streamed reports whether the request used the streaming endpoint.
	Streamed bool

	InputTokens    int
	OutputTokens   int
	ThinkingTokens int
	CachedTokens   int
	TotalTokens    int

	// Status is "ok" or "error".
	Status string

	// Latency is the wall-clock duration of the upstream exchange.
	Latency time.Duration

	// CreatedAt is when the record was written. Backends fill it in
	// when zero.
	CreatedAt time.Time
}

// Filter narrows ledger queries. Zero fields match everything.
type Filter struct {
	TenantID string
	Subject  string
	Provider string
	Model    string
	Since    time.Time
	Until    time.Time

	// Limit caps the number of records returned by List; 0 means the
	// backend default.
	Limit int
}

// Totals aggregates token consumption over a set of records.
type Totals struct {
	Requests       int64
	InputTokens    int64
	OutputTokens   int64
	ThinkingTokens int64
	CachedTokens   int64
	TotalTokens    int64
}

// Ledger records and queries per-request usage.
type Ledger interface {
	// Record persists a usage entry. Returns ErrConflict if a record
	// with the same ID already exists.
	Record(ctx context.Context, rec *Record) error

	// List returns matching records, newest first.
	List(ctx context.Context, f Filter) ([]Record, error)

	// Totals aggregates token counts over matching records.
	Totals(ctx context.Context, f Filter) (Totals, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Add folds a record into the running totals.
func (t *Totals) Add(rec *Record) {
	t.Requests++
	t.InputTokens += int64(rec.InputTokens)
	t.OutputTokens += int64(rec.OutputTokens)
	t.ThinkingTokens += int64(rec.ThinkingTokens)
	t.CachedTokens += int64(rec.CachedTokens)
	t.TotalTokens += int64(rec.TotalTokens)
}

// Matches reports whether a record satisfies the filter. Shared by
// in-memory backends; SQL backends translate the filter instead.
func (f Filter) Matches(rec *Record) bool {
	if f.TenantID != "" && rec.TenantID != f.TenantID {
		return false
	}
	if f.Subject != "" && rec.Subject != f.Subject {
		return false
	}
	if f.Provider != "" && rec.Provider != f.Provider {
		return false
	}
	if f.Model != "" && rec.Model != f.Model {
		return false
	}
	if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !rec.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}
