// Package memory provides an in-memory storage.Ledger for testing and
// lightweight deployments. Records are kept in a bounded ring and lost
// when the process restarts.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/modelgate/modelgate/pkg/storage"
)

// Ledger is an in-memory usage ledger with bounded retention.
type Ledger struct {
	mu      sync.RWMutex
	byID    map[string]*list.Element
	ring    *list.List // front = newest, back = oldest
	maxSize int        // 0 = unlimited
}

var _ storage.Ledger = (*Ledger)(nil)

// New creates an in-memory ledger. If maxSize is 0, the ledger grows
// without limit. If maxSize > 0, the oldest record is dropped when the
// limit is reached.
func New(maxSize int) *Ledger {
	return &Ledger{
		byID:    make(map[string]*list.Element),
		ring:    list.New(),
		maxSize: maxSize,
	}
}

// Record persists a usage entry.
func (l *Ledger) Record(ctx context.Context, rec *storage.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byID[rec.ID]; exists {
		return storage.ErrConflict
	}

	stored := *rec
	if stored.TenantID == "" {
		stored.TenantID = storage.GetTenant(ctx)
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	if l.maxSize > 0 && l.ring.Len() >= l.maxSize {
		l.dropOldest()
	}

	l.byID[stored.ID] = l.ring.PushFront(&stored)
	return nil
}

// List returns matching records, newest first.
func (l *Ledger) List(ctx context.Context, f storage.Filter) ([]storage.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	scopeFilter(ctx, &f)

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []storage.Record
	for e := l.ring.Front(); e != nil && len(out) < limit; e = e.Next() {
		rec := e.Value.(*storage.Record)
		if f.Matches(rec) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Totals aggregates token counts over matching records.
func (l *Ledger) Totals(ctx context.Context, f storage.Filter) (storage.Totals, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	scopeFilter(ctx, &f)

	var t storage.Totals
	for e := l.ring.Front(); e != nil; e = e.Next() {
		rec := e.Value.(*storage.Record)
		if f.Matches(rec) {
			t.Add(rec)
		}
	}
	return t, nil
}

// HealthCheck always returns nil for the in-memory ledger.
func (l *Ledger) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory ledger.
func (l *Ledger) Close() error {
	return nil
}

// scopeFilter forces the context tenant onto the filter so callers
// cannot read across tenant boundaries.
func scopeFilter(ctx context.Context, f *storage.Filter) {
	if tenant := storage.GetTenant(ctx); tenant != "" {
		f.TenantID = tenant
	}
}

// dropOldest removes the oldest record. Must be called with l.mu held.
func (l *Ledger) dropOldest() {
	back := l.ring.Back()
	if back == nil {
		return
	}
	rec := back.Value.(*storage.Record)
	l.ring.Remove(back)
	delete(l.byID, rec.ID)
}
