package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelgate/modelgate/pkg/storage"
)

func rec(id, tenant, provider, model string, in, out int) *storage.Record {
	return &storage.Record{
		ID:           id,
		TenantID:     tenant,
		Provider:     provider,
		Model:        model,
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		Status:       "ok",
	}
}

func TestRecordAndList(t *testing.T) {
	l := New(0)
	ctx := context.Background()

	if err := l.Record(ctx, rec("r1", "", "gemini", "gemini-2.5-pro", 10, 20)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, rec("r2", "", "gemini", "gemini-2.5-flash", 5, 5)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := l.List(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].ID != "r2" || got[1].ID != "r1" {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if got[1].CreatedAt.IsZero() {
		t.Error("CreatedAt not filled in")
	}
}

func TestDuplicateIDConflicts(t *testing.T) {
	l := New(0)
	ctx := context.Background()

	if err := l.Record(ctx, rec("r1", "", "gemini", "m", 1, 1)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, rec("r1", "", "gemini", "m", 1, 1)); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestBoundedRetention(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := l.Record(ctx, rec(id, "", "gemini", "m", 1, 1)); err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	got, err := l.List(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "r3" || got[1].ID != "r2" {
		t.Errorf("retained = %s, %s, want r3, r2", got[0].ID, got[1].ID)
	}

	// The evicted ID can be recorded again.
	if err := l.Record(ctx, rec("r1", "", "gemini", "m", 1, 1)); err != nil {
		t.Errorf("re-recording evicted ID: %v", err)
	}
}

func TestFilterByProviderAndModel(t *testing.T) {
	l := New(0)
	ctx := context.Background()

	l.Record(ctx, rec("r1", "", "gemini", "gemini-2.5-pro", 1, 1))
	l.Record(ctx, rec("r2", "", "cloudcode", "claude-sonnet", 1, 1))
	l.Record(ctx, rec("r3", "", "gemini", "gemini-2.5-flash", 1, 1))

	got, _ := l.List(ctx, storage.Filter{Provider: "gemini"})
	if len(got) != 2 {
		t.Errorf("provider filter: len = %d, want 2", len(got))
	}

	got, _ = l.List(ctx, storage.Filter{Model: "claude-sonnet"})
	if len(got) != 1 || got[0].ID != "r2" {
		t.Errorf("model filter: got %+v", got)
	}
}

func TestTenantScoping(t *testing.T) {
	l := New(0)
	ctx := context.Background()

	// Tenant from context is stamped onto the record.
	aliceCtx := storage.SetTenant(ctx, "org-a")
	l.Record(aliceCtx, rec("r1", "", "gemini", "m", 1, 1))
	l.Record(ctx, rec("r2", "org-b", "gemini", "m", 1, 1))

	got, _ := l.List(aliceCtx, storage.Filter{})
	if len(got) != 1 || got[0].ID != "r1" {
		t.Errorf("tenant list: got %+v", got)
	}

	// A scoped context overrides a cross-tenant filter.
	got, _ = l.List(aliceCtx, storage.Filter{TenantID: "org-b"})
	if len(got) != 1 || got[0].ID != "r1" {
		t.Errorf("scoped filter escape: got %+v", got)
	}

	// Unscoped context sees everything.
	got, _ = l.List(ctx, storage.Filter{})
	if len(got) != 2 {
		t.Errorf("unscoped list: len = %d, want 2", len(got))
	}
}

func TestTotals(t *testing.T) {
	l := New(0)
	ctx := context.Background()

	l.Record(ctx, &storage.Record{
		ID: "r1", Provider: "gemini", Model: "m",
		InputTokens: 100, OutputTokens: 50, ThinkingTokens: 20, CachedTokens: 10, TotalTokens: 170,
	})
	l.Record(ctx, &storage.Record{
		ID: "r2", Provider: "gemini", Model: "m",
		InputTokens: 10, OutputTokens: 5, TotalTokens: 15,
	})
	l.Record(ctx, &storage.Record{
		ID: "r3", Provider: "cloudcode", Model: "c",
		InputTokens: 1, OutputTokens: 1, TotalTokens: 2,
	})

	got, err := l.Totals(ctx, storage.Filter{Provider: "gemini"})
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	want := storage.Totals{
		Requests: 2, InputTokens: 110, OutputTokens: 55,
		ThinkingTokens: 20, CachedTokens: 10, TotalTokens: 185,
	}
	if got != want {
		t.Errorf("totals = %+v, want %+v", got, want)
	}
}

func TestTimeWindowFilter(t *testing.T) {
	l := New(0)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		r := rec(id, "", "gemini", "m", 1, 1)
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		l.Record(ctx, r)
	}

	got, _ := l.List(ctx, storage.Filter{
		Since: base.Add(30 * time.Minute),
		Until: base.Add(90 * time.Minute),
	})
	if len(got) != 1 || got[0].ID != "r2" {
		t.Errorf("window filter: got %+v", got)
	}
}
