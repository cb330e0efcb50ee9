package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/modelgate/modelgate/pkg/storage"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Ledger.
// Tests are skipped if a container runtime is not available.
func setupTestDB(t *testing.T) *Ledger {
	t.Helper()

	if testing.Short() {
		t.Skip("short mode, skipping PostgreSQL integration tests")
	}
	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("modelgate_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	ledger, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating ledger: %v", err)
	}

	t.Cleanup(func() {
		ledger.Close()
	})

	return ledger
}

func makeTestRecord(id string) *storage.Record {
	return &storage.Record{
		ID:           id,
		Subject:      "alice",
		Provider:     "gemini",
		Model:        "gemini-2.5-pro",
		InputTokens:  100,
		OutputTokens: 50,
		TotalTokens:  150,
		Status:       "ok",
		Latency:      250 * time.Millisecond,
	}
}

func TestPostgres_RecordAndList(t *testing.T) {
	ledger := setupTestDB(t)
	ctx := context.Background()

	rec := makeTestRecord(fmt.Sprintf("rec_%d", time.Now().UnixNano()))
	if err := ledger.Record(ctx, rec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := ledger.List(ctx, storage.Filter{Provider: "gemini"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != rec.ID || got[0].Model != "gemini-2.5-pro" || got[0].InputTokens != 100 {
		t.Errorf("record = %+v", got[0])
	}
	if got[0].Latency != 250*time.Millisecond {
		t.Errorf("Latency = %v, want 250ms", got[0].Latency)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not filled in")
	}
}

func TestPostgres_DuplicateRecord(t *testing.T) {
	ledger := setupTestDB(t)
	ctx := context.Background()

	rec := makeTestRecord(fmt.Sprintf("rec_dup_%d", time.Now().UnixNano()))
	if err := ledger.Record(ctx, rec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if err := ledger.Record(ctx, rec); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestPostgres_Totals(t *testing.T) {
	ledger := setupTestDB(t)
	ctx := context.Background()

	ts := time.Now().UnixNano()
	a := makeTestRecord(fmt.Sprintf("rec_tot_a_%d", ts))
	b := makeTestRecord(fmt.Sprintf("rec_tot_b_%d", ts))
	b.ThinkingTokens = 30
	c := makeTestRecord(fmt.Sprintf("rec_tot_c_%d", ts))
	c.Provider = "cloudcode"
	c.Model = "claude-sonnet"

	for _, r := range []*storage.Record{a, b, c} {
		if err := ledger.Record(ctx, r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := ledger.Totals(ctx, storage.Filter{Provider: "gemini"})
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if got.Requests != 2 || got.InputTokens != 200 || got.OutputTokens != 100 || got.ThinkingTokens != 30 {
		t.Errorf("totals = %+v", got)
	}
}

func TestPostgres_TenantIsolation(t *testing.T) {
	ledger := setupTestDB(t)

	ctxA := storage.SetTenant(context.Background(), "tenant-a")
	ctxB := storage.SetTenant(context.Background(), "tenant-b")

	rec := makeTestRecord(fmt.Sprintf("rec_tenant_%d", time.Now().UnixNano()))
	if err := ledger.Record(ctxA, rec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := ledger.List(ctxA, storage.Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("tenant A sees %d records, want 1", len(got))
	}
	if got[0].TenantID != "tenant-a" {
		t.Errorf("TenantID = %q, want tenant-a", got[0].TenantID)
	}

	got, err = ledger.List(ctxB, storage.Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 0 {
		t.Error("tenant B should not see tenant A's records")
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	ledger := setupTestDB(t)
	if err := ledger.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
