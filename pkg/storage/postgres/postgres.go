// Package postgres provides a PostgreSQL-backed storage.Ledger.
// It uses pgx/v5 for connection pooling and applies embedded schema
// migrations on startup when configured to.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modelgate/modelgate/pkg/storage"
)

// Ledger is a PostgreSQL-backed usage ledger.
type Ledger struct {
	pool *pgxpool.Pool
}

var _ storage.Ledger = (*Ledger)(nil)

// New creates a PostgreSQL ledger with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	l := &Ledger{pool: pool}

	if cfg.MigrateOnStart {
		if err := l.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return l, nil
}

// Record persists a usage entry.
func (l *Ledger) Record(ctx context.Context, rec *storage.Record) error {
	tenantID := rec.TenantID
	if tenantID == "" {
		tenantID = storage.GetTenant(ctx)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO usage_records (
			id, tenant_id, subject, provider, model, streamed,
			input_tokens, output_tokens, thinking_tokens, cached_tokens, total_tokens,
			status, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		rec.ID, tenantID, rec.Subject, rec.Provider, rec.Model, rec.Streamed,
		rec.InputTokens, rec.OutputTokens, rec.ThinkingTokens, rec.CachedTokens, rec.TotalTokens,
		rec.Status, rec.Latency.Milliseconds(), createdAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting usage record: %w", err)
	}

	return nil
}

// List returns matching records, newest first.
func (l *Ledger) List(ctx context.Context, f storage.Filter) ([]storage.Record, error) {
	where, args := buildWhere(ctx, f)

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, tenant_id, subject, provider, model, streamed,
		       input_tokens, output_tokens, thinking_tokens, cached_tokens, total_tokens,
		       status, latency_ms, created_at
		FROM usage_records
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, where, len(args))

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var rec storage.Record
		var latencyMs int64
		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.Subject, &rec.Provider, &rec.Model, &rec.Streamed,
			&rec.InputTokens, &rec.OutputTokens, &rec.ThinkingTokens, &rec.CachedTokens, &rec.TotalTokens,
			&rec.Status, &latencyMs, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		rec.Latency = time.Duration(latencyMs) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading usage records: %w", err)
	}

	return out, nil
}

// Totals aggregates token counts over matching records.
func (l *Ledger) Totals(ctx context.Context, f storage.Filter) (storage.Totals, error) {
	where, args := buildWhere(ctx, f)

	query := fmt.Sprintf(`
		SELECT COUNT(*),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(thinking_tokens), 0),
		       COALESCE(SUM(cached_tokens), 0),
		       COALESCE(SUM(total_tokens), 0)
		FROM usage_records
		%s
	`, where)

	var t storage.Totals
	err := l.pool.QueryRow(ctx, query, args...).Scan(
		&t.Requests, &t.InputTokens, &t.OutputTokens,
		&t.ThinkingTokens, &t.CachedTokens, &t.TotalTokens,
	)
	if err != nil {
		return storage.Totals{}, fmt.Errorf("aggregating usage: %w", err)
	}

	return t, nil
}

// HealthCheck verifies the database connection.
func (l *Ledger) HealthCheck(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

// Close releases the connection pool.
func (l *Ledger) Close() error {
	l.pool.Close()
	return nil
}

// buildWhere translates a filter into a WHERE clause. The context
// tenant overrides the filter so callers cannot read across tenant
// boundaries.
func buildWhere(ctx context.Context, f storage.Filter) (string, []any) {
	if tenant := storage.GetTenant(ctx); tenant != "" {
		f.TenantID = tenant
	}

	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.TenantID != "" {
		add("tenant_id = $%d", f.TenantID)
	}
	if f.Subject != "" {
		add("subject = $%d", f.Subject)
	}
	if f.Provider != "" {
		add("provider = $%d", f.Provider)
	}
	if f.Model != "" {
		add("model = $%d", f.Model)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at < $%d", f.Until)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
