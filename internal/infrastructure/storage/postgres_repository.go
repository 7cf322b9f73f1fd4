package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"PropDashboards/internal/domain"
	"PropDashboards/internal/ports"
)

const dashboardsTable = "generated_dashboards"

const schema = `CREATE TABLE IF NOT EXISTS generated_dashboards (
    category     TEXT        NOT NULL,
    week         TEXT        NOT NULL,
    firm         TEXT        NOT NULL,
    filename     TEXT        NOT NULL,
    url          TEXT        NOT NULL DEFAULT '',
    fingerprint  TEXT        NOT NULL,
    size         BIGINT      NOT NULL DEFAULT 0,
    status       TEXT        NOT NULL,
    generated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (category, week, firm)
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists generated dashboards into Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.DashboardRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open connects to Postgres through lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the history table when it is missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Fingerprints returns the stored fingerprint per firm for the given week.
func (r *PostgresRepository) Fingerprints(ctx context.Context, category, week string, firms []string) (map[string]string, error) {
	if r.db == nil || len(firms) == 0 {
		return map[string]string{}, nil
	}

	query, args, err := fingerprintsQuery(category, week, firms)
	if err != nil {
		return nil, fmt.Errorf("build fingerprints query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var firm, digest string
		if err := rows.Scan(&firm, &digest); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		result[firm] = digest
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// Save upserts the dashboard row keyed by category, week and firm.
func (r *PostgresRepository) Save(ctx context.Context, dashboard domain.GeneratedDashboard) error {
	if r.db == nil {
		return nil
	}

	query, args, err := saveQuery(dashboard)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert dashboard: %w", err)
	}
	return nil
}

// List returns the stored dashboards of one category and week ordered by firm.
func (r *PostgresRepository) List(ctx context.Context, category, week string) ([]domain.GeneratedDashboard, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := listQuery(category, week)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dashboards: %w", err)
	}
	defer rows.Close()

	var out []domain.GeneratedDashboard
	for rows.Next() {
		var d domain.GeneratedDashboard
		var status string
		if err := rows.Scan(&d.Firm, &d.Category, &d.Week, &d.Filename, &d.URL, &d.Fingerprint, &d.Size, &status, &d.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan dashboard: %w", err)
		}
		d.Status = domain.GenerationStatus(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func fingerprintsQuery(category, week string, firms []string) (string, []interface{}, error) {
	return psql.Select("firm", "fingerprint").
		From(dashboardsTable).
		Where(sq.Eq{"category": category}).
		Where(sq.Eq{"week": week}).
		Where("firm = ANY(?)", pq.StringArray(firms)).
		ToSql()
}

func saveQuery(d domain.GeneratedDashboard) (string, []interface{}, error) {
	return psql.Insert(dashboardsTable).
		Columns("category", "week", "firm", "filename", "url", "fingerprint", "size", "status", "generated_at").
		Values(d.Category, d.Week, d.Firm, d.Filename, d.URL, d.Fingerprint, d.Size, string(d.Status), d.GeneratedAt).
		Suffix(`ON CONFLICT (category, week, firm) DO UPDATE
              SET filename = EXCLUDED.filename,
                  url = EXCLUDED.url,
                  fingerprint = EXCLUDED.fingerprint,
                  size = EXCLUDED.size,
                  status = EXCLUDED.status,
                  generated_at = EXCLUDED.generated_at,
                  updated_at = NOW()`).
		ToSql()
}

func listQuery(category, week string) (string, []interface{}, error) {
	return psql.Select("firm", "category", "week", "filename", "url", "fingerprint", "size", "status", "generated_at").
		From(dashboardsTable).
		Where(sq.Eq{"category": category}).
		Where(sq.Eq{"week": week}).
		OrderBy("firm").
		ToSql()
}
