// Package postgres persists inspection aggregates as JSONB documents.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/vbonduro/sitecheck/internal/domain"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/sitecheck?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

type Store struct {
	db *sql.DB
}

// Open connects to Postgres (falling back to defaultDSN) and ensures the
// inspections table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS inspections (
		property_id TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure inspections table: %w", err)
	}
	return nil
}

// Load returns the stored aggregate, or nil when the property has none.
func (s *Store) Load(ctx context.Context, propertyID string) (*domain.Aggregate, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM inspections WHERE property_id = $1`, propertyID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select inspection: %w", err)
	}
	a, err := domain.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode inspection %s: %w", propertyID, err)
	}
	return a, nil
}

func (s *Store) Save(ctx context.Context, a *domain.Aggregate) error {
	payload, err := domain.Encode(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO inspections(property_id,payload,updated_at) VALUES($1,$2,$3) ON CONFLICT(property_id) DO UPDATE SET payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at`,
		a.PropertyID, payload, a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert inspection %s: %w", a.PropertyID, err)
	}
	return nil
}

// List returns every stored inspection, most recently updated first.
func (s *Store) List(ctx context.Context) ([]domain.InspectionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT property_id, updated_at FROM inspections ORDER BY updated_at DESC, property_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list inspections: %w", err)
	}
	defer rows.Close()

	out := []domain.InspectionSummary{}
	for rows.Next() {
		var sum domain.InspectionSummary
		if err := rows.Scan(&sum.PropertyID, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inspection: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inspections: %w", err)
	}
	return out, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
