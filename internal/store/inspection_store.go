package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vbonduro/sitecheck/internal/domain"
)

// InspectionStore keeps one encoded aggregate per property in SQLite.
type InspectionStore struct {
	db *sql.DB
}

func NewInspectionStore(db *sql.DB) *InspectionStore {
	return &InspectionStore{db: db}
}

// Load returns the stored aggregate, or nil when the property has none.
func (s *InspectionStore) Load(ctx context.Context, propertyID string) (*domain.Aggregate, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM inspections WHERE property_id = ?
	`, propertyID).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inspection: %w", err)
	}

	a, err := domain.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to load inspection %s: %w", propertyID, err)
	}
	return a, nil
}

// Save replaces the stored aggregate. The last write wins.
func (s *InspectionStore) Save(ctx context.Context, a *domain.Aggregate) error {
	payload, err := domain.Encode(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inspections (property_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(property_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, a.PropertyID, string(payload), a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save inspection: %w", err)
	}
	return nil
}

// List returns every stored inspection, most recently updated first.
func (s *InspectionStore) List(ctx context.Context) ([]domain.InspectionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT property_id, updated_at FROM inspections ORDER BY updated_at DESC, property_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}
	defer rows.Close()

	out := []domain.InspectionSummary{}
	for rows.Next() {
		var sum domain.InspectionSummary
		if err := rows.Scan(&sum.PropertyID, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inspection: %w", err)
		}
		out = append(out, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inspections: %w", err)
	}

	return out, nil
}
