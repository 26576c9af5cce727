package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vbonduro/sitecheck/internal/domain"
)

// PhotoStore records which storage key holds the photo of an evaluation.
type PhotoStore struct {
	db *sql.DB
}

func NewPhotoStore(db *sql.DB) *PhotoStore {
	return &PhotoStore{db: db}
}

// Put stores photo metadata, replacing any earlier photo of the same
// evaluation. It returns the replaced photo so its object can be removed.
func (s *PhotoStore) Put(ctx context.Context, p domain.Photo) (*domain.Photo, error) {
	prev, err := s.Get(ctx, p.PropertyID, p.EvaluationID)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO photos (property_id, evaluation_id, item_id, storage_key, content_type, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(property_id, evaluation_id) DO UPDATE SET
			item_id = excluded.item_id,
			storage_key = excluded.storage_key,
			content_type = excluded.content_type,
			uploaded_at = excluded.uploaded_at
	`, p.PropertyID, p.EvaluationID, p.ItemID, p.StorageKey, p.ContentType, p.UploadedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}

	if prev != nil && prev.StorageKey == p.StorageKey {
		return nil, nil
	}
	return prev, nil
}

func (s *PhotoStore) Get(ctx context.Context, propertyID, evaluationID string) (*domain.Photo, error) {
	photo := &domain.Photo{}
	err := s.db.QueryRowContext(ctx, `
		SELECT property_id, evaluation_id, item_id, storage_key, content_type, uploaded_at
		FROM photos WHERE property_id = ? AND evaluation_id = ?
	`, propertyID, evaluationID).Scan(&photo.PropertyID, &photo.EvaluationID, &photo.ItemID,
		&photo.StorageKey, &photo.ContentType, &photo.UploadedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}

	return photo, nil
}

// Delete removes the photo of an evaluation and returns it for object
// cleanup. It returns nil when there was none.
func (s *PhotoStore) Delete(ctx context.Context, propertyID, evaluationID string) (*domain.Photo, error) {
	photo, err := s.Get(ctx, propertyID, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get photo for evaluation: %w", err)
	}
	if photo == nil {
		return nil, nil
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM photos WHERE property_id = ? AND evaluation_id = ?
	`, propertyID, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete photo: %w", err)
	}

	return photo, nil
}
