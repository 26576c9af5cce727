package domain

import "time"

// Photo is the stored defect photo of one evaluation.
type Photo struct {
	PropertyID   string    `json:"propertyId"`
	ItemID       string    `json:"itemId"`
	EvaluationID string    `json:"evaluationId"`
	StorageKey   string    `json:"storageKey"`
	ContentType  string    `json:"contentType"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
