package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vbonduro/sitecheck/internal/domain"
)

// MemoryStore keeps encoded aggregates in process memory. Stored bytes are
// decoded on every load so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	updated map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte), updated: make(map[string]time.Time)}
}

func (s *MemoryStore) Load(_ context.Context, propertyID string) (*domain.Aggregate, error) {
	s.mu.RLock()
	payload, ok := s.data[propertyID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return domain.Decode(payload)
}

func (s *MemoryStore) Save(_ context.Context, a *domain.Aggregate) error {
	payload, err := domain.Encode(a)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[a.PropertyID] = payload
	s.updated[a.PropertyID] = a.UpdatedAt.UTC()
	s.mu.Unlock()
	return nil
}

// List returns every stored inspection, most recently updated first.
func (s *MemoryStore) List(_ context.Context) ([]domain.InspectionSummary, error) {
	s.mu.RLock()
	out := make([]domain.InspectionSummary, 0, len(s.updated))
	for id, at := range s.updated {
		out = append(out, domain.InspectionSummary{PropertyID: id, UpdatedAt: at})
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.InspectionSummary) int {
		return cmp.Or(b.UpdatedAt.Compare(a.UpdatedAt), cmp.Compare(a.PropertyID, b.PropertyID))
	})
	return out, nil
}
