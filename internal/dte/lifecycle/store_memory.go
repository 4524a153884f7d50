package lifecycle

import (
	"context"
	"sync"
	"time"

	"facturasv/internal/dte/models"
	"facturasv/pkg/domain"
	"facturasv/pkg/platform/sentinel"
)

// InMemoryStore implements Store with a mutex-guarded map. Suitable for
// tests and single-process deployments; use PostgresStore in production.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.GenerationCode]*models.LifecycleRecord
}

// NewInMemoryStore creates an empty in-memory lifecycle store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.GenerationCode]*models.LifecycleRecord)}
}

func (s *InMemoryStore) Create(ctx context.Context, rec *models.LifecycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.DocumentID]; exists {
		return sentinel.ErrConflict
	}
	cp := *rec
	s.records[rec.DocumentID] = &cp
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, id domain.GenerationCode) (*models.LifecycleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) CompareAndSwap(ctx context.Context, id domain.GenerationCode, expected, next models.State, enteredAt time.Time, meta models.TransitionMeta) (*models.LifecycleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if rec.State != expected {
		return nil, sentinel.ErrConflict
	}

	rec.State = next
	rec.StateEnteredAt = enteredAt
	rec.LastError = meta.LastError
	if meta.AuthorityReference != "" {
		rec.AuthorityReference = meta.AuthorityReference
	}
	rec.AttemptCount += meta.AttemptDelta

	cp := *rec
	return &cp, nil
}
