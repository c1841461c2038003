package memstore

import (
	"context"
	"sync"

	"edu-ai-generation/internal/domain"
	"edu-ai-generation/internal/domain/model"
	"edu-ai-generation/internal/domain/ports/repository"
)

var _ repository.ResultStore = (*ResultStore)(nil)

// ResultStore is the in-memory result collaborator for dev and tests.
type ResultStore struct {
	mu      sync.Mutex
	results map[string]*model.GenerationResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: map[string]*model.GenerationResult{}}
}

func (s *ResultStore) Save(_ context.Context, res *model.GenerationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *res
	cp.Units = append([]model.ContentUnit(nil), res.Units...)
	s.results[res.ID] = &cp
	return nil
}

func (s *ResultStore) Get(_ context.Context, resultID string) (*model.GenerationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[resultID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *res
	return &cp, nil
}
