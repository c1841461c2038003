// File: internal/infra/memstore/job_store.go
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"edu-ai-generation/internal/domain"
	"edu-ai-generation/internal/domain/model"
	"edu-ai-generation/internal/domain/ports/repository"
)

var _ repository.JobStore = (*JobStore)(nil)

// JobStore is the in-process fallback for environments without a reachable
// shared backend. It is NOT distributed: jobs created here are invisible to
// sibling instances, so the poll endpoint only works on the instance that
// accepted the submission. Development convenience only.
type JobStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	jobs  map[string]entry
	binds map[string]entry
	now   func() time.Time
}

type entry struct {
	value     string // job id for bindings
	job       *model.Job
	expiresAt time.Time
}

func NewJobStore(ttl time.Duration, log *zerolog.Logger) *JobStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log != nil {
		log.Warn().Msg("using in-process job store: jobs are invisible to other instances")
	}
	return &JobStore{
		ttl:   ttl,
		jobs:  map[string]entry{},
		binds: map[string]entry{},
		now:   time.Now,
	}
}

func (s *JobStore) Distributed() bool { return false }

func (s *JobStore) Get(_ context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[jobID]
	if !ok || s.now().After(e.expiresAt) {
		delete(s.jobs, jobID)
		return nil, domain.ErrNotFound
	}
	cp := *e.job
	return &cp, nil
}

func (s *JobStore) Put(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	exp := s.now().Add(s.ttl)
	s.jobs[job.ID] = entry{job: &cp, expiresAt: exp}
	// Binding and record expire together; a write refreshes both.
	if job.IdempotencyKey != "" {
		if b, ok := s.binds[job.IdempotencyKey]; ok && b.value == job.ID {
			b.expiresAt = exp
			s.binds[job.IdempotencyKey] = b
		}
	}
	return nil
}

func (s *JobStore) FindByIdempotencyKey(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.binds[key]
	if !ok || s.now().After(e.expiresAt) {
		delete(s.binds, key)
		return "", domain.ErrNotFound
	}
	return e.value, nil
}

func (s *JobStore) BindIdempotencyKey(_ context.Context, key, jobID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.binds[key]; ok && !s.now().After(e.expiresAt) {
		return e.value, false, nil
	}
	s.binds[key] = entry{value: jobID, expiresAt: s.now().Add(s.ttl)}
	return jobID, true, nil
}

// SetClock replaces the time source; used by expiry tests.
func (s *JobStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
