package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"edu-ai-generation/internal/domain"
	"edu-ai-generation/internal/domain/model"
	"edu-ai-generation/internal/domain/ports/repository"
)

var _ repository.JobStore = (*JobStore)(nil)

// JobStore keeps job records and idempotency bindings in Redis so any
// instance behind the load balancer sees the same job state. Records are
// written whole (last-writer-wins) and every write of either key refreshes
// the TTL, so the job and its binding expire together.
type JobStore struct {
	client RedisClient
	ttl    time.Duration
}

func NewJobStore(client RedisClient, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JobStore{client: client, ttl: ttl}
}

func (s *JobStore) jobKey(id string) string { return fmt.Sprintf("genjob:%s", id) }
func (s *JobStore) bindKey(k string) string { return fmt.Sprintf("genkey:%s", k) }
func (s *JobStore) Distributed() bool       { return true }

func (s *JobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.client.Get(ctx, s.jobKey(jobID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *JobStore) Put(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.jobKey(job.ID), data, s.ttl); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	// Keep the idempotency binding alive exactly as long as the record.
	if job.IdempotencyKey != "" {
		_ = s.client.Expire(ctx, s.bindKey(job.IdempotencyKey), s.ttl)
	}
	return nil
}

func (s *JobStore) FindByIdempotencyKey(ctx context.Context, key string) (string, error) {
	id, err := s.client.Get(ctx, s.bindKey(key))
	if err != nil {
		if IsNil(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return id, nil
}

func (s *JobStore) BindIdempotencyKey(ctx context.Context, key, jobID string) (string, bool, error) {
	ok, err := s.client.SetNX(ctx, s.bindKey(key), jobID, s.ttl)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if ok {
		return jobID, true, nil
	}
	bound, err := s.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return "", false, err
	}
	return bound, false, nil
}
