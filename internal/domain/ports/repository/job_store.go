package repository

import (
	"context"

	"edu-ai-generation/internal/domain/model"
)

// JobStore is the shared record of job state, visible from every server
// instance. Implementations write whole job records (read-modify-write,
// last-writer-wins) and refresh the TTL on every write, never on read.
// Expiry removes the job record and its idempotency binding together.
type JobStore interface {
	Get(ctx context.Context, jobID string) (*model.Job, error)
	Put(ctx context.Context, job *model.Job) error

	// FindByIdempotencyKey resolves key -> job id, or domain.ErrNotFound.
	FindByIdempotencyKey(ctx context.Context, key string) (string, error)

	// BindIdempotencyKey claims key for jobID. First writer wins: when the
	// key is already bound it returns the bound job id and false.
	BindIdempotencyKey(ctx context.Context, key, jobID string) (string, bool, error)

	// Distributed reports whether the store is shared across instances.
	// The in-process fallback returns false; callers must surface that.
	Distributed() bool
}
