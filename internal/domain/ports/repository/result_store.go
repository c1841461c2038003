package repository

import (
	"context"

	"edu-ai-generation/internal/domain/model"
)

// ResultStore is the content-storage collaborator boundary: it owns finished
// generation artifacts and serves them by result id.
type ResultStore interface {
	Save(ctx context.Context, res *model.GenerationResult) error
	Get(ctx context.Context, resultID string) (*model.GenerationResult, error)
}
