package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"edu-ai-generation/internal/domain"
	"edu-ai-generation/internal/domain/model"
	"edu-ai-generation/internal/domain/ports/repository"
)

var _ repository.ResultStore = (*resultStore)(nil)

// resultStore persists finished generation artifacts. Units are stored as one
// JSONB document; the artifact is immutable once written, so a repeated save
// of the same id just overwrites with identical content.
type resultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *resultStore {
	return &resultStore{pool: pool}
}

func (r *resultStore) Save(ctx context.Context, res *model.GenerationResult) error {
	units, err := json.Marshal(res.Units)
	if err != nil {
		return err
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}

	const q = `
INSERT INTO generation_results (id, job_id, kind, topic, units, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  units = EXCLUDED.units,
  created_at = EXCLUDED.created_at;`

	_, err = r.pool.Exec(ctx, q, res.ID, res.JobID, res.Kind, res.Topic, units, res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return errors.New("result store: " + pgErr.Message)
		}
		return err
	}
	return nil
}

func (r *resultStore) Get(ctx context.Context, resultID string) (*model.GenerationResult, error) {
	const q = `
SELECT id, job_id, kind, topic, units, created_at
FROM generation_results
WHERE id = $1;`

	var res model.GenerationResult
	var units []byte
	err := r.pool.QueryRow(ctx, q, resultID).
		Scan(&res.ID, &res.JobID, &res.Kind, &res.Topic, &units, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(units, &res.Units); err != nil {
		return nil, err
	}
	return &res, nil
}
