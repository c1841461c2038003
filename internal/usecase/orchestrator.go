// File: internal/usecase/orchestrator.go
package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"edu-ai-generation/internal/domain"
	"edu-ai-generation/internal/domain/model"
	"edu-ai-generation/internal/domain/ports/adapter"
	"edu-ai-generation/internal/domain/ports/repository"
	"edu-ai-generation/internal/infra/metrics"
	"edu-ai-generation/internal/infra/worker"
)

// Compile-time check
var _ Orchestrator = (*orchestrator)(nil)

// SubmitRequest is one generation submission after transport decoding.
type SubmitRequest struct {
	IdempotencyKey string
	Kind           string
	Topic          string
	Audience       string
	Narrate        bool
}

// Orchestrator is the entry point of the generation subsystem: idempotent
// submission, background pipeline launch, store-backed status and results.
type Orchestrator interface {
	// Submit resolves or creates the job for the request's idempotency key.
	// It returns as soon as the job exists; the pipeline runs in the
	// background. created is false on an idempotent hit.
	Submit(ctx context.Context, req SubmitRequest) (job *model.Job, created bool, err error)

	// Status reads current job state from the shared store.
	Status(ctx context.Context, jobID string) (*model.Job, error)

	// Result fetches a finished artifact by result id.
	Result(ctx context.Context, resultID string) (*model.GenerationResult, error)

	// Drain blocks until running pipelines finish or the context expires.
	Drain(ctx context.Context)
}

type orchestrator struct {
	store    repository.JobStore
	results  repository.ResultStore
	pipeline *Pipeline
	pool     *worker.Pool
	gen      adapter.GenerationService
	sink     EventSink

	modelName       string
	maxPromptTokens int
	log             *zerolog.Logger
}

func NewOrchestrator(
	store repository.JobStore,
	results repository.ResultStore,
	pipeline *Pipeline,
	pool *worker.Pool,
	gen adapter.GenerationService,
	sink EventSink,
	modelName string,
	maxPromptTokens int,
	log *zerolog.Logger,
) *orchestrator {
	return &orchestrator{
		store:           store,
		results:         results,
		pipeline:        pipeline,
		pool:            pool,
		gen:             gen,
		sink:            sink,
		modelName:       modelName,
		maxPromptTokens: maxPromptTokens,
		log:             log,
	}
}

func (o *orchestrator) Submit(ctx context.Context, req SubmitRequest) (*model.Job, bool, error) {
	if err := o.validate(req); err != nil {
		return nil, false, err
	}

	// Idempotent hit: the key resolves to a job regardless of its status.
	// A failed job is returned as-is; retrying requires a fresh key.
	if jobID, err := o.store.FindByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		job, err := o.store.Get(ctx, jobID)
		if err == nil {
			metrics.IncJobDuplicate()
			return job, false, nil
		}
		if err != domain.ErrNotFound {
			return nil, false, err
		}
		// Binding outlived its job record; fall through and recreate.
	} else if err != domain.ErrNotFound {
		return nil, false, err
	}

	job := model.NewJob(
		ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		req.IdempotencyKey, req.Kind, strings.TrimSpace(req.Topic), strings.TrimSpace(req.Audience), req.Narrate,
	)
	job.ProvisionalResultID = uuid.NewString()

	// First writer wins the key. The loser discards its candidate job so
	// exactly one pipeline runs per key even under a concurrent duplicate.
	boundID, won, err := o.store.BindIdempotencyKey(ctx, req.IdempotencyKey, job.ID)
	if err != nil {
		return nil, false, err
	}
	if !won {
		existing, err := o.awaitWinner(ctx, boundID)
		if err != nil {
			return nil, false, err
		}
		metrics.IncJobDuplicate()
		return existing, false, nil
	}

	if err := o.store.Put(ctx, job); err != nil {
		return nil, false, err
	}
	metrics.IncJobSubmitted(job.Kind)
	o.log.Info().Str("job_id", job.ID).Str("kind", job.Kind).Str("topic", job.Topic).Msg("job accepted")

	// Launch asynchronously. The pool queues when every worker is busy, so
	// excess submissions wait instead of spawning unbounded runs.
	launch := *job
	if err := o.pool.Submit(func(ctx context.Context) error {
		o.run(ctx, &launch)
		return nil
	}); err != nil {
		// Pool shut down mid-submit; surface a retryable terminal error.
		o.finish(&launch, nil, &model.JobFailure{Reason: "instance shutting down", Retryable: true})
		return job, true, nil
	}
	return job, true, nil
}

// awaitWinner fetches the job of a lost idempotency race. The winner binds the
// key before writing the record, so a concurrent loser can observe the binding
// a moment ahead of the job itself; a short retry closes that window.
func (o *orchestrator) awaitWinner(ctx context.Context, jobID string) (*model.Job, error) {
	var lastErr error
	for i := 0; i < 20; i++ {
		job, err := o.store.Get(ctx, jobID)
		if err == nil {
			return job, nil
		}
		if err != domain.ErrNotFound {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
	return nil, lastErr
}

func (o *orchestrator) validate(req SubmitRequest) error {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return fmt.Errorf("%w: missing idempotency key", domain.ErrInvalidArgument)
	}
	if PipelineStages(req.Kind) == nil {
		return fmt.Errorf("%w: unknown pipeline kind %q", domain.ErrInvalidArgument, req.Kind)
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return fmt.Errorf("%w: topic is required", domain.ErrInvalidArgument)
	}
	if o.maxPromptTokens > 0 {
		probe := []adapter.Message{{Role: "user", Content: topic + " " + req.Audience}}
		if n, err := o.gen.CountTokens(o.modelName, probe); err == nil && n > o.maxPromptTokens {
			return fmt.Errorf("%w: %d tokens over a limit of %d", domain.ErrPromptTooLarge, n, o.maxPromptTokens)
		}
	}
	return nil
}

func (o *orchestrator) Status(ctx context.Context, jobID string) (*model.Job, error) {
	return o.store.Get(ctx, jobID)
}

func (o *orchestrator) Result(ctx context.Context, resultID string) (*model.GenerationResult, error) {
	return o.results.Get(ctx, resultID)
}

func (o *orchestrator) Drain(ctx context.Context) {
	o.pool.Drain(ctx)
}

// run drives one pipeline execution. It is the only writer of this job's
// record; every write replaces the whole record and refreshes the TTL.
func (o *orchestrator) run(ctx context.Context, job *model.Job) {
	metrics.JobStarted()
	defer metrics.JobEnded()
	start := time.Now()

	job.Status = model.JobStatusProcessing
	job.UpdatedAt = time.Now()
	if err := o.store.Put(ctx, job); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Msg("could not mark job processing")
		o.finish(job, nil, &model.JobFailure{Reason: "job store write failed: " + err.Error(), Retryable: true})
		return
	}
	o.sink.StatusChanged(job)

	units, failure := o.pipeline.Run(ctx, job, func(ctx context.Context, stageName string, pct int) error {
		job.CurrentStage = stageName
		if pct > job.ProgressPct { // progress never regresses
			job.ProgressPct = pct
		}
		job.UpdatedAt = time.Now()
		if err := o.store.Put(ctx, job); err != nil {
			return err
		}
		o.sink.StatusChanged(job)
		return nil
	})

	// Units already emitted stay retrievable even when a later stage failed:
	// the partial artifact is saved under the provisional result id.
	res := &model.GenerationResult{
		ID:        job.ProvisionalResultID,
		JobID:     job.ID,
		Kind:      job.Kind,
		Topic:     job.Topic,
		Units:     units,
		CreatedAt: time.Now(),
	}
	if err := o.results.Save(context.Background(), res); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Msg("result store save failed")
		if failure == nil {
			failure = &model.JobFailure{Stage: job.CurrentStage, Reason: "result store save failed: " + err.Error(), Retryable: true}
		}
	}

	o.finish(job, units, failure)
	o.log.Info().Str("job_id", job.ID).Str("status", string(job.Status)).
		Dur("duration", time.Since(start)).Int("units", len(units)).Msg("job finished")
}

// finish writes the terminal state. A background context is used so request
// or shutdown cancellation cannot strand the record in PROCESSING.
func (o *orchestrator) finish(job *model.Job, units []model.ContentUnit, failure *model.JobFailure) {
	wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if failure != nil {
		job.Status = model.JobStatusError
		job.Error = failure
		if failure.Stage != "" {
			job.CurrentStage = failure.Stage
		}
		metrics.IncJobFinished("error")
	} else {
		job.Status = model.JobStatusDone
		job.ProgressPct = 100
		job.CurrentStage = ""
		job.ResultID = job.ProvisionalResultID
		metrics.IncJobFinished("done")
	}
	job.UpdatedAt = time.Now()

	if err := o.store.Put(wctx, job); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Msg("terminal status write failed")
	}
	o.sink.StatusChanged(job)
}
