// File: internal/usecase/pipeline.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"edu-ai-generation/internal/domain"
	"edu-ai-generation/internal/domain/model"
	"edu-ai-generation/internal/domain/ports/adapter"
	"edu-ai-generation/internal/infra/metrics"
)

// EventSink receives pipeline emissions for live delivery. Implementations
// must be best-effort and non-blocking; correctness lives in the job store.
type EventSink interface {
	// Delta delivers one freeform increment of an in-flight stage.
	Delta(jobID, stage, text string)
	// UnitEmitted delivers one completed, immutable content unit.
	UnitEmitted(jobID string, unit *model.ContentUnit)
	// StatusChanged delivers a progress or terminal transition.
	StatusChanged(job *model.Job)
}

// StageProgress is invoked by the pipeline before each stage so the owner can
// persist current_stage and progress. The write must happen before the stage's
// collaborator call starts.
type StageProgress func(ctx context.Context, stageName string, progressPct int) error

// Pipeline runs the fixed, ordered stage list for one job. Stages are strictly
// sequential: a later stage may depend on the units before it.
type Pipeline struct {
	gen     adapter.GenerationService
	tts     adapter.SpeechSynthesizer
	model   string
	timeout time.Duration
	policy  ClassifierPolicy
	schemas *payloadSchemas
	sink    EventSink
	log     *zerolog.Logger
}

func NewPipeline(
	gen adapter.GenerationService,
	tts adapter.SpeechSynthesizer,
	modelName string,
	stageTimeout time.Duration,
	policy ClassifierPolicy,
	sink EventSink,
	log *zerolog.Logger,
) (*Pipeline, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	if stageTimeout <= 0 {
		stageTimeout = 90 * time.Second
	}
	return &Pipeline{
		gen:     gen,
		tts:     tts,
		model:   modelName,
		timeout: stageTimeout,
		policy:  policy,
		schemas: schemas,
		sink:    sink,
		log:     log,
	}, nil
}

// Run executes every stage in order and returns the emitted units. On stage
// failure it stops, reports which stage failed, and keeps the units already
// emitted: partial results stay visible to the client.
func (p *Pipeline) Run(ctx context.Context, job *model.Job, progress StageProgress) ([]model.ContentUnit, *model.JobFailure) {
	stages := PipelineStages(job.Kind)
	if len(stages) == 0 {
		return nil, &model.JobFailure{Reason: "unknown pipeline kind " + job.Kind, Retryable: false}
	}

	units := make([]model.ContentUnit, 0, len(stages))
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return units, &model.JobFailure{Stage: stage.Name, Reason: "cancelled", Retryable: true}
		}

		// Progress advances by one stage share, held below 100 until the
		// terminal DONE write claims it.
		pct := i * 100 / len(stages)
		if err := progress(ctx, stage.Name, pct); err != nil {
			return units, &model.JobFailure{Stage: stage.Name, Reason: "job store write failed: " + err.Error(), Retryable: true}
		}

		start := time.Now()
		unit, err := p.runStage(ctx, job, stage, i, units)
		latency := time.Since(start)
		metrics.ObserveStage(job.Kind, stage.Name, int(latency/time.Millisecond), err == nil)

		if err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Str("stage", stage.Name).Msg("stage failed")
			return units, &model.JobFailure{
				Stage:     stage.Name,
				Reason:    err.Error(),
				Retryable: retryable(err),
			}
		}

		units = append(units, *unit)
		p.sink.UnitEmitted(job.ID, unit)
		p.log.Debug().Str("job_id", job.ID).Str("stage", stage.Name).
			Int("sequence_index", unit.SequenceIndex).Dur("duration", latency).Msg("unit emitted")
	}
	return units, nil
}

func (p *Pipeline) runStage(ctx context.Context, job *model.Job, stage Stage, index int, prior []model.ContentUnit) (*model.ContentUnit, error) {
	sctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msgs := stage.Prompt(job, prior)
	dec := NewStreamDecision(p.policy)
	var full strings.Builder

	callStart := time.Now()
	err := p.gen.CompleteStream(sctx, p.model, msgs, func(chunk string) error {
		full.WriteString(chunk)
		if !dec.Decided() {
			if mode, flush := dec.Feed(chunk); mode == ModeFreeform && flush != "" {
				p.sink.Delta(job.ID, stage.Name, flush)
			}
			return nil
		}
		if dec.Mode() == ModeFreeform {
			p.sink.Delta(job.ID, stage.Name, chunk)
		}
		return nil
	})
	callLatency := time.Since(callStart)
	metrics.ObserveGeneration(p.model, int(callLatency/time.Millisecond), full.Len(), err == nil)
	if err != nil {
		return nil, err
	}

	// Short streams decide here; the buffered content is flushed, not dropped.
	if mode, flush := dec.Finish(); mode == ModeFreeform && flush != "" {
		p.sink.Delta(job.ID, stage.Name, flush)
	}

	unit := &model.ContentUnit{
		ID:            uuid.NewString(),
		JobID:         job.ID,
		SequenceIndex: index,
		Type:          stage.Unit,
	}
	if err := stage.Parse(p.schemas, full.String(), dec.Mode(), unit); err != nil {
		return nil, err
	}
	if err := unit.Validate(); err != nil {
		return nil, err
	}

	if stage.Narrates && unit.Text != nil {
		unit.NarrationText = unit.Text.Body
		if job.Narrate {
			p.synthesize(sctx, job.ID, unit)
		}
	}
	return unit, nil
}

// synthesize is best-effort: a synthesis failure costs the audio reference,
// never the stage.
func (p *Pipeline) synthesize(ctx context.Context, jobID string, unit *model.ContentUnit) {
	if p.tts == nil {
		return
	}
	ref, err := p.tts.Synthesize(ctx, unit.NarrationText)
	if err != nil {
		metrics.IncSynthesisFailure()
		p.log.Warn().Err(err).Str("job_id", jobID).Str("unit_id", unit.ID).
			Msg("speech synthesis failed, continuing without audio")
		return
	}
	unit.AudioRef = ref
}

func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, domain.ErrStreamTruncated) {
		return true
	}
	// Parse and schema rejections are deterministic for the same prompt only
	// in theory; a fresh key may well succeed.
	return false
}
