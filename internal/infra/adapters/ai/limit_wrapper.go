package ai

import (
	"context"

	"edu-ai-generation/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.GenerationService = (*limitedGen)(nil)

type limitedGen struct {
	inner adapter.GenerationService
	sem   chan struct{}
}

// NewLimitedGeneration caps concurrent provider calls so a burst of pipelines
// cannot overload the external generation endpoint.
func NewLimitedGeneration(inner adapter.GenerationService, maxConcurrent int) adapter.GenerationService {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGen{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGen) Complete(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Complete(ctx, model, messages)
}

func (l *limitedGen) CompleteStream(ctx context.Context, model string, messages []adapter.Message, onChunk func(string) error) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.CompleteStream(ctx, model, messages, onChunk)
}

func (l *limitedGen) CountTokens(model string, messages []adapter.Message) (int, error) {
	return l.inner.CountTokens(model, messages)
}
