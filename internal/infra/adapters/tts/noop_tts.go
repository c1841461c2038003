package tts

import (
	"context"

	"github.com/google/uuid"

	"edu-ai-generation/internal/domain/ports/adapter"
)

var _ adapter.SpeechSynthesizer = (*NoopSynthesizer)(nil)

// NoopSynthesizer hands back a fake reference without producing audio.
type NoopSynthesizer struct{}

func NewNoopSynthesizer() *NoopSynthesizer { return &NoopSynthesizer{} }

func (n *NoopSynthesizer) Synthesize(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "audio/noop-" + uuid.NewString() + ".mp3", nil
}
