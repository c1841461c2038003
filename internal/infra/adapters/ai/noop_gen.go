package ai

import (
	"context"
	"strings"
	"time"

	"edu-ai-generation/internal/domain/ports/adapter"
)

var _ adapter.GenerationService = (*NoopGeneration)(nil)

// NoopGeneration implements adapter.GenerationService for local/dev runs.
// It fabricates deterministic output instead of calling a real provider:
// prompts asking for JSON get a minimal valid document, everything else gets
// a short paragraph streamed in small chunks.
type NoopGeneration struct {
	Delay time.Duration
}

func NewNoopGeneration() *NoopGeneration {
	return &NoopGeneration{Delay: 50 * time.Millisecond}
}

func (n *NoopGeneration) reply(messages []adapter.Message) string {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	if strings.Contains(last, "JSON") {
		switch {
		case strings.Contains(last, "nodes"):
			return `{"caption":"placeholder","nodes":[{"id":"a","label":"Idea"},{"id":"b","label":"Detail"}],"edges":[{"from":"a","to":"b"}]}`
		case strings.Contains(last, "options"):
			return `{"question":"Placeholder?","options":[{"text":"Yes","correct":true},{"text":"No","correct":false}],"explanation":"placeholder"}`
		case strings.Contains(last, "entries"):
			return `{"title":"Placeholder course","entries":[{"title":"Part one","summary":"placeholder"}]}`
		case strings.Contains(last, "modules"):
			return `{"modules":[{"title":"Part one","objectives":["understand the placeholder"]}]}`
		}
	}
	return "This is placeholder prose produced without a generation provider."
}

func (n *NoopGeneration) Complete(ctx context.Context, _ string, messages []adapter.Message) (string, error) {
	select {
	case <-time.After(n.Delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return n.reply(messages), nil
}

func (n *NoopGeneration) CompleteStream(ctx context.Context, _ string, messages []adapter.Message, onChunk func(string) error) error {
	out := n.reply(messages)
	const chunkLen = 8
	for len(out) > 0 {
		select {
		case <-time.After(n.Delay / 10):
		case <-ctx.Done():
			return ctx.Err()
		}
		c := out
		if len(c) > chunkLen {
			c = c[:chunkLen]
		}
		out = out[len(c):]
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

func (n *NoopGeneration) CountTokens(_ string, messages []adapter.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += len(strings.Fields(m.Content))
	}
	return total, nil
}
