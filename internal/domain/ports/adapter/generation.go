package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// GenerationService is the port for the external LLM-style collaborator.
type GenerationService interface {
	// Complete returns the whole assistant reply at once.
	Complete(ctx context.Context, model string, messages []Message) (string, error)

	// CompleteStream invokes onChunk for every token delta, in order, and
	// returns once the stream is drained. onChunk returning an error aborts
	// the stream and surfaces that error.
	CompleteStream(ctx context.Context, model string, messages []Message, onChunk func(chunk string) error) error

	// CountTokens must return prompt tokens for the provided messages
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(model string, messages []Message) (int, error)
}
