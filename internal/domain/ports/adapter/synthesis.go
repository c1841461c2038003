package adapter

import "context"

// SpeechSynthesizer is the port for the external text-to-speech collaborator.
// Synthesis is best-effort: callers treat failures as non-fatal and proceed
// without an audio reference.
type SpeechSynthesizer interface {
	// Synthesize renders text to audio and returns an opaque asset reference.
	Synthesize(ctx context.Context, text string) (audioRef string, err error)
}
