// File: internal/usecase/streammode.go
package usecase

import "strings"

// StreamMode is the irrevocable verdict on a generation token stream.
type StreamMode int

const (
	ModeUndecided StreamMode = iota
	// ModeStructured: the stream is one opaque payload, parsed whole on
	// completion, never emitted incrementally.
	ModeStructured
	// ModeFreeform: every chunk is an incremental delta for the client.
	ModeFreeform
)

func (m StreamMode) String() string {
	switch m {
	case ModeStructured:
		return "structured"
	case ModeFreeform:
		return "freeform"
	default:
		return "undecided"
	}
}

// ClassifierPolicy holds the inspection thresholds. The numbers are tuned
// empirically, not derived from a grammar; treat them as policy.
type ClassifierPolicy struct {
	MinInspect int // enough buffered content for a tight decision
	MaxInspect int // hard ceiling, covers ambiguous leading whitespace
}

func DefaultClassifierPolicy() ClassifierPolicy {
	return ClassifierPolicy{MinInspect: 5, MaxInspect: 15}
}

// StreamDecision accumulates the head of one token stream until it can decide
// the mode. One instance per generation call; never reused.
type StreamDecision struct {
	policy  ClassifierPolicy
	buf     strings.Builder
	mode    StreamMode
	decided bool
}

func NewStreamDecision(policy ClassifierPolicy) *StreamDecision {
	if policy.MinInspect <= 0 {
		policy.MinInspect = 5
	}
	if policy.MaxInspect < policy.MinInspect {
		policy.MaxInspect = policy.MinInspect * 3
	}
	return &StreamDecision{policy: policy}
}

func (d *StreamDecision) Decided() bool    { return d.decided }
func (d *StreamDecision) Mode() StreamMode { return d.mode }

// Feed consumes the next chunk. Once a decision is reached it returns the
// mode plus any buffered prefix that must be flushed as the first freeform
// delta (empty for structured streams). Chunks arriving after the decision
// must not be fed here; the caller routes them directly.
func (d *StreamDecision) Feed(chunk string) (mode StreamMode, flush string) {
	if d.decided {
		return d.mode, ""
	}
	d.buf.WriteString(chunk)
	buffered := d.buf.String()
	trimmed := strings.TrimLeftFunc(buffered, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	// A tripped marker decides immediately, whitespace notwithstanding.
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "```") {
		return d.decide(ModeStructured, buffered)
	}

	// Enough trimmed content for a tight decision, or the ceiling reached
	// with only whitespace padding ahead of it.
	if len(trimmed) >= d.policy.MinInspect || len(buffered) >= d.policy.MaxInspect {
		return d.decide(ModeFreeform, buffered)
	}

	return ModeUndecided, ""
}

// Finish handles a stream that ends before a decision: the content is real,
// flush it as a single freeform delta rather than dropping it.
func (d *StreamDecision) Finish() (mode StreamMode, flush string) {
	if d.decided {
		return d.mode, ""
	}
	return d.decide(ModeFreeform, d.buf.String())
}

func (d *StreamDecision) decide(mode StreamMode, buffered string) (StreamMode, string) {
	d.mode = mode
	d.decided = true
	d.buf.Reset() // the buffer is never consulted again for this stream
	if mode == ModeFreeform {
		return mode, buffered
	}
	return mode, ""
}
