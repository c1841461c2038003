package usecase

import (
	"context"
	"errors"
	"sync"

	"edu-ai-generation/internal/domain/model"
	"edu-ai-generation/internal/domain/ports/adapter"
)

// Scripted stage outputs for a lesson run, one per stage in order.
var lessonScript = []string{
	"Ever wondered how a postcard finds its way across the world? Let's find out.",
	"Routing is the process of choosing a path for data across networks. Each router inspects the destination and forwards the packet one hop closer.",
	"Think of routing like a relay of postal workers: each one only needs to know the next sorting office, not the whole journey.",
	`{"caption":"Packet path","nodes":[{"id":"a","label":"Host"},{"id":"b","label":"Router"},{"id":"c","label":"Server"}],"edges":[{"from":"a","to":"b"},{"from":"b","to":"c"}]}`,
	"When did you last notice a detour in your daily commute, and what decided the new route?",
	`{"question":"What does a router inspect to forward a packet?","options":[{"text":"The destination address","correct":true},{"text":"The packet payload","correct":false},{"text":"The sender's name","correct":false}],"explanation":"Forwarding decisions use the destination address only."}`,
	"Routing moves data hop by hop, with each router deciding only the next step toward the destination.",
}

// fakeGen serves scripted outputs in call order, streamed in small chunks.
// A negative failAt never fires.
type fakeGen struct {
	mu        sync.Mutex
	outputs   []string
	failAt    int
	failErr   error
	calls     int
	tokens    int
	chunkSize int
}

func newFakeGen(outputs []string) *fakeGen {
	return &fakeGen{outputs: outputs, failAt: -1, chunkSize: 6}
}

func (f *fakeGen) next() (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i == f.failAt {
		if f.failErr != nil {
			return "", i, f.failErr
		}
		return "", i, errors.New("upstream unavailable")
	}
	if i >= len(f.outputs) {
		return "", i, errors.New("fakeGen: script exhausted")
	}
	return f.outputs[i], i, nil
}

func (f *fakeGen) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGen) Complete(_ context.Context, _ string, _ []adapter.Message) (string, error) {
	out, _, err := f.next()
	return out, err
}

func (f *fakeGen) CompleteStream(_ context.Context, _ string, _ []adapter.Message, onChunk func(string) error) error {
	out, _, err := f.next()
	if err != nil {
		return err
	}
	size := f.chunkSize
	if size <= 0 {
		size = 6
	}
	for len(out) > 0 {
		n := size
		if n > len(out) {
			n = len(out)
		}
		if err := onChunk(out[:n]); err != nil {
			return err
		}
		out = out[n:]
	}
	return nil
}

func (f *fakeGen) CountTokens(_ string, msgs []adapter.Message) (int, error) {
	if f.tokens > 0 {
		return f.tokens, nil
	}
	n := 0
	for _, m := range msgs {
		n += len(m.Content) / 4
	}
	return n, nil
}

// fakeTTS records synthesized texts; set err to simulate collaborator failure.
type fakeTTS struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (f *fakeTTS) Synthesize(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.texts = append(f.texts, text)
	return "audio/fake.mp3", nil
}

// recordSink captures every emission for assertions.
type recordSink struct {
	mu       sync.Mutex
	deltas   map[string][]string // stage -> chunks
	units    []model.ContentUnit
	statuses []model.Job
}

func newRecordSink() *recordSink {
	return &recordSink{deltas: map[string][]string{}}
}

func (s *recordSink) Delta(_, stage, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deltas[stage] = append(s.deltas[stage], text)
}

func (s *recordSink) UnitEmitted(_ string, unit *model.ContentUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = append(s.units, *unit)
}

func (s *recordSink) StatusChanged(job *model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, *job)
}

func (s *recordSink) stageDeltas(stage string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deltas[stage]...)
}

func (s *recordSink) recordedStatuses() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Job(nil), s.statuses...)
}
