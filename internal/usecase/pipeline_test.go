package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"edu-ai-generation/internal/domain/model"
)

func testPipeline(t *testing.T, gen *fakeGen, tts *fakeTTS, sink EventSink) *Pipeline {
	t.Helper()
	log := zerolog.Nop()
	p, err := NewPipeline(gen, tts, "test-model", 5*time.Second, DefaultClassifierPolicy(), sink, &log)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func lessonJob() *model.Job {
	job := model.NewJob("job-1", "key-1", PipelineLesson, "How routing works", "teens", false)
	job.ProvisionalResultID = "res-1"
	return job
}

func noProgress(context.Context, string, int) error { return nil }

func TestPipelineRunsStagesInOrder(t *testing.T) {
	gen := newFakeGen(lessonScript)
	sink := newRecordSink()
	p := testPipeline(t, gen, &fakeTTS{}, sink)

	units, failure := p.Run(context.Background(), lessonJob(), noProgress)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}

	want := []model.UnitType{
		model.UnitTransition, model.UnitConcept, model.UnitAnalogy,
		model.UnitDiagram, model.UnitReflect, model.UnitQuiz, model.UnitSummary,
	}
	if len(units) != len(want) {
		t.Fatalf("got %d units, want %d", len(units), len(want))
	}
	for i, u := range units {
		if u.SequenceIndex != i {
			t.Errorf("unit %d: sequence_index = %d", i, u.SequenceIndex)
		}
		if u.Type != want[i] {
			t.Errorf("unit %d: type = %s, want %s", i, u.Type, want[i])
		}
		if err := u.Validate(); err != nil {
			t.Errorf("unit %d invalid: %v", i, err)
		}
	}
	if units[3].Diagram == nil || len(units[3].Diagram.Nodes) != 3 {
		t.Errorf("diagram payload not parsed: %+v", units[3].Diagram)
	}
	if units[5].Quiz == nil || len(units[5].Quiz.Options) != 3 {
		t.Errorf("quiz payload not parsed: %+v", units[5].Quiz)
	}
}

func TestPipelineDeltasOnlyForFreeformStages(t *testing.T) {
	gen := newFakeGen(lessonScript)
	sink := newRecordSink()
	p := testPipeline(t, gen, &fakeTTS{}, sink)

	if _, failure := p.Run(context.Background(), lessonJob(), noProgress); failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}

	// Structured stages never leak deltas.
	for _, stage := range []string{"diagram", "quiz"} {
		if d := sink.stageDeltas(stage); len(d) != 0 {
			t.Errorf("stage %s emitted %d deltas, want 0", stage, len(d))
		}
	}
	// Freeform deltas concatenate to the exact stage output.
	if got := strings.Join(sink.stageDeltas("concept"), ""); got != lessonScript[1] {
		t.Errorf("concept deltas = %q, want %q", got, lessonScript[1])
	}
}

func TestPipelineStopsAtFailedStage(t *testing.T) {
	gen := newFakeGen(lessonScript)
	gen.failAt = 2 // analogy
	sink := newRecordSink()
	p := testPipeline(t, gen, &fakeTTS{}, sink)

	units, failure := p.Run(context.Background(), lessonJob(), noProgress)
	if failure == nil {
		t.Fatal("expected a failure")
	}
	if failure.Stage != "analogy" {
		t.Errorf("failure.Stage = %q, want analogy", failure.Stage)
	}
	// Units emitted before the failure survive it.
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	// Nothing past the failed stage ran.
	if gen.callCount() != 3 {
		t.Errorf("generation calls = %d, want 3", gen.callCount())
	}
}

func TestPipelineRejectsSchemaViolation(t *testing.T) {
	script := append([]string(nil), lessonScript...)
	script[3] = `{"caption":"no nodes","edges":[]}`
	gen := newFakeGen(script)
	p := testPipeline(t, gen, &fakeTTS{}, newRecordSink())

	units, failure := p.Run(context.Background(), lessonJob(), noProgress)
	if failure == nil || failure.Stage != "diagram" {
		t.Fatalf("expected diagram schema failure, got %+v", failure)
	}
	if len(units) != 3 {
		t.Errorf("got %d units, want 3", len(units))
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := newFakeGen(lessonScript)
	p := testPipeline(t, gen, &fakeTTS{}, newRecordSink())

	units, failure := p.Run(ctx, lessonJob(), noProgress)
	if failure == nil || failure.Reason != "cancelled" {
		t.Fatalf("expected cancellation failure, got %+v", failure)
	}
	if !failure.Retryable {
		t.Error("cancellation should be retryable")
	}
	if len(units) != 0 || gen.callCount() != 0 {
		t.Errorf("cancelled run did work: units=%d calls=%d", len(units), gen.callCount())
	}
}

func TestPipelineProgressAdvancesPerStage(t *testing.T) {
	gen := newFakeGen(lessonScript)
	p := testPipeline(t, gen, &fakeTTS{}, newRecordSink())

	var pcts []int
	progress := func(_ context.Context, _ string, pct int) error {
		pcts = append(pcts, pct)
		return nil
	}
	if _, failure := p.Run(context.Background(), lessonJob(), progress); failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if len(pcts) != len(lessonScript) {
		t.Fatalf("progress called %d times, want %d", len(pcts), len(lessonScript))
	}
	for i := 1; i < len(pcts); i++ {
		if pcts[i] < pcts[i-1] {
			t.Fatalf("progress regressed: %v", pcts)
		}
	}
	if last := pcts[len(pcts)-1]; last >= 100 {
		t.Errorf("intermediate progress reached %d; 100 is reserved for the terminal state", last)
	}
}

func TestPipelineNarration(t *testing.T) {
	gen := newFakeGen(lessonScript)
	tts := &fakeTTS{}
	p := testPipeline(t, gen, tts, newRecordSink())

	job := lessonJob()
	job.Narrate = true
	units, failure := p.Run(context.Background(), job, noProgress)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}

	// concept, analogy and summary narrate; transition and reflect do not.
	narrated := 0
	for _, u := range units {
		if u.AudioRef != "" {
			narrated++
			if u.NarrationText == "" {
				t.Errorf("unit %s has audio but no narration text", u.Type)
			}
		}
	}
	if narrated != 3 {
		t.Errorf("narrated units = %d, want 3", narrated)
	}
	if len(tts.texts) != 3 {
		t.Errorf("synthesizer called %d times, want 3", len(tts.texts))
	}
}

func TestPipelineSynthesisFailureIsNonFatal(t *testing.T) {
	gen := newFakeGen(lessonScript)
	tts := &fakeTTS{err: context.DeadlineExceeded}
	p := testPipeline(t, gen, tts, newRecordSink())

	job := lessonJob()
	job.Narrate = true
	units, failure := p.Run(context.Background(), job, noProgress)
	if failure != nil {
		t.Fatalf("synthesis failure must not fail the run: %+v", failure)
	}
	for _, u := range units {
		if u.AudioRef != "" {
			t.Errorf("unit %s got an audio ref from a failing synthesizer", u.Type)
		}
	}
	// Narration text is still attached; only the audio is missing.
	if units[1].NarrationText == "" {
		t.Error("concept unit lost narration text")
	}
}

func TestPipelineCourseStages(t *testing.T) {
	script := []string{
		`{"title":"Networking 101","entries":[{"title":"Signals","summary":"Bits on a wire"},{"title":"Switching"},{"title":"Routing"},{"title":"Transport"},{"title":"Applications"}]}`,
		`{"modules":[{"title":"Signals","objectives":["explain encoding"],"body":"..."},{"title":"Routing","objectives":["trace a packet"]}]}`,
		"After this course you will explain how data crosses networks end to end.",
	}
	gen := newFakeGen(script)
	p := testPipeline(t, gen, &fakeTTS{}, newRecordSink())

	job := model.NewJob("job-2", "key-2", PipelineCourse, "Networking 101", "", false)
	units, failure := p.Run(context.Background(), job, noProgress)
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	if units[0].Outline == nil || len(units[0].Outline.Entries) != 5 {
		t.Errorf("outline not parsed: %+v", units[0].Outline)
	}
	if units[1].Syllabus == nil || len(units[1].Syllabus.Modules) != 2 {
		t.Errorf("syllabus not parsed: %+v", units[1].Syllabus)
	}
	if units[2].Text == nil {
		t.Errorf("course summary missing text payload")
	}
}

func TestPipelineUnknownKind(t *testing.T) {
	p := testPipeline(t, newFakeGen(nil), &fakeTTS{}, newRecordSink())
	job := model.NewJob("job-3", "key-3", "podcast", "x", "", false)
	units, failure := p.Run(context.Background(), job, noProgress)
	if failure == nil {
		t.Fatal("expected failure for unknown kind")
	}
	if len(units) != 0 {
		t.Errorf("unexpected units: %d", len(units))
	}
}
