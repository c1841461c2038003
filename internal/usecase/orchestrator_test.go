package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"edu-ai-generation/internal/domain"
	"edu-ai-generation/internal/domain/model"
	"edu-ai-generation/internal/infra/memstore"
	"edu-ai-generation/internal/infra/worker"
)

type orchFixture struct {
	orch  Orchestrator
	store *memstore.JobStore
	res   *memstore.ResultStore
	gen   *fakeGen
	sink  *recordSink
	pool  *worker.Pool
}

func newOrchFixture(t *testing.T, gen *fakeGen) *orchFixture {
	t.Helper()
	log := zerolog.Nop()
	store := memstore.NewJobStore(time.Hour, nil)
	res := memstore.NewResultStore()
	sink := newRecordSink()

	p, err := NewPipeline(gen, &fakeTTS{}, "test-model", 5*time.Second, DefaultClassifierPolicy(), sink, &log)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	pool := worker.NewPool(2, &log)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		pool.Stop()
		dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer dcancel()
		pool.Drain(dctx)
		cancel()
	})

	return &orchFixture{
		orch:  NewOrchestrator(store, res, p, pool, gen, sink, "test-model", 0, &log),
		store: store,
		res:   res,
		gen:   gen,
		sink:  sink,
		pool:  pool,
	}
}

func submitReq(key string) SubmitRequest {
	return SubmitRequest{IdempotencyKey: key, Kind: PipelineLesson, Topic: "How routing works", Audience: "teens"}
}

func waitTerminal(t *testing.T, orch Orchestrator, jobID string) *model.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := orch.Status(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Status(%s): %v", jobID, err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return nil
}

func TestSubmitRunsToDone(t *testing.T) {
	f := newOrchFixture(t, newFakeGen(lessonScript))

	job, created, err := f.orch.Submit(context.Background(), submitReq("key-done"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !created {
		t.Fatal("first submission must create the job")
	}
	if job.Status != model.JobStatusQueued {
		t.Errorf("fresh job status = %s, want QUEUED", job.Status)
	}
	if job.ProvisionalResultID == "" {
		t.Error("submission must hand out a provisional result id")
	}

	final := waitTerminal(t, f.orch, job.ID)
	if final.Status != model.JobStatusDone {
		t.Fatalf("final status = %s (%+v)", final.Status, final.Error)
	}
	if final.ProgressPct != 100 {
		t.Errorf("done job progress = %d, want 100", final.ProgressPct)
	}
	if final.ResultID != job.ProvisionalResultID {
		t.Errorf("result id %q did not converge on provisional id %q", final.ResultID, job.ProvisionalResultID)
	}
	if final.Error != nil {
		t.Errorf("done job carries an error: %+v", final.Error)
	}

	res, err := f.orch.Result(context.Background(), final.ResultID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if len(res.Units) != len(lessonScript) {
		t.Fatalf("result holds %d units, want %d", len(res.Units), len(lessonScript))
	}
	for i, u := range res.Units {
		if u.SequenceIndex != i {
			t.Errorf("unit %d: sequence_index = %d, ordering broken", i, u.SequenceIndex)
		}
	}
}

func TestSubmitIdempotentSequential(t *testing.T) {
	f := newOrchFixture(t, newFakeGen(lessonScript))

	first, created, err := f.orch.Submit(context.Background(), submitReq("key-idem"))
	if err != nil || !created {
		t.Fatalf("first submit: created=%v err=%v", created, err)
	}
	waitTerminal(t, f.orch, first.ID)

	second, created, err := f.orch.Submit(context.Background(), submitReq("key-idem"))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if created {
		t.Error("duplicate key must not create a new job")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate returned job %s, want %s", second.ID, first.ID)
	}
	// Exactly one pipeline ran.
	if f.gen.callCount() != len(lessonScript) {
		t.Errorf("generation calls = %d, want %d", f.gen.callCount(), len(lessonScript))
	}
}

func TestSubmitIdempotentConcurrent(t *testing.T) {
	f := newOrchFixture(t, newFakeGen(lessonScript))

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job, _, err := f.orch.Submit(context.Background(), submitReq("key-race"))
			if err != nil {
				t.Errorf("submit %d: %v", i, err)
				return
			}
			ids[i] = job.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent duplicates produced distinct jobs: %v", ids)
		}
	}
	waitTerminal(t, f.orch, ids[0])
	if f.gen.callCount() != len(lessonScript) {
		t.Errorf("generation calls = %d, want %d (one run per key)", f.gen.callCount(), len(lessonScript))
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newOrchFixture(t, newFakeGen(lessonScript))

	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"missing key", SubmitRequest{Kind: PipelineLesson, Topic: "x"}},
		{"unknown kind", SubmitRequest{IdempotencyKey: "k", Kind: "podcast", Topic: "x"}},
		{"empty topic", SubmitRequest{IdempotencyKey: "k", Kind: PipelineLesson, Topic: "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := f.orch.Submit(context.Background(), tc.req); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestSubmitPromptTooLarge(t *testing.T) {
	log := zerolog.Nop()
	gen := newFakeGen(lessonScript)
	gen.tokens = 5000

	store := memstore.NewJobStore(time.Hour, nil)
	p, err := NewPipeline(gen, &fakeTTS{}, "test-model", time.Second, DefaultClassifierPolicy(), newRecordSink(), &log)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	pool := worker.NewPool(1, &log)
	pool.Start(context.Background())
	defer pool.Stop()

	orch := NewOrchestrator(store, memstore.NewResultStore(), p, pool, gen, newRecordSink(), "test-model", 1000, &log)
	if _, _, err := orch.Submit(context.Background(), submitReq("key-huge")); !errors.Is(err, domain.ErrPromptTooLarge) {
		t.Errorf("err = %v, want ErrPromptTooLarge", err)
	}
}

func TestStageFailureKeepsPartialResult(t *testing.T) {
	gen := newFakeGen(lessonScript)
	gen.failAt = 2 // analogy
	f := newOrchFixture(t, gen)

	job, _, err := f.orch.Submit(context.Background(), submitReq("key-fail"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	final := waitTerminal(t, f.orch, job.ID)
	if final.Status != model.JobStatusError {
		t.Fatalf("final status = %s, want ERROR", final.Status)
	}
	if final.Error == nil || final.Error.Stage != "analogy" {
		t.Fatalf("failure detail = %+v, want stage analogy", final.Error)
	}
	if final.ResultID != "" {
		t.Errorf("failed job must not advertise a result id, got %q", final.ResultID)
	}
	if final.ProgressPct >= 100 {
		t.Errorf("failed job progress = %d, 100 is reserved for DONE", final.ProgressPct)
	}

	// The units emitted before the failure are still retrievable under the
	// provisional id.
	res, err := f.orch.Result(context.Background(), job.ProvisionalResultID)
	if err != nil {
		t.Fatalf("partial result fetch: %v", err)
	}
	if len(res.Units) != 2 {
		t.Fatalf("partial result holds %d units, want 2", len(res.Units))
	}
}

func TestStatusProgressNeverRegresses(t *testing.T) {
	f := newOrchFixture(t, newFakeGen(lessonScript))

	job, _, err := f.orch.Submit(context.Background(), submitReq("key-prog"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitTerminal(t, f.orch, job.ID)

	statuses := f.sink.recordedStatuses()
	if len(statuses) == 0 {
		t.Fatal("no status changes recorded")
	}
	prev := -1
	for _, s := range statuses {
		if s.ProgressPct < prev {
			t.Fatalf("progress regressed from %d to %d", prev, s.ProgressPct)
		}
		if s.ProgressPct == 100 && s.Status != model.JobStatusDone {
			t.Fatalf("progress 100 on non-terminal status %s", s.Status)
		}
		prev = s.ProgressPct
	}
	if last := statuses[len(statuses)-1]; last.Status != model.JobStatusDone || last.ProgressPct != 100 {
		t.Fatalf("last status %s/%d, want DONE/100", last.Status, last.ProgressPct)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	f := newOrchFixture(t, newFakeGen(nil))
	if _, err := f.orch.Status(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := f.orch.Result(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("result err = %v, want ErrNotFound", err)
	}
}
