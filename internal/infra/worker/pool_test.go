package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	log := zerolog.Nop()
	p := NewPool(2, &log)
	p.Start(context.Background())

	var ran int32
	for i := 0; i < 10; i++ {
		if err := p.Submit(func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	p.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Drain(ctx)

	if got := atomic.LoadInt32(&ran); got != 10 {
		t.Fatalf("ran %d tasks, want 10", got)
	}
}

func TestPoolSubmitAfterStop(t *testing.T) {
	log := zerolog.Nop()
	p := NewPool(1, &log)
	p.Start(context.Background())
	p.Stop()

	if err := p.Submit(func(context.Context) error { return nil }); err != ErrPoolStopped {
		t.Fatalf("err = %v, want ErrPoolStopped", err)
	}
}

func TestPoolStopIsIdempotent(t *testing.T) {
	log := zerolog.Nop()
	p := NewPool(1, &log)
	p.Start(context.Background())
	p.Stop()
	p.Stop() // must not panic on a closed channel
}

func TestPoolQueuedTasksRunAfterStop(t *testing.T) {
	log := zerolog.Nop()
	p := NewPool(1, &log)

	var ran int32
	block := make(chan struct{})
	_ = p.Submit(func(context.Context) error {
		<-block
		return nil
	})
	_ = p.Submit(func(context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	p.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	p.Stop() // the second task is still queued
	close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Drain(ctx)
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("queued task was dropped by Stop")
	}
}

func TestPoolTaskContextCancelled(t *testing.T) {
	log := zerolog.Nop()
	p := NewPool(1, &log)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	got := make(chan error, 1)
	_ = p.Submit(func(tctx context.Context) error {
		got <- tctx.Err()
		return nil
	})
	select {
	case err := <-got:
		if err == nil {
			t.Fatal("task ran with a live context after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran; the pool must drain the queue even after cancel")
	}
	p.Stop()
}
