// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// A small worker pool bounding concurrent pipeline runs. Submissions beyond
// the bound queue instead of spawning unbounded goroutines; Submit blocks
// only when the queue itself is full.

type Task func(ctx context.Context) error

type Pool struct {
	wg      sync.WaitGroup
	jobs    chan Task
	n       int
	log     *zerolog.Logger
	mu      sync.Mutex
	stopped bool
}

var ErrPoolStopped = errors.New("worker pool stopped")

func NewPool(workers int, log *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{jobs: make(chan Task, workers*4), n: workers, log: log}
}

// Start launches the workers. Tasks receive ctx; cancelling it asks running
// tasks to wind down but the loop keeps draining the queue so every accepted
// task runs (with the cancelled context) and can record its own outcome.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.jobs {
				if task == nil {
					continue
				}
				if err := task(ctx); err != nil {
					p.log.Error().Err(err).Int("worker", id).Msg("task error")
				}
			}
		}(i)
	}
}

// Submit enqueues a task, blocking while the queue is full. It fails only
// after Stop.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	// Holding the lock across the send keeps Stop from closing the channel
	// under an in-flight Submit.
	defer p.mu.Unlock()
	p.jobs <- task
	return nil
}

// Stop closes intake. Queued tasks still run; call Drain to wait for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.jobs)
}

// Drain blocks until all workers exit or ctx expires.
func (p *Pool) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.log.Warn().Msg("drain timeout: abandoning running tasks")
	}
}
