// Package async provides the bounded worker pool that runs deferred clone
// jobs for the populate pipeline.
package async

import (
	"context"
	"fmt"
	"sync"

	"github.com/spawnforge/spawncache/errs"
)

// Task represents a unit of work executed by the pool workers. Tasks own
// their errors; the pool only guarantees that every accepted task runs.
type Task func(context.Context) error

// Pool is a bounded worker pool. Population places no upper bound on how
// many clones a caller may schedule, so Submit blocks under backpressure
// instead of dropping, and shutdown drains the queue instead of abandoning
// it: an accepted task always runs, even across Close.
type Pool struct {
	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
	once   sync.Once
}

type job struct {
	ctx context.Context
	fn  Task
}

// NewPool creates a worker pool with the given concurrency and queue depth.
func NewPool(workers, queue int) (*Pool, error) {
	if workers <= 0 {
		return nil, errs.New("lib/async", errs.CodeInvalid, errs.WithMessage("workers must be >0"))
	}
	if queue < 0 {
		queue = 0
	}
	p := new(Pool)
	p.jobs = make(chan job, queue)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p, nil
}

// Submit schedules the provided task, blocking while the queue is full. It
// fails only when the pool is already closed or ctx ends before the task is
// accepted; once accepted, the task is guaranteed to run.
func (p *Pool) Submit(ctx context.Context, fn Task) error {
	if fn == nil {
		return errs.New("lib/async", errs.CodeInvalid, errs.WithMessage("task must not be nil"))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// The read lock is held across the send so Close cannot close the jobs
	// channel while a submission is in flight.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errs.New("lib/async", errs.CodeUnavailable, errs.WithMessage("pool closed"))
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("submit context: %w", ctx.Err())
	case p.jobs <- job{ctx: ctx, fn: fn}:
		return nil
	}
}

// Close stops accepting new tasks. Tasks already queued still run.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.jobs)
	})
}

// Shutdown closes the pool and waits until the queue has drained and every
// worker has finished, or until the context expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.Close()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// worker drains the job channel; the channel closing is the only stop
// signal, so queued tasks are never abandoned.
func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		ctx := j.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					// swallow panics to keep the worker alive; tasks report
					// failures through their own channels.
					_ = r
				}
			}()
			if err := j.fn(ctx); err != nil {
				_ = err
			}
		}()
	}
}
