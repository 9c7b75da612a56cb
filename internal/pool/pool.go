// Package pool provides the bounded worker pool that decouples run
// submission from run execution. This package is internal and should not be
// imported by external projects.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrPoolFull is returned when the task queue is at capacity.
	ErrPoolFull = errors.New("pool queue is full")
)

// Task is one unit of asynchronous work.
type Task func(ctx context.Context)

type taskWrapper struct {
	ctx  context.Context
	task Task
}

// Pool runs submitted tasks on a fixed set of worker goroutines with a
// bounded queue. Submission never blocks: a full queue rejects.
type Pool struct {
	queue  chan taskWrapper
	wg     sync.WaitGroup
	closed atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
}

// New creates a pool with the given worker count and queue capacity and
// starts its workers.
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers
	}
	p := &Pool{queue: make(chan taskWrapper, queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for tw := range p.queue {
		tw.task(tw.ctx)
		p.completed.Add(1)
	}
}

// Submit enqueues a task. ctx is handed to the task when it runs; queue
// pressure is reported immediately, not via ctx.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if p.closed.Load() {
		p.rejected.Add(1)
		return ErrPoolClosed
	}
	select {
	case p.queue <- taskWrapper{ctx: ctx, task: task}:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

// Shutdown stops accepting tasks and waits until queued work drains or ctx
// expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports lifetime counters: submitted, completed, rejected.
func (p *Pool) Stats() (submitted, completed, rejected int64) {
	return p.submitted.Load(), p.completed.Load(), p.rejected.Load()
}
