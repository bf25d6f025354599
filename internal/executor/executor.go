// Package executor runs tasks on a shared worker pool with a fixed maximum
// number of tasks in flight. Tasks may declare predecessors; a task starts only
// after all of its predecessors have finished, whatever their outcome.
//
// Cancellation is carried by the context passed to Submit. It is checked when a
// task is about to start: a task whose context is done finishes with ctx.Err()
// without running its body.
package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"golang.org/x/sync/semaphore"
)

// DefaultLimit is the default number of concurrently running tasks.
func DefaultLimit() int {
	return runtime.NumCPU() * 4
}

// Executor is a bounded-concurrency task runner. It is safe for concurrent use
// and may be shared by any number of producers.
type Executor struct {
	limit int
	sem   *semaphore.Weighted
	log   logging.Logger

	wg      sync.WaitGroup
	pending atomic.Int64
	running atomic.Int64
}

// New returns an Executor running at most limit tasks at a time. A limit below
// one is treated as one.
func New(limit int, log logging.Logger) *Executor {
	if limit < 1 {
		limit = 1
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Executor{
		limit: limit,
		sem:   semaphore.NewWeighted(int64(limit)),
		log:   log,
	}
}

// Limit returns the maximum number of tasks holding a slot at the same time.
func (e *Executor) Limit() int { return e.limit }

// Pending returns the number of submitted tasks that have not finished yet.
func (e *Executor) Pending() int { return int(e.pending.Load()) }

// Running returns the number of tasks currently holding a slot.
func (e *Executor) Running() int { return int(e.running.Load()) }

// Submit hands tasks to the executor. Predecessors declared with DependsOn must
// be submitted too (in this or an earlier call), otherwise the dependent task
// never starts. Submitting the same task twice panics.
func (e *Executor) Submit(ctx context.Context, tasks ...*Task) {
	for _, t := range tasks {
		if !t.submitted.CompareAndSwap(false, true) {
			panic(fmt.Sprintf("executor: task %q submitted twice", t.name))
		}
		e.pending.Add(1)
		e.wg.Add(1)
	}
	for _, t := range tasks {
		go e.schedule(ctx, t)
	}
}

// Wait blocks until every task submitted so far, and every task those tasks
// submit while running, has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) schedule(ctx context.Context, t *Task) {
	for _, d := range t.deps {
		select {
		case <-d.done:
		case <-ctx.Done():
			e.complete(t, ctx.Err())
			return
		}
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.complete(t, err)
		return
	}
	e.running.Add(1)
	release := func() {
		e.running.Add(-1)
		e.sem.Release(1)
	}

	// Acquire may succeed on an already cancelled context.
	if err := ctx.Err(); err != nil {
		release()
		e.complete(t, err)
		return
	}

	if t.run != nil {
		err := e.call(ctx, t, func() error { return t.run(ctx) })
		release()
		e.complete(t, err)
		return
	}

	go func() {
		select {
		case <-t.done:
		case <-ctx.Done():
			e.complete(t, ctx.Err())
		}
	}()

	finish := func(err error) { e.complete(t, err) }
	if err := e.call(ctx, t, func() error { t.start(ctx, finish); return nil }); err != nil {
		e.complete(t, err)
	}
	release()
}

func (e *Executor) call(ctx context.Context, t *Task, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: task %s: %v", ErrTaskPanicked, t.name, p)
			e.log.Error(ctx, "task panicked", "task", t.name, "panic", p)
		}
	}()
	return fn()
}

func (e *Executor) complete(t *Task, err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
		e.pending.Add(-1)
		e.wg.Done()
	})
}
