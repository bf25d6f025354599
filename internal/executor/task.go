package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrTaskPanicked is reported by tasks whose body panicked.
var ErrTaskPanicked = errors.New("task panicked")

// Task is a unit of work for an Executor.
type Task struct {
	name  string
	run   func(ctx context.Context) error
	start func(ctx context.Context, finish func(error))
	deps  []*Task

	submitted atomic.Bool
	once      sync.Once
	done      chan struct{}
	err       error
}

// NewTask returns a task that finishes when fn returns.
func NewTask(name string, fn func(ctx context.Context) error) *Task {
	return &Task{name: name, run: fn, done: make(chan struct{})}
}

// NewAsyncTask returns a task that is started by fn and finishes when fn calls
// finish (at most the first call counts) or when the submission context is
// cancelled. The task holds an executor slot only while fn itself runs.
func NewAsyncTask(name string, fn func(ctx context.Context, finish func(error))) *Task {
	return &Task{name: name, start: fn, done: make(chan struct{})}
}

// DependsOn adds predecessors. It must be called before the task is submitted.
func (t *Task) DependsOn(deps ...*Task) *Task {
	if t.submitted.Load() {
		panic("executor: DependsOn called after Submit")
	}
	t.deps = append(t.deps, deps...)
	return t
}

// Name returns the task name given at construction.
func (t *Task) Name() string { return t.name }

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task outcome. It is nil until Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Finished reports whether the task has finished.
func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
