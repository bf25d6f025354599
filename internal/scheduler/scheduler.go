// Package scheduler implements a two-lane task scheduler: a serial lane that is
// drained one task at a time, followed by a concurrent lane drained with a
// bounded number of tasks in flight. It is used to run heavy preparation work
// strictly sequentially before fanning out lighter work.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/gophdrive/internal/executor"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

// Func is a unit of work pulled from a lane.
type Func func(ctx context.Context) error

// Iterator yields tasks on demand. Next returns false once the lane is
// exhausted; it is never called again after that.
type Iterator interface {
	Next() (Func, bool)
}

// IteratorFunc adapts a function to Iterator.
type IteratorFunc func() (Func, bool)

func (f IteratorFunc) Next() (Func, bool) { return f() }

// Slice returns an Iterator over fns.
func Slice(fns ...Func) Iterator {
	i := 0
	return IteratorFunc(func() (Func, bool) {
		if i >= len(fns) {
			return nil, false
		}
		fn := fns[i]
		i++
		return fn, true
	})
}

// Empty is an exhausted Iterator.
func Empty() Iterator { return Slice() }

// Scheduler drains a serial lane and then a concurrent lane.
type Scheduler struct {
	serial     *executor.Executor
	concurrent *executor.Executor
	log        logging.Logger

	once sync.Once
	done chan struct{}
}

// New returns a Scheduler whose concurrent lane runs at most limit tasks at a
// time.
func New(limit int, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{
		serial:     executor.New(1, log),
		concurrent: executor.New(limit, log),
		log:        log,
		done:       make(chan struct{}),
	}
}

// Limit returns the concurrent lane capacity.
func (s *Scheduler) Limit() int { return s.concurrent.Limit() }

// Done is closed exactly once, after Run has drained both lanes.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Run drains both lanes and returns the errors of failed tasks joined together
// with ctx.Err() if the context was cancelled. A Scheduler runs once; later
// calls return ErrAlreadyRun.
func (s *Scheduler) Run(ctx context.Context, serial, concurrent Iterator) error {
	err := ErrAlreadyRun
	s.once.Do(func() {
		defer close(s.done)
		err = s.run(ctx, serial, concurrent)
	})
	return err
}

func (s *Scheduler) run(ctx context.Context, serial, concurrent Iterator) error {
	var errs []error

	for ctx.Err() == nil {
		fn, ok := serial.Next()
		if !ok {
			break
		}
		task := executor.NewTask("serial", fn)
		s.serial.Submit(ctx, task)
		<-task.Done()
		s.serial.Wait()
		errs = appendErr(errs, task.Err())
	}

	limit := s.concurrent.Limit()
	finished := make(chan *executor.Task, limit)
	inFlight := 0
	exhausted := false

	for {
		for !exhausted && inFlight < limit && ctx.Err() == nil {
			fn, ok := concurrent.Next()
			if !ok {
				exhausted = true
				break
			}
			task := executor.NewTask("concurrent", fn)
			s.concurrent.Submit(ctx, task)
			go func() {
				<-task.Done()
				finished <- task
			}()
			inFlight++
		}

		if inFlight == 0 && (exhausted || ctx.Err() != nil) {
			break
		}

		task := <-finished
		inFlight--
		errs = appendErr(errs, task.Err())
	}

	s.concurrent.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// appendErr drops nil and cancellation errors; cancellation is reported once by
// Run itself.
func appendErr(errs []error, err error) []error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs
	}
	return append(errs, err)
}
