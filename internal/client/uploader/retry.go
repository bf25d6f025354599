package uploader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/backoff"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

// DefaultMaxAttempts is the page attempt budget.
const DefaultMaxAttempts = 3

// RetryPageUploader retries a page that finished with outstanding items.
// Attempt n (0-based) starts delay(n) after attempt n-1 reported
// ErrPageFinishedWithRetriableErrors; any other outcome is final.
type RetryPageUploader struct {
	inner       PageRunner
	maxAttempts int
	delay       backoff.Func
	log         logging.Logger

	mu        sync.Mutex
	cancelled bool
	timer     *time.Timer
}

// NewRetryPageUploader wraps inner. A nil delay means backoff.Delay.
func NewRetryPageUploader(inner PageRunner, maxAttempts int, delay backoff.Func, log logging.Logger) *RetryPageUploader {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if delay == nil {
		delay = backoff.Delay
	}
	if log == nil {
		log = logging.Nop()
	}
	return &RetryPageUploader{inner: inner, maxAttempts: maxAttempts, delay: delay, log: log}
}

func (r *RetryPageUploader) Upload(ctx context.Context, completion func(error)) {
	r.run(ctx, 0, completion)
}

func (r *RetryPageUploader) run(ctx context.Context, attempt int, completion func(error)) {
	if r.isCancelled() || ctx.Err() != nil {
		return
	}

	r.inner.Upload(ctx, func(err error) {
		if r.isCancelled() {
			return
		}

		if !errors.Is(err, ErrPageFinishedWithRetriableErrors) {
			completion(err)
			return
		}

		next := attempt + 1
		if next >= r.maxAttempts {
			r.log.Warn(ctx, "page retries exhausted", "attempt", next)
			completion(&RetriesExhaustedError{Attempts: r.maxAttempts})
			return
		}

		d := r.delay(next)
		r.log.Info(ctx, "page incomplete, retrying", "attempt", next, "delay", d)

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.cancelled {
			return
		}
		r.timer = time.AfterFunc(d, func() {
			r.run(ctx, next, completion)
		})
	})
}

func (r *RetryPageUploader) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Cancel stops any scheduled attempt and cancels the running one. It is safe
// to call more than once.
func (r *RetryPageUploader) Cancel() {
	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return
	}
	r.cancelled = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()

	r.inner.Cancel()
}
