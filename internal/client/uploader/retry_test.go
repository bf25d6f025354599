package uploader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/backoff"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delayRecorder struct {
	mu       sync.Mutex
	attempts []int
	d        time.Duration
}

func (r *delayRecorder) delay(attempt int) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return r.d
}

func (r *delayRecorder) recorded() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.attempts...)
}

func runRetry(t *testing.T, r *RetryPageUploader) error {
	t.Helper()
	done := make(chan error, 1)
	r.Upload(context.Background(), func(err error) { done <- err })
	return wait(t, done)
}

func TestRetryPageUploader_StopsAfterBudget(t *testing.T) {
	inner := &fakeRunner{outcomes: func(int) error { return ErrPageFinishedWithRetriableErrors }}
	rec := &delayRecorder{}

	err := runRetry(t, NewRetryPageUploader(inner, 3, rec.delay, nil))

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, CodeRetriesExhausted, exhausted.Code())
	assert.ErrorIs(t, err, ErrNotAllContentUploaded)
	assert.NotErrorIs(t, err, ErrPageFinishedWithRetriableErrors, "exhaustion must not look retriable")

	// give a hypothetical fourth attempt the chance to show up
	time.Sleep(20 * time.Millisecond)
	uploads, _ := inner.counts()
	assert.Equal(t, 3, uploads)
	assert.Equal(t, []int{1, 2}, rec.recorded())
}

func TestRetryPageUploader_SucceedsOnRetry(t *testing.T) {
	inner := &fakeRunner{outcomes: func(n int) error {
		if n == 0 {
			return ErrPageFinishedWithRetriableErrors
		}
		return nil
	}}
	rec := &delayRecorder{}

	require.NoError(t, runRetry(t, NewRetryPageUploader(inner, 3, rec.delay, nil)))
	uploads, _ := inner.counts()
	assert.Equal(t, 2, uploads)
	assert.Equal(t, []int{1}, rec.recorded(), "second attempt waits delay(1)")
}

func TestRetryPageUploader_FatalErrorIsNotRetried(t *testing.T) {
	boom := errors.New("content creation failed")
	inner := &fakeRunner{outcomes: func(int) error { return boom }}
	rec := &delayRecorder{}

	require.ErrorIs(t, runRetry(t, NewRetryPageUploader(inner, 3, rec.delay, nil)), boom)
	uploads, _ := inner.counts()
	assert.Equal(t, 1, uploads)
	assert.Empty(t, rec.recorded())
}

func TestRetryPageUploader_CancelStopsScheduledAttempt(t *testing.T) {
	first := make(chan struct{})
	var once sync.Once
	inner := &fakeRunner{outcomes: func(int) error {
		once.Do(func() { close(first) })
		return ErrPageFinishedWithRetriableErrors
	}}
	r := NewRetryPageUploader(inner, 3, func(int) time.Duration { return 30 * time.Millisecond }, nil)

	completed := make(chan error, 1)
	r.Upload(context.Background(), func(err error) { completed <- err })
	wait(t, first)
	// let the completion schedule the timer
	time.Sleep(5 * time.Millisecond)

	r.Cancel()
	r.Cancel()
	time.Sleep(60 * time.Millisecond)

	uploads, cancels := inner.counts()
	assert.Equal(t, 1, uploads, "no attempt may start after cancel")
	assert.Equal(t, 1, cancels, "cancel is forwarded once")
	select {
	case err := <-completed:
		t.Fatalf("completion called after cancel: %v", err)
	default:
	}
}

func TestRetryPageUploader_BackoffBeforeSecondAttempt(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real backoff delay")
	}

	f := newFixture(t)
	v := f.seed(t, seedSpec{blocks: 1, targetedBlocks: []int{0}})
	f.transport.fn = func(context.Context, models.TransferTarget) error { return errors.New("connection reset") }

	page := NewPageUploader(f.page(0, []int{0}, nil, v), f.deps())
	r := NewRetryPageUploader(page, 2, backoff.Delay, nil)

	start := time.Now()
	err := runRetry(t, r)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrNotAllContentUploaded)
	assert.False(t, f.block(t, 0).IsUploaded)
	assert.GreaterOrEqual(t, elapsed, backoff.Base)
	assert.Less(t, elapsed, 2*backoff.Base+backoff.MaxJitter)
	assert.Len(t, f.transport.Calls(), 2)
}
