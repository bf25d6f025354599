package uploader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/gophdrive/internal/backoff"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/revisions"
	"github.com/dmitrijs2005/gophdrive/internal/executor"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/metrics"
	"github.com/google/uuid"
)

// Options tune a RevisionUploader.
type Options struct {
	PageSize    int
	MaxAttempts int
	// Delay defaults to backoff.Delay.
	Delay backoff.Func
}

// RevisionUploader uploads every outstanding item of a revision and marks the
// revision uploaded.
type RevisionUploader struct {
	deps PageDeps
	opts Options

	mu        sync.Mutex
	cancelled bool
	cancels   []context.CancelFunc
	runners   []PageRunner
}

func NewRevisionUploader(deps PageDeps, opts Options) *RevisionUploader {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Delay == nil {
		opts.Delay = backoff.Delay
	}
	if deps.Progress == nil {
		deps.Progress = nopProgress{}
	}
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	return &RevisionUploader{deps: deps, opts: opts}
}

// Upload starts uploading the revision and returns immediately. completion is
// called once with nil after the revision was marked uploaded, with the first
// fatal error, or with ctx.Err() when ctx ends first. It is not called when the
// upload is cancelled with Cancel.
func (u *RevisionUploader) Upload(ctx context.Context, revisionID string, verification models.BlockVerification, completion func(error)) {
	ctx, cancel := context.WithCancel(ctx)
	if !u.register(cancel) {
		cancel()
		return
	}

	log := u.deps.Log.With("revision", revisionID, "upload", uuid.NewString())
	var (
		once     sync.Once
		finished atomic.Bool
	)
	done := func(err error) {
		once.Do(func() {
			finished.Store(true)
			defer cancel()
			outcome := "uploaded"
			if err != nil {
				outcome = "failed"
			}
			metrics.RevisionsFinalized.WithLabelValues(outcome).Inc()
			if u.isCancelled() {
				return
			}
			completion(err)
		})
	}

	// Tasks whose context ended never run their bodies, so the terminal error
	// is delivered from here.
	context.AfterFunc(ctx, func() {
		if finished.Load() {
			return
		}
		if !u.isCancelled() {
			log.Warn(ctx, "revision upload interrupted", "err", ctx.Err())
		}
		done(ctx.Err())
	})

	var (
		rev        *models.Revision
		blocks     []*models.Block
		thumbnails []*models.Thumbnail
	)
	err := u.deps.Store.Perform(ctx, func(ctx context.Context, repo revisions.Repository) error {
		var err error
		if rev, err = repo.GetRevision(ctx, revisionID); err != nil {
			return fmt.Errorf("get revision: %w", err)
		}
		if rev.State != models.UploadStatePending {
			return fmt.Errorf("%w: %s", ErrInvalidRevisionState, rev.State)
		}
		if blocks, err = repo.GetBlocks(ctx, revisionID); err != nil {
			return fmt.Errorf("get blocks: %w", err)
		}
		if thumbnails, err = repo.GetThumbnails(ctx, revisionID); err != nil {
			return fmt.Errorf("get thumbnails: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error(ctx, "revision upload rejected", "err", err)
		done(err)
		return
	}

	uploaded := 0
	for _, b := range blocks {
		if b.IsUploaded {
			uploaded++
		}
	}
	for _, t := range thumbnails {
		if t.IsUploaded {
			uploaded++
		}
	}
	u.deps.Progress.Complete(uploaded)

	pages := SplitPages(rev.Identity(), blocks, thumbnails, u.opts.PageSize, verification)
	log.Info(ctx, "uploading revision", "pages", len(pages), "blocks", len(blocks), "thumbnails", len(thumbnails), "uploaded", uploaded)

	pageDeps := u.deps
	pageDeps.Log = log

	pageTasks := make([]*executor.Task, 0, len(pages))
	for _, page := range pages {
		runner := NewRetryPageUploader(NewPageUploader(page, pageDeps), u.opts.MaxAttempts, u.opts.Delay, log.With("page", page.Index))
		if !u.track(runner) {
			return
		}
		name := fmt.Sprintf("%s/page-%d", revisionID, page.Index)
		pageTasks = append(pageTasks, executor.NewAsyncTask(name, func(ctx context.Context, finish func(error)) {
			runner.Upload(ctx, finish)
		}))
	}

	finalize := executor.NewTask(revisionID+"/finalize", func(ctx context.Context) error {
		err := u.finalize(ctx, revisionID, pages, pageTasks)
		if err != nil {
			log.Error(ctx, "revision upload failed", "err", err)
		} else {
			log.Info(ctx, "revision uploaded")
		}
		done(err)
		return err
	}).DependsOn(pageTasks...)

	u.deps.Executor.Submit(ctx, append(pageTasks, finalize)...)
}

// finalize runs after every page task finished.
func (u *RevisionUploader) finalize(ctx context.Context, revisionID string, pages []models.Page, tasks []*executor.Task) error {
	for i, t := range tasks {
		if err := t.Err(); err != nil {
			return &PageError{Page: pages[i].Index, Err: err}
		}
	}

	return u.deps.Store.Perform(ctx, func(ctx context.Context, repo revisions.Repository) error {
		return repo.SetRevisionState(ctx, revisionID, models.UploadStateUploaded)
	})
}

// UploadAndWait runs Upload and blocks until it completes or ctx is done.
func (u *RevisionUploader) UploadAndWait(ctx context.Context, revisionID string, verification models.BlockVerification) error {
	result := make(chan error, 1)
	u.Upload(ctx, revisionID, verification, func(err error) { result <- err })

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *RevisionUploader) register(cancel context.CancelFunc) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancelled {
		return false
	}
	u.cancels = append(u.cancels, cancel)
	return true
}

func (u *RevisionUploader) track(r PageRunner) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancelled {
		return false
	}
	u.runners = append(u.runners, r)
	return true
}

func (u *RevisionUploader) isCancelled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cancelled
}

// Cancel stops every upload started by u. Pages that have not started are
// never started and no completion is called afterwards. It is safe to call
// more than once and from any goroutine.
func (u *RevisionUploader) Cancel() {
	u.mu.Lock()
	if u.cancelled {
		u.mu.Unlock()
		return
	}
	u.cancelled = true
	runners, cancels := u.runners, u.cancels
	u.runners, u.cancels = nil, nil
	u.mu.Unlock()

	for _, r := range runners {
		r.Cancel()
	}
	for _, c := range cancels {
		c()
	}
}
