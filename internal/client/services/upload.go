package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/revisions"
	"github.com/dmitrijs2005/gophdrive/internal/client/uploader"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/scheduler"
)

// DefaultRevisionConcurrency is the number of revisions uploaded at a time.
const DefaultRevisionConcurrency = 2

// UploadResult is the outcome of one revision.
type UploadResult struct {
	RevisionID string
	Err        error
}

type UploadService interface {
	// UploadPending uploads every pending revision of the local database. The
	// results follow the order of the pending list; the returned error joins
	// every failure.
	UploadPending(ctx context.Context) ([]UploadResult, error)
}

type uploadService struct {
	store       uploader.Store
	verifier    Verifier
	deps        uploader.PageDeps
	opts        uploader.Options
	concurrency int
	log         logging.Logger
}

// NewUploadService returns an UploadService. Verification tokens are fetched
// one revision at a time before up to concurrency revisions are uploaded on
// deps.Executor.
func NewUploadService(verifier Verifier, deps uploader.PageDeps, opts uploader.Options, concurrency int) UploadService {
	if concurrency < 1 {
		concurrency = DefaultRevisionConcurrency
	}
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}
	return &uploadService{
		store:       deps.Store,
		verifier:    verifier,
		deps:        deps,
		opts:        opts,
		concurrency: concurrency,
		log:         log,
	}
}

func (s *uploadService) UploadPending(ctx context.Context) ([]UploadResult, error) {

	var pending []*models.Revision
	err := s.store.Perform(ctx, func(ctx context.Context, repo revisions.Repository) error {
		var err error
		pending, err = repo.ListPendingRevisions(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list pending revisions: %w", err)
	}

	results := make([]UploadResult, len(pending))
	verifications := make([]models.BlockVerification, len(pending))
	ready := make([]bool, len(pending))
	var mu sync.Mutex

	setResult := func(i int, err error) {
		mu.Lock()
		defer mu.Unlock()
		results[i] = UploadResult{RevisionID: pending[i].ID, Err: err}
	}

	serial := make([]scheduler.Func, 0, len(pending))
	for i, rev := range pending {
		serial = append(serial, func(ctx context.Context) error {
			v, err := s.verifier.Verification(ctx, rev.ID)
			if err != nil {
				setResult(i, err)
				return err
			}
			mu.Lock()
			verifications[i], ready[i] = v, true
			mu.Unlock()
			return nil
		})
	}

	next := 0
	concurrent := scheduler.IteratorFunc(func() (scheduler.Func, bool) {
		mu.Lock()
		defer mu.Unlock()
		// revisions whose verification failed already have a result
		for next < len(pending) && !ready[next] {
			next++
		}
		if next >= len(pending) {
			return nil, false
		}
		i, v := next, verifications[next]
		next++
		return func(ctx context.Context) error {
			err := s.uploadRevision(ctx, pending[i].ID, v)
			setResult(i, err)
			return err
		}, true
	})

	s.log.Info(ctx, "uploading pending revisions", "count", len(pending))
	err = scheduler.New(s.concurrency, s.log).Run(ctx, scheduler.Slice(serial...), concurrent)

	for i := range results {
		if results[i].RevisionID == "" {
			results[i] = UploadResult{RevisionID: pending[i].ID, Err: ctx.Err()}
		}
	}

	return results, err
}

func (s *uploadService) uploadRevision(ctx context.Context, revisionID string, v models.BlockVerification) error {
	u := uploader.NewRevisionUploader(s.deps, s.opts)

	err := u.UploadAndWait(ctx, revisionID, v)
	if ctx.Err() != nil {
		u.Cancel()
	}
	if err != nil {
		return fmt.Errorf("upload revision %s: %w", revisionID, err)
	}
	return nil
}
