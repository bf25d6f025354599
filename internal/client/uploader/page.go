package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/revisions"
	"github.com/dmitrijs2005/gophdrive/internal/executor"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/metrics"
)

// PageState is the position of a page in its upload protocol.
type PageState int

const (
	PageIdle PageState = iota
	PageRound1
	PageCreatingTargets
	PageRound2
	PageVerifying
	PageSucceeded
	PageRetriableFailure
	PageFatalFailure
	PageCancelled
)

func (s PageState) String() string {
	switch s {
	case PageIdle:
		return "idle"
	case PageRound1:
		return "round1"
	case PageCreatingTargets:
		return "creatingTargets"
	case PageRound2:
		return "round2"
	case PageVerifying:
		return "verifying"
	case PageSucceeded:
		return "succeeded"
	case PageRetriableFailure:
		return "retriableFailure"
	case PageFatalFailure:
		return "fatalFailure"
	case PageCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("PageState(%d)", int(s))
	}
}

// PageDeps are the collaborators shared by every page of a revision.
type PageDeps struct {
	Executor  *executor.Executor
	Store     Store
	Transport Transport
	Reserver  TargetReserver
	Progress  Progress
	Log       logging.Logger
}

// PageUploader runs the two-round protocol for one page. Upload may be called
// again after the previous attempt completed; every call is a new attempt.
type PageUploader struct {
	page models.Page
	deps PageDeps
	log  logging.Logger

	mu        sync.Mutex
	state     PageState
	cancelAtt context.CancelFunc
	cancelled atomic.Bool
}

func NewPageUploader(page models.Page, deps PageDeps) *PageUploader {
	if deps.Progress == nil {
		deps.Progress = nopProgress{}
	}
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	return &PageUploader{
		page: page,
		deps: deps,
		log:  deps.Log.With("revision", page.Identity.RevisionID, "page", page.Index),
	}
}

// State returns the current protocol state.
func (p *PageUploader) State() PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PageUploader) setState(s PageState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PageCancelled {
		p.state = s
	}
}

// Cancel stops the page. Tasks that have not started are skipped and the
// completion of the running attempt is never called.
func (p *PageUploader) Cancel() {
	if !p.cancelled.CompareAndSwap(false, true) {
		return
	}
	p.mu.Lock()
	p.state = PageCancelled
	cancel := p.cancelAtt
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// attempt is one run of the protocol.
type attempt struct {
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	completion func(error)
}

func (p *PageUploader) Upload(ctx context.Context, completion func(error)) {
	if p.cancelled.Load() {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a := &attempt{ctx: ctx, cancel: cancel, completion: completion}

	p.mu.Lock()
	p.cancelAtt = cancel
	p.mu.Unlock()
	// Cancel may have run between the check above and storing cancel.
	if p.cancelled.Load() {
		cancel()
		return
	}

	p.setState(PageRound1)

	items, targetless, err := p.scan(ctx, true)
	if err != nil {
		p.finish(a, err)
		return
	}

	round1 := p.uploadTasks(a, items, 1)
	content := executor.NewTask(p.taskName("content"), func(ctx context.Context) error {
		p.setState(PageCreatingTargets)
		return p.createContent(ctx, targetless)
	})
	barrier := executor.NewTask(p.taskName("barrier"), func(ctx context.Context) error {
		return p.round2(a, content)
	}).DependsOn(content).DependsOn(round1...)

	p.log.Debug(ctx, "page round 1", "uploads", len(round1))
	p.deps.Executor.Submit(ctx, append(round1, content, barrier)...)
}

// round2 runs once content creation and every round-1 upload finished.
func (p *PageUploader) round2(a *attempt, content *executor.Task) error {
	if err := content.Err(); err != nil {
		p.finish(a, err)
		return err
	}
	if err := a.ctx.Err(); err != nil {
		return err
	}

	p.setState(PageRound2)

	items, _, err := p.scan(a.ctx, false)
	if err != nil {
		p.finish(a, err)
		return err
	}

	round2 := p.uploadTasks(a, items, 2)
	verify := executor.NewTask(p.taskName("verify"), func(ctx context.Context) error {
		p.setState(PageVerifying)
		err := p.verify(ctx)
		p.finish(a, err)
		return err
	}).DependsOn(round2...)

	p.log.Debug(a.ctx, "page round 2", "uploads", len(round2))
	p.deps.Executor.Submit(a.ctx, append(round2, verify)...)
	return nil
}

// finish reports the attempt outcome once, unless the page was cancelled.
func (p *PageUploader) finish(a *attempt, err error) {
	a.once.Do(func() {
		defer a.cancel()

		if p.cancelled.Load() || a.ctx.Err() != nil {
			return
		}

		var outcome string
		switch {
		case err == nil:
			p.setState(PageSucceeded)
			outcome = "succeeded"
		case errors.Is(err, ErrPageFinishedWithRetriableErrors):
			p.setState(PageRetriableFailure)
			outcome = "retriable"
		default:
			p.setState(PageFatalFailure)
			outcome = "fatal"
			p.log.Warn(a.ctx, "page failed", "err", err)
		}
		metrics.PageAttempts.WithLabelValues(outcome).Inc()

		a.completion(err)
	})
}

func (p *PageUploader) taskName(what string) string {
	return fmt.Sprintf("%s/page-%d/%s", p.page.Identity.RevisionID, p.page.Index, what)
}

// pageItem is an item of the page that is eligible for upload.
type pageItem struct {
	kind  models.ItemKind
	index int
}

// scan returns the eligible items of the page and the outstanding items that
// lack a target. The first scan of an attempt also validates every outstanding
// item.
func (p *PageUploader) scan(ctx context.Context, validate bool) ([]pageItem, []pageItem, error) {
	var items, targetless []pageItem

	err := p.deps.Store.Perform(ctx, func(ctx context.Context, repo revisions.Repository) error {
		items, targetless = items[:0], targetless[:0]
		for _, idx := range p.page.Blocks {
			b, err := repo.GetBlock(ctx, p.page.Identity.RevisionID, idx)
			if err != nil {
				return fmt.Errorf("get block %d: %w", idx, err)
			}
			if validate && !b.IsUploaded {
				if err := p.validateBlock(b); err != nil {
					return err
				}
			}
			switch {
			case b.Eligible():
				items = append(items, pageItem{models.KindBlock, idx})
			case !b.IsUploaded:
				targetless = append(targetless, pageItem{models.KindBlock, idx})
			}
		}
		for _, typ := range p.page.Thumbnails {
			t, err := repo.GetThumbnail(ctx, p.page.Identity.RevisionID, typ)
			if err != nil {
				return fmt.Errorf("get thumbnail %d: %w", typ, err)
			}
			if validate && !t.IsUploaded && t.LocalPath == "" {
				return &InvalidStateError{Kind: models.KindThumbnail, RevisionID: t.RevisionID, Index: t.Type, Field: "local path"}
			}
			switch {
			case t.Eligible():
				items = append(items, pageItem{models.KindThumbnail, typ})
			case !t.IsUploaded:
				targetless = append(targetless, pageItem{models.KindThumbnail, typ})
			}
		}
		return nil
	})

	return items, targetless, err
}

func (p *PageUploader) validateBlock(b *models.Block) error {
	field := ""
	switch {
	case b.LocalPath == "":
		field = "local path"
	case b.Signature == "":
		field = "signature"
	case b.SignerEmail == "":
		field = "signer email"
	case len(p.page.Verification[b.Index]) == 0:
		field = "verification token"
	}
	if field == "" {
		return nil
	}
	return &InvalidStateError{Kind: models.KindBlock, RevisionID: b.RevisionID, Index: b.Index, Field: field}
}

func (p *PageUploader) uploadTasks(a *attempt, items []pageItem, round int) []*executor.Task {
	tasks := make([]*executor.Task, 0, len(items))
	for _, it := range items {
		it := it
		name := p.taskName(fmt.Sprintf("round%d/%s-%d", round, it.kind, it.index))
		tasks = append(tasks, executor.NewTask(name, func(ctx context.Context) error {
			return p.uploadItem(ctx, it)
		}))
	}
	return tasks
}

// uploadItem uploads one item. Its reserved target is cleared before the
// transfer starts and the item is marked uploaded after the transfer succeeded.
func (p *PageUploader) uploadItem(ctx context.Context, it pageItem) error {
	var (
		transfer models.TransferTarget
		ok       bool
	)

	err := p.deps.Store.Perform(ctx, func(ctx context.Context, repo revisions.Repository) error {
		revID := p.page.Identity.RevisionID
		switch it.kind {
		case models.KindBlock:
			b, err := repo.GetBlock(ctx, revID, it.index)
			if err != nil {
				return err
			}
			if b.IsUploaded {
				return nil
			}
			if transfer, ok = models.NewBlockTransfer(b, p.page.Verification[b.Index]); !ok {
				return nil
			}
			return repo.SetBlockTarget(ctx, revID, it.index, nil)
		default:
			t, err := repo.GetThumbnail(ctx, revID, it.index)
			if err != nil {
				return err
			}
			if t.IsUploaded {
				return nil
			}
			if transfer, ok = models.NewThumbnailTransfer(t); !ok {
				return nil
			}
			return repo.SetThumbnailTarget(ctx, revID, it.index, nil)
		}
	})
	if err != nil {
		p.log.Warn(ctx, "prepare upload", "kind", it.kind, "index", it.index, "err", err)
		return err
	}
	if !ok {
		return nil
	}

	if err := p.deps.Transport.Upload(ctx, transfer); err != nil {
		metrics.ItemUploads.WithLabelValues(string(it.kind), "error").Inc()
		p.log.Warn(ctx, "upload failed", "kind", it.kind, "index", it.index, "err", err)
		return err
	}

	// A finished transfer is recorded even if the page was cancelled meanwhile.
	err = p.deps.Store.Perform(context.WithoutCancel(ctx), func(ctx context.Context, repo revisions.Repository) error {
		if it.kind == models.KindBlock {
			return repo.MarkBlockUploaded(ctx, transfer.RevisionID, it.index, transfer.Target)
		}
		return repo.MarkThumbnailUploaded(ctx, transfer.RevisionID, it.index, transfer.Target)
	})
	if err != nil {
		metrics.ItemUploads.WithLabelValues(string(it.kind), "error").Inc()
		p.log.Warn(ctx, "persist upload", "kind", it.kind, "index", it.index, "err", err)
		return err
	}

	metrics.ItemUploads.WithLabelValues(string(it.kind), "ok").Inc()
	p.deps.Progress.Complete(1)
	p.log.Debug(ctx, "item uploaded", "kind", it.kind, "index", it.index)
	return nil
}

// verify re-reads the page and reports whether every item is uploaded.
func (p *PageUploader) verify(ctx context.Context) error {
	complete := true

	err := p.deps.Store.Perform(ctx, func(ctx context.Context, repo revisions.Repository) error {
		complete = true
		for _, idx := range p.page.Blocks {
			b, err := repo.GetBlock(ctx, p.page.Identity.RevisionID, idx)
			if err != nil {
				return err
			}
			complete = complete && b.IsUploaded
		}
		for _, typ := range p.page.Thumbnails {
			t, err := repo.GetThumbnail(ctx, p.page.Identity.RevisionID, typ)
			if err != nil {
				return err
			}
			complete = complete && t.IsUploaded
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !complete {
		return ErrPageFinishedWithRetriableErrors
	}
	return nil
}
