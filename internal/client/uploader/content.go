package uploader

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/revisions"
	"github.com/dmitrijs2005/gophdrive/internal/metrics"
)

// createContent reserves targets for the given items, skipping those that got
// uploaded or received a target since they were scanned, and stores the
// returned targets.
func (p *PageUploader) createContent(ctx context.Context, candidates []pageItem) error {
	req := models.ReserveRequest{Identity: p.page.Identity}
	if len(candidates) == 0 {
		return nil
	}

	err := p.deps.Store.Perform(ctx, func(ctx context.Context, repo revisions.Repository) error {
		revID := p.page.Identity.RevisionID
		for _, it := range candidates {
			if it.kind == models.KindThumbnail {
				t, err := repo.GetThumbnail(ctx, revID, it.index)
				if err != nil {
					return fmt.Errorf("get thumbnail %d: %w", it.index, err)
				}
				if t.IsUploaded || t.Target != nil {
					continue
				}
				req.Thumbnails = append(req.Thumbnails, models.ThumbnailDescriptor{Type: t.Type, Size: t.Size, Hash: t.Hash})
				continue
			}

			b, err := repo.GetBlock(ctx, revID, it.index)
			if err != nil {
				return fmt.Errorf("get block %d: %w", it.index, err)
			}
			if b.IsUploaded || b.Target != nil {
				continue
			}
			if err := p.validateBlock(b); err != nil {
				return err
			}
			req.Blocks = append(req.Blocks, models.BlockDescriptor{
				Index:             b.Index,
				Size:              b.Size,
				Hash:              b.Hash,
				Signature:         b.Signature,
				SignerEmail:       b.SignerEmail,
				VerificationToken: p.page.Verification[b.Index],
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if req.Empty() {
		return nil
	}

	resp, err := p.deps.Reserver.ReserveTargets(ctx, req)
	metrics.TargetReservations.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("reserve targets: %w", err)
	}
	if resp == nil {
		resp = &models.ReserveResponse{}
	}

	requestedBlocks := make(map[int]bool, len(req.Blocks))
	for _, b := range req.Blocks {
		requestedBlocks[b.Index] = true
	}
	requestedThumbs := make(map[int]bool, len(req.Thumbnails))
	for _, t := range req.Thumbnails {
		requestedThumbs[t.Type] = true
	}

	err = p.deps.Store.Perform(ctx, func(ctx context.Context, repo revisions.Repository) error {
		revID := p.page.Identity.RevisionID
		for idx, target := range resp.Blocks {
			if !requestedBlocks[idx] {
				return fmt.Errorf("%w: block %d", ErrUnexpectedTarget, idx)
			}
			b, err := repo.GetBlock(ctx, revID, idx)
			if err != nil {
				return err
			}
			// uploaded meanwhile by a round-1 task
			if b.IsUploaded {
				continue
			}
			if err := repo.SetBlockTarget(ctx, revID, idx, &target); err != nil {
				return err
			}
		}
		for typ, target := range resp.Thumbnails {
			if !requestedThumbs[typ] {
				return fmt.Errorf("%w: thumbnail %d", ErrUnexpectedTarget, typ)
			}
			t, err := repo.GetThumbnail(ctx, revID, typ)
			if err != nil {
				return err
			}
			if t.IsUploaded {
				continue
			}
			if err := repo.SetThumbnailTarget(ctx, revID, typ, &target); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store targets: %w", err)
	}

	p.log.Debug(ctx, "targets reserved", "blocks", len(resp.Blocks), "thumbnails", len(resp.Thumbnails))
	return nil
}
