package uploader

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/revisions"
)

// Transport sends the content of one item to its reserved target.
type Transport interface {
	Upload(ctx context.Context, t models.TransferTarget) error
}

// TargetReserver reserves remote upload targets.
type TargetReserver interface {
	ReserveTargets(ctx context.Context, req models.ReserveRequest) (*models.ReserveResponse, error)
}

// Store gives serialized, transactional access to revision state.
type Store interface {
	Perform(ctx context.Context, fn func(ctx context.Context, repo revisions.Repository) error) error
}

// Progress receives the number of items that completed.
type Progress interface {
	Complete(units int)
}

// PageRunner uploads one page. Upload calls completion exactly once unless the
// runner is cancelled first, in which case completion is never called.
type PageRunner interface {
	Upload(ctx context.Context, completion func(error))
	Cancel()
}
