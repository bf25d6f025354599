package revisions

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
)

// Repository describes read and mutate operations on revision upload state.
type Repository interface {
	// CreateRevision inserts a revision.
	CreateRevision(ctx context.Context, r *models.Revision) error

	// GetRevision returns the revision or ErrNotFound.
	GetRevision(ctx context.Context, id string) (*models.Revision, error)

	// ListPendingRevisions returns revisions whose state is pending, ordered by id.
	ListPendingRevisions(ctx context.Context) ([]*models.Revision, error)

	// SetRevisionState updates the revision state.
	SetRevisionState(ctx context.Context, id string, state models.UploadState) error

	// CreateBlock inserts a block.
	CreateBlock(ctx context.Context, b *models.Block) error

	// GetBlocks returns the blocks of a revision ordered by index.
	GetBlocks(ctx context.Context, revisionID string) ([]*models.Block, error)

	// GetBlock returns one block or ErrNotFound.
	GetBlock(ctx context.Context, revisionID string, index int) (*models.Block, error)

	// SetBlockTarget stores or, when target is nil, clears the reserved target
	// of a block that is not uploaded yet.
	SetBlockTarget(ctx context.Context, revisionID string, index int, target *models.UploadTarget) error

	// MarkBlockUploaded flips the uploaded flag and records the consumed target.
	MarkBlockUploaded(ctx context.Context, revisionID string, index int, target models.UploadTarget) error

	// CreateThumbnail inserts a thumbnail.
	CreateThumbnail(ctx context.Context, t *models.Thumbnail) error

	// GetThumbnails returns the thumbnails of a revision ordered by type.
	GetThumbnails(ctx context.Context, revisionID string) ([]*models.Thumbnail, error)

	// GetThumbnail returns one thumbnail or ErrNotFound.
	GetThumbnail(ctx context.Context, revisionID string, typ int) (*models.Thumbnail, error)

	// SetThumbnailTarget behaves like SetBlockTarget.
	SetThumbnailTarget(ctx context.Context, revisionID string, typ int, target *models.UploadTarget) error

	// MarkThumbnailUploaded behaves like MarkBlockUploaded.
	MarkThumbnailUploaded(ctx context.Context, revisionID string, typ int, target models.UploadTarget) error
}
