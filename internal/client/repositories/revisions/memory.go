package revisions

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
)

type itemKey struct {
	revisionID string
	index      int
}

type memoryState struct {
	revisions  map[string]models.Revision
	blocks     map[itemKey]models.Block
	thumbnails map[itemKey]models.Thumbnail
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		revisions:  maps.Clone(s.revisions),
		blocks:     maps.Clone(s.blocks),
		thumbnails: maps.Clone(s.thumbnails),
	}
}

// MemoryStore is an in-memory Store. Each scope works on a copy of the state
// that replaces the current one only when the scope succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		revisions:  map[string]models.Revision{},
		blocks:     map[itemKey]models.Block{},
		thumbnails: map[itemKey]models.Thumbnail{},
	}}
}

func (s *MemoryStore) Perform(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	draft := s.state.clone()
	if err := fn(ctx, &memoryRepository{state: draft}); err != nil {
		return err
	}
	s.state = draft

	return nil
}

// memoryRepository stores values and hands out copies so callers cannot
// mutate state outside a scope.
type memoryRepository struct {
	state *memoryState
}

func copyTarget(t *models.UploadTarget) *models.UploadTarget {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (r *memoryRepository) CreateRevision(_ context.Context, rev *models.Revision) error {
	if _, ok := r.state.revisions[rev.ID]; ok {
		return fmt.Errorf("failed to insert revision: %w", ErrAlreadyExists)
	}
	stored := *rev
	stored.State = initialState(rev.State)
	r.state.revisions[rev.ID] = stored
	return nil
}

func (r *memoryRepository) GetRevision(_ context.Context, id string) (*models.Revision, error) {
	rev, ok := r.state.revisions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rev, nil
}

func (r *memoryRepository) ListPendingRevisions(_ context.Context) ([]*models.Revision, error) {
	var result []*models.Revision
	for _, rev := range r.state.revisions {
		if rev.State == models.UploadStatePending {
			rev := rev
			result = append(result, &rev)
		}
	}
	slices.SortFunc(result, func(a, b *models.Revision) int { return strings.Compare(a.ID, b.ID) })
	return result, nil
}

func (r *memoryRepository) SetRevisionState(_ context.Context, id string, state models.UploadState) error {
	rev, ok := r.state.revisions[id]
	if !ok {
		return fmt.Errorf("%w: 0", ErrWrongRowsCount)
	}
	rev.State = state
	r.state.revisions[id] = rev
	return nil
}

func (r *memoryRepository) CreateBlock(_ context.Context, b *models.Block) error {
	k := itemKey{b.RevisionID, b.Index}
	if _, ok := r.state.blocks[k]; ok {
		return fmt.Errorf("failed to insert block: %w", ErrAlreadyExists)
	}
	c := *b
	c.Target = copyTarget(b.Target)
	r.state.blocks[k] = c
	return nil
}

func (r *memoryRepository) GetBlocks(_ context.Context, revisionID string) ([]*models.Block, error) {
	var result []*models.Block
	for k, b := range r.state.blocks {
		if k.revisionID == revisionID {
			b := b
			b.Target = copyTarget(b.Target)
			result = append(result, &b)
		}
	}
	slices.SortFunc(result, func(a, b *models.Block) int { return a.Index - b.Index })
	return result, nil
}

func (r *memoryRepository) GetBlock(_ context.Context, revisionID string, index int) (*models.Block, error) {
	b, ok := r.state.blocks[itemKey{revisionID, index}]
	if !ok {
		return nil, ErrNotFound
	}
	b.Target = copyTarget(b.Target)
	return &b, nil
}

func (r *memoryRepository) SetBlockTarget(_ context.Context, revisionID string, index int, target *models.UploadTarget) error {
	k := itemKey{revisionID, index}
	b, ok := r.state.blocks[k]
	if !ok || b.IsUploaded {
		return fmt.Errorf("%w: 0", ErrWrongRowsCount)
	}
	b.Target = copyTarget(target)
	r.state.blocks[k] = b
	return nil
}

func (r *memoryRepository) MarkBlockUploaded(_ context.Context, revisionID string, index int, target models.UploadTarget) error {
	k := itemKey{revisionID, index}
	b, ok := r.state.blocks[k]
	if !ok {
		return fmt.Errorf("%w: 0", ErrWrongRowsCount)
	}
	b.IsUploaded = true
	b.Target = &target
	r.state.blocks[k] = b
	return nil
}

func (r *memoryRepository) CreateThumbnail(_ context.Context, t *models.Thumbnail) error {
	k := itemKey{t.RevisionID, t.Type}
	if _, ok := r.state.thumbnails[k]; ok {
		return fmt.Errorf("failed to insert thumbnail: %w", ErrAlreadyExists)
	}
	c := *t
	c.Target = copyTarget(t.Target)
	r.state.thumbnails[k] = c
	return nil
}

func (r *memoryRepository) GetThumbnails(_ context.Context, revisionID string) ([]*models.Thumbnail, error) {
	var result []*models.Thumbnail
	for k, t := range r.state.thumbnails {
		if k.revisionID == revisionID {
			t := t
			t.Target = copyTarget(t.Target)
			result = append(result, &t)
		}
	}
	slices.SortFunc(result, func(a, b *models.Thumbnail) int { return a.Type - b.Type })
	return result, nil
}

func (r *memoryRepository) GetThumbnail(_ context.Context, revisionID string, typ int) (*models.Thumbnail, error) {
	t, ok := r.state.thumbnails[itemKey{revisionID, typ}]
	if !ok {
		return nil, ErrNotFound
	}
	t.Target = copyTarget(t.Target)
	return &t, nil
}

func (r *memoryRepository) SetThumbnailTarget(_ context.Context, revisionID string, typ int, target *models.UploadTarget) error {
	k := itemKey{revisionID, typ}
	t, ok := r.state.thumbnails[k]
	if !ok || t.IsUploaded {
		return fmt.Errorf("%w: 0", ErrWrongRowsCount)
	}
	t.Target = copyTarget(target)
	r.state.thumbnails[k] = t
	return nil
}

func (r *memoryRepository) MarkThumbnailUploaded(_ context.Context, revisionID string, typ int, target models.UploadTarget) error {
	k := itemKey{revisionID, typ}
	t, ok := r.state.thumbnails[k]
	if !ok {
		return fmt.Errorf("%w: 0", ErrWrongRowsCount)
	}
	t.IsUploaded = true
	t.Target = &target
	r.state.thumbnails[k] = t
	return nil
}
