package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/revisions"
	"github.com/dmitrijs2005/gophdrive/internal/client/uploader"
)

// Verifier supplies the verification tokens of a revision's blocks.
type Verifier interface {
	Verification(ctx context.Context, revisionID string) (models.BlockVerification, error)
}

// StoreVerifier reads verification tokens stored with the blocks.
type StoreVerifier struct {
	store uploader.Store
}

func NewStoreVerifier(store uploader.Store) *StoreVerifier {
	return &StoreVerifier{store: store}
}

func (v *StoreVerifier) Verification(ctx context.Context, revisionID string) (models.BlockVerification, error) {
	result := models.BlockVerification{}

	err := v.store.Perform(ctx, func(ctx context.Context, repo revisions.Repository) error {
		blocks, err := repo.GetBlocks(ctx, revisionID)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			if len(b.VerificationToken) > 0 {
				result[b.Index] = b.VerificationToken
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read verification of %s: %w", revisionID, err)
	}

	return result, nil
}
