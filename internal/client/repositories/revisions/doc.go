// Package revisions provides the client-side persistence layer for revision
// uploads: revisions, their blocks and thumbnails, and the upload state of
// each item.
//
// # Overview
//
// Repository is the read/mutate contract used by the upload pipeline.
// SQLiteRepository implements it over a dbx.DBTX (*sql.DB or *sql.Tx).
//
// Pipeline code never touches a Repository directly. It goes through a
// transactional scope:
//
//	err := store.Perform(ctx, func(ctx context.Context, repo revisions.Repository) error {
//	    b, err := repo.GetBlock(ctx, revID, 3)
//	    if err != nil {
//	        return err
//	    }
//	    return repo.SetBlockTarget(ctx, revID, b.Index, nil)
//	})
//
// Store serializes scopes and runs each one in its own SQL transaction, so a
// failed scope leaves no partial mutations behind. MemoryStore offers the same
// semantics without a database.
package revisions
