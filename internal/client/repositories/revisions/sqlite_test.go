package revisions

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophdrive/internal/client/migrations"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, "."))
	return db
}

func seed(t *testing.T, r Repository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.CreateRevision(ctx, &models.Revision{ID: "r1", FileID: "f1", SignerEmail: "a@b.c", AddressID: "addr", State: models.UploadStatePending}))
	require.NoError(t, r.CreateRevision(ctx, &models.Revision{ID: "r0", FileID: "f0", State: models.UploadStateUploaded}))
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, r.CreateBlock(ctx, &models.Block{
			RevisionID:        "r1",
			Index:             i,
			Size:              int64(10 + i),
			Hash:              []byte{byte(i)},
			LocalPath:         "/tmp/b",
			Signature:         "sig",
			SignerEmail:       "a@b.c",
			VerificationToken: []byte("vt"),
		}))
	}
	require.NoError(t, r.CreateThumbnail(ctx, &models.Thumbnail{RevisionID: "r1", Type: 2, LocalPath: "/tmp/t2"}))
	require.NoError(t, r.CreateThumbnail(ctx, &models.Thumbnail{RevisionID: "r1", Type: 1, LocalPath: "/tmp/t1",
		Target: &models.UploadTarget{URL: "u", Token: "t"}}))
}

// repositories returns both implementations so the same behaviour is checked
// against each of them.
func repositories(t *testing.T) map[string]func(fn func(Repository)) {
	return map[string]func(fn func(Repository)){
		"sqlite": func(fn func(Repository)) {
			fn(NewSQLiteRepository(setupDB(t)))
		},
		"memory": func(fn func(Repository)) {
			s := NewMemoryStore()
			require.NoError(t, s.Perform(context.Background(), func(_ context.Context, r Repository) error {
				fn(r)
				return nil
			}))
		},
	}
}

func TestRepository_Revisions(t *testing.T) {
	for name, with := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			with(func(r Repository) {
				ctx := context.Background()
				seed(t, r)

				rev, err := r.GetRevision(ctx, "r1")
				require.NoError(t, err)
				assert.Equal(t, "addr", rev.AddressID)
				assert.Equal(t, models.UploadStatePending, rev.State)

				_, err = r.GetRevision(ctx, "nope")
				assert.ErrorIs(t, err, ErrNotFound)

				pending, err := r.ListPendingRevisions(ctx)
				require.NoError(t, err)
				require.Len(t, pending, 1)
				assert.Equal(t, "r1", pending[0].ID)

				require.NoError(t, r.SetRevisionState(ctx, "r1", models.UploadStateUploaded))
				pending, err = r.ListPendingRevisions(ctx)
				require.NoError(t, err)
				assert.Empty(t, pending)

				assert.ErrorIs(t, r.SetRevisionState(ctx, "nope", models.UploadStateUploaded), ErrWrongRowsCount)
			})
		})
	}
}

func TestRepository_RevisionWithoutStateIsPending(t *testing.T) {
	for name, with := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			with(func(r Repository) {
				ctx := context.Background()
				require.NoError(t, r.CreateRevision(ctx, &models.Revision{ID: "fresh", FileID: "f"}))

				rev, err := r.GetRevision(ctx, "fresh")
				require.NoError(t, err)
				assert.Equal(t, models.UploadStatePending, rev.State)

				pending, err := r.ListPendingRevisions(ctx)
				require.NoError(t, err)
				require.Len(t, pending, 1)
				assert.Equal(t, "fresh", pending[0].ID)
			})
		})
	}
}

func TestRepository_BlocksOrderedAndTargets(t *testing.T) {
	for name, with := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			with(func(r Repository) {
				ctx := context.Background()
				seed(t, r)

				blocks, err := r.GetBlocks(ctx, "r1")
				require.NoError(t, err)
				var idx []int
				for _, b := range blocks {
					idx = append(idx, b.Index)
				}
				if diff := cmp.Diff([]int{0, 1, 2}, idx); diff != "" {
					t.Fatalf("block order mismatch (-want +got):\n%s", diff)
				}
				assert.Nil(t, blocks[0].Target)
				assert.Equal(t, []byte("vt"), blocks[0].VerificationToken)

				target := &models.UploadTarget{URL: "https://x/1", Token: "tok"}
				require.NoError(t, r.SetBlockTarget(ctx, "r1", 1, target))
				b, err := r.GetBlock(ctx, "r1", 1)
				require.NoError(t, err)
				assert.Equal(t, target, b.Target)
				assert.True(t, b.Eligible())

				require.NoError(t, r.SetBlockTarget(ctx, "r1", 1, nil))
				b, err = r.GetBlock(ctx, "r1", 1)
				require.NoError(t, err)
				assert.Nil(t, b.Target)

				require.NoError(t, r.MarkBlockUploaded(ctx, "r1", 1, *target))
				b, err = r.GetBlock(ctx, "r1", 1)
				require.NoError(t, err)
				assert.True(t, b.IsUploaded)
				assert.Equal(t, target, b.Target)

				// an uploaded block keeps its target
				assert.ErrorIs(t, r.SetBlockTarget(ctx, "r1", 1, nil), ErrWrongRowsCount)

				_, err = r.GetBlock(ctx, "r1", 9)
				assert.ErrorIs(t, err, ErrNotFound)
				assert.ErrorIs(t, r.MarkBlockUploaded(ctx, "r1", 9, *target), ErrWrongRowsCount)
			})
		})
	}
}

func TestRepository_ThumbnailsOrderedAndTargets(t *testing.T) {
	for name, with := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			with(func(r Repository) {
				ctx := context.Background()
				seed(t, r)

				thumbs, err := r.GetThumbnails(ctx, "r1")
				require.NoError(t, err)
				require.Len(t, thumbs, 2)
				assert.Equal(t, 1, thumbs[0].Type)
				assert.Equal(t, &models.UploadTarget{URL: "u", Token: "t"}, thumbs[0].Target)
				assert.Equal(t, 2, thumbs[1].Type)
				assert.Nil(t, thumbs[1].Target)

				require.NoError(t, r.SetThumbnailTarget(ctx, "r1", 2, &models.UploadTarget{URL: "u2", Token: "t2"}))
				require.NoError(t, r.MarkThumbnailUploaded(ctx, "r1", 2, models.UploadTarget{URL: "u2", Token: "t2"}))
				th, err := r.GetThumbnail(ctx, "r1", 2)
				require.NoError(t, err)
				assert.True(t, th.IsUploaded)
				assert.False(t, th.Eligible())

				assert.ErrorIs(t, r.SetThumbnailTarget(ctx, "r1", 2, nil), ErrWrongRowsCount)
				_, err = r.GetThumbnail(ctx, "r1", 7)
				assert.ErrorIs(t, err, ErrNotFound)
			})
		})
	}
}

func TestStore_CommitsAndRollsBack(t *testing.T) {
	stores := map[string]interface {
		Perform(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
	}{
		"sqlite": NewStore(setupDB(t)),
		"memory": NewMemoryStore(),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Perform(ctx, func(ctx context.Context, r Repository) error {
				seed(t, r)
				return nil
			}))

			boom := errors.New("boom")
			err := s.Perform(ctx, func(ctx context.Context, r Repository) error {
				require.NoError(t, r.MarkBlockUploaded(ctx, "r1", 0, models.UploadTarget{URL: "u", Token: "t"}))
				require.NoError(t, r.SetRevisionState(ctx, "r1", models.UploadStateUploaded))
				return boom
			})
			require.ErrorIs(t, err, boom)

			require.NoError(t, s.Perform(ctx, func(ctx context.Context, r Repository) error {
				b, err := r.GetBlock(ctx, "r1", 0)
				require.NoError(t, err)
				assert.False(t, b.IsUploaded, "rolled back mutation must not be visible")

				rev, err := r.GetRevision(ctx, "r1")
				require.NoError(t, err)
				assert.Equal(t, models.UploadStatePending, rev.State)
				return nil
			}))
		})
	}
}

func TestMemoryStore_CopiesDoNotLeak(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Perform(ctx, func(ctx context.Context, r Repository) error {
		seed(t, r)
		return nil
	}))

	var held *models.Thumbnail
	require.NoError(t, s.Perform(ctx, func(ctx context.Context, r Repository) error {
		var err error
		held, err = r.GetThumbnail(ctx, "r1", 1)
		return err
	}))
	held.Target.URL = "mutated"
	held.IsUploaded = true

	require.NoError(t, s.Perform(ctx, func(ctx context.Context, r Repository) error {
		th, err := r.GetThumbnail(ctx, "r1", 1)
		require.NoError(t, err)
		assert.Equal(t, "u", th.Target.URL)
		assert.False(t, th.IsUploaded)
		return nil
	}))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Perform(ctx, func(context.Context, Repository) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
