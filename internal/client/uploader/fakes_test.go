package uploader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/revisions"
	"github.com/dmitrijs2005/gophdrive/internal/executor"
	"github.com/stretchr/testify/require"
)

const testRev = "rev-1"

type transferCall struct {
	target models.TransferTarget
	at     time.Time
}

// fakeTransport records every call and delegates the outcome to fn.
type fakeTransport struct {
	mu    sync.Mutex
	calls []transferCall
	fn    func(ctx context.Context, t models.TransferTarget) error
}

func (f *fakeTransport) Upload(ctx context.Context, t models.TransferTarget) error {
	f.mu.Lock()
	f.calls = append(f.calls, transferCall{target: t, at: time.Now()})
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, t)
	}
	return nil
}

func (f *fakeTransport) Calls() []transferCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transferCall(nil), f.calls...)
}

// fakeReserver hands out "reserved://" targets for every requested item.
type fakeReserver struct {
	mu       sync.Mutex
	requests []models.ReserveRequest
	doneAt   []time.Time
	fn       func(ctx context.Context, req models.ReserveRequest) error
	serial   int
}

func (f *fakeReserver) ReserveTargets(ctx context.Context, req models.ReserveRequest) (*models.ReserveResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.serial++
	serial := f.serial
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, req); err != nil {
			return nil, err
		}
	}

	resp := &models.ReserveResponse{Blocks: map[int]models.UploadTarget{}, Thumbnails: map[int]models.UploadTarget{}}
	for _, b := range req.Blocks {
		resp.Blocks[b.Index] = models.UploadTarget{URL: fmt.Sprintf("reserved://block/%d", b.Index), Token: fmt.Sprintf("t%d", serial)}
	}
	for _, th := range req.Thumbnails {
		resp.Thumbnails[th.Type] = models.UploadTarget{URL: fmt.Sprintf("reserved://thumb/%d", th.Type), Token: fmt.Sprintf("t%d", serial)}
	}

	f.mu.Lock()
	f.doneAt = append(f.doneAt, time.Now())
	f.mu.Unlock()
	return resp, nil
}

func (f *fakeReserver) Requests() []models.ReserveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ReserveRequest(nil), f.requests...)
}

type fixture struct {
	store     *revisions.MemoryStore
	exec      *executor.Executor
	transport *fakeTransport
	reserver  *fakeReserver
	progress  *ProgressCounter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     revisions.NewMemoryStore(),
		exec:      executor.New(4, nil),
		transport: &fakeTransport{},
		reserver:  &fakeReserver{},
		progress:  NewProgressCounter(nil),
	}
	t.Cleanup(f.exec.Wait)
	return f
}

func (f *fixture) deps() PageDeps {
	return PageDeps{
		Executor:  f.exec,
		Store:     f.store,
		Transport: f.transport,
		Reserver:  f.reserver,
		Progress:  f.progress,
	}
}

// seedSpec describes the revision created by seed.
type seedSpec struct {
	blocks     int
	thumbnails int
	// targeted items already hold a reserved target.
	targetedBlocks []int
	uploadedBlocks []int
	uploadedThumbs []int
	state          models.UploadState
}

func (f *fixture) seed(t *testing.T, s seedSpec) models.BlockVerification {
	t.Helper()
	if s.state == "" {
		s.state = models.UploadStatePending
	}
	has := func(list []int, v int) bool {
		for _, x := range list {
			if x == v {
				return true
			}
		}
		return false
	}

	verification := models.BlockVerification{}
	require.NoError(t, f.store.Perform(context.Background(), func(ctx context.Context, r revisions.Repository) error {
		require.NoError(t, r.CreateRevision(ctx, &models.Revision{ID: testRev, FileID: "file-1", SignerEmail: "me@example.com", AddressID: "addr-1", State: s.state}))
		for i := 0; i < s.blocks; i++ {
			b := &models.Block{
				RevisionID:  testRev,
				Index:       i,
				Size:        100,
				Hash:        []byte{byte(i)},
				LocalPath:   fmt.Sprintf("/data/%d.bin", i),
				Signature:   "sig",
				SignerEmail: "me@example.com",
				IsUploaded:  has(s.uploadedBlocks, i),
			}
			if has(s.targetedBlocks, i) {
				b.Target = &models.UploadTarget{URL: fmt.Sprintf("seeded://block/%d", i), Token: "seed"}
			}
			verification[i] = []byte(fmt.Sprintf("vt-%d", i))
			require.NoError(t, r.CreateBlock(ctx, b))
		}
		for i := 0; i < s.thumbnails; i++ {
			require.NoError(t, r.CreateThumbnail(ctx, &models.Thumbnail{
				RevisionID: testRev,
				Type:       i + 1,
				LocalPath:  fmt.Sprintf("/data/thumb-%d.bin", i+1),
				IsUploaded: has(s.uploadedThumbs, i+1),
			}))
		}
		return nil
	}))
	return verification
}

func (f *fixture) block(t *testing.T, index int) *models.Block {
	t.Helper()
	var b *models.Block
	require.NoError(t, f.store.Perform(context.Background(), func(ctx context.Context, r revisions.Repository) error {
		var err error
		b, err = r.GetBlock(ctx, testRev, index)
		return err
	}))
	return b
}

func (f *fixture) revision(t *testing.T) *models.Revision {
	t.Helper()
	var rev *models.Revision
	require.NoError(t, f.store.Perform(context.Background(), func(ctx context.Context, r revisions.Repository) error {
		var err error
		rev, err = r.GetRevision(ctx, testRev)
		return err
	}))
	return rev
}

func (f *fixture) page(index int, blocks []int, thumbs []int, v models.BlockVerification) models.Page {
	return models.Page{
		Index:        index,
		Identity:     models.Identity{RevisionID: testRev, FileID: "file-1", SignerEmail: "me@example.com", AddressID: "addr-1"},
		Blocks:       blocks,
		Thumbnails:   thumbs,
		Verification: v,
	}
}

func reserved(c transferCall) bool { return strings.HasPrefix(c.target.Target.URL, "reserved://") }

// wait returns the value sent on ch or fails after a few seconds.
func wait[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
		panic("unreachable")
	}
}

// fakeRunner is a PageRunner whose outcome is scripted per attempt.
type fakeRunner struct {
	mu       sync.Mutex
	uploads  int
	cancels  int
	outcomes func(attempt int) error
}

func (f *fakeRunner) Upload(_ context.Context, completion func(error)) {
	f.mu.Lock()
	n := f.uploads
	f.uploads++
	f.mu.Unlock()
	go completion(f.outcomes(n))
}

func (f *fakeRunner) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeRunner) counts() (uploads, cancels int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads, f.cancels
}
