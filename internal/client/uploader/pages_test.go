package uploader

import (
	"testing"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blocks(n int, uploaded ...int) []*models.Block {
	done := map[int]bool{}
	for _, u := range uploaded {
		done[u] = true
	}
	out := make([]*models.Block, 0, n)
	// reversed on purpose
	for i := n - 1; i >= 0; i-- {
		out = append(out, &models.Block{Index: i, IsUploaded: done[i]})
	}
	return out
}

func pageSizes(pages []models.Page) []int {
	var sizes []int
	for _, p := range pages {
		sizes = append(sizes, len(p.Blocks))
	}
	return sizes
}

func TestSplitPages_OnePageWithThumbnail(t *testing.T) {
	thumbs := []*models.Thumbnail{{Type: 1}}

	pages := SplitPages(models.Identity{RevisionID: "r"}, blocks(2), thumbs, 10, nil)

	require.Len(t, pages, 1)
	assert.Equal(t, []int{0, 1}, pages[0].Blocks)
	assert.Equal(t, []int{1}, pages[0].Thumbnails)
	assert.Equal(t, 3, pages[0].Len())
	assert.Equal(t, "r", pages[0].Identity.RevisionID)
}

func TestSplitPages_FixedSizeGroups(t *testing.T) {
	thumbs := []*models.Thumbnail{{Type: 3}, {Type: 1}}

	pages := SplitPages(models.Identity{}, blocks(25), thumbs, 10, nil)

	if diff := cmp.Diff([]int{10, 10, 5}, pageSizes(pages)); diff != "" {
		t.Fatalf("page sizes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{1, 3}, pages[0].Thumbnails)
	assert.Empty(t, pages[1].Thumbnails)
	assert.Empty(t, pages[2].Thumbnails)
	assert.Equal(t, 20, pages[2].Blocks[0])
	for i, p := range pages {
		assert.Equal(t, i, p.Index)
	}
}

func TestSplitPages_SkipsUploadedItems(t *testing.T) {
	thumbs := []*models.Thumbnail{{Type: 1, IsUploaded: true}, {Type: 2}}

	pages := SplitPages(models.Identity{}, blocks(5, 0, 2), thumbs, 2, nil)

	require.Len(t, pages, 2)
	assert.Equal(t, []int{1, 3}, pages[0].Blocks)
	assert.Equal(t, []int{2}, pages[0].Thumbnails)
	assert.Equal(t, []int{4}, pages[1].Blocks)
}

func TestSplitPages_ThumbnailsOnly(t *testing.T) {
	pages := SplitPages(models.Identity{}, blocks(3, 0, 1, 2), []*models.Thumbnail{{Type: 5}}, 10, nil)

	require.Len(t, pages, 1)
	assert.Empty(t, pages[0].Blocks)
	assert.Equal(t, []int{5}, pages[0].Thumbnails)
}

func TestSplitPages_NothingOutstanding(t *testing.T) {
	assert.Nil(t, SplitPages(models.Identity{}, blocks(3, 0, 1, 2), nil, 10, nil))
	assert.Nil(t, SplitPages(models.Identity{}, nil, nil, 10, nil))
}

func TestSplitPages_VerificationPerPage(t *testing.T) {
	v := models.BlockVerification{0: []byte("a"), 1: []byte("b"), 2: []byte("c")}

	pages := SplitPages(models.Identity{}, blocks(3), nil, 2, v)

	require.Len(t, pages, 2)
	assert.Equal(t, models.BlockVerification{0: []byte("a"), 1: []byte("b")}, pages[0].Verification)
	assert.Equal(t, models.BlockVerification{2: []byte("c")}, pages[1].Verification)
}

func TestSplitPages_DefaultPageSize(t *testing.T) {
	pages := SplitPages(models.Identity{}, blocks(DefaultPageSize+1), nil, 0, nil)
	assert.Equal(t, []int{DefaultPageSize, 1}, pageSizes(pages))
}
