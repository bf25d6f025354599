package uploader

import (
	"slices"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/samber/lo"
)

// DefaultPageSize is the number of blocks per page.
const DefaultPageSize = 50

// SplitPages groups the outstanding items of a revision into pages. Blocks are
// ordered by index and cut into groups of pageSize; page 0 additionally holds
// every outstanding thumbnail, ordered by type. Uploaded items are left out.
// It returns nil when nothing is outstanding.
func SplitPages(id models.Identity, blocks []*models.Block, thumbnails []*models.Thumbnail, pageSize int, verification models.BlockVerification) []models.Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	var blockIdx []int
	for _, b := range blocks {
		if !b.IsUploaded {
			blockIdx = append(blockIdx, b.Index)
		}
	}
	slices.Sort(blockIdx)

	var thumbTypes []int
	for _, t := range thumbnails {
		if !t.IsUploaded {
			thumbTypes = append(thumbTypes, t.Type)
		}
	}
	slices.Sort(thumbTypes)

	groups := lo.Chunk(blockIdx, pageSize)
	if len(groups) == 0 {
		if len(thumbTypes) == 0 {
			return nil
		}
		groups = [][]int{nil}
	}

	pages := make([]models.Page, 0, len(groups))
	for i, g := range groups {
		p := models.Page{
			Index:        i,
			Identity:     id,
			Blocks:       g,
			Verification: lo.PickByKeys(verification, g),
		}
		if i == 0 {
			p.Thumbnails = thumbTypes
		}
		pages = append(pages, p)
	}

	return pages
}
