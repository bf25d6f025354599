package models

import "fmt"

// ItemKind distinguishes blocks from thumbnails.
type ItemKind string

const (
	KindBlock     ItemKind = "block"
	KindThumbnail ItemKind = "thumbnail"
)

// TransferTarget is the only shape accepted by a content transport: item
// metadata joined with a reserved target. Use NewBlockTransfer or
// NewThumbnailTransfer to build one.
type TransferTarget struct {
	Kind       ItemKind
	RevisionID string

	// Index is the block index or the thumbnail type.
	Index int

	Size      int64
	Hash      []byte
	LocalPath string
	Target    UploadTarget

	// VerificationToken is empty for thumbnails.
	VerificationToken []byte
}

// String identifies the item for logs.
func (t TransferTarget) String() string {
	return fmt.Sprintf("%s %s/%d", t.Kind, t.RevisionID, t.Index)
}

// NewBlockTransfer returns the transfer shape of b. It reports false when b has
// no reserved target.
func NewBlockTransfer(b *Block, token []byte) (TransferTarget, bool) {
	if b.Target == nil {
		return TransferTarget{}, false
	}
	return TransferTarget{
		Kind:              KindBlock,
		RevisionID:        b.RevisionID,
		Index:             b.Index,
		Size:              b.Size,
		Hash:              b.Hash,
		LocalPath:         b.LocalPath,
		Target:            *b.Target,
		VerificationToken: token,
	}, true
}

// NewThumbnailTransfer returns the transfer shape of t. It reports false when t
// has no reserved target.
func NewThumbnailTransfer(t *Thumbnail) (TransferTarget, bool) {
	if t.Target == nil {
		return TransferTarget{}, false
	}
	return TransferTarget{
		Kind:       KindThumbnail,
		RevisionID: t.RevisionID,
		Index:      t.Type,
		Size:       t.Size,
		Hash:       t.Hash,
		LocalPath:  t.LocalPath,
		Target:     *t.Target,
	}, true
}

// BlockDescriptor describes a block that needs a remote target.
type BlockDescriptor struct {
	Index             int
	Size              int64
	Hash              []byte
	Signature         string
	SignerEmail       string
	VerificationToken []byte
}

// ThumbnailDescriptor describes a thumbnail that needs a remote target.
type ThumbnailDescriptor struct {
	Type int
	Size int64
	Hash []byte
}

// ReserveRequest asks the content-creation service for upload targets.
type ReserveRequest struct {
	Identity   Identity
	Blocks     []BlockDescriptor
	Thumbnails []ThumbnailDescriptor
}

// Empty reports whether nothing needs a target.
func (r ReserveRequest) Empty() bool { return len(r.Blocks) == 0 && len(r.Thumbnails) == 0 }

// ReserveResponse carries the reserved targets keyed by block index and
// thumbnail type.
type ReserveResponse struct {
	Blocks     map[int]UploadTarget
	Thumbnails map[int]UploadTarget
}
