// Package models defines the client-side data model of a file revision upload:
// revisions, their ciphertext blocks and thumbnails, and the transient pages
// they are uploaded in.
package models

// UploadState is the upload state of a revision.
type UploadState string

const (
	UploadStatePending  UploadState = "pending"
	UploadStateUploaded UploadState = "uploaded"
)

// Revision is one version of a file: an ordered set of blocks plus optional
// thumbnails.
type Revision struct {
	// ID identifies the revision.
	ID string

	// FileID is the owning file.
	FileID string

	// SignerEmail is the address that signed the revision content.
	SignerEmail string

	// AddressID is the remote id of the signing address.
	AddressID string

	// State is pending until every block and thumbnail is uploaded.
	State UploadState
}

// Identity returns the identifying context needed to reserve upload targets.
func (r *Revision) Identity() Identity {
	return Identity{RevisionID: r.ID, FileID: r.FileID, SignerEmail: r.SignerEmail, AddressID: r.AddressID}
}

// UploadTarget is a reserved remote upload location. The token is single use.
type UploadTarget struct {
	URL   string
	Token string
}

// Block is one ciphertext chunk of file content.
type Block struct {
	RevisionID string

	// Index orders blocks within a revision and is unique there.
	Index int

	Size int64
	Hash []byte

	// LocalPath references the encrypted content on disk.
	LocalPath string

	Signature   string
	SignerEmail string

	// Target is set once a remote target has been reserved and not yet consumed.
	Target *UploadTarget

	// IsUploaded flips to true exactly once.
	IsUploaded bool

	// VerificationToken is issued by the verifier and sent with the upload.
	VerificationToken []byte
}

// Thumbnail is a preview image attached to a revision. Thumbnails are ordered
// by Type.
type Thumbnail struct {
	RevisionID string
	Type       int
	Size       int64
	Hash       []byte
	LocalPath  string
	Target     *UploadTarget
	IsUploaded bool
}

// Eligible reports whether the block can be uploaded in the current round.
func (b *Block) Eligible() bool { return !b.IsUploaded && b.Target != nil }

// Eligible reports whether the thumbnail can be uploaded in the current round.
func (t *Thumbnail) Eligible() bool { return !t.IsUploaded && t.Target != nil }
