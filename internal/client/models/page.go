package models

// Identity is the context required to reserve remote upload targets.
type Identity struct {
	RevisionID  string
	FileID      string
	SignerEmail string
	AddressID   string
}

// BlockVerification maps a block index to its verification token.
type BlockVerification map[int][]byte

// Page is a bounded group of blocks (and, for page 0, every outstanding
// thumbnail) uploaded as a unit. Pages reference items by key only; the
// current item state is always re-read from the store.
type Page struct {
	Index        int
	Identity     Identity
	Blocks       []int
	Thumbnails   []int
	Verification BlockVerification
}

// Len returns the number of items in the page.
func (p Page) Len() int { return len(p.Blocks) + len(p.Thumbnails) }
