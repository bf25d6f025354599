package uploader

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
)

// CodeRetriesExhausted is the application code carried by
// RetriesExhaustedError. It is not a retriable code.
const CodeRetriesExhausted = 2599

var (
	// ErrPageFinishedWithRetriableErrors is the only retriable page outcome: a
	// full round finished and some items of the page are still not uploaded.
	ErrPageFinishedWithRetriableErrors = errors.New("page finished with items still outstanding")

	// ErrNotAllContentUploaded is matched by RetriesExhaustedError.
	ErrNotAllContentUploaded = errors.New("not all blocks and thumbnails were uploaded")

	ErrInvalidRevisionState = errors.New("revision is not in an uploadable state")
	ErrUnexpectedTarget     = errors.New("target returned for an item that did not ask for one")
)

// RetriesExhaustedError is reported when a page is still incomplete after the
// last allowed attempt.
type RetriesExhaustedError struct {
	Attempts int
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts (code %d)", ErrNotAllContentUploaded, e.Attempts, CodeRetriesExhausted)
}

// Code returns CodeRetriesExhausted.
func (e *RetriesExhaustedError) Code() int { return CodeRetriesExhausted }

func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrNotAllContentUploaded
}

// InvalidStateError reports an item that lacks a field required for upload.
type InvalidStateError struct {
	Kind       models.ItemKind
	RevisionID string
	Index      int
	Field      string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid %s %s/%d: missing %s", e.Kind, e.RevisionID, e.Index, e.Field)
}

// PageError is a fatal page failure as seen by the revision.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
