// Package uploader uploads file revisions in resumable pages.
//
// A revision is split into pages of at most PageSize outstanding blocks; page 0
// also carries every outstanding thumbnail. Each page runs a two-round
// protocol on the shared executor:
//
//	round 1   upload every item that already holds a reserved target
//	          and, concurrently, reserve targets for the items that lack one
//	barrier   waits for both, fails the page when reservation failed
//	round 2   upload the items that are still eligible after a re-scan
//	verify    succeeds when every item of the page is uploaded
//
// An incomplete page reports ErrPageFinishedWithRetriableErrors, which
// RetryPageUploader retries with exponential backoff. Every other error is
// fatal for the page. RevisionUploader marks the revision uploaded once every
// page succeeded.
//
// Item state only changes inside Store.Perform scopes. An item's target is
// cleared before its content is sent and the item is marked uploaded only
// after the transport reported success, so an interrupted page always resumes
// from a consistent state.
package uploader
