// Package client contains the client-side collaborators of the upload
// pipeline that talk to the outside world.
//
// # Overview
//
// The package provides:
//  1. GRPCTargetReserver, which reserves upload targets through the remote
//     content API over gRPC. It injects the access token via an interceptor,
//     transparently refreshes an expired token, and maps gRPC status codes to
//     sentinel errors.
//  2. S3TargetReserver, which reserves targets by presigning S3 PUT URLs
//     directly (MinIO and other S3-compatible stores).
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrIncompleteReservation.
//
// Both reservers are safe for concurrent use. All operations accept
// context.Context and honor cancellation.
package client
