// Package common contains constants and sentinel errors shared by the
// gophdrive client and the remote content API it talks to.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the access
// token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Fully qualified gRPC method names of the remote content API.
const (
	MethodReserveTargets = "/gophdrive.v1.ContentService/ReserveTargets"
	MethodRefreshToken   = "/gophdrive.v1.AuthService/RefreshToken"
)
