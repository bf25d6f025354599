package common

import "errors"

// ErrTokenExpired is the status message the remote API uses to signal an
// expired access token.
var ErrTokenExpired = errors.New("token expired")
