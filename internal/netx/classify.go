package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Application response codes.
const (
	CodeSuccess       = 1000
	CodeRetryLater    = 2028
	CodeExpiredTarget = 2501
)

// ErrExpiredTarget is reported when the storage rejects an upload token that
// is no longer valid.
var ErrExpiredTarget = errors.New("upload target expired")

// HTTPError is an HTTP response that carried no application response: a
// failure status, or a body that could not be decoded.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upload failed: %d %s; body: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// ResponseError is an application-level failure returned by the storage.
type ResponseError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("upload rejected: http %d, code %d: %s", e.StatusCode, e.Code, e.Message)
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code >= 500
}

// IsRetryable reports whether a single transport call that failed with err is
// worth repeating immediately.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatus(httpErr.StatusCode)
	}

	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return retryableStatus(respErr.StatusCode) || respErr.Code == CodeRetryLater
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.EPIPE} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
