// Package netx holds the HTTP content transport that pushes locally stored
// ciphertext to reserved upload targets, and the classifier deciding which
// transport failures deserve an immediate retry.
package netx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/metrics"
	"golang.org/x/exp/mmap"
)

const (
	HeaderUploadToken       = "X-Upload-Token"
	HeaderVerificationToken = "X-Verification-Token"

	maxResponseBody = 64 << 10
)

type uploadResponse struct {
	Code             int    `json:"Code"`
	Error            string `json:"Error"`
	ErrorDescription string `json:"ErrorDescription"`
}

// HTTPTransport uploads content with HTTP PUT requests.
type HTTPTransport struct {
	client   *http.Client
	attempts int
	log      logging.Logger
}

// NewHTTPTransport returns a transport that tries each call up to attempts
// times while the failure is retryable. A nil client means a client with the
// given per-request timeout.
func NewHTTPTransport(client *http.Client, timeout time.Duration, attempts int, log logging.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = logging.Nop()
	}
	return &HTTPTransport{client: client, attempts: attempts, log: log}
}

// Upload sends the content referenced by t to its target.
func (h *HTTPTransport) Upload(ctx context.Context, t models.TransferTarget) error {
	reader, err := mmap.Open(t.LocalPath)
	if err != nil {
		return fmt.Errorf("open content %q: %w", t.LocalPath, err)
	}
	defer reader.Close()

	start := time.Now()
	for attempt := 1; ; attempt++ {
		err = h.put(ctx, t, reader)
		if err == nil || attempt >= h.attempts || !IsRetryable(err) || ctx.Err() != nil {
			break
		}
		metrics.TransportRetries.Inc()
		h.log.Debug(ctx, "retrying upload", "kind", t.Kind, "index", t.Index, "attempt", attempt, "err", err)
	}

	metrics.ItemUploadLatency.WithLabelValues(string(t.Kind)).Observe(time.Since(start).Seconds())
	return err
}

func (h *HTTPTransport) put(ctx context.Context, t models.TransferTarget, content *mmap.ReaderAt) error {
	size := int64(content.Len())
	body := func() io.ReadCloser { return io.NopCloser(io.NewSectionReader(content, 0, size)) }

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.Target.URL, body())
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.GetBody = func() (io.ReadCloser, error) { return body(), nil }
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(HeaderUploadToken, t.Target.Token)
	if len(t.VerificationToken) > 0 {
		req.Header.Set(HeaderVerificationToken, base64.StdEncoding.EncodeToString(t.VerificationToken))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return err
	}

	return checkResponse(resp.StatusCode, b)
}

// checkResponse accepts a 2xx status with either an empty body (plain object
// storage) or an application response carrying CodeSuccess. Any other body is
// an HTTPError, whatever the status.
func checkResponse(status int, body []byte) error {
	ok := status >= 200 && status < 300
	if len(body) == 0 {
		if ok {
			return nil
		}
		return &HTTPError{StatusCode: status}
	}

	var r uploadResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return &HTTPError{StatusCode: status, Body: string(body)}
	}

	if ok && (r.Code == CodeSuccess || r.Code == 0) {
		return nil
	}
	if status == http.StatusUnprocessableEntity && r.Code == CodeExpiredTarget {
		return fmt.Errorf("%w: %s", ErrExpiredTarget, r.Error)
	}

	msg := r.Error
	if msg == "" {
		msg = r.ErrorDescription
	}
	return &ResponseError{StatusCode: status, Code: r.Code, Message: msg}
}

// IsExpired reports whether err means the target has to be reserved again.
func IsExpired(err error) bool {
	return errors.Is(err, ErrExpiredTarget)
}
