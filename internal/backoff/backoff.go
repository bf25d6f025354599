// Package backoff computes retry delays for the upload pipeline.
//
// The policy is exponential with additive jitter:
//
//	Delay(0) = 0
//	Delay(n) = min(2^(n-1)*1000ms + U[0, 1000]ms, 10m)   for n >= 1
//
// The jitter is drawn again on every call, so callers must not cache results.
package backoff

import (
	"math/rand/v2"
	"time"
)

const (
	// Base is the delay unit doubled on every attempt.
	Base = 1000 * time.Millisecond
	// MaxJitter is the upper bound (inclusive) of the random component.
	MaxJitter = 1000 * time.Millisecond
	// Cap bounds every delay.
	Cap = 10 * time.Minute
)

// Func returns the delay to wait before the given attempt.
type Func func(attempt int) time.Duration

// Delay returns the delay to wait before attempt (0-based). Attempt 0 runs
// immediately.
func Delay(attempt int) time.Duration {
	return delay(attempt, rand.IntN)
}

// delay is Delay with an injectable jitter source; intn returns a uniform
// integer in [0, n).
func delay(attempt int, intn func(n int) int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	capMs := Cap.Milliseconds()

	// 2^20 seconds is far past the cap already.
	shift := attempt - 1
	if shift > 20 {
		return Cap
	}

	baseMs := int64(1<<shift) * Base.Milliseconds()
	jitterMs := int64(intn(int(MaxJitter.Milliseconds()) + 1))

	ms := baseMs + jitterMs
	if ms > capMs {
		ms = capMs
	}
	return time.Duration(ms) * time.Millisecond
}
