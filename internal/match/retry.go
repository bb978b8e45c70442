package match

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

// FailureClass categorizes an oracle call failure for retry purposes.
type FailureClass int

const (
	// FailurePermanent means retrying cannot help (bad request, auth,
	// invalid argument).
	FailurePermanent FailureClass = iota
	// FailureTransient means a retry after a short backoff may succeed.
	FailureTransient
	// FailureRateLimited means the provider asked us to slow down.
	FailureRateLimited
)

// Classify inspects an error from the oracle provider and assigns a
// FailureClass. Unknown errors are treated as transient so a flaky network
// path gets at least one more attempt.
func Classify(err error) FailureClass {
	if err == nil {
		return FailurePermanent
	}
	if errors.Is(err, context.Canceled) {
		return FailurePermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTransient
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return FailureRateLimited
		case gerr.Code >= 500:
			return FailureTransient
		default:
			return FailurePermanent
		}
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return FailureTransient
	}
	return FailureTransient
}

// retryAfter extracts the provider's Retry-After hint, if any.
func retryAfter(err error) (time.Duration, bool) {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0, false
	}
	raw := gerr.Header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	if secs, perr := time.ParseDuration(raw + "s"); perr == nil && secs > 0 {
		return secs, true
	}
	return 0, false
}

// RetryPolicy controls backoff behavior for oracle calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration
}

// DefaultRetryPolicy matches the provider's published rate-limit guidance.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		CallTimeout: 2 * time.Minute,
	}
}

// Do runs fn with per-attempt timeouts, retrying transient and rate-limited
// failures with exponential backoff and jitter. Permanent failures and
// context cancellation return immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if p.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		lastErr = err

		class := Classify(err)
		if class == FailurePermanent || attempt == attempts-1 {
			return lastErr
		}
		delay := p.backoff(attempt)
		if class == FailureRateLimited {
			if hint, ok := retryAfter(err); ok && hint > delay {
				delay = hint
			}
			log.Printf("[oracle] rate limited, waiting %s before retry %d/%d", delay, attempt+2, attempts)
		} else {
			log.Printf("[oracle] transient failure (%v), retrying in %s (%d/%d)", err, delay, attempt+2, attempts)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base << uint(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}
