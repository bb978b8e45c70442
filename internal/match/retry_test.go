package match

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"429 is rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, FailureRateLimited},
		{"500 is transient", &googleapi.Error{Code: http.StatusInternalServerError}, FailureTransient},
		{"503 is transient", &googleapi.Error{Code: http.StatusServiceUnavailable}, FailureTransient},
		{"400 is permanent", &googleapi.Error{Code: http.StatusBadRequest}, FailurePermanent},
		{"403 is permanent", &googleapi.Error{Code: http.StatusForbidden}, FailurePermanent},
		{"wrapped api error", fmt.Errorf("send: %w", &googleapi.Error{Code: 502}), FailureTransient},
		{"deadline is transient", context.DeadlineExceeded, FailureTransient},
		{"cancellation is permanent", context.Canceled, FailurePermanent},
		{"unknown error is transient", errors.New("connection reset"), FailureTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryPolicyRetriesTransient(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &googleapi.Error{Code: 503}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyStopsOnPermanent(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &googleapi.Error{Code: http.StatusBadRequest}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &googleapi.Error{Code: 500}
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)

	var gerr *googleapi.Error
	assert.True(t, errors.As(err, &gerr))
}

func TestRetryPolicyHonorsContextCancel(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(ctx context.Context) error {
			return &googleapi.Error{Code: 503}
		})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}
