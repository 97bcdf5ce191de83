package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := withRetry(context.Background(), RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, discard, "op", nil,
		func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("flaky")
			}
			return 42, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_PermanentStopsEarly(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	_, err := withRetry(context.Background(), RetryPolicy{Attempts: 5}, discard, "op",
		func(err error) bool { return errors.Is(err, stop) },
		func(context.Context) (int, error) {
			calls++
			return 0, stop
		})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("boom")
	calls := 0
	_, err := withRetry(ctx, RetryPolicy{Attempts: 5, Backoff: time.Hour}, discard, "op", nil,
		func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, boom
		})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Normalized(t *testing.T) {
	p := RetryPolicy{Backoff: -1}.normalized()
	assert.Equal(t, 1, p.Attempts)
	assert.Equal(t, 5*time.Second, p.Timeout)
	assert.Zero(t, p.Backoff)
}
