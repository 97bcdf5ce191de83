package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy bounds every gateway call: each attempt gets Timeout, and
// attempts are spaced Backoff, 2*Backoff, 4*Backoff and so on.
type RetryPolicy struct {
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Second
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// permanent marks errors that retrying cannot fix.
func withRetry[T any](ctx context.Context, p RetryPolicy, log *slog.Logger, op string, permanent func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var (
		zero T
		err  error
	)
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, p.Timeout)
		var v T
		v, err = fn(actx)
		cancel()
		if err == nil {
			return v, nil
		}
		if permanent != nil && permanent(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, errors.Join(err, ctx.Err())
		}

		log.Warn("gateway call failed", "op", op, "attempt", attempt, "max_attempts", p.Attempts, "error", err)
		if attempt == p.Attempts {
			break
		}

		wait := p.Backoff << (attempt - 1)
		select {
		case <-ctx.Done():
			return zero, errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
	}
	return zero, err
}
