// Package retry re-runs timed-out request/response exchanges.
//
// Only session.ErrTimeout is retried. A server error or a protocol violation
// is an answer from the edge and is returned at once. Subscriptions are
// never retried here; callers decide whether to subscribe again.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/edgemgmt/internal/protocol/session"
)

// Policy bounds how many extra attempts Do makes.
type Policy struct {
	Retries int
	Backoff BackoffConfig
	// Rand drives jitter. Nil disables the random factor.
	Rand *rand.Rand
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, session.ErrTimeout)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// policy runs out of retries. The last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	backoff := p.Backoff
	if backoff == (BackoffConfig{}) {
		backoff = DefaultBackoff()
	}
	var zero T
	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !Retryable(err) || attempt >= p.Retries {
			return zero, err
		}
		delay := NextBackoffDelay(backoff, attempt+1, p.Rand)
		log.Debug().
			Int("attempt", attempt+1).
			Int("retries", p.Retries).
			Dur("delay", delay).
			Err(err).
			Msg("retry: exchange timed out")
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
