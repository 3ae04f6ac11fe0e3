package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy retries an operation with exponential backoff. MaxRetries is
// the number of retries after the first attempt, so a policy with
// MaxRetries=2 makes at most three calls.
type Policy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	BackoffFactor float64

	// Sleep is swappable for tests; nil means a context-aware
	// time.Sleep.
	Sleep func(context.Context, time.Duration) error
}

// Permanent wraps an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// NonRetryable marks err as terminal for Do.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Do runs fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted, or ctx is done. The terminal error names the
// attempt count.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	delay := p.BaseDelay
	attempts := p.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if perm, ok := lastErr.(*Permanent); ok {
			return perm.Err
		}
		if attempt == attempts {
			break
		}

		log.Warn().Err(lastErr).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("retrying after failure")
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * p.BackoffFactor)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
