package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(slept *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		if slept != nil {
			*slept = append(*slept, d)
		}
		return nil
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	p := Policy{MaxRetries: 2, BaseDelay: 2 * time.Second, BackoffFactor: 2, Sleep: noSleep(nil)}
	calls := 0
	err := p.Do(context.Background(), "generate", func(context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesWithBackoff(t *testing.T) {
	var slept []time.Duration
	p := Policy{MaxRetries: 2, BaseDelay: 2 * time.Second, BackoffFactor: 2, Sleep: noSleep(&slept)}

	calls := 0
	err := p.Do(context.Background(), "generate", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestDoExhaustsAttempts(t *testing.T) {
	var slept []time.Duration
	p := Policy{MaxRetries: 2, BaseDelay: 2 * time.Second, BackoffFactor: 2, Sleep: noSleep(&slept)}

	boom := errors.New("provider unavailable")
	calls := 0
	err := p.Do(context.Background(), "generate", func(context.Context) error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, slept, 2)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	p := Policy{MaxRetries: 2, BaseDelay: time.Second, BackoffFactor: 2, Sleep: noSleep(nil)}

	boom := errors.New("bad api key")
	calls := 0
	err := p.Do(context.Background(), "generate", func(context.Context) error {
		calls++
		return NonRetryable(boom)
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, boom, err)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxRetries: 5, BaseDelay: time.Second, BackoffFactor: 2,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}}

	err := p.Do(ctx, "generate", func(context.Context) error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNonRetryableNil(t *testing.T) {
	assert.NoError(t, NonRetryable(nil))
}
