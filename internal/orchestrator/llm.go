package orchestrator

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/medextract/internal/ai"
	"github.com/local/medextract/internal/metrics"
	"github.com/local/medextract/internal/retry"
)

// generate runs one provider call under the retry policy. Rate limits,
// per-call timeouts and 5xx replies are retried; auth errors and
// cancellation of the request context are terminal.
func (p *Pipeline) generate(ctx context.Context, client ai.Client, req ai.Request) (ai.Response, error) {
	var resp ai.Response
	err := p.retry.Do(ctx, "generate", func(ctx context.Context) error {
		start := time.Now()
		r, err := client.Do(ctx, req)
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.ObserveProvider(client.Name(), req.Model, result, time.Since(start))
		if err != nil {
			// A dead parent context makes every further attempt moot.
			if ctx.Err() != nil || !retryable(err) {
				return retry.NonRetryable(err)
			}
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("provider", client.Name()).Msg("provider call failed")
		return ai.Response{}, err
	}
	return resp, nil
}

func retryable(err error) bool {
	if ai.IsRateLimited(err) {
		return true
	}
	var httpErr *ai.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	if errors.Is(err, ai.ErrNoAPIKey) {
		return false
	}
	// A slow reply that trips the per-call client timeout is transient.
	// The http.Client timeout error also matches context.DeadlineExceeded,
	// so this check must come before the context one.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Other transport errors (resets, refused connections) are worth
	// retrying.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
