// Package retry wraps github.com/cenkalti/backoff/v4 with the two retry
// policies fixed by §4.4d: a generic exponential backoff (base 1s,
// doubling, capped at 10s) and a slower one for rate-limited upstreams
// (base 2s, doubling, capped at 30s), both bounded to 5 attempts. The
// teacher hand-rolls its own doubling-sleep loops in
// services/scrapeless_provider.go (doJSONWithRetries/minDuration) and
// internal/providers/common/brightdata_client.go (PollUntilComplete);
// this package replaces that hand-rolled shape with the library already
// present in the teacher's own go.mod as an indirect dependency.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
)

const maxAttempts = 5

// Generic runs fn under the base-1s/cap-10s policy for ordinary
// transient failures.
func Generic(ctx context.Context, fn func() error) error {
	return run(ctx, fn, 1, 10)
}

// RateLimited runs fn under the base-2s/cap-30s policy used when the
// upstream has signaled 429.
func RateLimited(ctx context.Context, fn func() error) error {
	return run(ctx, fn, 2, 30)
}

// Policy selects Generic or RateLimited based on whether the last
// observed failure was a 429.
func Policy(ctx context.Context, fn func() error, rateLimited bool) error {
	if rateLimited {
		return RateLimited(ctx, fn)
	}
	return Generic(ctx, fn)
}

func run(ctx context.Context, fn func() error, baseSeconds, capSeconds int) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(baseSeconds) * time.Second
	b.MaxInterval = time.Duration(capSeconds) * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0

	bounded := backoff.WithMaxRetries(b, maxAttempts-1)
	withCtx := backoff.WithContext(bounded, ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !apierr.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, withCtx)
}
