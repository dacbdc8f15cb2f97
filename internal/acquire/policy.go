package acquire

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy describes the per-location retry schedule: exponential growth
// from InitialInterval with randomized jitter, capped per-wait by MaxInterval
// and overall by MaxElapsedTime and MaxAttempts. The policy is a value, not
// shared state; every fetch derives a fresh schedule from it.
type RetryPolicy struct {
	MaxAttempts         int
	InitialInterval     time.Duration
	RandomizationFactor float64
	Multiplier          float64
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
}

// newBackOff builds a context-aware backoff schedule from the policy.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.RandomizationFactor = p.RandomizationFactor
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	b.Reset()

	var bo backoff.BackOff = b
	if p.MaxAttempts > 0 {
		// WithMaxRetries counts retries after the first attempt.
		bo = backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(bo, ctx)
}
