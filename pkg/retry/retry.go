// Package retry implements the bounded exponential-backoff policy applied to
// transient provider failures. Fatal provider errors are never retried.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/evermind-ai/evermind/pkg/interfaces"
)

// Policy bounds the retry behavior for one logical operation.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// Multiplier grows the delay after each attempt.
	Multiplier float64

	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration
}

// DefaultPolicy returns the retry policy used for provider calls: three
// attempts with a doubling delay starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		Multiplier:      2.0,
		MaxInterval:     8 * time.Second,
	}
}

// Do runs op, retrying on transient errors per the policy. Non-transient
// errors and context cancellation stop immediately. The returned error is
// the last error op produced.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.Multiplier = policy.Multiplier
	exp.MaxInterval = policy.MaxInterval
	exp.RandomizationFactor = 0

	b := backoff.WithMaxRetries(backoff.WithContext(exp, ctx), uint64(policy.MaxAttempts-1))

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !interfaces.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
