package tx

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a conflicting transaction is re-run.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Run calls attempt until it succeeds, returns an error for which
// retryable is false, the retries are exhausted or ctx is done.
// onRetry, if not nil, is called before every re-run.
func (p RetryPolicy) Run(
	ctx context.Context,
	retryable func(error) bool,
	onRetry func(err error, wait time.Duration),
	attempt func(ctx context.Context) error,
) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = 0

	var b backoff.BackOff = exp
	if p.MaxRetries >= 0 {
		b = backoff.WithMaxRetries(exp, uint64(p.MaxRetries))
	}
	b = backoff.WithContext(b, ctx)

	op := func() error {
		err := attempt(ctx)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, b, onRetry)
}
