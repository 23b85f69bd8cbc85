package providers

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy parameterizes the Retry combinator.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// DefaultRetryPolicy matches the generation-call contract: three attempts
// with linearly increasing backoff.
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 3,
	Delay:    time.Second,
}

// Retry runs fn under the given policy. Only transient ProviderError values
// are retried; validation and moderation failures surface immediately. The
// final unsuccessful attempt's error is returned as-is rather than an
// aggregate.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	if policy.Attempts == 0 {
		policy = DefaultRetryPolicy
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(policy.Attempts),
		retry.Delay(policy.Delay),
		retry.DelayType(linearDelay),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
	)
}

// linearDelay backs off as delay, 2*delay, 3*delay, ...
func linearDelay(n uint, _ error, config *retry.Config) time.Duration {
	return time.Duration(n+1) * retry.FixedDelay(0, nil, config)
}
