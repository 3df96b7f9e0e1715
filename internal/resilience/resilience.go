// Package resilience provides the retry policy used around calls to upstream
// services:
//   - Fixed delay between attempts
//   - Unlimited attempts as an explicit configuration
//   - Context cancellation handling
//   - Structured logging of every failed attempt
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrExhaustedRetries indicates a bounded policy ran out of attempts.
var ErrExhaustedRetries = errors.New("retry attempts exhausted")

// WaitFunc blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type WaitFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy controls how an operation is retried.
type RetryPolicy struct {
	MaxAttempts int           // Zero or negative means retry until success.
	Delay       time.Duration // Fixed pause between attempts.
	Wait        WaitFunc      // Nil uses a timer.
}

// Forever returns a policy that retries without limit, pausing delay between attempts.
func Forever(delay time.Duration) RetryPolicy {
	return RetryPolicy{Delay: delay}
}

// DefaultResolverPolicy retries forever with a five second pause.
func DefaultResolverPolicy() RetryPolicy {
	return Forever(5 * time.Second)
}

// Unlimited reports whether the policy never gives up on its own.
func (p RetryPolicy) Unlimited() bool {
	return p.MaxAttempts <= 0
}

// Do runs operation until it succeeds, the policy is exhausted or ctx is done.
func Do(ctx context.Context, policy RetryPolicy, logger *slog.Logger, name string, operation func(context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	wait := policy.Wait
	if wait == nil {
		wait = timerWait
	}

	var lastErr error
	for attempt := 1; policy.Unlimited() || attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry abandoned: %w", err)
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				logger.InfoContext(ctx, "Operation succeeded after retries", "operation", name, "attempt", attempt)
			}
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("retry abandoned: %w", ctx.Err())
		}

		logger.WarnContext(ctx, "Operation failed, retrying",
			"operation", name,
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_interval", policy.Delay,
			"error", err,
		)

		if !policy.Unlimited() && attempt == policy.MaxAttempts {
			break
		}
		if err := wait(ctx, policy.Delay); err != nil {
			return fmt.Errorf("retry abandoned: %w", err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhaustedRetries, policy.MaxAttempts, lastErr)
}

func timerWait(ctx context.Context, d time.Duration) error {
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
