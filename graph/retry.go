package graph

import (
	"context"
	"fmt"
	"time"
)

// BackoffStrategy defines different backoff strategies
type BackoffStrategy int

const (
	FixedBackoff BackoffStrategy = iota
	ExponentialBackoff
	LinearBackoff
)

// RetryPolicy defines how to handle node failures before a run is aborted.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first failure.
	MaxRetries int

	// Backoff selects how the delay grows between attempts.
	Backoff BackoffStrategy

	// BaseDelay is the delay unit, one second when zero.
	BaseDelay time.Duration

	// Retryable decides whether an error is worth another attempt.
	// A nil function retries nothing.
	Retryable func(error) bool
}

func (p *RetryPolicy) attempts() int {
	if p == nil || p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

func (p *RetryPolicy) shouldRetry(err error) bool {
	return p != nil && p.Retryable != nil && p.Retryable(err)
}

// delay calculates the wait before the attempt following the given zero-based attempt.
func (p *RetryPolicy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	switch p.Backoff {
	case ExponentialBackoff:
		// 1x, 2x, 4x, ...
		return base * time.Duration(1<<attempt)
	case LinearBackoff:
		// 1x, 2x, 3x, ...
		return base * time.Duration(attempt+1)
	default:
		return base
	}
}

// executeWithRetry runs fn until it succeeds, the policy gives up or ctx is done.
func executeWithRetry[S any](ctx context.Context, policy *RetryPolicy, node Node[S], state S) (S, error) {
	var (
		zero    S
		lastErr error
	)

	attempts := policy.attempts()
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := node.Function(ctx, state)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts-1 || !policy.shouldRetry(err) {
			break
		}

		select {
		case <-time.After(policy.delay(attempt)):
		case <-ctx.Done():
			return zero, fmt.Errorf("retry of %s cancelled: %w", node.Name, ctx.Err())
		}
	}

	return zero, lastErr
}
