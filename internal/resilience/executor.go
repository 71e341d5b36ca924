package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sethvargo/go-retry"
)

// Policy bounds each outbound call.
type Policy struct {
	// Timeout applies to every attempt separately.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first for retryable failures.
	Retries int
	// BaseDelay is the first backoff; attempt n waits BaseDelay * 2^n.
	BaseDelay time.Duration
}

// DefaultPolicy returns the 10s / 3 retries / 1s policy.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:   10 * time.Second,
		Retries:   3,
		BaseDelay: time.Second,
	}
}

// Executor runs calls through a breaker with per-attempt timeouts and backoff.
type Executor struct {
	breaker *Breaker
	policy  Policy
}

// NewExecutor wires a breaker and a policy together. Zero policy fields take the
// defaults.
func NewExecutor(breaker *Breaker, policy Policy) *Executor {
	def := DefaultPolicy()
	if policy.Timeout <= 0 {
		policy.Timeout = def.Timeout
	}
	if policy.Retries < 0 {
		policy.Retries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = def.BaseDelay
	}
	return &Executor{breaker: breaker, policy: policy}
}

// Breaker exposes the executor's breaker for inspection.
func (e *Executor) Breaker() *Breaker {
	return e.breaker
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs fn under the executor for circuit key.
func (e *Executor) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, e, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn under the executor for circuit key and returns its value. Circuit
// rejections and non-retryable errors return immediately; retryable failures are
// retried with exponential backoff until the policy is exhausted. Only retryable
// failures count against the circuit. When the circuit opens between attempts, the
// last real failure is returned, so a CircuitOpenError means fn never ran.
func Call[T any](ctx context.Context, e *Executor, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		result  T
		attempt int
		lastErr error
	)
	backoff := retry.WithMaxRetries(uint64(e.policy.Retries), retry.NewExponential(e.policy.BaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := e.breaker.Allow(key); err != nil {
			if lastErr != nil {
				log.Debug("Circuit opened during retries", "key", key, "attempt", attempt)
				return lastErr
			}
			return err
		}

		v, err := runAttempt(ctx, e.policy.Timeout, fn)
		switch {
		case err == nil:
			e.breaker.Success(key)
			result = v
			return nil
		case ctx.Err() != nil:
			e.breaker.Abandon(key)
			return ctx.Err()
		case IsRetryable(err):
			e.breaker.Failure(key)
			lastErr = err
			log.Debug("Retryable failure", "key", key, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		default:
			// The remote answered, so the endpoint itself is healthy.
			e.breaker.Success(key)
			return err
		}
	})
	return result, err
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(attemptCtx)
		done <- outcome{v: v, err: err}
	}()

	var zero T
	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, &TimeoutError{Timeout: timeout}
		}
		return out.v, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &TimeoutError{Timeout: timeout}
	}
}
