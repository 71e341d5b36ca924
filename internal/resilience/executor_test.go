package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{Timeout: 50 * time.Millisecond, Retries: 3, BaseDelay: time.Millisecond}
}

func TestCall_Success(t *testing.T) {
	exec := NewExecutor(NewBreaker(BreakerOptions{}), fastPolicy())

	got, err := Call(context.Background(), exec, "sync", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestCall_RetriesRetryableFailures(t *testing.T) {
	exec := NewExecutor(NewBreaker(BreakerOptions{}), fastPolicy())
	var calls atomic.Int32

	got, err := Call(context.Background(), exec, "sync", func(ctx context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", &ServerError{StatusCode: 503, Body: "unavailable"}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 0, exec.Breaker().State("sync").Failures, "success resets the failure count")
}

func TestCall_GivesUpAfterRetries(t *testing.T) {
	exec := NewExecutor(NewBreaker(BreakerOptions{Threshold: 10}), fastPolicy())
	var calls atomic.Int32

	err := exec.Do(context.Background(), "sync", func(ctx context.Context) error {
		calls.Add(1)
		return &NetworkError{Err: errors.New("connection refused")}
	})
	require.Error(t, err)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Equal(t, int32(4), calls.Load(), "one attempt plus three retries")
	assert.Equal(t, 4, exec.Breaker().State("sync").Failures)
}

func TestCall_ClientErrorFailsFast(t *testing.T) {
	exec := NewExecutor(NewBreaker(BreakerOptions{Threshold: 1}), fastPolicy())
	var calls atomic.Int32

	err := exec.Do(context.Background(), "sync", func(ctx context.Context) error {
		calls.Add(1)
		return &ClientError{StatusCode: 403, Body: "forbidden"}
	})
	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, 403, clientErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, exec.Breaker().IsOpen("sync"))
}

func TestCall_TimeoutIsDistinct(t *testing.T) {
	policy := fastPolicy()
	policy.Retries = 1
	exec := NewExecutor(NewBreaker(BreakerOptions{}), policy)
	var calls atomic.Int32

	err := exec.Do(context.Background(), "sync", func(ctx context.Context) error {
		calls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	})
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, policy.Timeout, timeoutErr.Timeout)
	assert.Equal(t, int32(2), calls.Load(), "timeouts are retried")
}

func TestCall_TimeoutWhenCallIgnoresContext(t *testing.T) {
	policy := fastPolicy()
	policy.Retries = 0
	exec := NewExecutor(NewBreaker(BreakerOptions{}), policy)
	release := make(chan struct{})
	defer close(release)

	err := exec.Do(context.Background(), "sync", func(ctx context.Context) error {
		<-release
		return nil
	})
	assert.True(t, IsRetryable(err))
	var timeoutErr *TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestCall_OpenCircuitSkipsNetwork(t *testing.T) {
	breaker := NewBreaker(BreakerOptions{Threshold: 1})
	breaker.Failure("sync")
	exec := NewExecutor(breaker, fastPolicy())
	var calls atomic.Int32

	err := exec.Do(context.Background(), "sync", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	assert.True(t, IsCircuitOpen(err))
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 1, breaker.State("sync").Failures, "rejections are not counted as failures")
}

func TestCall_CircuitOpeningMidRetryReturnsLastFailure(t *testing.T) {
	breaker := NewBreaker(BreakerOptions{Threshold: 2, Now: newFakeClock().Now})
	exec := NewExecutor(breaker, fastPolicy())
	var calls atomic.Int32

	_, err := Call(context.Background(), exec, "sync", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, &ServerError{StatusCode: 503, Body: "unavailable"}
	})
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.False(t, IsCircuitOpen(err))
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, breaker.IsOpen("sync"))

	_, err = Call(context.Background(), exec, "sync", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, nil
	})
	assert.True(t, IsCircuitOpen(err), "a call that never ran still reports the open circuit")
	assert.Equal(t, int32(2), calls.Load())
}

func TestCall_ParentCancellation(t *testing.T) {
	exec := NewExecutor(NewBreaker(BreakerOptions{}), Policy{Timeout: time.Second, Retries: 3, BaseDelay: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	err := exec.Do(ctx, "sync", func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, exec.Breaker().State("sync").Failures)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", &TimeoutError{Timeout: time.Second}, true},
		{"network", &NetworkError{Err: errors.New("dial tcp")}, true},
		{"server", &ServerError{StatusCode: 500}, true},
		{"wrapped server", errors.Join(errors.New("submit"), &ServerError{StatusCode: 502}), true},
		{"client", &ClientError{StatusCode: 400}, false},
		{"circuit open", &CircuitOpenError{Key: "k"}, false},
		{"validation", NewValidationError("hole", "must be between 1 and 18"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
