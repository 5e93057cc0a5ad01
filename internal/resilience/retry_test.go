package resilience

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	val, err := DoVal(context.Background(), fastConfig(), func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", NewTransientError(eris.New("overloaded"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, attempts)
}

func TestDoVal_PermanentErrorNotRetried(t *testing.T) {
	attempts := 0
	_, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		attempts++
		return 0, eris.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		attempts++
		return 0, NewTransientError(eris.New("still down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "still down")
}

func TestDoVal_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := DoVal(ctx, fastConfig(), func(context.Context) (int, error) {
		attempts++
		cancel()
		return 0, NewTransientError(eris.New("down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var notified []int
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, err error) {
		notified = append(notified, attempt)
	}
	_ = Do(context.Background(), cfg, func(context.Context) error {
		return NewTransientError(eris.New("down"), 502)
	})
	assert.Equal(t, []int{1, 2}, notified)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("validation failed")))
	assert.True(t, IsTransient(NewTransientError(eris.New("x"), 500)))
	assert.True(t, IsTransient(eris.Wrap(NewTransientError(eris.New("x"), 429), "outer")))
	assert.True(t, IsTransient(&net.DNSError{IsTimeout: true}))
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestComputeBackoff_CappedAtMax(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: time.Second, MaxBackoff: 2 * time.Second, Multiplier: 10, JitterFraction: 0})
	assert.Equal(t, 2*time.Second, computeBackoff(5, cfg))
}
