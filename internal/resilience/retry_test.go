package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return eris.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		attempts++
		return eris.New("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "still broken")
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Do(ctx, RetryConfig{MaxAttempts: 5, Delay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		cancel()
		return eris.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoOnRetryCallback(t *testing.T) {
	var seen []int
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, err error) {
		seen = append(seen, attempt)
	}

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		return eris.New("nope")
	})
	require.Error(t, err)
	// Called before each retry, not after the final failure.
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDoValReturnsValue(t *testing.T) {
	attempts := 0
	val, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, eris.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestDoValZeroOnFailure(t *testing.T) {
	val, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (string, error) {
		return "partial", eris.New("broken")
	})
	require.Error(t, err)
	assert.Equal(t, "", val)
}

func TestApplyDefaults(t *testing.T) {
	cfg := applyDefaults(RetryConfig{})
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Delay)

	cfg = applyDefaults(RetryConfig{MaxAttempts: 7, Delay: 2 * time.Second})
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Delay)
}
