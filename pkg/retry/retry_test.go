package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fast() []Option {
	return []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errFlaky)
	}, fast()...)

	assert.Equal(t, errFlaky, err)
	assert.Equal(t, 1, calls)
}

func TestDo_PlainErrorsAreNotRetriedByDefault(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errFlaky
	}, fast()...)

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_UnwrapsAfterLastAttempt(t *testing.T) {
	var delays []time.Duration
	opts := append(fast(), WithMaxAttempts(2), WithOnRetry(func(attempt int, err error, d time.Duration) {
		delays = append(delays, d)
	}))
	err := Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errFlaky)
	}, opts...)

	assert.Equal(t, errFlaky, err)
	assert.Len(t, delays, 1)
}

func TestDo_RetryIf(t *testing.T) {
	calls := 0
	opts := append(fast(), WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }))
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errFlaky
	}, opts...)

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestDo_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errFlaky)
		}
		return 42, nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCalculateDelay_CapsAtMax(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithJitter(0))
	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(5))
}

func TestPresets_AcceptOverrides(t *testing.T) {
	r := BackendAPIRetrier(WithMaxAttempts(7))
	assert.Equal(t, 7, r.config.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, r.config.InitialDelay)

	assert.Equal(t, 2, CacheRetrier().config.MaxAttempts)
	assert.Equal(t, 3, DatabaseRetrier().config.MaxAttempts)
}
