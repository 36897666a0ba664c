package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(ctx context.Context) error { return errBoom }
func ok(ctx context.Context) error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []State
	cb := New("test",
		WithFailureThreshold(2),
		WithTimeout(time.Hour),
		WithOnStateChange(func(name string, from, to State) { transitions = append(transitions, to) }),
	)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBoom)
	assert.True(t, cb.IsClosed())
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBoom)
	assert.True(t, cb.IsOpen())

	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrCircuitOpen)
	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithTimeout(time.Millisecond),
	)

	require.Error(t, cb.Execute(context.Background(), fail))
	require.True(t, cb.IsOpen())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.True(t, cb.IsClosed())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Millisecond))

	require.Error(t, cb.Execute(context.Background(), fail))
	time.Sleep(5 * time.Millisecond)
	require.Error(t, cb.Execute(context.Background(), fail))
	assert.True(t, cb.IsOpen())
}

func TestBreaker_IsFailureFiltersErrors(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, errBoom) }),
	)

	for i := 0; i < 3; i++ {
		require.Error(t, cb.Execute(context.Background(), fail))
	}
	assert.True(t, cb.IsClosed())
	assert.Equal(t, 3, cb.Counts().TotalSuccesses)
}

func TestBreaker_ExecuteWithFallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Hour))
	require.Error(t, cb.Execute(context.Background(), fail))

	err := cb.ExecuteWithFallback(context.Background(), ok, func(err error) error {
		assert.ErrorIs(t, err, ErrCircuitOpen)
		return nil
	})
	assert.NoError(t, err)
}

func TestBreaker_Reset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Hour))
	require.Error(t, cb.Execute(context.Background(), fail))
	require.True(t, cb.IsOpen())

	cb.Reset()
	assert.True(t, cb.IsClosed())
	assert.Equal(t, Counts{}, cb.Counts())
}

func TestPresets(t *testing.T) {
	b := BackendAPIBreaker(nil, WithFailureThreshold(9))
	assert.Equal(t, "gpa-backend", b.Name())
	assert.Equal(t, 9, b.config.FailureThreshold)
	assert.Equal(t, 60*time.Second, b.config.Timeout)

	assert.Equal(t, "database", DatabaseBreaker(nil).Name())
	assert.Equal(t, "cache", CacheBreaker(nil).Name())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
