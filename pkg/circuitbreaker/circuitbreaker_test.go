package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

var errDown = errors.New("redis down")

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	clock := &timeutil.FixedClock{T: time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)}
	var transitions []string
	cb := CacheBreaker("cache", func(_ string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}, WithClock(clock))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	}
	require.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, ok)
	assert.True(t, IsRejected(err))

	clock.T = clock.T.Add(15 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	clock := &timeutil.FixedClock{T: time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)}
	cb := New("db", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clock))

	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.T = clock.T.Add(time.Second)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, IsRejected(cb.Execute(ctx, ok)))
}

func TestCircuitBreaker_IgnoresCallerCancellation(t *testing.T) {
	cb := New("cache", WithFailureThreshold(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	benign := errors.New("miss")
	cb := New("cache", WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, benign)
	}))

	_ = cb.Execute(context.Background(), func(context.Context) error { return benign })
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Counts().TotalSuccesses)
}
