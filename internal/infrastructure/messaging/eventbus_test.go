package messaging

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
)

var eventTime = time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)

func unlockedEvent() shared.Event {
	return shared.NewAchievementUnlockedEvent("stu-1", "org-1", "ach-1", "First Class", 25, eventTime)
}

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false, EnableMetrics: true})
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := syncBus()

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventAchievementUnlocked, func(e shared.Event) error {
		typed++
		assert.Equal(t, "stu-1", e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		all++
		return nil
	}))

	require.NoError(t, bus.Publish(unlockedEvent()))
	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("stu-1", 25, "test", eventTime)))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.Published[shared.EventAchievementUnlocked])
	assert.Equal(t, int64(3), snap.HandlerExecutions)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := syncBus()

	var reached bool
	require.NoError(t, bus.Subscribe(shared.EventAchievementUnlocked, func(shared.Event) error {
		panic("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventAchievementUnlocked, func(shared.Event) error {
		return errors.New("plain failure")
	}))
	require.NoError(t, bus.Subscribe(shared.EventAchievementUnlocked, func(shared.Event) error {
		reached = true
		return nil
	}))

	assert.NotPanics(t, func() {
		require.NoError(t, bus.Publish(unlockedEvent()))
	})
	assert.True(t, reached)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestRecoveryMiddleware_WrapsPanic(t *testing.T) {
	h := RecoveryMiddleware(logger.Nop())(func(shared.Event) error { panic("kaboom") })

	err := h(unlockedEvent())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandlerPanic))
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var handled atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventAchievementUnlocked, func(shared.Event) error {
		time.Sleep(10 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(unlockedEvent()))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(5), handled.Load())
	assert.ErrorIs(t, bus.Publish(unlockedEvent()), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventXPAwarded, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close())
}

func TestRedisEventBus_RelaysOnlyForeignEvents(t *testing.T) {
	local := syncBus()
	bus := &RedisEventBus{localBus: local, instanceID: "me", log: logger.Nop()}

	var got []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventAchievementUnlocked, func(e shared.Event) error {
		got = append(got, e)
		return nil
	}))

	own, err := json.Marshal(newEnvelope("me", unlockedEvent()))
	require.NoError(t, err)
	foreign, err := json.Marshal(newEnvelope("other", unlockedEvent()))
	require.NoError(t, err)

	bus.handleRedisMessage(string(own))
	bus.handleRedisMessage("{not json")
	bus.handleRedisMessage(string(foreign))

	require.Len(t, got, 1)
	assert.Equal(t, shared.EventAchievementUnlocked, got[0].EventType())
	assert.Equal(t, "stu-1", got[0].AggregateID())
	assert.True(t, eventTime.Equal(got[0].OccurredAt()))
	assert.Equal(t, "org-1", got[0].Payload()["organization_id"])
}
