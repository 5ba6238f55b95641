package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-progress/pkg/circuitbreaker"
)

func TestConfig_Options(t *testing.T) {
	opts, err := DefaultConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 10, opts.PoolSize)

	cfg := DefaultConfig()
	cfg.URL = "redis://:secret@cache.internal:6380/2"
	opts, err = cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)

	cfg.URL = "http://nope"
	_, err = cfg.Options()
	assert.Error(t, err)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "org-1", escapeGlob("org-1"))
	assert.Equal(t, `a\*b\?c\[d\]\\`, escapeGlob(`a*b?c[d]\`))
	assert.Equal(t, "leaderboard:achievements:org-1:all:10::", leaderboardKey("org-1:all:10::"))
}

// openBreaker returns a breaker already tripped by one failure.
func openBreaker(t *testing.T) *circuitbreaker.CircuitBreaker {
	t.Helper()
	cb := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithTimeout(time.Hour))
	_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("down") })
	require.Equal(t, circuitbreaker.StateOpen, cb.State())
	return cb
}

func TestLeaderboardCache_OpenBreakerDegradesToMiss(t *testing.T) {
	// nothing listens here; an open breaker must keep calls away from it
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	c := NewLeaderboardCache(NewCacheFromClient(client), openBreaker(t), nil)
	ctx := context.Background()

	entries, ok, err := c.Get(ctx, "org-1:all:10::")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, entries)

	assert.NoError(t, c.Set(ctx, "org-1:all:10::", []leaderboard.Entry{{Rank: 1}}, time.Minute))

	err = c.InvalidateOrganization(ctx, "org-1")
	assert.True(t, circuitbreaker.IsRejected(err))
}
