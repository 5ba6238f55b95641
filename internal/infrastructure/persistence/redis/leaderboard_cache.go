package redis

import (
	"context"
	"errors"
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-progress/pkg/circuitbreaker"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements leaderboard.Cache on Redis.
//
// Keys are "leaderboard:achievements:{org}:{query key}" so one organization
// can be dropped with a single SCAN. Calls go through a circuit breaker; while
// it is open reads are misses and writes are skipped.
type LeaderboardCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates the cache. A nil breaker gets the cache preset.
func NewLeaderboardCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker, log *logger.Logger) *LeaderboardCache {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("leaderboard_cache"))
	if breaker == nil {
		breaker = circuitbreaker.CacheBreaker("redis-leaderboard", func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	return &LeaderboardCache{cache: cache, breaker: breaker, log: log}
}

// leaderboardKey builds the Redis key; query keys start with the org id.
func leaderboardKey(key string) string {
	return PrefixLeaderboard + key
}

// Get returns cached rows; a miss or an open breaker yields ok == false.
func (c *LeaderboardCache) Get(ctx context.Context, key string) ([]leaderboard.Entry, bool, error) {
	var entries []leaderboard.Entry
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.cache.GetJSON(ctx, leaderboardKey(key), &entries)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	})
	switch {
	case circuitbreaker.IsRejected(err):
		c.log.Debug("cache bypassed", logger.String("key", key))
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	if entries == nil {
		return nil, false, nil
	}
	return entries, true, nil
}

// Set stores rows with ttl. Skipped while the breaker is open.
func (c *LeaderboardCache) Set(ctx context.Context, key string, entries []leaderboard.Entry, ttl time.Duration) error {
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.SetJSON(ctx, leaderboardKey(key), entries, ttl)
	})
	if circuitbreaker.IsRejected(err) {
		return nil
	}
	return err
}

// InvalidateOrganization deletes every cached leaderboard of the organization.
func (c *LeaderboardCache) InvalidateOrganization(ctx context.Context, organizationID string) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		n, err := c.cache.DeleteByPattern(ctx, leaderboardKey(escapeGlob(organizationID)+":*"))
		if err == nil {
			c.log.Debug("leaderboards invalidated",
				logger.OrganizationID(organizationID),
				logger.Count("keys", n),
			)
		}
		return err
	})
}
