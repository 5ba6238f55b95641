package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

type cachedEntries struct {
	entries   []leaderboard.Entry
	expiresAt time.Time
}

// LeaderboardCache is a process-local leaderboard.Cache with TTL expiry.
type LeaderboardCache struct {
	mu    sync.Mutex
	clock timeutil.Clock
	items map[string]cachedEntries
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates an empty cache. Expiry is measured on clock.
func NewLeaderboardCache(clock timeutil.Clock) *LeaderboardCache {
	return &LeaderboardCache{
		clock: clock,
		items: make(map[string]cachedEntries),
	}
}

// Get returns a copy of the cached entries.
func (c *LeaderboardCache) Get(_ context.Context, key string) ([]leaderboard.Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !c.clock.Now().Before(item.expiresAt) {
		delete(c.items, key)
		return nil, false, nil
	}
	out := make([]leaderboard.Entry, len(item.entries))
	copy(out, item.entries)
	return out, true, nil
}

// Set stores a copy of entries for ttl.
func (c *LeaderboardCache) Set(_ context.Context, key string, entries []leaderboard.Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]leaderboard.Entry, len(entries))
	copy(stored, entries)
	c.items[key] = cachedEntries{entries: stored, expiresAt: c.clock.Now().Add(ttl)}
	return nil
}

// InvalidateOrganization drops every key that starts with the organization ID.
func (c *LeaderboardCache) InvalidateOrganization(_ context.Context, organizationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := organizationID + ":"
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	return nil
}

// Len returns the number of stored keys, expired ones included.
func (c *LeaderboardCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
