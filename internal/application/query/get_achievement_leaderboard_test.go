package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-progress/internal/domain/achievement"
	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/internal/infrastructure/persistence/memory"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

func seedLeaderboard(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()

	students := []*student.Student{
		{ID: "s-a", OrganizationID: "org-1", Name: "A", Category: "kids", TotalXP: 300, GlobalLevel: 3, IsActive: true,
			Enrollments: []student.Enrollment{
				{ID: "e1", CurrentXP: 120, Course: student.Course{ID: "c1", MartialArtID: "bjj"}},
				{ID: "e2", CurrentXP: 80, Course: student.Course{ID: "c2", MartialArtID: "judo"}},
			}},
		{ID: "s-b", OrganizationID: "org-1", Name: "B", Category: "adults", TotalXP: 100, GlobalLevel: 1, IsActive: true},
		{ID: "s-c", OrganizationID: "org-1", Name: "C", Category: "adults", TotalXP: 200, GlobalLevel: 2, IsActive: true},
		{ID: "s-d", OrganizationID: "org-1", Name: "D", TotalXP: 999, IsActive: false},
		{ID: "s-e", OrganizationID: "org-2", Name: "E", TotalXP: 5000, IsActive: true},
	}
	for _, s := range students {
		store.PutStudent(s)
	}

	for _, a := range []*achievement.Achievement{
		{ID: "ach-1", OrganizationID: "org-1", Name: "One", Category: achievement.CategoryAttendance, XPReward: 10,
			Criteria: achievement.Criteria{Type: achievement.CriteriaAttendance}},
		{ID: "ach-2", OrganizationID: "org-1", Name: "Two", Category: achievement.CategoryAttendance, XPReward: 25,
			Criteria: achievement.Criteria{Type: achievement.CriteriaAttendance}},
	} {
		require.NoError(t, store.Achievements().Create(ctx, a))
	}

	// testNow is Saturday 2024-01-20; the week starts Monday 2024-01-15.
	unlocks := []achievement.StudentAchievement{
		{ID: "u1", StudentID: "s-a", AchievementID: "ach-1", UnlockedAt: time.Date(2024, time.January, 16, 10, 0, 0, 0, time.UTC)},
		{ID: "u2", StudentID: "s-a", AchievementID: "ach-2", UnlockedAt: time.Date(2023, time.December, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "u3", StudentID: "s-c", AchievementID: "ach-2", UnlockedAt: time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)},
	}
	for _, u := range unlocks {
		require.NoError(t, store.Unlocks().Unlock(ctx, u))
	}
	return store
}

func newLeaderboardHandler(store *memory.Store, cache leaderboard.Cache, ttl time.Duration) *GetAchievementLeaderboardHandler {
	return NewGetAchievementLeaderboardHandler(store.Leaderboard(), cache, ttl, timeutil.Fixed(testNow), nil)
}

func TestGetAchievementLeaderboard_OrderAndLimit(t *testing.T) {
	store := seedLeaderboard(t)

	res, err := newLeaderboardHandler(store, nil, 0).Handle(context.Background(), GetAchievementLeaderboardQuery{
		OrganizationID: "org-1",
		Limit:          2,
	})
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, leaderboard.Rank(1), res.Entries[0].Rank)
	assert.Equal(t, "s-a", res.Entries[0].StudentID)
	assert.Equal(t, 300, res.Entries[0].TotalXP)
	assert.Equal(t, leaderboard.Rank(2), res.Entries[1].Rank)
	assert.Equal(t, "s-c", res.Entries[1].StudentID)

	assert.Equal(t, leaderboard.TimeframeAll, res.Timeframe)
	assert.Nil(t, res.Since)
	assert.False(t, res.FromCache)
}

func TestGetAchievementLeaderboard_DefaultsToTen(t *testing.T) {
	store := seedLeaderboard(t)

	res, err := newLeaderboardHandler(store, nil, 0).Handle(context.Background(), GetAchievementLeaderboardQuery{
		OrganizationID: "org-1",
	})
	require.NoError(t, err)

	// only the three active org-1 students exist
	require.Len(t, res.Entries, 3)
	assert.Equal(t, []string{"s-a", "s-c", "s-b"}, []string{res.Entries[0].StudentID, res.Entries[1].StudentID, res.Entries[2].StudentID})
}

func TestGetAchievementLeaderboard_WindowedSummary(t *testing.T) {
	store := seedLeaderboard(t)
	h := newLeaderboardHandler(store, nil, 0)

	tests := []struct {
		name      string
		timeframe leaderboard.Timeframe
		wantCount int
		wantXP    int
	}{
		{name: "all", timeframe: leaderboard.TimeframeAll, wantCount: 2, wantXP: 35},
		{name: "month", timeframe: leaderboard.TimeframeMonth, wantCount: 1, wantXP: 10},
		{name: "week", timeframe: leaderboard.TimeframeWeek, wantCount: 1, wantXP: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Handle(context.Background(), GetAchievementLeaderboardQuery{
				OrganizationID: "org-1",
				Timeframe:      tt.timeframe,
			})
			require.NoError(t, err)
			require.NotEmpty(t, res.Entries)

			top := res.Entries[0]
			assert.Equal(t, "s-a", top.StudentID)
			assert.Equal(t, tt.wantCount, top.AchievementsCount)
			assert.Equal(t, tt.wantXP, top.RecentXP)
			assert.Equal(t, 200, top.CourseXP)
		})
	}

	res, err := h.Handle(context.Background(), GetAchievementLeaderboardQuery{
		OrganizationID: "org-1",
		Timeframe:      leaderboard.TimeframeWeek,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Since)
	assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), *res.Since)
	// s-c unlocked on Jan 2, outside the week
	assert.Zero(t, res.Entries[1].AchievementsCount)
}

func TestGetAchievementLeaderboard_MartialArtAndCategory(t *testing.T) {
	store := seedLeaderboard(t)
	h := newLeaderboardHandler(store, nil, 0)

	res, err := h.Handle(context.Background(), GetAchievementLeaderboardQuery{
		OrganizationID: "org-1",
		MartialArtID:   "bjj",
	})
	require.NoError(t, err)
	assert.Equal(t, 120, res.Entries[0].CourseXP)

	res, err = h.Handle(context.Background(), GetAchievementLeaderboardQuery{
		OrganizationID: "org-1",
		Category:       "adults",
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "s-c", res.Entries[0].StudentID)
	assert.Equal(t, "s-b", res.Entries[1].StudentID)
}

func TestGetAchievementLeaderboard_Validation(t *testing.T) {
	store := seedLeaderboard(t)
	h := newLeaderboardHandler(store, nil, 0)

	tests := []struct {
		name     string
		query    GetAchievementLeaderboardQuery
		wantKind error
	}{
		{name: "missing org", query: GetAchievementLeaderboardQuery{}},
		{name: "limit too large", query: GetAchievementLeaderboardQuery{OrganizationID: "org-1", Limit: 101}, wantKind: shared.ErrInvalidLimit},
		{name: "negative limit", query: GetAchievementLeaderboardQuery{OrganizationID: "org-1", Limit: -1}, wantKind: shared.ErrInvalidLimit},
		{name: "bad timeframe", query: GetAchievementLeaderboardQuery{OrganizationID: "org-1", Timeframe: "decade"}, wantKind: shared.ErrInvalidTimeframe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tt.query)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
			if tt.wantKind != nil {
				assert.ErrorIs(t, err, tt.wantKind)
			} else {
				assert.NotErrorIs(t, err, shared.ErrInvalidLimit)
			}
		})
	}
}

func TestGetAchievementLeaderboard_ReadThroughCache(t *testing.T) {
	store := seedLeaderboard(t)
	cache := memory.NewLeaderboardCache(timeutil.Fixed(testNow))
	h := newLeaderboardHandler(store, cache, time.Minute)
	q := GetAchievementLeaderboardQuery{OrganizationID: "org-1", Limit: 5}

	first, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, cache.Len())

	// a change behind the cache is not visible until invalidation
	store.PutStudent(&student.Student{ID: "s-z", OrganizationID: "org-1", Name: "Z", TotalXP: 10000, IsActive: true})

	second, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Entries, second.Entries)

	require.NoError(t, cache.InvalidateOrganization(context.Background(), "org-1"))

	third, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, third.FromCache)
	assert.Equal(t, "s-z", third.Entries[0].StudentID)
}

func TestGetAchievementLeaderboardQuery_CacheKey(t *testing.T) {
	q := GetAchievementLeaderboardQuery{OrganizationID: "org-1", Timeframe: leaderboard.TimeframeMonth, Limit: 10, MartialArtID: "bjj"}
	assert.Equal(t, "org-1:month:10::bjj", q.CacheKey())
}
