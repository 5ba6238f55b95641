package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-progress/internal/application/query"
	"github.com/dojo-hub/dojo-progress/internal/application/saga"
	"github.com/dojo-hub/dojo-progress/internal/domain/achievement"
	"github.com/dojo-hub/dojo-progress/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/internal/infrastructure/persistence/memory"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

var testNow = time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)

func level(v float64) *float64 { return &v }

// seedOrgs: org-1 has two active students (levels 5 and 2) and one inactive;
// org-2 has one level-5 student. Every org has a level-3 achievement.
func seedOrgs(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	store.PutStudent(&student.Student{ID: "a", OrganizationID: "org-1", GlobalLevel: 5, TotalXP: 10, IsActive: true})
	store.PutStudent(&student.Student{ID: "b", OrganizationID: "org-1", GlobalLevel: 2, IsActive: true})
	store.PutStudent(&student.Student{ID: "c", OrganizationID: "org-1", GlobalLevel: 9})
	store.PutStudent(&student.Student{ID: "d", OrganizationID: "org-2", GlobalLevel: 5, IsActive: true})

	for _, org := range []string{"org-1", "org-2"} {
		require.NoError(t, store.Achievements().Create(context.Background(), &achievement.Achievement{
			ID: "lvl3-" + org, OrganizationID: org, Name: "Level 3", Category: achievement.CategoryProgression,
			XPReward: 15, CreatedAt: testNow.Add(-time.Hour),
			Criteria: achievement.Criteria{Type: achievement.CriteriaProgression, Condition: achievement.ConditionLevelReached, TargetValue: level(3)},
		}))
	}
	return store
}

func newChecker(store *memory.Store) *saga.AchievementFlowSaga {
	clock := timeutil.Fixed(testNow)
	resolver := query.NewGetStudentAchievementsHandler(store.Students(), store.Achievements(), store.Unlocks(), clock, nil, 1)
	return saga.NewAchievementFlowSaga(resolver, store.Unlocks(), store.Students(), nil, nil, clock, nil, saga.DefaultAchievementFlowConfig())
}

func TestUnlockSweepJob_GrantsAcrossOrganizations(t *testing.T) {
	store := seedOrgs(t)
	job := NewUnlockSweepJob(store.Students(), newChecker(store), nil, nil, DefaultUnlockSweepConfig())

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Organizations)
	assert.Equal(t, 3, stats.StudentsChecked)
	assert.Equal(t, 2, stats.AchievementsUnlocked)
	assert.Equal(t, 30, stats.XPAwarded)

	for id, want := range map[string]int{"a": 1, "b": 0, "c": 0, "d": 1} {
		rows, err := store.Unlocks().ListByStudent(context.Background(), id)
		require.NoError(t, err)
		assert.Len(t, rows, want, id)
	}

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, job.LastStats().AchievementsUnlocked)
}

func TestUnlockSweepJob_Gate(t *testing.T) {
	store := seedOrgs(t)
	gate := func(org string) bool { return org == "org-2" }
	job := NewUnlockSweepJob(store.Students(), newChecker(store), gate, nil, DefaultUnlockSweepConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, job.LastStats().SkippedOrganizations)
	assert.Equal(t, 1, job.LastStats().StudentsChecked)
}

func TestUnlockSweepJob_SweepOrganization(t *testing.T) {
	store := seedOrgs(t)
	job := NewUnlockSweepJob(store.Students(), newChecker(store), nil, nil, DefaultUnlockSweepConfig())

	stats, err := job.SweepOrganization(context.Background(), "org-2")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StudentsChecked)
	assert.Equal(t, 1, stats.AchievementsUnlocked)
	assert.Nil(t, job.LastStats())

	rows, err := store.Unlocks().ListByStudent(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, rows)

	gated := NewUnlockSweepJob(store.Students(), newChecker(store), func(string) bool { return false }, nil, DefaultUnlockSweepConfig())
	stats, err = gated.SweepOrganization(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedOrganizations)
	assert.Zero(t, stats.StudentsChecked)
}

type flakyChecker struct {
	mu    sync.Mutex
	calls []string
}

func (f *flakyChecker) Execute(_ context.Context, in saga.AchievementCheckInput) (*saga.AchievementFlowResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in.StudentID)
	f.mu.Unlock()
	if in.StudentID == "a" {
		return nil, errors.New("storage hiccup")
	}
	return &saga.AchievementFlowResult{StudentID: in.StudentID}, nil
}

func TestUnlockSweepJob_StudentFailureIsIsolated(t *testing.T) {
	store := seedOrgs(t)
	checker := &flakyChecker{}
	job := NewUnlockSweepJob(store.Students(), checker, nil, nil, UnlockSweepConfig{Concurrency: 2})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, job.LastStats().StudentsFailed)
	assert.ElementsMatch(t, []string{"a", "b", "d"}, checker.calls)
}

func TestUnlockSweepJob_Cancelled(t *testing.T) {
	store := seedOrgs(t)
	job := NewUnlockSweepJob(store.Students(), &flakyChecker{}, nil, nil, DefaultUnlockSweepConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
}

func TestWarmLeaderboardJob_FillsCache(t *testing.T) {
	store := seedOrgs(t)
	clock := timeutil.Fixed(testNow)
	cache := memory.NewLeaderboardCache(clock)
	reader := query.NewGetAchievementLeaderboardHandler(store.Leaderboard(), cache, time.Hour, clock, nil)

	job := NewWarmLeaderboardJob(store.Students(), reader, nil, WarmLeaderboardConfig{
		Timeframes: []leaderboard.Timeframe{leaderboard.TimeframeWeek, leaderboard.TimeframeAll},
	})
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 4, cache.Len())

	res, err := reader.Handle(context.Background(), query.GetAchievementLeaderboardQuery{OrganizationID: "org-1", Timeframe: leaderboard.TimeframeAll})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Len(t, res.Entries, 2)
}
