package command

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-progress/internal/application/query"
	"github.com/dojo-hub/dojo-progress/internal/domain/achievement"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/internal/infrastructure/persistence/memory"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

var testNow = time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)

type sequenceIDs struct{ n int }

func (s *sequenceIDs) NewID() string {
	s.n++
	return fmt.Sprintf("ach-%d", s.n)
}

type recordingPublisher struct{ events []shared.Event }

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func validCommand() CreateAchievementCommand {
	target := 5.0
	return CreateAchievementCommand{
		OrganizationID: "org-1",
		Name:           "  Five Classes ",
		Description:    "Attend five classes",
		Category:       achievement.CategoryAttendance,
		Criteria: achievement.Criteria{
			Type:        achievement.CriteriaAttendance,
			Condition:   achievement.ConditionTotalClasses,
			TargetValue: &target,
			Timeframe:   achievement.TimeframeMonthly,
		},
		XPReward: 40,
	}
}

func TestCreateAchievement_Stores(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{}
	h := NewCreateAchievementHandler(store.Achievements(), pub, &sequenceIDs{}, timeutil.Fixed(testNow), nil)

	res, err := h.Handle(context.Background(), validCommand())
	require.NoError(t, err)

	a := res.Achievement
	assert.Equal(t, "ach-1", a.ID)
	assert.Equal(t, "Five Classes", a.Name)
	assert.Equal(t, achievement.RarityCommon, a.Rarity)
	assert.Equal(t, testNow, a.CreatedAt)

	stored, err := store.Achievements().GetByID(context.Background(), "ach-1")
	require.NoError(t, err)
	assert.Equal(t, a.Criteria, stored.Criteria)

	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventAchievementCreated, pub.events[0].EventType())
	assert.Equal(t, "ach-1", pub.events[0].AggregateID())
}

func TestCreateAchievement_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateAchievementCommand)
	}{
		{name: "missing organization", mutate: func(c *CreateAchievementCommand) { c.OrganizationID = "" }},
		{name: "missing name", mutate: func(c *CreateAchievementCommand) { c.Name = "" }},
		{name: "unknown category", mutate: func(c *CreateAchievementCommand) { c.Category = "karaoke" }},
		{name: "negative xp", mutate: func(c *CreateAchievementCommand) { c.XPReward = -1 }},
		{name: "unknown rarity", mutate: func(c *CreateAchievementCommand) { c.Rarity = "mythic" }},
		{name: "unknown criteria type", mutate: func(c *CreateAchievementCommand) { c.Criteria.Type = "telepathy" }},
		{name: "unknown condition", mutate: func(c *CreateAchievementCommand) { c.Criteria.Condition = "sleep_in" }},
		{name: "unknown timeframe", mutate: func(c *CreateAchievementCommand) { c.Criteria.Timeframe = "fortnightly" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			h := NewCreateAchievementHandler(store.Achievements(), nil, &sequenceIDs{}, timeutil.Fixed(testNow), nil)

			cmd := validCommand()
			tt.mutate(&cmd)

			_, err := h.Handle(context.Background(), cmd)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err), "got %v", err)

			list, err := store.Achievements().ListByOrganization(context.Background(), "org-1", achievement.ListFilter{})
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestCreateAchievement_RoundTripThroughResolver(t *testing.T) {
	store := memory.NewStore()
	store.PutStudent(&student.Student{ID: "stu-1", OrganizationID: "org-1", IsActive: true})

	create := NewCreateAchievementHandler(store.Achievements(), nil, nil, timeutil.Fixed(testNow), nil)
	res, err := create.Handle(context.Background(), validCommand())
	require.NoError(t, err)
	_, err = uuid.Parse(res.Achievement.ID)
	require.NoError(t, err)

	resolver := query.NewGetStudentAchievementsHandler(
		store.Students(), store.Achievements(), store.Unlocks(), timeutil.Fixed(testNow), nil, 0,
	)
	out, err := resolver.Handle(context.Background(), query.GetStudentAchievementsQuery{
		StudentID:       "stu-1",
		IncludeProgress: true,
	})
	require.NoError(t, err)

	require.Len(t, out.Achievements, 1)
	got := out.Achievements[0]
	assert.Equal(t, res.Achievement.ID, got.AchievementID)
	assert.False(t, got.IsUnlocked)
	assert.Nil(t, got.UnlockedAt)
	assert.Zero(t, got.Progress)
}
