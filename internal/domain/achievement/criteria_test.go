package achievement

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
)

func TestCriteria_Target(t *testing.T) {
	assert.Equal(t, 1.0, Criteria{}.Target())
	assert.Equal(t, 1.0, Criteria{TargetValue: ptr(0.0)}.Target())
	assert.Equal(t, 12.0, Criteria{TargetValue: ptr(12.0)}.Target())
}

func TestCriteria_Validate(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		wantKind error
	}{
		{"valid attendance", Criteria{Type: CriteriaAttendance, Condition: ConditionTotalClasses, TargetValue: ptr(10.0), Timeframe: TimeframeMonthly}, nil},
		{"default branch", Criteria{Type: CriteriaEvaluation}, nil},
		{"social accepts any condition", Criteria{Type: CriteriaSocial, Condition: "referrals"}, nil},
		{"custom accepts any condition", Criteria{Type: CriteriaCustom, Condition: "manual"}, nil},
		{"unknown type", Criteria{Type: "magic"}, shared.ErrInvalidInput},
		{"unknown condition", Criteria{Type: CriteriaTechnique, Condition: "fastest_kick"}, shared.ErrInvalidInput},
		{"unknown timeframe", Criteria{Type: CriteriaAttendance, Timeframe: "hourly"}, shared.ErrInvalidInput},
		{"negative target", Criteria{Type: CriteriaAttendance, TargetValue: ptr(-1.0)}, shared.ErrNegativeValue},
		{"category mastery needs a category", Criteria{Type: CriteriaTechnique, Condition: ConditionCategoryMastery}, shared.ErrEmptyValue},
		{"min score above 100", Criteria{Type: CriteriaEvaluation, Condition: ConditionHighScores, Metadata: Metadata{MinScore: ptr(120.0)}}, shared.ErrValueOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criteria.Validate()
			if tt.wantKind == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantKind), "got %v", err)
			assert.True(t, errors.Is(err, shared.ErrInvalidCriteria))
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestCriteria_JSONIgnoresUnknownMetadata(t *testing.T) {
	raw := `{
		"type": "evaluation",
		"condition": "high_scores",
		"targetValue": 3,
		"timeframe": "yearly",
		"metadata": {"minScore": 85, "color": "gold"}
	}`

	var c Criteria
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	assert.Equal(t, CriteriaEvaluation, c.Type)
	assert.Equal(t, 3.0, c.Target())
	assert.Equal(t, TimeframeYearly, c.Timeframe)
	assert.Equal(t, 85.0, c.Metadata.MinScoreOrDefault())
	assert.NoError(t, c.Validate())
}

func TestMetadata_MinScoreDefault(t *testing.T) {
	assert.Equal(t, DefaultMinScore, Metadata{}.MinScoreOrDefault())
}

func TestNewAchievement(t *testing.T) {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	params := NewAchievementParams{
		ID:             "a-1",
		OrganizationID: "org-1",
		Name:           "  First Steps ",
		Category:       CategoryAttendance,
		Criteria:       Criteria{Type: CriteriaAttendance, Condition: ConditionTotalClasses, TargetValue: ptr(1.0)},
		XPReward:       50,
		CreatedAt:      created,
	}

	a, err := NewAchievement(params)
	require.NoError(t, err)
	assert.Equal(t, "First Steps", a.Name)
	assert.Equal(t, RarityCommon, a.Rarity)
	assert.Equal(t, created, a.CreatedAt)

	bad := params
	bad.Category = "cooking"
	_, err = NewAchievement(bad)
	assert.True(t, shared.IsValidation(err))

	bad = params
	bad.XPReward = -5
	_, err = NewAchievement(bad)
	assert.True(t, errors.Is(err, shared.ErrNegativeValue))

	bad = params
	bad.Criteria = Criteria{Type: "nope"}
	_, err = NewAchievement(bad)
	assert.True(t, shared.IsValidation(err))

	bad = params
	bad.Name = " "
	_, err = NewAchievement(bad)
	assert.True(t, errors.Is(err, shared.ErrEmptyValue))
}

func TestNewStudentAchievement(t *testing.T) {
	when := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

	sa, err := NewStudentAchievement("u-1", "s-1", "a-1", when)
	require.NoError(t, err)
	assert.Equal(t, when, sa.UnlockedAt)

	_, err = NewStudentAchievement("u-1", "", "a-1", when)
	assert.Error(t, err)

	_, err = NewStudentAchievement("u-1", "s-1", "a-1", time.Time{})
	assert.Error(t, err)
}
