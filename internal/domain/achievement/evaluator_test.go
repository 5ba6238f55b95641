package achievement

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
)

// Saturday, ISO week 3 of 2024.
var refNow = time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func crit(t CriteriaType, condition string) Criteria {
	return Criteria{Type: t, Condition: condition}
}

func withAttendance(times ...time.Time) *student.Student {
	s := &student.Student{ID: "s-1"}
	for _, tm := range times {
		s.Attendances = append(s.Attendances, student.Attendance{CheckInTime: tm, Status: student.AttendancePresent})
	}
	return s
}

func mustValue(t *testing.T, s *student.Student, c Criteria, now time.Time) float64 {
	t.Helper()
	v, err := CurrentValue(s, c, now)
	require.NoError(t, err)
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

func TestAttendance_NoRecordsIsZeroForEveryBranch(t *testing.T) {
	s := &student.Student{ID: "s-1"}
	conditions := []string{
		ConditionTotalClasses, ConditionConsecutiveDays, ConditionPerfectMonth,
		ConditionEarlyBird, "", "unknown_branch",
	}

	for _, cond := range conditions {
		t.Run(cond, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Zero(t, mustValue(t, s, crit(CriteriaAttendance, cond), refNow))
			})
		})
	}
}

func TestAttendance_ConsecutiveDays(t *testing.T) {
	s := withAttendance(
		at(2024, time.January, 1, 10),
		at(2024, time.January, 2, 9),
		at(2024, time.January, 2, 18), // same day twice
		at(2024, time.January, 3, 10),
		at(2024, time.January, 5, 10),
	)

	assert.Equal(t, 3.0, mustValue(t, s, crit(CriteriaAttendance, ConditionConsecutiveDays), refNow))
}

func TestAttendance_ConsecutiveDays_UnsortedInput(t *testing.T) {
	s := withAttendance(
		at(2024, time.January, 12, 10),
		at(2024, time.January, 10, 10),
		at(2024, time.January, 11, 10),
		at(2024, time.January, 1, 10),
	)

	assert.Equal(t, 3.0, mustValue(t, s, crit(CriteriaAttendance, ConditionConsecutiveDays), refNow))
}

func TestAttendance_PerfectMonthIsCapped(t *testing.T) {
	now := at(2024, time.January, 31, 20)

	var times []time.Time
	for d := 1; d <= 25; d++ {
		times = append(times, at(2024, time.January, d, 10))
	}
	times = append(times, at(2023, time.December, 30, 10))

	s := withAttendance(times...)
	// floor(31 * 0.7) = 21
	assert.Equal(t, 21.0, mustValue(t, s, crit(CriteriaAttendance, ConditionPerfectMonth), now))
}

func TestAttendance_PerfectMonthBelowCap(t *testing.T) {
	now := at(2024, time.February, 20, 20)
	s := withAttendance(
		at(2024, time.February, 1, 10),
		at(2024, time.February, 2, 10),
		at(2024, time.January, 31, 10),
	)

	assert.Equal(t, 2.0, mustValue(t, s, crit(CriteriaAttendance, ConditionPerfectMonth), now))
}

func TestAttendance_EarlyBirdUsesLocalHour(t *testing.T) {
	s := withAttendance(
		at(2024, time.January, 10, 6),
		time.Date(2024, time.January, 11, 7, 59, 0, 0, time.UTC),
		at(2024, time.January, 12, 8),
		at(2024, time.January, 13, 19),
	)
	assert.Equal(t, 2.0, mustValue(t, s, crit(CriteriaAttendance, ConditionEarlyBird), refNow))

	// 02:00 UTC is 07:00 at UTC+5; 06:00 UTC is 11:00 there.
	local := time.FixedZone("UTC+5", 5*60*60)
	s = withAttendance(at(2024, time.January, 10, 2), at(2024, time.January, 11, 6))
	assert.Equal(t, 1.0, mustValue(t, s, crit(CriteriaAttendance, ConditionEarlyBird), refNow.In(local)))
}

func TestAttendance_TotalClassesRespectsTimeframe(t *testing.T) {
	s := withAttendance(
		at(2024, time.January, 14, 10), // Sunday, previous week
		at(2024, time.January, 15, 10), // Monday
		at(2024, time.January, 18, 10),
	)

	weekly := crit(CriteriaAttendance, ConditionTotalClasses)
	weekly.Timeframe = TimeframeWeekly
	assert.Equal(t, 2.0, mustValue(t, s, weekly, refNow))

	assert.Equal(t, 3.0, mustValue(t, s, crit(CriteriaAttendance, ConditionTotalClasses), refNow))
	assert.Equal(t, 3.0, mustValue(t, s, crit(CriteriaAttendance, ""), refNow))
}

// ══════════════════════════════════════════════════════════════════════════════
// TECHNIQUE
// ══════════════════════════════════════════════════════════════════════════════

func techniqueStudent() *student.Student {
	tp := func(category string, status student.TechniqueStatus, accuracy float64, attempts int) student.TechniqueProgress {
		return student.TechniqueProgress{
			Technique: student.Technique{Category: category},
			Status:    status,
			Accuracy:  accuracy,
			Attempts:  attempts,
		}
	}
	return &student.Student{
		ID: "s-1",
		Enrollments: []student.Enrollment{
			{ID: "e-1", TechniqueProgress: []student.TechniqueProgress{
				tp("strikes", student.TechniqueMastered, 100, 3),
				tp("strikes", student.TechniqueMastered, 100, 2),
			}},
			{ID: "e-2", TechniqueProgress: []student.TechniqueProgress{
				tp("grappling", student.TechniqueMastered, 99, 5),
				tp("grappling", student.TechniqueLearning, 100, 10),
			}},
		},
	}
}

func TestTechnique_Branches(t *testing.T) {
	s := techniqueStudent()

	tests := []struct {
		name     string
		criteria Criteria
		want     float64
	}{
		{"mastered", crit(CriteriaTechnique, ConditionTechniquesMastered), 3},
		{"default", crit(CriteriaTechnique, ""), 3},
		{"variety counts distinct categories", crit(CriteriaTechnique, ConditionTechniqueVariety), 2},
		{"perfect accuracy", crit(CriteriaTechnique, ConditionPerfectAccuracy), 2},
		{"category mastery", Criteria{Type: CriteriaTechnique, Condition: ConditionCategoryMastery, Metadata: Metadata{Category: "strikes"}}, 2},
		{"category mastery without category", crit(CriteriaTechnique, ConditionCategoryMastery), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustValue(t, s, tt.criteria, refNow))
		})
	}
}

func TestTechnique_VarietyOfStrikesStrikesGrappling(t *testing.T) {
	s := &student.Student{Enrollments: []student.Enrollment{{TechniqueProgress: []student.TechniqueProgress{
		{Technique: student.Technique{Category: "strikes"}, Status: student.TechniqueMastered},
		{Technique: student.Technique{Category: "strikes"}, Status: student.TechniqueMastered},
		{Technique: student.Technique{Category: "grappling"}, Status: student.TechniqueMastered},
	}}}}

	assert.Equal(t, 2.0, mustValue(t, s, crit(CriteriaTechnique, ConditionTechniqueVariety), refNow))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

func TestProgression_Branches(t *testing.T) {
	s := &student.Student{
		GlobalLevel: 7,
		TotalXP:     1500,
		Enrollments: []student.Enrollment{
			{Status: student.EnrollmentCompleted, Course: student.Course{MartialArtID: "bjj"}},
			{Status: student.EnrollmentActive, Course: student.Course{MartialArtID: "judo"}},
			{Status: student.EnrollmentCompleted, Course: student.Course{MartialArtID: "bjj"}},
		},
	}

	assert.Equal(t, 7.0, mustValue(t, s, crit(CriteriaProgression, ConditionLevelReached), refNow))
	assert.Equal(t, 7.0, mustValue(t, s, crit(CriteriaProgression, ""), refNow))
	assert.Equal(t, 2.0, mustValue(t, s, crit(CriteriaProgression, ConditionCourseCompleted), refNow))
	assert.Equal(t, 2.0, mustValue(t, s, crit(CriteriaProgression, ConditionMultipleArts), refNow))

	xp := crit(CriteriaProgression, ConditionXPEarned)
	xp.Timeframe = TimeframeWeekly
	assert.Equal(t, 1500.0, mustValue(t, s, xp, refNow), "xp_earned is always all-time")
	assert.True(t, xp.IgnoresTimeframe())
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

func challengeStudent(items ...student.ChallengeProgress) *student.Student {
	return &student.Student{Enrollments: []student.Enrollment{{ChallengeProgress: items}}}
}

func done(created, completed time.Time) student.ChallengeProgress {
	return student.ChallengeProgress{Completed: true, CompletedAt: &completed, CreatedAt: created}
}

func open(created time.Time) student.ChallengeProgress {
	return student.ChallengeProgress{CreatedAt: created}
}

func TestChallenge_CompletedWithinWindow(t *testing.T) {
	s := challengeStudent(
		done(at(2024, time.January, 8, 9), at(2024, time.January, 10, 9)),
		done(at(2023, time.December, 28, 9), at(2023, time.December, 30, 9)),
		open(at(2024, time.January, 12, 9)),
	)

	monthly := crit(CriteriaChallenge, ConditionChallengesCompleted)
	monthly.Timeframe = TimeframeMonthly
	assert.Equal(t, 1.0, mustValue(t, s, monthly, refNow))
	assert.Equal(t, 2.0, mustValue(t, s, crit(CriteriaChallenge, ""), refNow))
}

func TestChallenge_PerfectWeek(t *testing.T) {
	s := challengeStudent(
		// week 1: all done
		done(at(2024, time.January, 2, 9), at(2024, time.January, 4, 9)),
		done(at(2024, time.January, 3, 9), at(2024, time.January, 5, 9)),
		// week 2: one open
		done(at(2024, time.January, 9, 9), at(2024, time.January, 9, 18)),
		open(at(2024, time.January, 10, 9)),
		// 2023 week 1 shares the week number but not the year
		done(at(2023, time.January, 4, 9), at(2023, time.January, 4, 18)),
	)

	assert.Equal(t, 2.0, mustValue(t, s, crit(CriteriaChallenge, ConditionPerfectWeek), refNow))
}

func TestChallenge_StreakBranchesAgree(t *testing.T) {
	s := challengeStudent(
		done(at(2024, time.January, 16, 9), at(2024, time.January, 17, 9)),
		done(at(2024, time.January, 9, 9), at(2024, time.January, 10, 9)),
		done(at(2024, time.January, 2, 9), at(2024, time.January, 3, 9)),
		done(at(2023, time.December, 19, 9), at(2023, time.December, 20, 9)),
	)

	assert.Equal(t, 3.0, mustValue(t, s, crit(CriteriaChallenge, ConditionStreakChallenges), refNow))
	assert.Equal(t, 3.0, mustValue(t, s, crit(CriteriaStreak, ConditionChallengeStreak), refNow))
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

func TestStreak_Branches(t *testing.T) {
	s := &student.Student{CurrentStreak: 5}

	assert.Equal(t, 5.0, mustValue(t, s, crit(CriteriaStreak, ConditionAttendanceStreak), refNow))
	assert.Equal(t, 5.0, mustValue(t, s, crit(CriteriaStreak, ""), refNow))
	assert.Equal(t, 0.0, mustValue(t, s, crit(CriteriaStreak, ConditionLoginStreak), refNow))
	assert.Equal(t, 0.0, mustValue(t, s, crit(CriteriaStreak, ConditionChallengeStreak), refNow))
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

func TestEvaluation_Scores(t *testing.T) {
	s := &student.Student{Enrollments: []student.Enrollment{{Evaluations: []student.Evaluation{
		{Passed: true, OverallScore: ptr(100.0), EvaluatedAt: at(2024, time.January, 5, 10)},
		{Passed: true, OverallScore: ptr(95.0), EvaluatedAt: at(2023, time.November, 1, 10)},
		{Passed: false, OverallScore: ptr(85.0), EvaluatedAt: at(2024, time.January, 10, 10)},
		{Passed: true, OverallScore: nil, EvaluatedAt: at(2023, time.June, 1, 10)},
	}}}}

	assert.Equal(t, 1.0, mustValue(t, s, crit(CriteriaEvaluation, ConditionPerfectScore), refNow))
	assert.Equal(t, 2.0, mustValue(t, s, crit(CriteriaEvaluation, ConditionHighScores), refNow))

	lowered := Criteria{Type: CriteriaEvaluation, Condition: ConditionHighScores, Metadata: Metadata{MinScore: ptr(80.0)}}
	assert.Equal(t, 3.0, mustValue(t, s, lowered, refNow))

	yearly := crit(CriteriaEvaluation, ConditionEvaluationsPassed)
	yearly.Timeframe = TimeframeYearly
	assert.Equal(t, 1.0, mustValue(t, s, yearly, refNow))
	assert.Equal(t, 3.0, mustValue(t, s, crit(CriteriaEvaluation, ""), refNow))
}

func TestEvaluation_StreakBranch(t *testing.T) {
	s := &student.Student{Enrollments: []student.Enrollment{{Evaluations: []student.Evaluation{
		{Passed: true, EvaluatedAt: at(2024, time.January, 15, 10)},
		{Passed: true, EvaluatedAt: at(2023, time.November, 20, 10)}, // 8 weeks earlier
		{Passed: true, EvaluatedAt: at(2023, time.October, 30, 10)},  // 3 weeks earlier
		{Passed: true, EvaluatedAt: at(2023, time.August, 1, 10)},    // ~12.9 weeks earlier
	}}}}

	assert.Equal(t, 3.0, mustValue(t, s, crit(CriteriaEvaluation, ConditionEvaluationStreak), refNow))
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCH
// ══════════════════════════════════════════════════════════════════════════════

func TestCurrentValue_SocialAndCustomAreZero(t *testing.T) {
	s := techniqueStudent()

	assert.Equal(t, 0.0, mustValue(t, s, crit(CriteriaSocial, "referrals"), refNow))
	assert.Equal(t, 0.0, mustValue(t, s, crit(CriteriaCustom, "anything"), refNow))
}

func TestCurrentValue_UnknownType(t *testing.T) {
	_, err := CurrentValue(techniqueStudent(), crit("telepathy", ""), refNow)

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnknownCriteriaType))
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestCurrentValue_NilStudentNeverPanics(t *testing.T) {
	for typ := range knownConditions {
		for _, cond := range append(knownConditions[typ], "") {
			c := crit(typ, cond)
			c.Timeframe = TimeframeWeekly
			assert.NotPanics(t, func() {
				v, err := CurrentValue(nil, c, refNow)
				assert.NoError(t, err)
				assert.Zero(t, v, "%s/%s", typ, cond)
			})
		}
	}
}

func TestEvaluatorFor(t *testing.T) {
	_, ok := EvaluatorFor(CriteriaAttendance)
	assert.True(t, ok)
	_, ok = EvaluatorFor(CriteriaCustom)
	assert.False(t, ok)
}

func TestEvaluateProgress(t *testing.T) {
	var times []time.Time
	for d := 1; d <= 7; d++ {
		times = append(times, at(2024, time.January, d, 10))
	}
	s := withAttendance(times...)

	c := crit(CriteriaAttendance, ConditionTotalClasses)
	c.TargetValue = ptr(10.0)
	p, err := EvaluateProgress(s, c, refNow)
	require.NoError(t, err)
	assert.Equal(t, 70, p)

	c.TargetValue = ptr(5.0)
	p, err = EvaluateProgress(s, c, refNow)
	require.NoError(t, err)
	assert.Equal(t, 100, p)

	_, err = EvaluateProgress(s, crit("bogus", ""), refNow)
	assert.Error(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// PERCENTAGE
// ══════════════════════════════════════════════════════════════════════════════

func TestPercentage(t *testing.T) {
	tests := []struct {
		current, target float64
		want            int
	}{
		{7, 10, 70},
		{15, 10, 100},
		{10, 10, 100},
		{0, 10, 0},
		{-3, 10, 0},
		{0.5, 0, 50},
		{1, -4, 100},
		{1, 3, 33},
		{2, 3, 67},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.current, tt.target), "Percentage(%v, %v)", tt.current, tt.target)
	}
}
