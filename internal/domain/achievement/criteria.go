package achievement

import (
	"fmt"
	"slices"

	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA TYPES AND CONDITIONS
// ══════════════════════════════════════════════════════════════════════════════

// CriteriaType выбирает вычислитель прогресса.
type CriteriaType string

const (
	CriteriaAttendance  CriteriaType = "attendance"
	CriteriaTechnique   CriteriaType = "technique"
	CriteriaProgression CriteriaType = "progression"
	CriteriaSocial      CriteriaType = "social"
	CriteriaChallenge   CriteriaType = "challenge"
	CriteriaStreak      CriteriaType = "streak"
	CriteriaEvaluation  CriteriaType = "evaluation"
	CriteriaCustom      CriteriaType = "custom"
)

// Условия (ветки) для каждого типа критерия.
const (
	// attendance
	ConditionTotalClasses    = "total_classes"
	ConditionConsecutiveDays = "consecutive_days"
	ConditionPerfectMonth    = "perfect_month"
	ConditionEarlyBird       = "early_bird"

	// technique
	ConditionTechniquesMastered = "techniques_mastered"
	ConditionCategoryMastery    = "category_mastery"
	ConditionPerfectAccuracy    = "perfect_accuracy"
	ConditionTechniqueVariety   = "technique_variety"

	// progression
	ConditionLevelReached    = "level_reached"
	ConditionXPEarned        = "xp_earned"
	ConditionCourseCompleted = "course_completed"
	ConditionMultipleArts    = "multiple_arts"

	// challenge
	ConditionChallengesCompleted = "challenges_completed"
	ConditionPerfectWeek         = "perfect_week"
	ConditionStreakChallenges    = "streak_challenges"

	// streak
	ConditionAttendanceStreak = "attendance_streak"
	ConditionChallengeStreak  = "challenge_streak"
	ConditionLoginStreak      = "login_streak"

	// evaluation
	ConditionEvaluationsPassed = "evaluations_passed"
	ConditionPerfectScore      = "perfect_score"
	ConditionHighScores        = "high_scores"
	ConditionEvaluationStreak  = "evaluation_streak"
)

// knownConditions перечисляет допустимые условия. Пустое условие всегда
// допустимо и означает ветку по умолчанию. Для social и custom условия
// произвольные.
var knownConditions = map[CriteriaType][]string{
	CriteriaAttendance:  {ConditionTotalClasses, ConditionConsecutiveDays, ConditionPerfectMonth, ConditionEarlyBird},
	CriteriaTechnique:   {ConditionTechniquesMastered, ConditionCategoryMastery, ConditionPerfectAccuracy, ConditionTechniqueVariety},
	CriteriaProgression: {ConditionLevelReached, ConditionXPEarned, ConditionCourseCompleted, ConditionMultipleArts},
	CriteriaChallenge:   {ConditionChallengesCompleted, ConditionPerfectWeek, ConditionStreakChallenges},
	CriteriaStreak:      {ConditionAttendanceStreak, ConditionChallengeStreak, ConditionLoginStreak},
	CriteriaEvaluation:  {ConditionEvaluationsPassed, ConditionPerfectScore, ConditionHighScores, ConditionEvaluationStreak},
	CriteriaSocial:      nil,
	CriteriaCustom:      nil,
}

// IsValid проверяет, что тип критерия известен.
func (t CriteriaType) IsValid() bool {
	_, ok := knownConditions[t]
	return ok
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMEFRAME
// ══════════════════════════════════════════════════════════════════════════════

// Timeframe - календарное окно, в котором учитываются записи.
type Timeframe string

const (
	TimeframeDaily     Timeframe = "daily"
	TimeframeWeekly    Timeframe = "weekly"
	TimeframeMonthly   Timeframe = "monthly"
	TimeframeQuarterly Timeframe = "quarterly"
	TimeframeYearly    Timeframe = "yearly"
	TimeframeAllTime   Timeframe = "all_time"
)

// IsValid проверяет значение. Пустое значение равносильно all_time.
func (t Timeframe) IsValid() bool {
	switch t {
	case "", TimeframeDaily, TimeframeWeekly, TimeframeMonthly,
		TimeframeQuarterly, TimeframeYearly, TimeframeAllTime:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA
// ══════════════════════════════════════════════════════════════════════════════

// DefaultMinScore - порог high_scores, если metadata.minScore не задан.
const DefaultMinScore = 90.0

// Metadata - типизированные необязательные параметры условий.
// Неизвестные ключи в сохранённом JSON игнорируются.
type Metadata struct {
	// Category - категория техник для category_mastery.
	Category string `json:"category,omitempty"`
	// MinScore - порог оценки для high_scores.
	MinScore *float64 `json:"minScore,omitempty"`
}

// MinScoreOrDefault возвращает порог high_scores.
func (m Metadata) MinScoreOrDefault() float64 {
	if m.MinScore == nil {
		return DefaultMinScore
	}
	return *m.MinScore
}

// Criteria - декларативное правило разблокировки достижения.
// Хранится внутри Achievement (JSONB), отдельно не сохраняется.
type Criteria struct {
	Type         CriteriaType `json:"type"`
	Condition    string       `json:"condition"`
	TargetValue  *float64     `json:"targetValue,omitempty"`
	Timeframe    Timeframe    `json:"timeframe,omitempty"`
	MartialArtID *string      `json:"martialArtId,omitempty"`
	CourseID     *string      `json:"courseId,omitempty"`
	Metadata     Metadata     `json:"metadata"`
}

// Target возвращает целевое значение; отсутствующее или неположительное
// значение заменяется на 1, чтобы не делить на ноль.
func (c Criteria) Target() float64 {
	if c.TargetValue == nil || *c.TargetValue <= 0 {
		return 1
	}
	return *c.TargetValue
}

// IgnoresTimeframe сообщает, что окно задано, но вычислитель его не
// применяет: для xp_earned нет истории начислений, значение всегда за всё время.
func (c Criteria) IgnoresTimeframe() bool {
	return c.Type == CriteriaProgression &&
		c.Condition == ConditionXPEarned &&
		c.Timeframe != "" && c.Timeframe != TimeframeAllTime
}

// Validate проверяет критерий при создании достижения.
// Вычислители при этом остаются устойчивыми к некорректным данным.
// Все ошибки сопоставимы с shared.ErrInvalidCriteria и с конкретной причиной.
func (c Criteria) Validate() error {
	conditions, ok := knownConditions[c.Type]
	if !ok {
		return invalidCriteria(shared.ErrInvalidInput, "unknown type %q", c.Type)
	}

	if c.Condition != "" && conditions != nil && !slices.Contains(conditions, c.Condition) {
		return invalidCriteria(shared.ErrInvalidInput, "unknown condition %q for type %q", c.Condition, c.Type)
	}

	if !c.Timeframe.IsValid() {
		return invalidCriteria(shared.ErrInvalidInput, "unknown timeframe %q", c.Timeframe)
	}

	if c.TargetValue != nil && *c.TargetValue < 0 {
		return invalidCriteria(shared.ErrNegativeValue, "targetValue %v", *c.TargetValue)
	}

	if c.Type == CriteriaTechnique && c.Condition == ConditionCategoryMastery && c.Metadata.Category == "" {
		return invalidCriteria(shared.ErrEmptyValue, "metadata.category is required for %s", ConditionCategoryMastery)
	}

	if c.Metadata.MinScore != nil && (*c.Metadata.MinScore < 0 || *c.Metadata.MinScore > 100) {
		return invalidCriteria(shared.ErrValueOutOfRange, "metadata.minScore %v", *c.Metadata.MinScore)
	}

	return nil
}

func invalidCriteria(cause error, format string, args ...any) error {
	return shared.WrapError("achievement", "ValidateCriteria", shared.ErrInvalidCriteria,
		"invalid achievement criteria", fmt.Errorf("%w: "+format, append([]any{cause}, args...)...))
}
