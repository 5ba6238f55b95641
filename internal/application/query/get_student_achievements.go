// Package query contains read operations (CQRS - Queries).
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dojo-hub/dojo-progress/internal/domain/achievement"
	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/pkg/logger"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
	"github.com/dojo-hub/dojo-progress/pkg/validate"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT ACHIEVEMENTS QUERY
// Возвращает достижения организации ученика с флагом разблокировки и
// процентом прогресса. Только чтение: разблокировки здесь не сохраняются.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultEvaluationParallelism - сколько достижений вычисляется одновременно.
const DefaultEvaluationParallelism = 8

// GetStudentAchievementsQuery содержит параметры запроса.
type GetStudentAchievementsQuery struct {
	// StudentID - ID ученика (обязательный).
	StudentID string `json:"studentId" validate:"required"`

	// IncludeProgress - вычислять прогресс для неразблокированных достижений.
	IncludeProgress bool `json:"includeProgress"`

	// Category - только достижения этой категории.
	Category *achievement.Category `json:"category,omitempty"`

	// Unlocked - только разблокированные (true) или только заблокированные
	// (false). При false скрытые достижения не возвращаются.
	Unlocked *bool `json:"unlocked,omitempty"`
}

// Validate проверяет корректность параметров.
func (q *GetStudentAchievementsQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return err
	}
	if q.Category != nil && !q.Category.IsValid() {
		return fmt.Errorf("unknown category %q", *q.Category)
	}
	return nil
}

// StudentAchievementDTO - достижение с состоянием для конкретного ученика.
type StudentAchievementDTO struct {
	AchievementID string               `json:"achievementId"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Category      achievement.Category `json:"category"`
	Rarity        achievement.Rarity   `json:"rarity"`
	XPReward      int                  `json:"xpReward"`
	IsHidden      bool                 `json:"isHidden"`
	MartialArtID  *string              `json:"martialArtId,omitempty"`
	Criteria      achievement.Criteria `json:"criteria"`
	IsUnlocked    bool                 `json:"isUnlocked"`
	UnlockedAt    *time.Time           `json:"unlockedAt,omitempty"`
	Progress      int                  `json:"progress"`
}

// GetStudentAchievementsResult содержит результат запроса.
type GetStudentAchievementsResult struct {
	StudentID      string                  `json:"studentId"`
	OrganizationID string                  `json:"organizationId"`
	Achievements   []StudentAchievementDTO `json:"achievements"`
	UnlockedCount  int                     `json:"unlockedCount"`
	TotalCount     int                     `json:"totalCount"`
	EvaluatedAt    time.Time               `json:"evaluatedAt"`
}

// GetStudentAchievementsHandler обрабатывает запрос.
type GetStudentAchievementsHandler struct {
	students     student.Repository
	achievements achievement.Repository
	unlocks      achievement.UnlockRepository
	clock        timeutil.Clock
	log          *logger.Logger
	parallelism  int
}

// NewGetStudentAchievementsHandler создаёт обработчик. parallelism <= 0
// заменяется на DefaultEvaluationParallelism, 1 - последовательное вычисление.
func NewGetStudentAchievementsHandler(
	students student.Repository,
	achievements achievement.Repository,
	unlocks achievement.UnlockRepository,
	clock timeutil.Clock,
	log *logger.Logger,
	parallelism int,
) *GetStudentAchievementsHandler {
	if parallelism <= 0 {
		parallelism = DefaultEvaluationParallelism
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetStudentAchievementsHandler{
		students:     students,
		achievements: achievements,
		unlocks:      unlocks,
		clock:        clock,
		log:          log.With(logger.Component("achievement_resolver")),
		parallelism:  parallelism,
	}
}

// Handle выполняет запрос.
func (h *GetStudentAchievementsHandler) Handle(ctx context.Context, query GetStudentAchievementsQuery) (*GetStudentAchievementsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetStudentAchievements", shared.ErrValidation, err.Error(), err)
	}

	// 1. Ученик и его организация
	st, err := h.students.GetByID(ctx, query.StudentID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, err
		}
		return nil, shared.WrapError("query", "GetStudentAchievements", shared.ErrExternalService, "failed to load student", err)
	}

	// 2. Достижения организации; скрытые не раскрываются до разблокировки
	filter := achievement.ListFilter{
		Category:      query.Category,
		ExcludeHidden: query.Unlocked != nil && !*query.Unlocked,
	}
	achievements, err := h.achievements.ListByOrganization(ctx, st.OrganizationID, filter)
	if err != nil {
		return nil, shared.WrapError("query", "GetStudentAchievements", shared.ErrExternalService, "failed to load achievements", err)
	}

	// 3. Разблокировки ученика
	rows, err := h.unlocks.ListByStudent(ctx, st.ID)
	if err != nil {
		return nil, shared.WrapError("query", "GetStudentAchievements", shared.ErrExternalService, "failed to load unlocks", err)
	}
	unlockedAt := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		unlockedAt[r.AchievementID] = r.UnlockedAt
	}

	// 4. Прогресс по каждому достижению
	now := h.clock.Now()
	items := make([]StudentAchievementDTO, len(achievements))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallelism)
	for i, a := range achievements {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i] = h.resolve(st, a, unlockedAt, query.IncludeProgress, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 5. Фильтр по состоянию
	result := &GetStudentAchievementsResult{
		StudentID:      st.ID,
		OrganizationID: st.OrganizationID,
		Achievements:   make([]StudentAchievementDTO, 0, len(items)),
		EvaluatedAt:    now,
	}
	for _, item := range items {
		if query.Unlocked != nil && item.IsUnlocked != *query.Unlocked {
			continue
		}
		if item.IsUnlocked {
			result.UnlockedCount++
		}
		result.Achievements = append(result.Achievements, item)
	}
	result.TotalCount = len(result.Achievements)

	return result, nil
}

// resolve собирает DTO одного достижения.
func (h *GetStudentAchievementsHandler) resolve(
	st *student.Student,
	a *achievement.Achievement,
	unlockedAt map[string]time.Time,
	includeProgress bool,
	now time.Time,
) StudentAchievementDTO {
	dto := StudentAchievementDTO{
		AchievementID: a.ID,
		Name:          a.Name,
		Description:   a.Description,
		Category:      a.Category,
		Rarity:        a.Rarity,
		XPReward:      a.XPReward,
		IsHidden:      a.IsHidden,
		MartialArtID:  a.MartialArtID,
		Criteria:      a.Criteria,
	}

	if at, ok := unlockedAt[a.ID]; ok {
		dto.IsUnlocked = true
		dto.UnlockedAt = &at
		dto.Progress = achievement.MaxProgress
		return dto
	}

	if includeProgress {
		dto.Progress = h.evaluate(st, a, now)
	}
	return dto
}

// evaluate вычисляет процент; любая ошибка или паника изолируется и
// даёт прогресс 0 только для этого достижения.
func (h *GetStudentAchievementsHandler) evaluate(st *student.Student, a *achievement.Achievement, now time.Time) (progress int) {
	fields := []logger.Field{
		logger.StudentID(st.ID),
		logger.AchievementID(a.ID),
		logger.CriteriaType(string(a.Criteria.Type)),
		logger.Condition(a.Criteria.Condition),
	}

	defer func() {
		if r := recover(); r != nil {
			err := shared.WrapError("query", "EvaluateAchievement", shared.ErrEvaluationFailure,
				"evaluator panicked", fmt.Errorf("%v", r))
			h.log.Error("achievement evaluation failed", append(fields, logger.Err(err))...)
			progress = 0
		}
	}()

	if a.Criteria.IgnoresTimeframe() {
		h.log.Debug("timeframe ignored: no xp history, using all-time total",
			append(fields, logger.String("timeframe", string(a.Criteria.Timeframe)))...)
	}
	if a.Criteria.Type == achievement.CriteriaCustom {
		h.log.Debug("custom criteria has no evaluator", fields...)
	}

	p, err := achievement.EvaluateProgress(st, a.Criteria, now)
	if err != nil {
		err = shared.WrapError("query", "EvaluateAchievement", shared.ErrEvaluationFailure, "evaluation failed", err)
		h.log.Warn("achievement evaluation failed", append(fields, logger.Err(err))...)
		return 0
	}
	return p
}
