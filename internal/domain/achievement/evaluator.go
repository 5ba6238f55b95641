package achievement

import (
	"fmt"
	"math"
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/shared"
	"github.com/dojo-hub/dojo-progress/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS EVALUATORS
// ══════════════════════════════════════════════════════════════════════════════

// Evaluator сводит историю ученика к одному числу - текущему значению,
// которое сравнивается с Criteria.Target(). now задаёт "сейчас" и часовой
// пояс академии. Вычислители чистые и не паникуют на пустых данных.
type Evaluator func(s *student.Student, c Criteria, now time.Time) float64

// evaluators - таблица диспетчеризации по типу критерия.
// custom отсутствует намеренно: у него нет вычислителя.
var evaluators = map[CriteriaType]Evaluator{
	CriteriaAttendance:  evaluateAttendance,
	CriteriaTechnique:   evaluateTechnique,
	CriteriaProgression: evaluateProgression,
	CriteriaChallenge:   evaluateChallenge,
	CriteriaStreak:      evaluateStreak,
	CriteriaEvaluation:  evaluateEvaluation,
	CriteriaSocial:      evaluateSocial,
}

// evaluateSocial всегда возвращает 0: источников данных (рефералы, отзывы) пока нет.
func evaluateSocial(*student.Student, Criteria, time.Time) float64 {
	return 0
}

// EvaluatorFor возвращает вычислитель для типа критерия.
func EvaluatorFor(t CriteriaType) (Evaluator, bool) {
	ev, ok := evaluators[t]
	return ev, ok
}

// CurrentValue вычисляет текущее значение по критерию.
// Для custom возвращает 0 без ошибки, для неизвестного типа -
// ErrUnknownCriteriaType.
func CurrentValue(s *student.Student, c Criteria, now time.Time) (float64, error) {
	if c.Type == CriteriaCustom {
		return 0, nil
	}
	ev, ok := evaluators[c.Type]
	if !ok {
		return 0, shared.WrapError("achievement", "Evaluate", shared.ErrUnknownCriteriaType,
			"no evaluator", fmt.Errorf("criteria type %q", c.Type))
	}
	return ev(s, c, now), nil
}

// EvaluateProgress возвращает процент выполнения 0..100.
func EvaluateProgress(s *student.Student, c Criteria, now time.Time) (int, error) {
	current, err := CurrentValue(s, c, now)
	if err != nil {
		return 0, err
	}
	return Percentage(current, c.Target()), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PERCENTAGE
// ══════════════════════════════════════════════════════════════════════════════

// MaxProgress - прогресс разблокированного достижения.
const MaxProgress = 100

// Percentage = min(round(current/target*100), 100).
// Неположительная цель считается равной 1, отрицательное или NaN значение - 0.
func Percentage(current, target float64) int {
	if target <= 0 || math.IsNaN(target) {
		target = 1
	}
	if current <= 0 || math.IsNaN(current) {
		return 0
	}
	p := math.Round(current / target * 100)
	if p >= MaxProgress {
		return MaxProgress
	}
	return int(p)
}
