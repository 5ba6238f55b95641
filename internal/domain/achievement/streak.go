package achievement

import (
	"sort"
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK CALCULATORS
// ══════════════════════════════════════════════════════════════════════════════

// Границы интервала между аттестациями в неделях, при которых серия не
// прерывается. Ожидаемый ритм - около 8 недель.
const (
	EvaluationStreakMinWeeks = 3
	EvaluationStreakMaxWeeks = 10
)

// LongestConsecutiveDays возвращает длину самой длинной серии подряд идущих
// календарных дней, в которые было хотя бы одно посещение. Несколько
// посещений за день считаются одним днём. Дни считаются в зоне loc.
func LongestConsecutiveDays(attendances []student.Attendance, loc *time.Location) int {
	if len(attendances) == 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(attendances))
	days := make([]time.Time, 0, len(attendances))
	for _, a := range attendances {
		if a.CheckInTime.IsZero() {
			continue
		}
		day := timeutil.StartOfDay(a.CheckInTime.In(loc))
		key := timeutil.DateKey(day)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		days = append(days, day)
	}
	if len(days) == 0 {
		return 0
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, current := 1, 1
	for i := 1; i < len(days); i++ {
		if timeutil.IsConsecutiveDay(days[i-1], days[i]) {
			current++
			if current > longest {
				longest = current
			}
			continue
		}
		current = 1
	}
	return longest
}

// ChallengeStreak считает серию челленджей, завершённых в соседних неделях,
// начиная с самого свежего.
//
// Сравниваются только номера ISO-недель без года, поэтому переход
// 52/53 -> 1 на границе года прерывает серию. Это поведение сохранено
// намеренно, см. DESIGN.md.
func ChallengeStreak(progress []student.ChallengeProgress, loc *time.Location) int {
	completed := make([]time.Time, 0, len(progress))
	for _, p := range progress {
		if p.Completed && p.CompletedAt != nil && !p.CompletedAt.IsZero() {
			completed = append(completed, p.CompletedAt.In(loc))
		}
	}
	if len(completed) == 0 {
		return 0
	}

	sort.Slice(completed, func(i, j int) bool { return completed[i].After(completed[j]) })

	streak := 1
	for i := 1; i < len(completed); i++ {
		later := timeutil.ISOWeek(completed[i-1])
		earlier := timeutil.ISOWeek(completed[i])
		if later-earlier != 1 {
			break
		}
		streak++
	}
	return streak
}

// EvaluationStreak считает серию сданных аттестаций, начиная с самой свежей,
// пока интервал между соседними аттестациями составляет от 3 до 10 недель
// включительно. Интервал сравнивается точно: 10 недель и 1 день - уже разрыв.
func EvaluationStreak(evaluations []student.Evaluation) int {
	passed := make([]time.Time, 0, len(evaluations))
	for _, e := range evaluations {
		if e.Passed && !e.EvaluatedAt.IsZero() {
			passed = append(passed, e.EvaluatedAt)
		}
	}
	if len(passed) == 0 {
		return 0
	}

	sort.Slice(passed, func(i, j int) bool { return passed[i].After(passed[j]) })

	streak := 1
	for i := 1; i < len(passed); i++ {
		gap := timeutil.Elapsed(passed[i], passed[i-1])
		if gap < EvaluationStreakMinWeeks*timeutil.Week || gap > EvaluationStreakMaxWeeks*timeutil.Week {
			break
		}
		streak++
	}
	return streak
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

func evaluateStreak(s *student.Student, c Criteria, now time.Time) float64 {
	if s == nil {
		return 0
	}

	switch c.Condition {
	case ConditionChallengeStreak:
		return float64(ChallengeStreak(s.AllChallengeProgress(), now.Location()))
	case ConditionLoginStreak:
		// истории входов нет
		return 0
	default: // attendance_streak
		return float64(s.CurrentStreak)
	}
}
