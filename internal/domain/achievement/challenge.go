package achievement

import (
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

func challengeCompletedAt(p student.ChallengeProgress) time.Time {
	if p.CompletedAt == nil {
		return time.Time{}
	}
	return *p.CompletedAt
}

func evaluateChallenge(s *student.Student, c Criteria, now time.Time) float64 {
	progress := s.AllChallengeProgress()
	if len(progress) == 0 {
		return 0
	}

	switch c.Condition {
	case ConditionPerfectWeek:
		return float64(PerfectWeeks(progress, now.Location()))

	case ConditionStreakChallenges:
		return float64(ChallengeStreak(progress, now.Location()))

	default: // challenges_completed
		count := 0
		for _, p := range FilterByTimeframe(progress, c.Timeframe, challengeCompletedAt, now) {
			if p.Completed {
				count++
			}
		}
		return float64(count)
	}
}

// PerfectWeeks считает ISO-недели за всю историю, в которых были челленджи
// и все они завершены. Неделя определяется по дате назначения челленджа.
func PerfectWeeks(progress []student.ChallengeProgress, loc *time.Location) int {
	type tally struct{ total, completed int }
	weeks := make(map[string]*tally)

	for _, p := range progress {
		if p.CreatedAt.IsZero() {
			continue
		}
		key := timeutil.ISOWeekKey(p.CreatedAt.In(loc))
		t, ok := weeks[key]
		if !ok {
			t = &tally{}
			weeks[key] = t
		}
		t.total++
		if p.Completed {
			t.completed++
		}
	}

	perfect := 0
	for _, t := range weeks {
		if t.total > 0 && t.completed == t.total {
			perfect++
		}
	}
	return perfect
}
