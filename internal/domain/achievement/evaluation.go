package achievement

import (
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/student"
)

// PerfectScore - оценка, засчитываемая для perfect_score.
const PerfectScore = 100.0

func evaluationDate(e student.Evaluation) time.Time { return e.EvaluatedAt }

func evaluateEvaluation(s *student.Student, c Criteria, now time.Time) float64 {
	evaluations := s.AllEvaluations()
	if len(evaluations) == 0 {
		return 0
	}

	switch c.Condition {
	case ConditionPerfectScore:
		count := 0
		for _, e := range evaluations {
			if e.OverallScore != nil && *e.OverallScore == PerfectScore {
				count++
			}
		}
		return float64(count)

	case ConditionHighScores:
		threshold := c.Metadata.MinScoreOrDefault()
		count := 0
		for _, e := range evaluations {
			if e.OverallScore != nil && *e.OverallScore >= threshold {
				count++
			}
		}
		return float64(count)

	case ConditionEvaluationStreak:
		return float64(EvaluationStreak(evaluations))

	default: // evaluations_passed
		count := 0
		for _, e := range FilterByTimeframe(evaluations, c.Timeframe, evaluationDate, now) {
			if e.Passed {
				count++
			}
		}
		return float64(count)
	}
}
