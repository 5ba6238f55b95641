package achievement

import (
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/student"
)

func evaluateProgression(s *student.Student, c Criteria, _ time.Time) float64 {
	if s == nil {
		return 0
	}

	switch c.Condition {
	case ConditionXPEarned:
		// окно не применяется: истории начислений XP нет, см. IgnoresTimeframe
		return float64(s.TotalXP)

	case ConditionCourseCompleted:
		count := 0
		for _, e := range s.EnrollmentList() {
			if e.Status == student.EnrollmentCompleted {
				count++
			}
		}
		return float64(count)

	case ConditionMultipleArts:
		arts := make(map[string]struct{})
		for _, e := range s.EnrollmentList() {
			if e.Course.MartialArtID != "" {
				arts[e.Course.MartialArtID] = struct{}{}
			}
		}
		return float64(len(arts))

	default: // level_reached
		return float64(s.GlobalLevel)
	}
}
