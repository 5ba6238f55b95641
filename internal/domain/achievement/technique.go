package achievement

import (
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/student"
)

// Пороги perfect_accuracy.
const (
	PerfectAccuracy            = 100.0
	PerfectAccuracyMinAttempts = 3
)

func evaluateTechnique(s *student.Student, c Criteria, _ time.Time) float64 {
	progress := s.AllTechniqueProgress()
	if len(progress) == 0 {
		return 0
	}

	switch c.Condition {
	case ConditionCategoryMastery:
		category := c.Metadata.Category
		if category == "" {
			return 0
		}
		count := 0
		for _, p := range progress {
			if p.IsMastered() && p.Technique.Category == category {
				count++
			}
		}
		return float64(count)

	case ConditionPerfectAccuracy:
		count := 0
		for _, p := range progress {
			if p.Accuracy == PerfectAccuracy && p.Attempts >= PerfectAccuracyMinAttempts {
				count++
			}
		}
		return float64(count)

	case ConditionTechniqueVariety:
		categories := make(map[string]struct{})
		for _, p := range progress {
			if p.IsMastered() && p.Technique.Category != "" {
				categories[p.Technique.Category] = struct{}{}
			}
		}
		return float64(len(categories))

	default: // techniques_mastered
		count := 0
		for _, p := range progress {
			if p.IsMastered() {
				count++
			}
		}
		return float64(count)
	}
}
