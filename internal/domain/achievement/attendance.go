package achievement

import (
	"math"
	"time"

	"github.com/dojo-hub/dojo-progress/internal/domain/student"
	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

// Параметры условий посещаемости.
const (
	// PerfectMonthRatio - доля дней месяца, считающаяся "рабочими".
	PerfectMonthRatio = 0.7
	// EarlyBirdHour - посещение до этого часа (по местному времени) считается ранним.
	EarlyBirdHour = 8
)

func attendanceDate(a student.Attendance) time.Time { return a.CheckInTime }

func evaluateAttendance(s *student.Student, c Criteria, now time.Time) float64 {
	attendances := s.AttendanceRecords()
	if len(attendances) == 0 {
		return 0
	}

	switch c.Condition {
	case ConditionConsecutiveDays:
		return float64(LongestConsecutiveDays(attendances, now.Location()))

	case ConditionPerfectMonth:
		inMonth := FilterByTimeframe(attendances, TimeframeMonthly, attendanceDate, now)
		limit := int(math.Floor(float64(timeutil.DaysInMonth(now)) * PerfectMonthRatio))
		return float64(min(len(inMonth), limit))

	case ConditionEarlyBird:
		count := 0
		for _, a := range attendances {
			if a.CheckInTime.IsZero() {
				continue
			}
			if a.CheckInTime.In(now.Location()).Hour() < EarlyBirdHour {
				count++
			}
		}
		return float64(count)

	default: // total_classes
		return float64(len(FilterByTimeframe(attendances, c.Timeframe, attendanceDate, now)))
	}
}
