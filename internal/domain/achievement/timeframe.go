package achievement

import (
	"time"

	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

// Period возвращает календарный период окна. Для all_time и пустого
// значения ok == false.
func (t Timeframe) Period() (timeutil.Period, bool) {
	switch t {
	case TimeframeDaily:
		return timeutil.PeriodDay, true
	case TimeframeWeekly:
		return timeutil.PeriodWeek, true
	case TimeframeMonthly:
		return timeutil.PeriodMonth, true
	case TimeframeQuarterly:
		return timeutil.PeriodQuarter, true
	case TimeframeYearly:
		return timeutil.PeriodYear, true
	default:
		return "", false
	}
}

// WindowStart возвращает начало текущего периода относительно now.
// Неделя начинается с понедельника. Для all_time ok == false.
func (t Timeframe) WindowStart(now time.Time) (time.Time, bool) {
	p, ok := t.Period()
	if !ok {
		return time.Time{}, false
	}
	return timeutil.PeriodStart(now, p), true
}

// FilterByTimeframe оставляет записи, дата которых не раньше начала текущего
// периода. Для all_time возвращает исходный срез без копирования.
// Порядок сохраняется, вход не изменяется. Записи с нулевой датой при
// активном окне отбрасываются.
func FilterByTimeframe[T any](records []T, tf Timeframe, dateOf func(T) time.Time, now time.Time) []T {
	start, ok := tf.WindowStart(now)
	if !ok {
		return records
	}

	out := make([]T, 0, len(records))
	for _, r := range records {
		d := dateOf(r)
		if d.IsZero() || d.Before(start) {
			continue
		}
		out = append(out, r)
	}
	return out
}
