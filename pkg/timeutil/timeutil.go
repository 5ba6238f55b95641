// Package timeutil provides calendar helpers used by progress evaluation.
// All helpers operate in the location carried by their time argument, so
// callers decide the academy's local zone once (usually via Clock) and the
// rest of the math follows it.
package timeutil

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock supplies the current instant. Evaluation never calls time.Now directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock and converts it to Location.
type SystemClock struct {
	Location *time.Location
}

// NewSystemClock creates a clock in the given location (UTC when nil).
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return SystemClock{Location: loc}
}

// Now implements Clock.
func (c SystemClock) Now() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

// FixedClock always returns the same instant. Used in tests and replays.
type FixedClock struct {
	T time.Time
}

// Fixed creates a FixedClock.
func Fixed(t time.Time) FixedClock {
	return FixedClock{T: t}
}

// Now implements Clock.
func (c FixedClock) Now() time.Time {
	return c.T
}

// LoadLocation resolves an IANA zone name, falling back to UTC for "".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown location %q: %w", name, err)
	}
	return loc, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PERIODS
// ══════════════════════════════════════════════════════════════════════════════

// Period is a calendar-aligned window size.
type Period string

const (
	PeriodDay     Period = "day"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// calendar returns a jinzhu/now view of t with Monday week starts.
func calendar(t time.Time) *now.Now {
	cfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: t.Location()}
	return cfg.With(t)
}

// PeriodStart returns the first instant of the period containing t.
// Weeks start on Monday. Unknown periods return the zero time.
func PeriodStart(t time.Time, p Period) time.Time {
	c := calendar(t)
	switch p {
	case PeriodDay:
		return c.BeginningOfDay()
	case PeriodWeek:
		return c.BeginningOfWeek()
	case PeriodMonth:
		return c.BeginningOfMonth()
	case PeriodQuarter:
		return c.BeginningOfQuarter()
	case PeriodYear:
		return c.BeginningOfYear()
	default:
		return time.Time{}
	}
}

// StartOfDay returns midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	return PeriodStart(t, PeriodDay)
}

// EndOfMonth returns the last nanosecond of t's month.
func EndOfMonth(t time.Time) time.Time {
	return calendar(t).EndOfMonth()
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return EndOfMonth(t).Day()
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY ARITHMETIC
// ══════════════════════════════════════════════════════════════════════════════

// DateKey formats t as YYYY-MM-DD in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateFormat)
}

// IsSameDay checks if two times fall on the same calendar day in t1's location.
func IsSameDay(t1, t2 time.Time) bool {
	a2 := t2.In(t1.Location())
	return t1.Year() == a2.Year() && t1.YearDay() == a2.YearDay()
}

// IsConsecutiveDay checks if t2 is the calendar day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return IsSameDay(t1.AddDate(0, 0, 1), t2)
}

// ISOWeek returns the ISO 8601 week number of t, ignoring the ISO year.
func ISOWeek(t time.Time) int {
	_, w := t.ISOWeek()
	return w
}

// ISOWeekKey returns "YYYY-Www" for t's ISO week.
func ISOWeekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// Week is a fixed 7-day span.
const Week = 7 * 24 * time.Hour

// Elapsed returns the absolute duration between two instants.
func Elapsed(t1, t2 time.Time) time.Duration {
	d := t2.Sub(t1)
	if d < 0 {
		d = -d
	}
	return d
}

// DateFormat is the YYYY-MM-DD layout used for day keys.
const DateFormat = "2006-01-02"
