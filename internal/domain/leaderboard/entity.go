// Package leaderboard содержит доменную модель рейтинга учеников по XP.
// Рейтинг вычисляется независимо от вычислителей достижений.
package leaderboard

import (
	"fmt"
	"time"

	"github.com/dojo-hub/dojo-progress/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank представляет позицию ученика в рейтинге. Начинается с 1.
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// Timeframe - окно, за которое считаются недавние разблокировки.
type Timeframe string

const (
	TimeframeWeek    Timeframe = "week"
	TimeframeMonth   Timeframe = "month"
	TimeframeQuarter Timeframe = "quarter"
	TimeframeYear    Timeframe = "year"
	TimeframeAll     Timeframe = "all"
)

// IsValid проверяет значение.
func (t Timeframe) IsValid() bool {
	switch t {
	case TimeframeWeek, TimeframeMonth, TimeframeQuarter, TimeframeYear, TimeframeAll:
		return true
	}
	return false
}

// Since возвращает нижнюю границу окна - начало текущего календарного
// периода (неделя с понедельника). Для all возвращает nil.
func (t Timeframe) Since(now time.Time) *time.Time {
	var p timeutil.Period
	switch t {
	case TimeframeWeek:
		p = timeutil.PeriodWeek
	case TimeframeMonth:
		p = timeutil.PeriodMonth
	case TimeframeQuarter:
		p = timeutil.PeriodQuarter
	case TimeframeYear:
		p = timeutil.PeriodYear
	default:
		return nil
	}
	start := timeutil.PeriodStart(now, p)
	return &start
}

// ══════════════════════════════════════════════════════════════════════════════
// CANDIDATES
// ══════════════════════════════════════════════════════════════════════════════

// UnlockSummary - разблокировка с наградой для подсчёта недавнего XP.
type UnlockSummary struct {
	AchievementID string
	XPReward      int
	UnlockedAt    time.Time
}

// EnrollmentXP - XP ученика на одном курсе.
type EnrollmentXP struct {
	MartialArtID string
	CurrentXP    int
}

// Candidate - активный ученик, отобранный хранилищем для рейтинга.
type Candidate struct {
	StudentID     string
	Name          string
	Avatar        string
	Category      string
	TotalXP       int
	GlobalLevel   int
	RecentUnlocks []UnlockSummary
	Enrollments   []EnrollmentXP
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry - строка рейтинга.
type Entry struct {
	Rank              Rank   `json:"rank"`
	StudentID         string `json:"studentId"`
	Name              string `json:"name"`
	Avatar            string `json:"avatar,omitempty"`
	Category          string `json:"category,omitempty"`
	TotalXP           int    `json:"totalXp"`
	GlobalLevel       int    `json:"globalLevel"`
	AchievementsCount int    `json:"achievementsCount"`
	RecentXP          int    `json:"recentXp"`
	CourseXP          int    `json:"courseXp"`
}
