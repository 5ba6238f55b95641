package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type dated struct {
	name string
	when time.Time
}

func datedOf(d dated) time.Time { return d.when }

func TestFilterByTimeframe(t *testing.T) {
	// refNow: Saturday 2024-01-20 12:00 UTC
	records := []dated{
		{"today", at(2024, time.January, 20, 8)},
		{"monday", at(2024, time.January, 15, 0)},
		{"last sunday", at(2024, time.January, 14, 23)},
		{"new year", at(2024, time.January, 1, 0)},
		{"last year", at(2023, time.December, 31, 23)},
		{"undated", time.Time{}},
	}

	names := func(in []dated) []string {
		out := make([]string, 0, len(in))
		for _, r := range in {
			out = append(out, r.name)
		}
		return out
	}

	tests := []struct {
		tf   Timeframe
		want []string
	}{
		{TimeframeDaily, []string{"today"}},
		{TimeframeWeekly, []string{"today", "monday"}},
		{TimeframeMonthly, []string{"today", "monday", "last sunday", "new year"}},
		{TimeframeQuarterly, []string{"today", "monday", "last sunday", "new year"}},
		{TimeframeYearly, []string{"today", "monday", "last sunday", "new year"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.tf), func(t *testing.T) {
			assert.Equal(t, tt.want, names(FilterByTimeframe(records, tt.tf, datedOf, refNow)))
		})
	}
}

func TestFilterByTimeframe_AllTimeReturnsInput(t *testing.T) {
	records := []dated{{"b", at(2020, time.May, 1, 0)}, {"a", time.Time{}}}

	assert.Equal(t, records, FilterByTimeframe(records, TimeframeAllTime, datedOf, refNow))
	assert.Equal(t, records, FilterByTimeframe(records, "", datedOf, refNow))
}

func TestFilterByTimeframe_DoesNotMutateInput(t *testing.T) {
	records := []dated{
		{"old", at(2020, time.May, 1, 0)},
		{"new", at(2024, time.January, 19, 0)},
	}
	snapshot := append([]dated(nil), records...)

	got := FilterByTimeframe(records, TimeframeWeekly, datedOf, refNow)

	assert.Len(t, got, 1)
	assert.Equal(t, snapshot, records)
}

func TestFilterByTimeframe_Quarter(t *testing.T) {
	now := at(2024, time.May, 10, 12)
	records := []dated{
		{"march", at(2024, time.March, 31, 23)},
		{"april", at(2024, time.April, 1, 0)},
	}

	got := FilterByTimeframe(records, TimeframeQuarterly, datedOf, now)
	assert.Equal(t, []dated{records[1]}, got)
}

func TestTimeframe_WindowStart(t *testing.T) {
	start, ok := TimeframeWeekly.WindowStart(refNow)
	assert.True(t, ok)
	assert.Equal(t, at(2024, time.January, 15, 0), start)

	_, ok = TimeframeAllTime.WindowStart(refNow)
	assert.False(t, ok)
}
