package shared

import (
	"fmt"
	"time"
)

// Granularity selects the sub-period key used for report breakdowns.
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// Valid reports whether g is a supported granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter, GranularityYear:
		return true
	}
	return false
}

// PeriodKey returns the bucket key for t under the given granularity.
// Keys sort lexicographically in chronological order.
func PeriodKey(t time.Time, g Granularity) string {
	switch g {
	case GranularityDay:
		return t.Format("2006-01-02")
	case GranularityWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GranularityQuarter:
		quarter := (int(t.Month())-1)/3 + 1
		return fmt.Sprintf("%04d-Q%d", t.Year(), quarter)
	case GranularityYear:
		return t.Format("2006")
	default:
		return t.Format("2006-01")
	}
}

// PreviousWindow returns the immediately preceding window of equal length.
func PreviousWindow(from, to time.Time) (time.Time, time.Time) {
	length := to.Sub(from)
	prevTo := from.Add(-24 * time.Hour)
	prevFrom := prevTo.Add(-length)
	return prevFrom, prevTo
}

// YearAgoWindow returns the same window shifted back one year.
func YearAgoWindow(from, to time.Time) (time.Time, time.Time) {
	return from.AddDate(-1, 0, 0), to.AddDate(-1, 0, 0)
}
