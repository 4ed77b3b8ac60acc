package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive time window used by range queries
// =============================================================================

// Period is the closed interval [Start, End]. Both ends are inclusive, so a
// day period runs from 00:00:00 to 23:59:59.999999999 of that day.
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) String() string {
	return "[" + p.Start.Format(time.RFC3339) + ", " + p.End.Format(time.RFC3339) + "]"
}

// =============================================================================
// CALENDAR BOUNDARIES
// =============================================================================
// All boundaries are computed in the location of the input (UTC for the
// year/month constructors).

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Day returns the period covering the calendar day of t.
func Day(t time.Time) Period {
	return Period{Start: StartOfDay(t), End: EndOfDay(t)}
}

// Days returns the period from the start of the first day to the end of the
// last day. Fails if last is before first.
func Days(first, last time.Time) (Period, error) {
	p := Period{Start: StartOfDay(first), End: EndOfDay(last)}
	if p.End.Before(p.Start) {
		return Period{}, fmt.Errorf("invalid period: %s is before %s",
			last.Format(time.DateOnly), first.Format(time.DateOnly))
	}
	return p, nil
}

// Week returns the Monday-to-Sunday week containing t.
func Week(t time.Time) Period {
	offset := (int(t.Weekday()) + 6) % 7
	monday := StartOfDay(t).AddDate(0, 0, -offset)
	return Period{Start: monday, End: EndOfDay(monday.AddDate(0, 0, 6))}
}

func Month(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

func Year(year int) Period {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}
}
