package session

import (
	"time"

	"github.com/scmhub/calendar"
)

// maxLookback bounds the search for a previous trading day.
const maxLookback = 10

// Calendar answers trading-day questions for one exchange.
type Calendar struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewCalendar loads the exchange calendar for a MIC code (e.g. "xnys").
// When the MIC is unknown it falls back to a Monday-Friday calendar in loc.
func NewCalendar(mic string, loc *time.Location) *Calendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		return NewWeekdayCalendar(loc)
	}
	return &Calendar{cal: cal, loc: cal.Loc}
}

// NewWeekdayCalendar returns a calendar where every Monday-Friday is a trading day.
func NewWeekdayCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc}
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsTradingDay reports whether the exchange holds a regular session on date.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	date = c.midday(date)
	if c.cal == nil {
		wd := date.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(date)
}

// PreviousTradingDay returns the closest trading day strictly before date.
// ok is false when none is found within the lookback bound.
func (c *Calendar) PreviousTradingDay(date time.Time) (time.Time, bool) {
	day := c.midday(date)
	for i := 0; i < maxLookback; i++ {
		day = day.AddDate(0, 0, -1)
		if c.IsTradingDay(day) {
			return c.startOfDay(day), true
		}
	}
	return time.Time{}, false
}

// TradingDays returns the n most recent trading days ending at end (inclusive), oldest first.
func (c *Calendar) TradingDays(end time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	day := c.midday(end)
	for len(days) < n {
		if c.IsTradingDay(day) {
			days = append(days, c.startOfDay(day))
		}
		day = day.AddDate(0, 0, -1)
	}
	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
	return days
}

// midday pins the calendar date of t (in t's own location) to noon in the
// exchange timezone so DST shifts never move it across midnight.
func (c *Calendar) midday(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, c.loc)
}

func (c *Calendar) startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}
