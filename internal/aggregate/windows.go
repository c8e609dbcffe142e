package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/Traderyo93/gapdash/internal/models"
)

// Groups maps a period key to the events falling in that period.
type Groups map[string][]models.GapEvent

// Keys returns the group keys in ascending order.
func (g Groups) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DayKey formats a calendar date as "2006-01-02".
func DayKey(t time.Time) string {
	return t.Format(models.DateLayout)
}

// WeekKey formats the ISO week of t as "2006-W05".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MonthKey formats the month of t as "2006-01".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// DayName is the display label of a day period, e.g. "Mon 03/18".
func DayName(t time.Time) string {
	return t.Format("Mon 01/02")
}

// WeekName is the display label of a week period, e.g. "Week 12, 2024".
func WeekName(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("Week %d, %d", week, year)
}

// MonthName is the display label of a month period, e.g. "Mar 2024".
func MonthName(t time.Time) string {
	return t.Format("Jan 2006")
}

// GroupByDay buckets events by event date. Events with unparsable dates are skipped.
func GroupByDay(events []models.GapEvent) Groups {
	return groupBy(events, DayKey)
}

// GroupByWeek buckets events by ISO week.
func GroupByWeek(events []models.GapEvent) Groups {
	return groupBy(events, WeekKey)
}

// GroupByMonth buckets events by calendar month.
func GroupByMonth(events []models.GapEvent) Groups {
	return groupBy(events, MonthKey)
}

func groupBy(events []models.GapEvent, key func(time.Time) string) Groups {
	groups := make(Groups)
	for _, e := range events {
		day, err := e.Day()
		if err != nil {
			continue
		}
		k := key(day)
		groups[k] = append(groups[k], e)
	}
	return groups
}

// TrailingMonths returns the first day of the n months ending with the month
// of now, oldest first.
func TrailingMonths(now time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		months = append(months, first.AddDate(0, -i, 0))
	}
	return months
}

// TrailingWeeks returns one date inside each of the n ISO weeks ending with
// the week of now, oldest first.
func TrailingWeeks(now time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weeks := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		weeks = append(weeks, day.AddDate(0, 0, -7*i))
	}
	return weeks
}

// RecentDays returns up to n day keys that have events, newest first.
func RecentDays(groups Groups, n int) []string {
	keys := make([]string, 0, len(groups))
	for k, events := range groups {
		if len(events) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if n >= 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
