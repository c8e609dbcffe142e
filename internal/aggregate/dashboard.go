package aggregate

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Traderyo93/gapdash/internal/models"
)

// Options control which periods are materialized in the dashboard.
type Options struct {
	Days           int  // most recent days with events
	Weeks          int  // trailing ISO weeks
	Months         int  // trailing calendar months
	BackfillMonths bool // emit empty placeholders for months without events
	RecentGaps     int  // size of the recent-gaps list
}

// BuildDashboard recomputes the whole dashboard record from events as of now.
// Periods are derived from the calendar date of now in its own location.
func (a *Aggregator) BuildDashboard(events []models.GapEvent, now time.Time, opts Options) models.Dashboard {
	d := models.Dashboard{
		RunID:        uuid.NewString(),
		LastUpdated:  now,
		Monthly:      a.monthly(events, now, opts),
		Weekly:       a.weekly(events, now, opts.Weeks),
		Daily:        a.daily(events, opts.Days),
		TotalGappers: len(events),
	}
	d.MonthlyStats = statRows(d.Monthly)
	d.WeeklyStats = statRows(d.Weekly)
	d.DailyStats = statRows(d.Daily)
	d.Calendar = CalendarOf(events, now)
	d.LastGaps = RecentGaps(events, opts.RecentGaps)
	d.Summary = Summarize(events, d.Calendar.DaysSinceLastGap)
	return d
}

func (a *Aggregator) monthly(events []models.GapEvent, now time.Time, opts Options) map[string]models.PeriodAggregate {
	groups := GroupByMonth(events)
	out := make(map[string]models.PeriodAggregate)
	for _, month := range TrailingMonths(now, opts.Months) {
		key, name := MonthKey(month), MonthName(month)
		if agg, ok := a.Aggregate(models.PeriodMonth, key, name, groups[key]); ok {
			out[key] = agg
		} else if opts.BackfillMonths {
			out[key] = a.placeholder(models.PeriodMonth, key, name)
		}
	}
	return out
}

func (a *Aggregator) weekly(events []models.GapEvent, now time.Time, n int) map[string]models.PeriodAggregate {
	groups := GroupByWeek(events)
	out := make(map[string]models.PeriodAggregate)
	for _, day := range TrailingWeeks(now, n) {
		key := WeekKey(day)
		if agg, ok := a.Aggregate(models.PeriodWeek, key, WeekName(day), groups[key]); ok {
			out[key] = agg
		}
	}
	return out
}

func (a *Aggregator) daily(events []models.GapEvent, n int) map[string]models.PeriodAggregate {
	groups := GroupByDay(events)
	out := make(map[string]models.PeriodAggregate)
	for _, key := range RecentDays(groups, n) {
		day, err := time.Parse(models.DateLayout, key)
		if err != nil {
			continue
		}
		if agg, ok := a.Aggregate(models.PeriodDay, key, DayName(day), groups[key]); ok {
			out[key] = agg
		}
	}
	return out
}

func statRows(periods map[string]models.PeriodAggregate) []models.PeriodStat {
	keys := make([]string, 0, len(periods))
	for k := range periods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]models.PeriodStat, 0, len(keys))
	for _, k := range keys {
		p := periods[k]
		rows = append(rows, p.Stat())
	}
	return rows
}

// CalendarOf lists the distinct event dates in ascending order and the number
// of calendar days between the newest of them and the date of now.
func CalendarOf(events []models.GapEvent, now time.Time) models.CalendarData {
	seen := make(map[string]struct{})
	dates := make([]string, 0)
	for _, e := range events {
		if _, ok := seen[e.Date]; ok {
			continue
		}
		seen[e.Date] = struct{}{}
		dates = append(dates, e.Date)
	}
	sort.Strings(dates)

	cal := models.CalendarData{GapDates: dates}
	if len(dates) == 0 {
		return cal
	}
	latest, err := time.Parse(models.DateLayout, dates[len(dates)-1])
	if err != nil {
		return cal
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if days := int(today.Sub(latest).Hours() / 24); days > 0 {
		cal.DaysSinceLastGap = days
	}
	return cal
}

// RecentGaps returns up to n events, newest date first and larger gaps first
// within a date, flattened for display.
func RecentGaps(events []models.GapEvent, n int) []models.RecentGap {
	sorted := make([]models.GapEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date > sorted[j].Date
		}
		return sorted[i].GapPct > sorted[j].GapPct
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]models.RecentGap, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, models.RecentGap{
			Ticker:         e.Ticker,
			Date:           e.Date,
			GapPct:         e.GapPct,
			Volume:         e.Volume,
			OpenToClosePct: e.OpenToClosePct,
			Individual: models.IndividualData{
				TimeLabels:  e.TimeLabels,
				PriceValues: e.PriceValues,
				Open:        e.Open,
				High:        e.High,
				Low:         e.Low,
				Close:       e.Close,
			},
		})
	}
	return out
}

// Summarize computes the run-wide summary scalars.
func Summarize(events []models.GapEvent, daysSinceLastGap int) models.SummaryStats {
	s := models.SummaryStats{
		TotalGappers:     len(events),
		DaysSinceLastGap: daysSinceLastGap,
	}
	if len(events) == 0 {
		return s
	}
	var sumGap, sumOTC float64
	for _, e := range events {
		sumGap += e.GapPct
		sumOTC += e.OpenToClosePct
	}
	s.AvgGapPct = round2(sumGap / float64(len(events)))
	s.AvgOpenToClose = round2(sumOTC / float64(len(events)))
	return s
}
