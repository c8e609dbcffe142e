package models

import "time"

// Dashboard is the serializable record written to the cache sink after each run.
// Field names are a contract with the presentation layer only.
type Dashboard struct {
	RunID        string                     `json:"runId"`
	LastUpdated  time.Time                  `json:"lastUpdated"`
	Monthly      map[string]PeriodAggregate `json:"monthlyAverages"`
	Weekly       map[string]PeriodAggregate `json:"weeklyAverages"`
	Daily        map[string]PeriodAggregate `json:"dailyAverages"`
	MonthlyStats []PeriodStat               `json:"monthlyStats"`
	WeeklyStats  []PeriodStat               `json:"weeklyStats"`
	DailyStats   []PeriodStat               `json:"dailyStats"`
	Calendar     CalendarData               `json:"calendarData"`
	LastGaps     []RecentGap                `json:"lastGaps"`
	TotalGappers int                        `json:"totalGappers"`
	Summary      SummaryStats               `json:"summaryStats"`
}

// Periods returns the period map for the given kind.
func (d *Dashboard) Periods(kind PeriodKind) map[string]PeriodAggregate {
	switch kind {
	case PeriodDay:
		return d.Daily
	case PeriodWeek:
		return d.Weekly
	case PeriodMonth:
		return d.Monthly
	}
	return nil
}

// CalendarData lists the dates that had at least one qualifying event.
type CalendarData struct {
	GapDates         []string `json:"gap_dates"`
	DaysSinceLastGap int      `json:"days_since_last_gap"`
}

// RecentGap is a flattened event for the "last gaps" sidebar.
type RecentGap struct {
	Ticker         string         `json:"ticker"`
	Date           string         `json:"date"`
	GapPct         float64        `json:"gapPercentage"`
	Volume         float64        `json:"volume"`
	OpenToClosePct float64        `json:"openToCloseChange"`
	Individual     IndividualData `json:"individualData"`
}

// IndividualData is the single-event chart payload, in percent from open.
type IndividualData struct {
	TimeLabels  []string  `json:"time_labels"`
	PriceValues []float64 `json:"price_values"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
}

// SummaryStats are run-wide scalars.
type SummaryStats struct {
	TotalGappers     int     `json:"total_gappers"`
	AvgGapPct        float64 `json:"avg_gap_percentage"`
	AvgOpenToClose   float64 `json:"avg_open_to_close"`
	DaysSinceLastGap int     `json:"days_since_last_gap"`
}
