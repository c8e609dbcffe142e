package models

import "errors"

// PeriodKind names a calendar grouping of events.
type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

// ParsePeriodKind accepts both the singular kind and the adjectives used by
// the dashboard ("daily", "weekly", "monthly").
func ParsePeriodKind(s string) (PeriodKind, error) {
	switch s {
	case "day", "daily":
		return PeriodDay, nil
	case "week", "weekly":
		return PeriodWeek, nil
	case "month", "monthly":
		return PeriodMonth, nil
	}
	return "", errors.New("period kind must be one of: day, week, month")
}

// PeriodAggregate is the representative "average day" of all events in one period.
// Curves are sampled on the canonical grid shared by every period of a run.
type PeriodAggregate struct {
	Kind               PeriodKind `json:"kind"`
	PeriodKey          string     `json:"period_key"`  // "2024-03-18", "2024-W12" or "2024-03"
	PeriodName         string     `json:"period_name"` // Display label, e.g. "Mar 2024"
	GapperCount        int        `json:"gapper_count"`
	AvgGapPct          float64    `json:"avg_gap_percentage"`
	AvgOpenToClose     float64    `json:"avg_open_to_close"`
	TotalVolume        float64    `json:"total_volume"`
	TotalDollarVolume  float64    `json:"total_dollar_volume"`
	AvgHighOfDayPct    float64    `json:"avg_high_of_day_pct"`
	AvgLowOfDayPct     float64    `json:"avg_low_of_day_pct"`
	AvgHodTimeFraction float64    `json:"avg_hod_time"`
	AvgHodTime         string     `json:"avg_hod_time_str"`
	AvgLodTimeFraction float64    `json:"avg_lod_time"`
	AvgLodTime         string     `json:"avg_lod_time_str"`
	Grid               []float64  `json:"grid"`
	TimeLabels         []string   `json:"time_labels"`
	AvgPrices          []float64  `json:"avg_prices"`
	AvgHighs           []float64  `json:"avg_highs"`
	AvgLows            []float64  `json:"avg_lows"`
	OpenLine           []float64  `json:"open_line"` // Reference line at 0%
}

// Empty reports whether the aggregate is a back-filled placeholder with no events.
func (p *PeriodAggregate) Empty() bool {
	return p.GapperCount == 0
}

// Stat condenses the aggregate into a bar-chart row.
func (p *PeriodAggregate) Stat() PeriodStat {
	return PeriodStat{
		Kind:              p.Kind,
		PeriodKey:         p.PeriodKey,
		PeriodName:        p.PeriodName,
		GapperCount:       p.GapperCount,
		TotalVolume:       p.TotalVolume,
		TotalDollarVolume: p.TotalDollarVolume,
		AvgOpenToClose:    p.AvgOpenToClose,
	}
}

// PeriodStat is one row of the per-period bar charts.
type PeriodStat struct {
	Kind              PeriodKind `json:"kind"`
	PeriodKey         string     `json:"period_key"`
	PeriodName        string     `json:"period_name"`
	GapperCount       int        `json:"gapper_count"`
	TotalVolume       float64    `json:"total_volume"`
	TotalDollarVolume float64    `json:"total_dollar_volume"`
	AvgOpenToClose    float64    `json:"avg_open_to_close"`
}
