// Package models defines the core domain entities for gapdash.
// These models represent raw intraday bars, qualifying gap events with their
// normalized curves, per-period aggregates, and the dashboard cache record.
// Most models include validation so invariants hold throughout the pipeline.
//
// Terminology:
//   - Gap: percentage difference between a session open and the prior session close.
//   - Event: one qualifying (ticker, date) pair that passed gap/price/volume screening.
//   - Curve: an event's intraday path as percent change from the session open.
package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for event dates and day keys.
const DateLayout = "2006-01-02"

// NormalizedCurve is the time-normalized, percentage-from-open path of one event.
// All four sequences are parallel and share the same length.
type NormalizedCurve struct {
	TimeProgress []float64 `json:"times_normalized"`  // Fraction of the session elapsed, in [0,1]
	PricePct     []float64 `json:"prices_normalized"` // Representative value per bucket
	HighPct      []float64 `json:"highs_normalized"`  // Bucket high, percent from open
	LowPct       []float64 `json:"lows_normalized"`   // Bucket low, percent from open
}

// Len returns the number of points in the curve.
func (c *NormalizedCurve) Len() int {
	return len(c.TimeProgress)
}

// Eligible reports whether the curve can take part in interpolation.
func (c *NormalizedCurve) Eligible() bool {
	return c.Len() >= 2
}

// Validate checks the curve's structural invariants.
func (c *NormalizedCurve) Validate() error {
	n := len(c.TimeProgress)
	if len(c.PricePct) != n || len(c.HighPct) != n || len(c.LowPct) != n {
		return errors.New("curve sequences must have equal length")
	}
	if n == 0 {
		return nil
	}
	if c.TimeProgress[0] != 0 {
		return errors.New("curve must start at progress 0")
	}
	for i, p := range c.TimeProgress {
		if p < 0 || p > 1 {
			return fmt.Errorf("progress %v at index %d outside [0,1]", p, i)
		}
		if i > 0 && p < c.TimeProgress[i-1] {
			return fmt.Errorf("progress decreases at index %d", i)
		}
	}
	return nil
}

// ExtremaRecord holds the session high/low of an event and when they happened.
type ExtremaRecord struct {
	HighOfDayPct    float64 `json:"high_of_day_pct"`     // HOD as % from session open
	LowOfDayPct     float64 `json:"low_of_day_pct"`      // LOD as % from session open
	HodTimeFraction float64 `json:"hod_time_percentage"` // 0 = session start, 1 = session end
	LodTimeFraction float64 `json:"lod_time_percentage"`
	HodTime         string  `json:"hod_time_str"` // Clock time of the first bar reaching the high
	LodTime         string  `json:"lod_time_str"`
}

// GapEvent is one qualifying security-day.
type GapEvent struct {
	Ticker          string          `json:"ticker"`
	Date            string          `json:"date"` // YYYY-MM-DD session date
	PreviousClose   float64         `json:"previous_close"`
	Open            float64         `json:"open"`
	High            float64         `json:"high"`
	Low             float64         `json:"low"`
	Close           float64         `json:"close"`
	GapPct          float64         `json:"gap_percentage"`
	OpenToClosePct  float64         `json:"open_to_close_change"`
	PreMarketVolume float64         `json:"pre_market_volume"`
	Volume          float64         `json:"total_volume"`
	DollarVolume    float64         `json:"dollar_volume"`
	Extrema         ExtremaRecord   `json:"extrema"`
	Curve           NormalizedCurve `json:"curve"`
	TimeLabels      []string        `json:"time_labels"`  // "HH:MM" start of each curve point
	PriceValues     []float64       `json:"price_values"` // Same values as Curve.PricePct, for charting
}

// Key returns the composite identifier "TICKER:DATE".
func (e *GapEvent) Key() string {
	return e.Ticker + ":" + e.Date
}

// Day parses the event date. The returned time is midnight UTC.
func (e *GapEvent) Day() (time.Time, error) {
	return time.Parse(DateLayout, e.Date)
}

// Validate checks that the event satisfies the qualification invariant for the
// given thresholds. An event either satisfies all of them or does not exist.
func (e *GapEvent) Validate(gapThreshold, minPrice, minPreMarketVolume float64) error {
	if e.Ticker == "" {
		return errors.New("event ticker must not be empty")
	}
	if _, err := e.Day(); err != nil {
		return fmt.Errorf("invalid event date %q: %w", e.Date, err)
	}
	if e.PreviousClose <= 0 || e.Open <= 0 {
		return errors.New("previous close and open must be positive")
	}
	if e.GapPct < gapThreshold {
		return fmt.Errorf("gap %.2f%% below threshold %.2f%%", e.GapPct, gapThreshold)
	}
	if e.Open < minPrice {
		return fmt.Errorf("open %.4f below minimum price %.4f", e.Open, minPrice)
	}
	if e.PreMarketVolume < minPreMarketVolume {
		return fmt.Errorf("pre-market volume %.0f below minimum %.0f", e.PreMarketVolume, minPreMarketVolume)
	}
	if err := e.Curve.Validate(); err != nil {
		return fmt.Errorf("invalid curve: %w", err)
	}
	if len(e.TimeLabels) != e.Curve.Len() {
		return errors.New("time labels must match curve length")
	}
	return nil
}
