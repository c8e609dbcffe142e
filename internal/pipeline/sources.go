// Package pipeline turns raw market data into stored gap events and the
// dashboard record.
//
// A run walks the trading days of the lookback window. For each date the
// Scanner selects gap candidates from the grouped daily bars of the date and
// its previous trading day, fetches minute bars for each candidate with
// bounded concurrency, and qualifies them through a pure chain:
//
//	market-hours filter -> gap classifier -> normalizer -> extrema locator
//
// Disqualification is a value, not an error. Only data-source failures are
// errors, and those are collected per date so one bad date never aborts a run.
package pipeline

import (
	"context"
	"time"

	"github.com/Traderyo93/gapdash/internal/gap"
	"github.com/Traderyo93/gapdash/internal/models"
)

// BarSource returns the ordered minute bars of one ticker on one date.
// A ticker without data yields an empty slice and no error.
type BarSource interface {
	MinuteBars(ctx context.Context, ticker string, date time.Time) ([]models.Bar, error)
}

// DailyQuote is one ticker's daily aggregate from the grouped daily endpoint.
type DailyQuote struct {
	Ticker string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DailySource returns the daily aggregates of every ticker for one date.
// It serves both the current-date opens and the previous-date closes.
type DailySource interface {
	GroupedDaily(ctx context.Context, date time.Time) (map[string]DailyQuote, error)
}

// CorporateActions is consulted for ambiguous gaps.
type CorporateActions = gap.CorporateActions
