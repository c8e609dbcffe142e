package session

import (
	"github.com/Traderyo93/gapdash/internal/models"
)

// FilterMarketHours partitions one ticker-date's bars into pre-market (t < start)
// and session (start <= t <= end) bars and sums the pre-market volume.
// Bars after the session end are dropped. The verdict is a hard gate: an empty
// session or too little pre-market volume disqualifies the ticker-date.
func FilterMarketHours(bars []models.Bar, w Window, minPreMarketVolume float64) ([]models.Bar, float64, models.Verdict) {
	var sessionBars []models.Bar
	var preMarketVolume float64

	for _, b := range bars {
		switch {
		case b.Timestamp.Before(w.Start):
			preMarketVolume += b.Volume
		case w.Contains(b.Timestamp):
			sessionBars = append(sessionBars, b)
		}
	}

	if len(sessionBars) == 0 {
		return nil, preMarketVolume, models.Disqualified(models.ReasonInsufficientData, "no bars inside the session")
	}
	if preMarketVolume < minPreMarketVolume {
		return sessionBars, preMarketVolume, models.Disqualified(models.ReasonBelowPreMarketVolume,
			"pre-market volume %.0f < %.0f", preMarketVolume, minPreMarketVolume)
	}
	return sessionBars, preMarketVolume, models.Qualified()
}
