package normalize

import (
	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/session"
)

// LocateExtrema finds the first bar reaching the session high and the first
// reaching the session low, and expresses both relative to open and to the
// session window. open must be positive.
func LocateExtrema(bars []models.Bar, w session.Window, open float64) models.ExtremaRecord {
	var rec models.ExtremaRecord
	if len(bars) == 0 || open <= 0 {
		return rec
	}
	sorted := sortedBars(bars)
	loc := w.Start.Location()

	hod, lod := sorted[0], sorted[0]
	for _, bar := range sorted[1:] {
		if bar.High > hod.High {
			hod = bar
		}
		if bar.Low < lod.Low {
			lod = bar
		}
	}

	rec.HighOfDayPct = pctFrom(open, hod.High)
	rec.LowOfDayPct = pctFrom(open, lod.Low)
	rec.HodTimeFraction = w.Progress(hod.Timestamp)
	rec.LodTimeFraction = w.Progress(lod.Timestamp)
	rec.HodTime = hod.Timestamp.In(loc).Format("15:04")
	rec.LodTime = lod.Timestamp.In(loc).Format("15:04")
	return rec
}
