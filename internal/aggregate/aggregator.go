package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/session"
)

// Aggregator computes PeriodAggregates on one canonical grid shared by every
// period it produces.
type Aggregator struct {
	grid   []float64
	labels []string
	window session.Window // reference session for clock labels
}

// NewAggregator creates an aggregator with gridPoints grid points over the
// session from start to end.
func NewAggregator(gridPoints int, start, end session.Clock) *Aggregator {
	// Labels depend only on the clock times; a fixed UTC date keeps DST out.
	window := session.NewWindow(time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC), time.UTC, start, end)
	grid := Grid(gridPoints)
	labels := make([]string, len(grid))
	for i, g := range grid {
		labels[i] = window.ClockAt(g)
	}
	return &Aggregator{
		grid:   grid,
		labels: labels,
		window: window,
	}
}

// Grid returns a copy of the canonical grid.
func (a *Aggregator) Grid() []float64 {
	return append([]float64(nil), a.grid...)
}

// Aggregate reduces the events of one period. It returns false when there is
// nothing to aggregate: no events, or no event with an eligible curve.
//
// Curves with fewer than two points are left out of the mean curves and the
// mean HOD/LOD times, but every event counts toward the scalar means, sums
// and the gapper count.
func (a *Aggregator) Aggregate(kind models.PeriodKind, key, name string, events []models.GapEvent) (models.PeriodAggregate, bool) {
	if len(events) == 0 || len(a.grid) == 0 {
		return models.PeriodAggregate{}, false
	}

	n := len(a.grid)
	sumPrices := make([]float64, n)
	sumHighs := make([]float64, n)
	sumLows := make([]float64, n)
	var curves int
	var sumHodTime, sumLodTime float64

	var sumGap, sumOTC, sumHOD, sumLOD float64
	totalVolume := decimal.Zero
	totalDollarVolume := decimal.Zero

	for i := range events {
		e := &events[i]
		if e.Curve.Eligible() {
			addInto(sumPrices, Interp(a.grid, e.Curve.TimeProgress, e.Curve.PricePct))
			addInto(sumHighs, Interp(a.grid, e.Curve.TimeProgress, e.Curve.HighPct))
			addInto(sumLows, Interp(a.grid, e.Curve.TimeProgress, e.Curve.LowPct))
			sumHodTime += e.Extrema.HodTimeFraction
			sumLodTime += e.Extrema.LodTimeFraction
			curves++
		}
		sumGap += e.GapPct
		sumOTC += e.OpenToClosePct
		sumHOD += e.Extrema.HighOfDayPct
		sumLOD += e.Extrema.LowOfDayPct
		totalVolume = totalVolume.Add(decimal.NewFromFloat(e.Volume))
		totalDollarVolume = totalDollarVolume.Add(decimal.NewFromFloat(e.DollarVolume))
	}
	if curves == 0 {
		return models.PeriodAggregate{}, false
	}

	count := float64(len(events))
	avgHodTime := sumHodTime / float64(curves)
	avgLodTime := sumLodTime / float64(curves)

	return models.PeriodAggregate{
		Kind:               kind,
		PeriodKey:          key,
		PeriodName:         name,
		GapperCount:        len(events),
		AvgGapPct:          round2(sumGap / count),
		AvgOpenToClose:     round2(sumOTC / count),
		TotalVolume:        totalVolume.InexactFloat64(),
		TotalDollarVolume:  totalDollarVolume.Round(2).InexactFloat64(),
		AvgHighOfDayPct:    round2(sumHOD / count),
		AvgLowOfDayPct:     round2(sumLOD / count),
		AvgHodTimeFraction: avgHodTime,
		AvgHodTime:         a.window.ClockAt(avgHodTime),
		AvgLodTimeFraction: avgLodTime,
		AvgLodTime:         a.window.ClockAt(avgLodTime),
		Grid:               a.Grid(),
		TimeLabels:         append([]string(nil), a.labels...),
		AvgPrices:          round2All(divide(sumPrices, curves)),
		AvgHighs:           round2All(divide(sumHighs, curves)),
		AvgLows:            round2All(divide(sumLows, curves)),
		OpenLine:           make([]float64, n),
	}, true
}

// placeholder is an aggregate with no events, used to back-fill calendar slots.
func (a *Aggregator) placeholder(kind models.PeriodKind, key, name string) models.PeriodAggregate {
	n := len(a.grid)
	return models.PeriodAggregate{
		Kind:       kind,
		PeriodKey:  key,
		PeriodName: name,
		Grid:       a.Grid(),
		TimeLabels: append([]string(nil), a.labels...),
		AvgPrices:  make([]float64, n),
		AvgHighs:   make([]float64, n),
		AvgLows:    make([]float64, n),
		OpenLine:   make([]float64, n),
	}
}

func addInto(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func divide(vs []float64, n int) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v / float64(n)
	}
	return out
}
