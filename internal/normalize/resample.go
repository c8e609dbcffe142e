// Package normalize reduces one qualifying day's session bars to a
// time-normalized, percent-from-open curve and locates the session extrema.
// Everything here is pure computation over its inputs.
package normalize

import (
	"sort"
	"time"

	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/session"
)

// Bucket is a fixed-width OHLCV aggregate of consecutive bars.
type Bucket struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Resample aggregates bars into buckets of the given width anchored at the
// session start: open=first, high=max, low=min, close=last, volume=sum.
// Buckets without bars are not emitted and bars before the session start are ignored.
func Resample(bars []models.Bar, w session.Window, width time.Duration) []Bucket {
	if width <= 0 || len(bars) == 0 {
		return nil
	}
	sorted := sortedBars(bars)

	var buckets []Bucket
	current := int64(-1)
	for _, bar := range sorted {
		offset := bar.Timestamp.Sub(w.Start)
		if offset < 0 {
			continue
		}
		idx := int64(offset / width)
		if idx != current {
			current = idx
			buckets = append(buckets, Bucket{
				Start:  w.Start.Add(time.Duration(idx) * width),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: bar.Volume,
			})
			continue
		}
		b := &buckets[len(buckets)-1]
		if bar.High > b.High {
			b.High = bar.High
		}
		if bar.Low < b.Low {
			b.Low = bar.Low
		}
		b.Close = bar.Close
		b.Volume += bar.Volume
	}
	return buckets
}

// Session holds the regular-session OHLCV derived from session bars.
type Session struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Summarize computes the session OHLCV. ok is false when bars is empty.
func Summarize(bars []models.Bar) (s Session, ok bool) {
	if len(bars) == 0 {
		return Session{}, false
	}
	sorted := sortedBars(bars)
	s = Session{
		Open:  sorted[0].Open,
		High:  sorted[0].High,
		Low:   sorted[0].Low,
		Close: sorted[len(sorted)-1].Close,
	}
	for _, bar := range sorted {
		if bar.High > s.High {
			s.High = bar.High
		}
		if bar.Low < s.Low {
			s.Low = bar.Low
		}
		s.Volume += bar.Volume
	}
	return s, true
}

func sortedBars(bars []models.Bar) []models.Bar {
	sorted := make([]models.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

func pctFrom(base, v float64) float64 {
	return (v - base) / base * 100
}
