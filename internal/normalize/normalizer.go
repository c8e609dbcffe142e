package normalize

import (
	"errors"
	"time"

	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/session"
)

var (
	// ErrNoSessionBars is returned when there is nothing to normalize.
	ErrNoSessionBars = errors.New("no session bars")
	// ErrInvalidOpen is returned when the session open is not a positive price.
	ErrInvalidOpen = errors.New("session open must be positive")
)

// Normalizer turns session bars into a NormalizedCurve.
type Normalizer struct {
	bucketWidth time.Duration
}

// NewNormalizer creates a normalizer with the given bucket width in minutes.
func NewNormalizer(bucketMinutes int) *Normalizer {
	if bucketMinutes <= 0 {
		bucketMinutes = 5
	}
	return &Normalizer{bucketWidth: time.Duration(bucketMinutes) * time.Minute}
}

// BucketWidth returns the resampling width.
func (n *Normalizer) BucketWidth() time.Duration {
	return n.bucketWidth
}

// Normalize resamples the session bars and selects one representative value
// per bucket. It returns the curve and the "HH:MM" start label of each point.
// When the first bucket starts after the session open, a zero anchor point at
// progress 0 is prepended so every curve begins at the open.
func (n *Normalizer) Normalize(bars []models.Bar, w session.Window) (models.NormalizedCurve, []string, error) {
	var curve models.NormalizedCurve

	sess, ok := Summarize(bars)
	if !ok {
		return curve, nil, ErrNoSessionBars
	}
	if sess.Open <= 0 {
		return curve, nil, ErrInvalidOpen
	}
	buckets := Resample(bars, w, n.bucketWidth)
	if len(buckets) == 0 {
		return curve, nil, ErrNoSessionBars
	}

	dayHighPct := pctFrom(sess.Open, sess.High)
	dayLowPct := pctFrom(sess.Open, sess.Low)
	loc := w.Start.Location()

	size := len(buckets)
	anchor := w.Progress(buckets[0].Start) > 0
	if anchor {
		size++
	}
	curve = models.NormalizedCurve{
		TimeProgress: make([]float64, 0, size),
		PricePct:     make([]float64, 0, size),
		HighPct:      make([]float64, 0, size),
		LowPct:       make([]float64, 0, size),
	}
	labels := make([]string, 0, size)

	if anchor {
		curve.TimeProgress = append(curve.TimeProgress, 0)
		curve.PricePct = append(curve.PricePct, 0)
		curve.HighPct = append(curve.HighPct, 0)
		curve.LowPct = append(curve.LowPct, 0)
		labels = append(labels, w.Start.Format("15:04"))
	}

	for _, b := range buckets {
		levels := LevelsOf(b, sess.Open)
		price, _ := SelectPrice(levels, dayHighPct, dayLowPct)

		curve.TimeProgress = append(curve.TimeProgress, w.Progress(b.Start))
		curve.PricePct = append(curve.PricePct, price)
		curve.HighPct = append(curve.HighPct, levels.HighPct)
		curve.LowPct = append(curve.LowPct, levels.LowPct)
		labels = append(labels, b.Start.In(loc).Format("15:04"))
	}
	return curve, labels, nil
}
