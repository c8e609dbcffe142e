// Package gap decides whether an opening-price jump is a genuine gap or an
// artifact of a corporate action, and screens ticker symbols.
//
// Rules are applied in order and the first match wins:
//
//  1. |gap| > 300%: certain corporate action.
//  2. open/previous close within 5% of a common split ratio: probable split.
//  3. gap > 100% on volume < 500,000: illiquid or artificial print.
//  4. otherwise accept, subject to the configured gap, price and volume floors.
//
// When a corporate-actions lookup is configured it is consulted for gaps at or
// above the ambiguity threshold, and its answer overrides rules 1-3.
package gap

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Traderyo93/gapdash/internal/models"
)

const (
	maxPlausibleGapPct = 300.0
	splitTolerance     = 0.05
	illiquidGapPct     = 100.0
	illiquidVolume     = 500_000.0
)

// splitRatios are open/previous-close ratios produced by common splits and reverse splits.
var splitRatios = []float64{2, 3, 4, 5, 10, 1.0 / 2, 1.0 / 3, 1.0 / 4, 1.0 / 5, 1.0 / 10}

// CorporateActions reports whether a split or reverse split was executed for
// ticker between from and to (inclusive).
type CorporateActions interface {
	HasSplit(ctx context.Context, ticker string, from, to time.Time) (bool, error)
}

// Candidate is an opening print to classify.
type Candidate struct {
	Ticker        string
	Date          time.Time
	Open          float64
	PreviousClose float64
	Volume        float64
}

// Thresholds are the domain qualification floors of rule 4.
type Thresholds struct {
	MinGapPct float64
	MinPrice  float64
	MinVolume float64
}

// Classifier applies the gap rules.
type Classifier struct {
	thresholds      Thresholds
	actions         CorporateActions
	ambiguousGapPct float64
	splitLookback   int
}

// NewClassifier creates a classifier. actions may be nil, in which case only the
// heuristic rules are used. splitLookbackDays widens the lookup window backwards
// from the event date.
func NewClassifier(thresholds Thresholds, actions CorporateActions, ambiguousGapPct float64, splitLookbackDays int) *Classifier {
	if splitLookbackDays < 0 {
		splitLookbackDays = 0
	}
	return &Classifier{
		thresholds:      thresholds,
		actions:         actions,
		ambiguousGapPct: ambiguousGapPct,
		splitLookback:   splitLookbackDays,
	}
}

// Pct returns (open - previousClose) / previousClose * 100.
// Callers must ensure previousClose > 0.
func Pct(open, previousClose float64) float64 {
	return (open - previousClose) / previousClose * 100
}

// Classify returns the verdict for a candidate. The returned error is non-nil
// only when the corporate-actions lookup failed; the verdict is then the
// heuristic's and remains usable.
func (c *Classifier) Classify(ctx context.Context, cand Candidate) (models.Verdict, error) {
	if cand.PreviousClose <= 0 || cand.Open <= 0 {
		return models.Disqualified(models.ReasonMalformedPrice,
			"open %.4f, previous close %.4f", cand.Open, cand.PreviousClose), nil
	}

	gapPct := Pct(cand.Open, cand.PreviousClose)
	verdict := Heuristic(gapPct, cand.Open/cand.PreviousClose, cand.Volume)

	var lookupErr error
	if c.actions != nil && math.Abs(gapPct) >= c.ambiguousGapPct {
		from := cand.Date.AddDate(0, 0, -c.splitLookback)
		split, err := c.actions.HasSplit(ctx, cand.Ticker, from, cand.Date)
		if err != nil {
			lookupErr = fmt.Errorf("corporate actions lookup for %s: %w", cand.Ticker, err)
		} else if split {
			return models.Disqualified(models.ReasonCorporateAction, "split executed near %s", cand.Date.Format(models.DateLayout)), nil
		} else {
			verdict = models.Qualified()
		}
	}

	if !verdict.Qualified {
		return verdict, lookupErr
	}
	return c.checkThresholds(gapPct, cand), lookupErr
}

// Heuristic applies rules 1-3 to a gap percentage, open/previous-close ratio and volume.
func Heuristic(gapPct, ratio, volume float64) models.Verdict {
	if math.Abs(gapPct) > maxPlausibleGapPct {
		return models.Disqualified(models.ReasonCorporateAction, "gap %.1f%% exceeds %.0f%%", gapPct, maxPlausibleGapPct)
	}
	if r, ok := nearSplitRatio(ratio); ok {
		return models.Disqualified(models.ReasonProbableSplit, "ratio %.3f near %.3f", ratio, r)
	}
	if gapPct > illiquidGapPct && volume < illiquidVolume {
		return models.Disqualified(models.ReasonIlliquidPrint, "gap %.1f%% on volume %.0f", gapPct, volume)
	}
	return models.Qualified()
}

func nearSplitRatio(ratio float64) (float64, bool) {
	for _, r := range splitRatios {
		if math.Abs(ratio-r)/r <= splitTolerance {
			return r, true
		}
	}
	return 0, false
}

func (c *Classifier) checkThresholds(gapPct float64, cand Candidate) models.Verdict {
	t := c.thresholds
	if gapPct < t.MinGapPct {
		return models.Disqualified(models.ReasonBelowGapThreshold, "gap %.2f%% < %.2f%%", gapPct, t.MinGapPct)
	}
	if cand.Open < t.MinPrice {
		return models.Disqualified(models.ReasonBelowMinPrice, "open %.4f < %.4f", cand.Open, t.MinPrice)
	}
	if cand.Volume < t.MinVolume {
		return models.Disqualified(models.ReasonBelowMinVolume, "volume %.0f < %.0f", cand.Volume, t.MinVolume)
	}
	return models.Qualified()
}
