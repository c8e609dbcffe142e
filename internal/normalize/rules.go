package normalize

import "math"

// Levels are a bucket's prices as percent change from the session open.
type Levels struct {
	HighPct  float64
	LowPct   float64
	ClosePct float64
	OpenPct  float64
	MidPct   float64
}

// LevelsOf converts a bucket to percent-from-open levels. open must be positive.
func LevelsOf(b Bucket, open float64) Levels {
	l := Levels{
		HighPct:  pctFrom(open, b.High),
		LowPct:   pctFrom(open, b.Low),
		ClosePct: pctFrom(open, b.Close),
		OpenPct:  pctFrom(open, b.Open),
	}
	l.MidPct = (l.HighPct + l.LowPct) / 2
	return l
}

// Rule picks a bucket's representative value when Match holds.
type Rule struct {
	Name   string
	Match  func(l Levels, dayHighPct, dayLowPct float64) bool
	Select func(l Levels) float64
}

const (
	extremaTolerance = 1.0
	trendMovePct     = 3.0
	volatileRangePct = 5.0
)

// Rules is the price selection precedence; the first matching rule wins and
// the last rule always matches. Taking the true extreme of the buckets that
// hold the session high and low keeps those values reachable by the curve.
var Rules = []Rule{
	{
		Name: "day_high",
		Match: func(l Levels, dayHighPct, _ float64) bool {
			return math.Abs(l.HighPct-dayHighPct) < extremaTolerance
		},
		Select: func(l Levels) float64 { return l.HighPct },
	},
	{
		Name: "day_low",
		Match: func(l Levels, _, dayLowPct float64) bool {
			return math.Abs(l.LowPct-dayLowPct) < extremaTolerance
		},
		Select: func(l Levels) float64 { return l.LowPct },
	},
	{
		Name: "momentum",
		Match: func(l Levels, _, _ float64) bool {
			return math.Abs(l.HighPct) > math.Abs(l.LowPct) && math.Abs(l.HighPct) > trendMovePct
		},
		Select: func(l Levels) float64 { return l.HighPct },
	},
	{
		Name: "fade",
		Match: func(l Levels, _, _ float64) bool {
			return math.Abs(l.LowPct) > trendMovePct
		},
		Select: func(l Levels) float64 { return l.LowPct },
	},
	{
		Name: "volatile",
		Match: func(l Levels, _, _ float64) bool {
			return math.Abs(l.HighPct-l.LowPct) > volatileRangePct
		},
		Select: func(l Levels) float64 {
			if math.Abs(l.HighPct) > math.Abs(l.LowPct) {
				return l.HighPct
			}
			return l.LowPct
		},
	},
	{
		Name:   "blend",
		Match:  func(Levels, float64, float64) bool { return true },
		Select: func(l Levels) float64 { return 0.7*l.ClosePct + 0.3*l.MidPct },
	},
}

// SelectPrice returns the representative value for a bucket and the name of
// the rule that produced it.
func SelectPrice(l Levels, dayHighPct, dayLowPct float64) (float64, string) {
	for _, r := range Rules {
		if r.Match(l, dayHighPct, dayLowPct) {
			return r.Select(l), r.Name
		}
	}
	// Unreachable while the final rule matches everything.
	return l.ClosePct, ""
}
