package pipeline

import (
	"context"
	"time"

	"github.com/Traderyo93/gapdash/internal/gap"
	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/normalize"
	"github.com/Traderyo93/gapdash/internal/session"
)

// QualifierConfig configures the qualification chain.
type QualifierConfig struct {
	Location           *time.Location
	SessionStart       session.Clock
	SessionEnd         session.Clock
	GapThresholdPct    float64
	MinOpenPrice       float64
	MinPreMarketVolume float64
}

// Input is everything needed to qualify one ticker-date.
type Input struct {
	Ticker        string
	Date          time.Time // session date; only its calendar date is used
	PreviousClose float64
	Volume        float64 // full-day volume, used by the illiquid-print rule
	Bars          []models.Bar
}

// Qualifier runs the per-event chain. It holds no mutable state and is safe
// for concurrent use.
type Qualifier struct {
	cfg        QualifierConfig
	classifier *gap.Classifier
	normalizer *normalize.Normalizer
}

// NewQualifier creates a qualifier.
func NewQualifier(cfg QualifierConfig, classifier *gap.Classifier, normalizer *normalize.Normalizer) *Qualifier {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Qualifier{cfg: cfg, classifier: classifier, normalizer: normalizer}
}

// Window returns the session window of date.
func (q *Qualifier) Window(date time.Time) session.Window {
	return session.NewWindow(date, q.cfg.Location, q.cfg.SessionStart, q.cfg.SessionEnd)
}

// Qualify turns one ticker-date into a GapEvent or a disqualifying verdict.
// The returned error is non-nil only when the corporate-actions lookup failed
// and the heuristic verdict was used instead; it is informational.
func (q *Qualifier) Qualify(ctx context.Context, in Input) (models.GapEvent, models.Verdict, error) {
	w := q.Window(in.Date)

	sessionBars, preMarketVolume, verdict := session.FilterMarketHours(in.Bars, w, q.cfg.MinPreMarketVolume)
	if !verdict.Qualified {
		return models.GapEvent{}, verdict, nil
	}
	sess, _ := normalize.Summarize(sessionBars)

	volume := in.Volume
	if volume <= 0 {
		volume = sess.Volume + preMarketVolume
	}
	verdict, lookupErr := q.classifier.Classify(ctx, gap.Candidate{
		Ticker:        in.Ticker,
		Date:          in.Date,
		Open:          sess.Open,
		PreviousClose: in.PreviousClose,
		Volume:        volume,
	})
	if !verdict.Qualified {
		return models.GapEvent{}, verdict, lookupErr
	}

	curve, labels, err := q.normalizer.Normalize(sessionBars, w)
	if err != nil {
		return models.GapEvent{}, models.Disqualified(models.ReasonInsufficientData, "%v", err), lookupErr
	}
	extrema := normalize.LocateExtrema(sessionBars, w, sess.Open)

	event := models.GapEvent{
		Ticker:          in.Ticker,
		Date:            in.Date.Format(models.DateLayout),
		PreviousClose:   in.PreviousClose,
		Open:            sess.Open,
		High:            sess.High,
		Low:             sess.Low,
		Close:           sess.Close,
		GapPct:          gap.Pct(sess.Open, in.PreviousClose),
		OpenToClosePct:  gap.Pct(sess.Close, sess.Open),
		PreMarketVolume: preMarketVolume,
		Volume:          sess.Volume,
		DollarVolume:    sess.Volume * sess.Open,
		Extrema:         extrema,
		Curve:           curve,
		TimeLabels:      labels,
		PriceValues:     append([]float64(nil), curve.PricePct...),
	}
	if err := event.Validate(q.cfg.GapThresholdPct, q.cfg.MinOpenPrice, q.cfg.MinPreMarketVolume); err != nil {
		return models.GapEvent{}, models.Disqualified(models.ReasonInsufficientData, "%v", err), lookupErr
	}
	return event, models.Qualified(), lookupErr
}
