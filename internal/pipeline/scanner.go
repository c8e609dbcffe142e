package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Traderyo93/gapdash/internal/gap"
	"github.com/Traderyo93/gapdash/internal/logger"
	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/session"
)

// ErrNoMarketData is returned when a data source has nothing for a date, or
// when no date of a run produced any raw data.
var ErrNoMarketData = errors.New("no market data")

// ScannerConfig holds the candidate screen applied to grouped daily bars.
type ScannerConfig struct {
	GapThresholdPct float64
	MinOpenPrice    float64
	MaxConcurrency  int
}

// Candidate is a ticker whose daily open gapped past the screen.
type Candidate struct {
	Ticker        string
	PreviousClose float64
	Open          float64
	GapPct        float64
	Volume        float64
}

// TickerError is a data-source failure for one candidate.
type TickerError struct {
	Ticker string
	Err    error
}

func (e TickerError) Error() string {
	return fmt.Sprintf("fetch error for %s: %v", e.Ticker, e.Err)
}

// DateResult summarizes the scan of one date.
type DateResult struct {
	Date         string
	PreviousDate string
	Candidates   int
	Qualified    []models.GapEvent
	Rejected     map[models.Reason]int
	Failures     []TickerError
}

// Scanner finds and qualifies the gappers of a date.
type Scanner struct {
	daily     DailySource
	bars      BarSource
	calendar  *session.Calendar
	symbols   *gap.SymbolFilter
	qualifier *Qualifier
	cfg       ScannerConfig
}

// NewScanner creates a scanner.
func NewScanner(daily DailySource, bars BarSource, cal *session.Calendar, symbols *gap.SymbolFilter, qualifier *Qualifier, cfg ScannerConfig) *Scanner {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	return &Scanner{
		daily:     daily,
		bars:      bars,
		calendar:  cal,
		symbols:   symbols,
		qualifier: qualifier,
		cfg:       cfg,
	}
}

// Qualifier returns the per-event chain used by the scanner.
func (s *Scanner) Qualifier() *Qualifier {
	return s.qualifier
}

type outcome struct {
	candidate Candidate
	event     models.GapEvent
	verdict   models.Verdict
	fetchErr  error
	lookupErr error
}

// ScanDate scans one trading date. It fails only when the grouped daily data
// of the date or of its previous trading day cannot be obtained; per-ticker
// failures are reported in DateResult.Failures.
func (s *Scanner) ScanDate(ctx context.Context, date time.Time) (DateResult, error) {
	result := DateResult{
		Date:     date.Format(models.DateLayout),
		Rejected: make(map[models.Reason]int),
	}

	prev, ok := s.calendar.PreviousTradingDay(date)
	if !ok {
		return result, fmt.Errorf("no previous trading day before %s", result.Date)
	}
	result.PreviousDate = prev.Format(models.DateLayout)

	current, err := s.daily.GroupedDaily(ctx, date)
	if err != nil {
		return result, fmt.Errorf("failed to fetch grouped daily for %s: %w", result.Date, err)
	}
	if len(current) == 0 {
		return result, fmt.Errorf("%w for %s", ErrNoMarketData, result.Date)
	}
	previous, err := s.daily.GroupedDaily(ctx, prev)
	if err != nil {
		return result, fmt.Errorf("failed to fetch grouped daily for %s: %w", result.PreviousDate, err)
	}
	if len(previous) == 0 {
		return result, fmt.Errorf("%w for %s", ErrNoMarketData, result.PreviousDate)
	}

	candidates := s.Candidates(current, previous, result.Rejected)
	result.Candidates = len(candidates)
	logger.Debug("%s: %d gap candidates against %s", result.Date, len(candidates), result.PreviousDate)

	p := pool.NewWithResults[outcome]().WithMaxGoroutines(s.cfg.MaxConcurrency).WithContext(ctx)
	for _, c := range candidates {
		p.Go(func(ctx context.Context) (outcome, error) {
			return s.process(ctx, c, date), nil
		})
	}
	outcomes, err := p.Wait()
	if err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].candidate.Ticker < outcomes[j].candidate.Ticker
	})
	for _, o := range outcomes {
		ticker := o.candidate.Ticker
		if o.fetchErr != nil {
			result.Failures = append(result.Failures, TickerError{Ticker: ticker, Err: o.fetchErr})
			logger.Warn("%s %s: %v", result.Date, ticker, o.fetchErr)
			continue
		}
		if o.lookupErr != nil {
			logger.Warn("%s %s: %v, using heuristic verdict", result.Date, ticker, o.lookupErr)
		}
		if !o.verdict.Qualified {
			result.Rejected[o.verdict.Reason]++
			logger.Debug("%s %s rejected: %s", result.Date, ticker, o.verdict)
			continue
		}
		result.Qualified = append(result.Qualified, o.event)
		logger.Debug("%s %s qualified: gap %.1f%%, O-to-C %.1f%%, HOD %s",
			result.Date, ticker, o.event.GapPct, o.event.OpenToClosePct, o.event.Extrema.HodTime)
	}
	return result, nil
}

// Candidates screens the current-date opens against previous-date closes:
// gap at or above the threshold, open at or above the price floor, and an
// allowed symbol. Excluded symbols that passed the gap screen are counted in
// rejected. Candidates are ordered by ticker.
func (s *Scanner) Candidates(current, previous map[string]DailyQuote, rejected map[models.Reason]int) []Candidate {
	var out []Candidate
	for ticker, q := range current {
		prev, ok := previous[ticker]
		if !ok || prev.Close <= 0 || q.Open <= 0 {
			continue
		}
		gapPct := gap.Pct(q.Open, prev.Close)
		if gapPct < s.cfg.GapThresholdPct || q.Open < s.cfg.MinOpenPrice {
			continue
		}
		if s.symbols != nil && !s.symbols.Allowed(ticker) {
			if rejected != nil {
				rejected[models.ReasonExcludedSymbol]++
			}
			continue
		}
		out = append(out, Candidate{
			Ticker:        ticker,
			PreviousClose: prev.Close,
			Open:          q.Open,
			GapPct:        gapPct,
			Volume:        q.Volume,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func (s *Scanner) process(ctx context.Context, c Candidate, date time.Time) outcome {
	o := outcome{candidate: c}
	bars, err := s.bars.MinuteBars(ctx, c.Ticker, date)
	if err != nil {
		o.fetchErr = err
		return o
	}
	o.event, o.verdict, o.lookupErr = s.qualifier.Qualify(ctx, Input{
		Ticker:        c.Ticker,
		Date:          date,
		PreviousClose: c.PreviousClose,
		Volume:        c.Volume,
		Bars:          bars,
	})
	return o
}
