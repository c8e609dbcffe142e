package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Traderyo93/gapdash/internal/aggregate"
	"github.com/Traderyo93/gapdash/internal/logger"
	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/session"
	"github.com/Traderyo93/gapdash/internal/storage"
)

// DateError represents a per-date failure during a run
type DateError struct {
	Date string
	Err  error
}

func (e DateError) Error() string {
	return fmt.Sprintf("scan error for %s: %v", e.Date, e.Err)
}

func (e DateError) Unwrap() error {
	return e.Err
}

// Notifier receives the report of a run that found new events.
type Notifier interface {
	SendRunSummary(report *RunReport) error
}

// RunnerConfig controls a run.
type RunnerConfig struct {
	LookbackTradingDays int
	RetentionDays       int
	CachePath           string
	Windows             aggregate.Options
}

// RunReport summarizes one run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    []DateResult
	Skipped    int // dates already stored by an earlier run
	Errors     []DateError
	NewEvents  int
	Stored     int // events in storage after pruning
	Pruned     int64
	Dashboard  *models.Dashboard
}

// Latest returns the most recent scanned date that produced events.
func (r *RunReport) Latest() (DateResult, bool) {
	for i := len(r.Scanned) - 1; i >= 0; i-- {
		if len(r.Scanned[i].Qualified) > 0 {
			return r.Scanned[i], true
		}
	}
	return DateResult{}, false
}

// Runner executes full update runs.
type Runner struct {
	scanner    *Scanner
	calendar   *session.Calendar
	store      *storage.Storage
	aggregator *aggregate.Aggregator
	notifier   Notifier
	cfg        RunnerConfig
}

// NewRunner creates a runner. notifier may be nil.
func NewRunner(scanner *Scanner, cal *session.Calendar, store *storage.Storage, aggregator *aggregate.Aggregator, notifier Notifier, cfg RunnerConfig) *Runner {
	return &Runner{
		scanner:    scanner,
		calendar:   cal,
		store:      store,
		aggregator: aggregator,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// Run scans every closed trading session of the lookback window that is not
// yet stored, then recomputes the dashboard from all stored events and writes
// the cache file. The current date is rescanned on every run once its session
// has closed, and is never marked as done.
//
// Per-date failures are collected in the report. Run returns ErrNoMarketData
// when every date it attempted failed.
func (r *Runner) Run(ctx context.Context, now time.Time) (*RunReport, error) {
	report := &RunReport{StartedAt: now}

	today := now.In(r.calendar.Location())
	todayKey := today.Format(models.DateLayout)
	days := r.calendar.TradingDays(today, r.cfg.LookbackTradingDays)
	if len(days) == 0 {
		return report, fmt.Errorf("no trading days in lookback window")
	}
	logger.Info("Update window: %s to %s (%d trading days)",
		days[0].Format(models.DateLayout), days[len(days)-1].Format(models.DateLayout), len(days))

	attempted, failed := 0, 0
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		key := day.Format(models.DateLayout)
		if key == todayKey && now.Before(r.scanner.Qualifier().Window(day).End) {
			logger.Debug("Skipping %s: session not closed yet", key)
			continue
		}
		if key != todayKey {
			scanned, err := r.store.IsScanned(key)
			if err != nil {
				return report, fmt.Errorf("failed to check scan state: %w", err)
			}
			if scanned {
				report.Skipped++
				continue
			}
		}

		attempted++
		result, err := r.scanner.ScanDate(ctx, day)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			failed++
			report.Errors = append(report.Errors, DateError{Date: key, Err: err})
			logger.Warn("Failed to scan %s: %v", key, err)
			continue
		}

		if err := r.store.SaveEvents(result.Qualified); err != nil {
			return report, fmt.Errorf("failed to save events for %s: %w", key, err)
		}
		if key != todayKey {
			if err := r.store.MarkScanned(key, result.Candidates, len(result.Qualified)); err != nil {
				return report, fmt.Errorf("failed to record scan of %s: %w", key, err)
			}
		}

		report.Scanned = append(report.Scanned, result)
		report.NewEvents += len(result.Qualified)
		logger.Info("Scanned %s: %d candidates, %d qualified, %d fetch failures",
			key, result.Candidates, len(result.Qualified), len(result.Failures))
	}

	if attempted > 0 && failed == attempted {
		return report, fmt.Errorf("%w: all %d scanned dates failed", ErrNoMarketData, attempted)
	}

	cutoff := today.AddDate(0, 0, -r.cfg.RetentionDays).Format(models.DateLayout)
	pruned, err := r.store.PruneBefore(cutoff)
	if err != nil {
		return report, fmt.Errorf("failed to prune history: %w", err)
	}
	report.Pruned = pruned

	stored, err := r.store.CountEvents()
	if err != nil {
		return report, fmt.Errorf("failed to count events: %w", err)
	}
	report.Stored = stored

	events, err := r.store.LoadEvents(days[0].Format(models.DateLayout), todayKey)
	if err != nil {
		return report, fmt.Errorf("failed to load events: %w", err)
	}

	dashboard := r.aggregator.BuildDashboard(events, today, r.cfg.Windows)
	if err := storage.SaveDashboard(r.cfg.CachePath, &dashboard); err != nil {
		return report, fmt.Errorf("failed to write dashboard: %w", err)
	}
	report.RunID = dashboard.RunID
	report.Dashboard = &dashboard
	report.FinishedAt = time.Now()

	logger.Info("Dashboard %s written to %s: %d gappers, %d months, %d weeks, %d days",
		dashboard.RunID, r.cfg.CachePath, dashboard.TotalGappers,
		len(dashboard.Monthly), len(dashboard.Weekly), len(dashboard.Daily))

	if r.notifier != nil && report.NewEvents > 0 {
		if err := r.notifier.SendRunSummary(report); err != nil {
			logger.Warn("Failed to send run summary: %v", err)
		}
	}
	return report, nil
}
