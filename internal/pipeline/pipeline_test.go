package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Traderyo93/gapdash/internal/aggregate"
	"github.com/Traderyo93/gapdash/internal/gap"
	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/normalize"
	"github.com/Traderyo93/gapdash/internal/session"
	"github.com/Traderyo93/gapdash/internal/storage"
)

var (
	sessionOpen  = session.Clock{Hour: 9, Minute: 30}
	sessionClose = session.Clock{Hour: 16}
	scanDay      = time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
)

const minPreMarket = 1_000_000

// dayBars builds an 08:00 pre-market bar, 79 five-minute session bars from
// 09:30 to 16:00 and one after-hours bar. The high of day is set at 10:10.
func dayBars(day time.Time, open, preMarketVolume float64) []models.Bar {
	at := func(h, m int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, time.UTC)
	}
	bars := []models.Bar{{Timestamp: at(8, 0), Open: open, High: open, Low: open, Close: open, Volume: preMarketVolume}}
	start := at(9, 30)
	for i := 0; i <= 78; i++ {
		c := open * (1 + 0.001*float64(i))
		b := models.Bar{
			Timestamp: start.Add(time.Duration(i*5) * time.Minute),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    10_000,
		}
		if i == 0 {
			b.Open, b.High, b.Low = open, open*1.01, open*0.99
		}
		if i == 8 {
			b.High = open * 1.3
		}
		bars = append(bars, b)
	}
	bars = append(bars, models.Bar{Timestamp: at(17, 0), Open: open * 2, High: open * 2, Low: open * 2, Close: open * 2, Volume: 5})
	return bars
}

type fakeActions struct {
	split bool
	err   error
}

func (f *fakeActions) HasSplit(ctx context.Context, ticker string, from, to time.Time) (bool, error) {
	return f.split, f.err
}

type fakeDaily struct {
	byDate   map[string]map[string]DailyQuote
	fallback map[string]DailyQuote
	err      error
}

func (f *fakeDaily) GroupedDaily(ctx context.Context, date time.Time) (map[string]DailyQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	if q, ok := f.byDate[date.Format(models.DateLayout)]; ok {
		return q, nil
	}
	return f.fallback, nil
}

type fakeBars struct {
	mu    sync.Mutex
	bars  map[string][]models.Bar
	errs  map[string]error
	calls map[string]int
}

func (f *fakeBars) MinuteBars(ctx context.Context, ticker string, date time.Time) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[ticker]++
	if err := f.errs[ticker]; err != nil {
		return nil, err
	}
	return f.bars[ticker], nil
}

func (f *fakeBars) callCount(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ticker]
}

func newQualifier(actions gap.CorporateActions) *Qualifier {
	classifier := gap.NewClassifier(gap.Thresholds{MinGapPct: 50, MinPrice: 0.3}, actions, 40, 3)
	return NewQualifier(QualifierConfig{
		Location:           time.UTC,
		SessionStart:       sessionOpen,
		SessionEnd:         sessionClose,
		GapThresholdPct:    50,
		MinOpenPrice:       0.3,
		MinPreMarketVolume: minPreMarket,
	}, classifier, normalize.NewNormalizer(5))
}

func TestQualifyProducesEvent(t *testing.T) {
	q := newQualifier(nil)

	event, verdict, err := q.Qualify(context.Background(), Input{
		Ticker:        "AAAA",
		Date:          scanDay,
		PreviousClose: 2,
		Volume:        2_000_000,
		Bars:          dayBars(scanDay, 3, 1_500_000),
	})
	if err != nil {
		t.Fatalf("Qualify() error = %v", err)
	}
	if !verdict.Qualified {
		t.Fatalf("verdict = %s, want qualified", verdict)
	}

	if event.Date != "2024-03-06" || event.Ticker != "AAAA" {
		t.Errorf("event key = %s", event.Key())
	}
	if event.GapPct != 50 {
		t.Errorf("GapPct = %v, want 50", event.GapPct)
	}
	if event.Open != 3 || event.PreMarketVolume != 1_500_000 {
		t.Errorf("Open = %v, PreMarketVolume = %v", event.Open, event.PreMarketVolume)
	}
	if event.Curve.Len() != 79 {
		t.Fatalf("curve length = %d, want 79", event.Curve.Len())
	}
	if event.TimeLabels[0] != "09:30" || event.TimeLabels[78] != "16:00" {
		t.Errorf("labels = %s..%s", event.TimeLabels[0], event.TimeLabels[78])
	}
	if event.Extrema.HodTime != "10:10" || event.Extrema.LodTime != "09:30" {
		t.Errorf("HOD %s, LOD %s", event.Extrema.HodTime, event.Extrema.LodTime)
	}
	if !reflect.DeepEqual(event.PriceValues, event.Curve.PricePct) {
		t.Error("PriceValues differ from curve prices")
	}
	if event.Volume != 79*10_000 {
		t.Errorf("Volume = %v, after-hours bar must be excluded", event.Volume)
	}
}

func TestQualifyVerdicts(t *testing.T) {
	tests := []struct {
		name    string
		actions gap.CorporateActions
		prev    float64
		bars    []models.Bar
		want    models.Reason
	}{
		{
			name: "just below threshold",
			prev: 2,
			bars: dayBars(scanDay, 2.998, 1_500_000),
			want: models.ReasonBelowGapThreshold,
		},
		{
			name: "thin pre-market",
			prev: 2,
			bars: dayBars(scanDay, 3, 10),
			want: models.ReasonBelowPreMarketVolume,
		},
		{
			name: "no bars",
			prev: 2,
			want: models.ReasonInsufficientData,
		},
		{
			name:    "split on record",
			actions: &fakeActions{split: true},
			prev:    2,
			bars:    dayBars(scanDay, 3, 1_500_000),
			want:    models.ReasonCorporateAction,
		},
		{
			name: "probable reverse split",
			prev: 2,
			bars: dayBars(scanDay, 6, 1_500_000),
			want: models.ReasonProbableSplit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQualifier(tt.actions)
			_, verdict, err := q.Qualify(context.Background(), Input{
				Ticker:        "TEST",
				Date:          scanDay,
				PreviousClose: tt.prev,
				Volume:        2_000_000,
				Bars:          tt.bars,
			})
			if err != nil {
				t.Fatalf("Qualify() error = %v", err)
			}
			if verdict.Qualified || verdict.Reason != tt.want {
				t.Errorf("verdict = %s, want %s", verdict, tt.want)
			}
		})
	}
}

func TestQualifyLookupFailureKeepsHeuristic(t *testing.T) {
	q := newQualifier(&fakeActions{err: errors.New("timeout")})

	event, verdict, err := q.Qualify(context.Background(), Input{
		Ticker:        "AAAA",
		Date:          scanDay,
		PreviousClose: 2,
		Volume:        2_000_000,
		Bars:          dayBars(scanDay, 3, 1_500_000),
	})
	if err == nil {
		t.Error("expected lookup error to be reported")
	}
	if !verdict.Qualified || event.Ticker != "AAAA" {
		t.Errorf("verdict = %s, want qualified from heuristic", verdict)
	}
}

func quotes(pairs map[string][2]float64) map[string]DailyQuote {
	out := make(map[string]DailyQuote, len(pairs))
	for ticker, p := range pairs {
		out[ticker] = DailyQuote{Ticker: ticker, Open: p[0], High: p[0], Low: p[0], Close: p[1], Volume: 2_000_000}
	}
	return out
}

// marketFixture returns sources where 2024-03-06 has exactly one qualifying
// gapper (AAAA) and every other date is flat.
func marketFixture() (*fakeDaily, *fakeBars) {
	flat := quotes(map[string][2]float64{
		"AAAA":    {2, 2},
		"BBBB":    {2, 2},
		"EEEE.WS": {2, 2},
		"FFFF":    {2, 2},
		"GGGG":    {2, 2},
		"HHHH":    {2, 2},
		"PENY":    {0.1, 0.1},
	})
	daily := &fakeDaily{
		byDate: map[string]map[string]DailyQuote{
			"2024-03-06": quotes(map[string][2]float64{
				"AAAA":    {3, 3.2},
				"BBBB":    {2.998, 2.5},
				"EEEE.WS": {3, 3},
				"FFFF":    {2.5, 2.5},
				"GGGG":    {3, 3},
				"HHHH":    {3, 3},
				"PENY":    {0.2, 0.2},
				"NEWW":    {5, 5},
			}),
		},
		fallback: flat,
	}
	bars := &fakeBars{
		bars: map[string][]models.Bar{
			"AAAA": dayBars(scanDay, 3, 1_500_000),
			"HHHH": dayBars(scanDay, 3, 10),
		},
		errs: map[string]error{"GGGG": errors.New("HTTP 502")},
	}
	return daily, bars
}

func newScanner(daily DailySource, bars BarSource) *Scanner {
	symbols := gap.NewSymbolFilter(5, []string{".WS"}, nil)
	return NewScanner(daily, bars, session.NewWeekdayCalendar(time.UTC), symbols, newQualifier(nil), ScannerConfig{
		GapThresholdPct: 50,
		MinOpenPrice:    0.3,
		MaxConcurrency:  4,
	})
}

func TestScanDate(t *testing.T) {
	daily, bars := marketFixture()
	s := newScanner(daily, bars)

	result, err := s.ScanDate(context.Background(), scanDay)
	if err != nil {
		t.Fatalf("ScanDate() error = %v", err)
	}
	if result.PreviousDate != "2024-03-05" {
		t.Errorf("PreviousDate = %s", result.PreviousDate)
	}
	if result.Candidates != 3 {
		t.Errorf("Candidates = %d, want 3 (AAAA, GGGG, HHHH)", result.Candidates)
	}
	if len(result.Qualified) != 1 || result.Qualified[0].Ticker != "AAAA" {
		t.Fatalf("Qualified = %+v", result.Qualified)
	}
	if len(result.Failures) != 1 || result.Failures[0].Ticker != "GGGG" {
		t.Errorf("Failures = %+v", result.Failures)
	}
	want := map[models.Reason]int{
		models.ReasonExcludedSymbol:       1,
		models.ReasonBelowPreMarketVolume: 1,
	}
	if !reflect.DeepEqual(result.Rejected, want) {
		t.Errorf("Rejected = %v, want %v", result.Rejected, want)
	}
	if bars.callCount("BBBB") != 0 || bars.callCount("PENY") != 0 || bars.callCount("NEWW") != 0 {
		t.Error("minute bars fetched for a ticker that failed the daily screen")
	}
}

func TestScanDateNoData(t *testing.T) {
	s := newScanner(&fakeDaily{}, &fakeBars{})

	_, err := s.ScanDate(context.Background(), scanDay)
	if !errors.Is(err, ErrNoMarketData) {
		t.Errorf("ScanDate() error = %v, want ErrNoMarketData", err)
	}
}

type recordingNotifier struct {
	reports []*RunReport
}

func (n *recordingNotifier) SendRunSummary(report *RunReport) error {
	n.reports = append(n.reports, report)
	return nil
}

func newRunner(t *testing.T, daily DailySource, bars BarSource, notifier Notifier) (*Runner, *storage.Storage, string) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cachePath := filepath.Join(t.TempDir(), "dashboard.json")
	r := NewRunner(newScanner(daily, bars), session.NewWeekdayCalendar(time.UTC), store,
		aggregate.NewAggregator(78, sessionOpen, sessionClose), notifier, RunnerConfig{
			LookbackTradingDays: 3,
			RetentionDays:       365,
			CachePath:           cachePath,
			Windows:             aggregate.Options{Days: 5, Weeks: 4, Months: 3, RecentGaps: 50},
		})
	return r, store, cachePath
}

func TestRunnerRun(t *testing.T) {
	daily, bars := marketFixture()
	notifier := &recordingNotifier{}
	r, _, cachePath := newRunner(t, daily, bars, notifier)
	now := time.Date(2024, 3, 6, 21, 0, 0, 0, time.UTC)

	report, err := r.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Scanned) != 3 || report.NewEvents != 1 {
		t.Fatalf("scanned %d dates, %d new events", len(report.Scanned), report.NewEvents)
	}
	if report.Stored != 1 {
		t.Errorf("Stored = %d, want 1", report.Stored)
	}
	if latest, ok := report.Latest(); !ok || latest.Date != "2024-03-06" {
		t.Errorf("Latest() = %s, %v", latest.Date, ok)
	}
	if len(notifier.reports) != 1 {
		t.Errorf("notifier called %d times, want 1", len(notifier.reports))
	}

	d, err := storage.LoadDashboard(cachePath)
	if err != nil {
		t.Fatalf("LoadDashboard() error = %v", err)
	}
	if d.RunID != report.RunID || d.TotalGappers != 1 {
		t.Errorf("dashboard run %s, gappers %d", d.RunID, d.TotalGappers)
	}
	day, ok := d.Daily["2024-03-06"]
	if !ok || day.GapperCount != 1 {
		t.Fatalf("daily aggregate = %+v", day)
	}
	if len(d.LastGaps) != 1 || d.LastGaps[0].Ticker != "AAAA" {
		t.Errorf("LastGaps = %+v", d.LastGaps)
	}

	// Closed dates are not fetched again; the current date is.
	report, err = r.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Skipped != 2 || len(report.Scanned) != 1 {
		t.Errorf("second run skipped %d, scanned %d", report.Skipped, len(report.Scanned))
	}
	if n := bars.callCount("AAAA"); n != 2 {
		t.Errorf("AAAA fetched %d times, want 2", n)
	}
	if report.Stored != 1 {
		t.Errorf("Stored after rescan = %d, want 1", report.Stored)
	}
}

func TestRunnerSkipsOpenSession(t *testing.T) {
	daily, bars := marketFixture()
	r, _, _ := newRunner(t, daily, bars, nil)

	report, err := r.Run(context.Background(), time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, res := range report.Scanned {
		if res.Date == "2024-03-06" {
			t.Error("scanned a date whose session has not closed")
		}
	}
	if len(report.Scanned) != 2 || report.NewEvents != 0 {
		t.Errorf("scanned %d dates, %d events", len(report.Scanned), report.NewEvents)
	}
	if report.Dashboard == nil || report.Dashboard.TotalGappers != 0 {
		t.Error("dashboard should be written with no events")
	}
}

func TestRunnerAllDatesFailed(t *testing.T) {
	r, _, cachePath := newRunner(t, &fakeDaily{err: errors.New("connection refused")}, &fakeBars{}, nil)

	report, err := r.Run(context.Background(), time.Date(2024, 3, 6, 21, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrNoMarketData) {
		t.Fatalf("Run() error = %v, want ErrNoMarketData", err)
	}
	if len(report.Errors) != 3 {
		t.Errorf("Errors = %d, want 3", len(report.Errors))
	}
	if _, err := storage.LoadDashboard(cachePath); !errors.Is(err, storage.ErrNoDashboard) {
		t.Errorf("dashboard written after failed run: %v", err)
	}
}
