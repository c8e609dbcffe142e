package normalize

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/session"
)

var est = time.FixedZone("EST", -5*3600)

func testWindow() session.Window {
	day := time.Date(2024, 3, 18, 0, 0, 0, 0, est)
	return session.NewWindow(day, est, session.Clock{Hour: 9, Minute: 30}, session.Clock{Hour: 16})
}

func minuteBar(w session.Window, minute int, o, h, l, c, v float64) models.Bar {
	return models.Bar{
		Timestamp: w.Start.Add(time.Duration(minute) * time.Minute),
		Open:      o, High: h, Low: l, Close: c, Volume: v,
	}
}

// sessionBars generates a full 09:30-16:00 session of minute bars with a
// morning spike and an afternoon fade.
func sessionBars(w session.Window) []models.Bar {
	var bars []models.Bar
	for i := 0; i <= 390; i++ {
		p := 2.0 * (1 + 0.3*math.Sin(float64(i)/40) - 0.0005*float64(i))
		bars = append(bars, minuteBar(w, i, p, p*1.01, p*0.99, p, 1000))
	}
	return bars
}

func TestResample(t *testing.T) {
	w := testWindow()
	bars := []models.Bar{
		minuteBar(w, -1, 9, 9, 9, 9, 500), // pre-market, ignored
		minuteBar(w, 0, 10, 11, 9.5, 10.5, 100),
		minuteBar(w, 4, 10.5, 12, 10, 11, 200),
		minuteBar(w, 1, 10.5, 10.8, 9, 10.2, 300),
		minuteBar(w, 5, 11, 11.5, 10.9, 11.2, 50),
		minuteBar(w, 15, 11.2, 11.3, 11.1, 11.1, 70),
	}

	got := Resample(bars, w, 5*time.Minute)
	want := []Bucket{
		{Start: w.Start, Open: 10, High: 12, Low: 9, Close: 11, Volume: 600},
		{Start: w.Start.Add(5 * time.Minute), Open: 11, High: 11.5, Low: 10.9, Close: 11.2, Volume: 50},
		{Start: w.Start.Add(15 * time.Minute), Open: 11.2, High: 11.3, Low: 11.1, Close: 11.1, Volume: 70},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resample() =\n%+v\nwant\n%+v", got, want)
	}

	if Resample(nil, w, 5*time.Minute) != nil {
		t.Error("expected nil buckets for no bars")
	}
}

func TestSelectPriceRules(t *testing.T) {
	tests := []struct {
		name     string
		levels   Levels
		dayHigh  float64
		dayLow   float64
		want     float64
		wantRule string
	}{
		{"bucket holds day high", Levels{HighPct: 20, LowPct: 15, ClosePct: 16}, 20.5, -10, 20, "day_high"},
		{"bucket holds day low", Levels{HighPct: 1, LowPct: -10, ClosePct: -9}, 30, -10.5, -10, "day_low"},
		{"upward momentum", Levels{HighPct: 5, LowPct: -1, ClosePct: 4}, 30, -20, 5, "momentum"},
		{"downward fade", Levels{HighPct: 1, LowPct: -4, ClosePct: -3}, 30, -20, -4, "fade"},
		{"volatile bucket", Levels{HighPct: 2.9, LowPct: -2.8, ClosePct: 0}, 30, -20, 2.9, "volatile"},
		{"normal trading blend", Levels{HighPct: 1, LowPct: -1, ClosePct: 0.5, MidPct: 0}, 30, -20, 0.35, "blend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := SelectPrice(tt.levels, tt.dayHigh, tt.dayLow)
			if rule != tt.wantRule {
				t.Errorf("rule = %q, want %q", rule, tt.wantRule)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRulesEndWithCatchAll(t *testing.T) {
	last := Rules[len(Rules)-1]
	if !last.Match(Levels{}, 0, 0) {
		t.Error("last rule must match every bucket")
	}
}

func TestNormalizeCurveProperties(t *testing.T) {
	w := testWindow()
	bars := sessionBars(w)
	n := NewNormalizer(5)

	curve, labels, err := n.Normalize(bars, w)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if err := curve.Validate(); err != nil {
		t.Fatalf("curve invalid: %v", err)
	}
	if curve.Len() != 79 {
		t.Errorf("curve length = %d, want 79 (78 buckets plus the 16:00 bar)", curve.Len())
	}
	if len(labels) != curve.Len() {
		t.Errorf("labels = %d, want %d", len(labels), curve.Len())
	}
	if labels[0] != "09:30" || labels[len(labels)-1] != "16:00" {
		t.Errorf("labels span %s..%s, want 09:30..16:00", labels[0], labels[len(labels)-1])
	}
	if curve.TimeProgress[0] != 0 || curve.TimeProgress[curve.Len()-1] != 1 {
		t.Errorf("progress span %v..%v, want 0..1", curve.TimeProgress[0], curve.TimeProgress[curve.Len()-1])
	}

	sess, _ := Summarize(bars)
	dayHighPct := pctFrom(sess.Open, sess.High)
	dayLowPct := pctFrom(sess.Open, sess.Low)
	maxPrice, minPrice := curve.PricePct[0], curve.PricePct[0]
	for _, p := range curve.PricePct {
		maxPrice = math.Max(maxPrice, p)
		minPrice = math.Min(minPrice, p)
	}
	if dayHighPct > 0 && maxPrice < 0.9*dayHighPct {
		t.Errorf("curve max %.3f cannot reach day high %.3f", maxPrice, dayHighPct)
	}
	if dayLowPct < 0 && minPrice > 0.9*dayLowPct {
		t.Errorf("curve min %.3f cannot reach day low %.3f", minPrice, dayLowPct)
	}

	again, againLabels, err := n.Normalize(bars, w)
	if err != nil {
		t.Fatalf("second Normalize() error: %v", err)
	}
	if !reflect.DeepEqual(curve, again) || !reflect.DeepEqual(labels, againLabels) {
		t.Error("normalizing the same bars twice produced different output")
	}
}

func TestNormalizeAnchorsLateStart(t *testing.T) {
	w := testWindow()
	bars := []models.Bar{
		minuteBar(w, 12, 10, 10.5, 9.8, 10.2, 100),
		minuteBar(w, 20, 10.2, 11, 10.1, 10.9, 100),
	}
	curve, labels, err := NewNormalizer(5).Normalize(bars, w)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if curve.Len() != 3 {
		t.Fatalf("curve length = %d, want 3", curve.Len())
	}
	if curve.TimeProgress[0] != 0 || curve.PricePct[0] != 0 || labels[0] != "09:30" {
		t.Errorf("anchor = (%v, %v, %s), want (0, 0, 09:30)", curve.TimeProgress[0], curve.PricePct[0], labels[0])
	}
	if labels[1] != "09:40" || labels[2] != "09:50" {
		t.Errorf("labels = %v", labels)
	}
	if err := curve.Validate(); err != nil {
		t.Errorf("curve invalid: %v", err)
	}
}

func TestNormalizerBucketWidth(t *testing.T) {
	tests := []struct {
		minutes int
		want    time.Duration
	}{
		{15, 15 * time.Minute},
		{5, 5 * time.Minute},
		{0, 5 * time.Minute},
		{-1, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := NewNormalizer(tt.minutes).BucketWidth(); got != tt.want {
			t.Errorf("NewNormalizer(%d).BucketWidth() = %v, want %v", tt.minutes, got, tt.want)
		}
	}
}

func TestNormalizeErrors(t *testing.T) {
	w := testWindow()
	n := NewNormalizer(5)

	if _, _, err := n.Normalize(nil, w); !errors.Is(err, ErrNoSessionBars) {
		t.Errorf("empty bars: err = %v, want ErrNoSessionBars", err)
	}
	bars := []models.Bar{minuteBar(w, 0, 0, 1, 0, 1, 10)}
	if _, _, err := n.Normalize(bars, w); !errors.Is(err, ErrInvalidOpen) {
		t.Errorf("zero open: err = %v, want ErrInvalidOpen", err)
	}
}

func TestLocateExtrema(t *testing.T) {
	w := testWindow()
	bars := []models.Bar{
		minuteBar(w, 0, 10, 10, 9, 9.5, 100),
		minuteBar(w, 39, 9.5, 15, 9.5, 14, 100),
		minuteBar(w, 195, 14, 15, 8, 12, 100), // ties the high later
		minuteBar(w, 300, 12, 12, 8, 8.5, 100),
	}
	rec := LocateExtrema(bars, w, 10)

	if math.Abs(rec.HighOfDayPct-50) > 1e-9 {
		t.Errorf("HighOfDayPct = %v, want 50", rec.HighOfDayPct)
	}
	if math.Abs(rec.LowOfDayPct+20) > 1e-9 {
		t.Errorf("LowOfDayPct = %v, want -20", rec.LowOfDayPct)
	}
	if rec.HodTime != "10:09" {
		t.Errorf("HodTime = %s, want 10:09 (earliest of tied highs)", rec.HodTime)
	}
	if math.Abs(rec.HodTimeFraction-0.1) > 1e-9 {
		t.Errorf("HodTimeFraction = %v, want 0.1", rec.HodTimeFraction)
	}
	if rec.LodTime != "12:45" || math.Abs(rec.LodTimeFraction-0.5) > 1e-9 {
		t.Errorf("LOD = %s at %v, want 12:45 at 0.5", rec.LodTime, rec.LodTimeFraction)
	}

	if got := LocateExtrema(nil, w, 10); got != (models.ExtremaRecord{}) {
		t.Errorf("LocateExtrema(nil) = %+v, want zero record", got)
	}
}

func TestSummarize(t *testing.T) {
	w := testWindow()
	bars := []models.Bar{
		minuteBar(w, 5, 11, 13, 10.5, 12, 20),
		minuteBar(w, 0, 10, 12, 9, 11, 10),
	}
	s, ok := Summarize(bars)
	if !ok {
		t.Fatal("Summarize() not ok")
	}
	want := Session{Open: 10, High: 13, Low: 9, Close: 12, Volume: 30}
	if s != want {
		t.Errorf("Summarize() = %+v, want %+v", s, want)
	}
	if _, ok := Summarize(nil); ok {
		t.Error("Summarize(nil) should not be ok")
	}
}
