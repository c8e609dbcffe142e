// Package session models the regular trading session: the civil-time window a
// day's bars are normalized against, the market-hours filter that splits raw
// bars into pre-market and session bars, and the exchange trading calendar.
package session

import (
	"fmt"
	"math"
	"time"
)

// Clock is a time of day in minutes precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Window is the regular session of one date, in a fixed civil timezone.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds the session window for the calendar date of day, interpreted in loc.
func NewWindow(day time.Time, loc *time.Location, start, end Clock) Window {
	y, m, d := day.Date()
	return Window{
		Start: time.Date(y, m, d, start.Hour, start.Minute, 0, 0, loc),
		End:   time.Date(y, m, d, end.Hour, end.Minute, 0, 0, loc),
	}
}

// Length returns the session duration.
func (w Window) Length() time.Duration {
	return w.End.Sub(w.Start)
}

// Progress returns (t - start) / (end - start), clamped to [0,1].
func (w Window) Progress(t time.Time) float64 {
	total := w.Length()
	if total <= 0 {
		return 0
	}
	p := float64(t.Sub(w.Start)) / float64(total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// At returns the instant that is the given fraction of the way through the session.
func (w Window) At(fraction float64) time.Time {
	return w.Start.Add(time.Duration(math.Round(fraction * float64(w.Length()))))
}

// ClockAt formats At(fraction) as "HH:MM" in the session timezone.
func (w Window) ClockAt(fraction float64) string {
	return w.At(fraction).In(w.Start.Location()).Format("15:04")
}

// Contains reports whether start <= t <= end.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
