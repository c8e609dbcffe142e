package models

import (
	"errors"
	"time"
)

// Bar is one OHLCV sample for a fixed interval. Bars are immutable once fetched.
type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// BarFromMillis builds a bar from a provider timestamp in epoch milliseconds.
func BarFromMillis(ms int64, open, high, low, close, volume float64) Bar {
	return Bar{
		Timestamp: time.UnixMilli(ms),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}

// Validate checks that the bar is internally consistent
func (b *Bar) Validate() error {
	if b.Timestamp.IsZero() {
		return errors.New("bar timestamp must be set")
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return errors.New("bar prices must be positive")
	}
	if b.High < b.Low {
		return errors.New("bar high must be >= low")
	}
	if b.Volume < 0 {
		return errors.New("bar volume must not be negative")
	}
	return nil
}
