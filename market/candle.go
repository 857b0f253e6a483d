package market

import (
	"errors"
	"time"
)

// ErrShortSeries is returned when a candle series is too short for the
// requested computation. Callers generally fall back to neutral defaults
// rather than propagating it.
var ErrShortSeries = errors.New("market: not enough candles")

// Candle represents OHLCV (Open, High, Low, Close, Volume) candlestick data
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is a chronologically ordered candle slice, oldest first.
type Series []Candle

// Closes returns the close prices of the series, oldest first.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Last returns the most recent n candles. If the series is shorter than n
// the whole series is returned.
func (s Series) Last(n int) Series {
	if n <= 0 {
		return nil
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// HighestHigh returns the highest high over the most recent n candles.
func (s Series) HighestHigh(n int) float64 {
	sub := s.Last(n)
	if len(sub) == 0 {
		return 0
	}
	h := sub[0].High
	for _, c := range sub[1:] {
		if c.High > h {
			h = c.High
		}
	}
	return h
}

// LowestLow returns the lowest low over the most recent n candles.
func (s Series) LowestLow(n int) float64 {
	sub := s.Last(n)
	if len(sub) == 0 {
		return 0
	}
	l := sub[0].Low
	for _, c := range sub[1:] {
		if c.Low < l {
			l = c.Low
		}
	}
	return l
}
