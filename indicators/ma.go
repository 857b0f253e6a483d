package indicators

import (
	"fmt"

	"github.com/rustyeddy/splitbot/market"
)

// SMA calculates the Simple Moving Average of closes over the given period,
// ending at the last candle of the series.
func SMA(candles market.Series, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period {
		return 0, fmt.Errorf("%w: need %d, got %d", market.ErrShortSeries, period, len(candles))
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), nil
}

// EMA calculates the Exponential Moving Average of closes over the given
// period, seeded with the SMA of the first period candles.
func EMA(candles market.Series, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period {
		return 0, fmt.Errorf("%w: need %d, got %d", market.ErrShortSeries, period, len(candles))
	}

	multiplier := 2.0 / float64(period+1)

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += candles[i].Close
	}
	ema := sma / float64(period)

	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close-ema)*multiplier + ema
	}
	return ema, nil
}

// Return computes the fractional return over the last n periods:
// close[last] / close[last-n] - 1.
func Return(candles market.Series, n int) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("n must be positive, got %d", n)
	}
	if len(candles) < n+1 {
		return 0, fmt.Errorf("%w: need %d, got %d", market.ErrShortSeries, n+1, len(candles))
	}
	base := candles[len(candles)-1-n].Close
	if base == 0 {
		return 0, nil
	}
	return candles[len(candles)-1].Close/base - 1, nil
}

// VolumeRatio compares the latest volume to the average volume of the
// preceding n candles.
func VolumeRatio(candles market.Series, n int) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("n must be positive, got %d", n)
	}
	if len(candles) < n+1 {
		return 0, fmt.Errorf("%w: need %d, got %d", market.ErrShortSeries, n+1, len(candles))
	}
	sum := 0.0
	for i := len(candles) - 1 - n; i < len(candles)-1; i++ {
		sum += candles[i].Volume
	}
	avg := sum / float64(n)
	if avg == 0 {
		return 0, nil
	}
	return candles[len(candles)-1].Volume / avg, nil
}
