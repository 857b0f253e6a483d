package indicators

import (
	"fmt"

	"github.com/rustyeddy/splitbot/market"
)

// RSI calculates the Relative Strength Index over the given period using
// Wilder's smoothing. Returns a value in [0,100].
func RSI(candles market.Series, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("%w: need %d, got %d", market.ErrShortSeries, period+1, len(candles))
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		diff := candles[i].Close - candles[i-1].Close
		if diff > 0 {
			gain += diff
		} else {
			loss -= diff
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	// Wilder's smoothing over the remainder of the series.
	for i := period + 1; i < len(candles); i++ {
		diff := candles[i].Close - candles[i-1].Close
		g, l := 0.0, 0.0
		if diff > 0 {
			g = diff
		} else {
			l = -diff
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}
