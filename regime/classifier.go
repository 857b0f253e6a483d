package regime

import (
	"github.com/rustyeddy/splitbot/indicators"
	"github.com/rustyeddy/splitbot/market"
)

// minClassifyLookback covers the 60-period MA plus one bar of history for
// the 20-period return and volume ratio.
const minClassifyLookback = 61

// Classify scores a broad-market candle series and maps it to a regime
// bucket. It never fails: missing or short data classifies as neutral with
// score 0 so downstream parameterization degrades instead of aborting.
func Classify(series market.Series) State {
	if len(series) < minClassifyLookback {
		return NeutralState()
	}

	ma5, err5 := indicators.SMA(series, 5)
	ma10, err10 := indicators.SMA(series, 10)
	ma20, err20 := indicators.SMA(series, 20)
	ma60, err60 := indicators.SMA(series, 60)
	if err5 != nil || err10 != nil || err20 != nil || err60 != nil {
		return NeutralState()
	}

	r5, _ := indicators.Return(series, 5)
	r10, _ := indicators.Return(series, 10)
	r20, _ := indicators.Return(series, 20)
	rsi, err := indicators.RSI(series, 14)
	if err != nil {
		return NeutralState()
	}
	volRatio, _ := indicators.VolumeRatio(series, 20)

	price := series[len(series)-1].Close

	score := maAlignmentScore(price, ma5, ma10, ma20, ma60) +
		momentumScore(r5, r10, r20) +
		rsiZoneScore(rsi) +
		volumeScore(volRatio)

	return State{Regime: bucket(score), Score: score}
}

// maAlignmentScore awards 0-40 for a bullish moving-average stack.
func maAlignmentScore(price, ma5, ma10, ma20, ma60 float64) float64 {
	s := 0.0
	if price > ma5 {
		s += 10
	}
	if ma5 > ma10 {
		s += 10
	}
	if ma10 > ma20 {
		s += 10
	}
	if ma20 > ma60 {
		s += 10
	}
	return s
}

// momentumScore awards 0-30 for positive multi-horizon returns, with the
// full 10 per horizon requiring a 2%+ move.
func momentumScore(r5, r10, r20 float64) float64 {
	s := 0.0
	for _, r := range []float64{r5, r10, r20} {
		switch {
		case r >= 0.02:
			s += 10
		case r > 0:
			s += 5
		}
	}
	return s
}

// rsiZoneScore awards -5..+15: healthy momentum zones score, overbought and
// oversold extremes penalize.
func rsiZoneScore(rsi float64) float64 {
	switch {
	case rsi >= 80:
		return -5
	case rsi >= 65:
		return 10
	case rsi >= 50:
		return 15
	case rsi >= 40:
		return 5
	case rsi >= 30:
		return 0
	default:
		return -5
	}
}

// volumeScore awards 0-15 for expanding volume.
func volumeScore(ratio float64) float64 {
	switch {
	case ratio >= 1.5:
		return 15
	case ratio >= 1.2:
		return 10
	case ratio >= 1.0:
		return 5
	default:
		return 0
	}
}

func bucket(score float64) Regime {
	switch {
	case score >= 80:
		return VeryStrongUptrend
	case score >= 65:
		return StrongUptrend
	case score >= 50:
		return Uptrend
	case score >= 35:
		return Neutral
	case score >= 20:
		return Downtrend
	default:
		return StrongDowntrend
	}
}
