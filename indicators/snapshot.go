package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/splitbot/market"
)

// Moving-average periods used by the snapshot builder.
const (
	shortPeriod = 5
	midPeriod   = 20
	longPeriod  = 60

	rsiPeriod      = 14
	atrPeriod      = 14
	pullbackWindow = 30
)

// MinSnapshotLookback is the smallest series length BuildSnapshot accepts:
// longPeriod plus one extra candle for the prior-bar moving averages.
const MinSnapshotLookback = longPeriod + 1

// BuildSnapshot assembles the per-cycle technical snapshot for one
// instrument from its candle series. recentPeriod and recentWeight blend the
// recent window into the full-lookback extrema; tierCount fixes the step
// banding. Series shorter than MinSnapshotLookback return
// market.ErrShortSeries.
func BuildSnapshot(id string, series market.Series, tierCount, recentPeriod int, recentWeight float64) (*market.Snapshot, error) {
	if tierCount < 2 {
		return nil, fmt.Errorf("tierCount must be at least 2, got %d", tierCount)
	}
	if len(series) < MinSnapshotLookback {
		return nil, fmt.Errorf("%w: need %d, got %d", market.ErrShortSeries, MinSnapshotLookback, len(series))
	}
	if recentPeriod <= 0 || recentPeriod > len(series) {
		recentPeriod = midPeriod
	}
	recentWeight = clamp(recentWeight, 0, 1)

	last := series[len(series)-1]
	prev := series[len(series)-2]
	prior := series[:len(series)-1]

	snap := &market.Snapshot{
		InstrumentID: id,
		Price:        last.Close,
		PrevPrice:    prev.Close,
		Open:         last.Open,
	}

	var err error
	if snap.MAShort, err = SMA(series, shortPeriod); err != nil {
		return nil, err
	}
	if snap.MAMid, err = SMA(series, midPeriod); err != nil {
		return nil, err
	}
	if snap.MALong, err = SMA(series, longPeriod); err != nil {
		return nil, err
	}
	if snap.PrevMAShort, err = SMA(prior, shortPeriod); err != nil {
		return nil, err
	}
	if snap.PrevMAMid, err = SMA(prior, midPeriod); err != nil {
		return nil, err
	}
	if snap.PrevMALong, err = SMA(prior, longPeriod); err != nil {
		return nil, err
	}
	if snap.RSI, err = RSI(series, rsiPeriod); err != nil {
		return nil, err
	}
	if snap.ATR, err = ATR(series, atrPeriod); err != nil {
		return nil, err
	}

	// Blend the full-lookback extrema with the recent window so the band
	// tracks the current price neighborhood instead of a stale 6-month range.
	fullMax := series.HighestHigh(len(series))
	fullMin := series.LowestLow(len(series))
	recentMax := series.HighestHigh(recentPeriod)
	recentMin := series.LowestLow(recentPeriod)
	snap.WeightedMax = fullMax*(1-recentWeight) + recentMax*recentWeight
	snap.WeightedMin = fullMin*(1-recentWeight) + recentMin*recentWeight

	if high30 := series.HighestHigh(pullbackWindow); high30 > 0 {
		snap.PullbackPct = math.Max(0, (high30-last.Close)/high30*100)
	}

	if snap.WeightedMin > 0 && snap.WeightedMax > snap.WeightedMin {
		snap.GapRate = (snap.WeightedMax - snap.WeightedMin) / snap.WeightedMin
	}
	snap.TargetRate = snap.GapRate / float64(tierCount)
	snap.TriggerRate = -snap.GapRate / float64(tierCount)

	snap.Step = priceStep(last.Close, snap.WeightedMin, snap.WeightedMax, tierCount)
	snap.Trend = classifyTrend(snap)
	snap.RapidRise = rapidRise(snap)

	return snap, nil
}

// priceStep locates price inside the [min,max] band split into tierCount
// equal steps: 1 at the bottom, tierCount at the top.
func priceStep(price, min, max float64, tierCount int) int {
	if max <= min {
		return 1
	}
	band := (max - min) / float64(tierCount)
	step := 1 + int((price-min)/band)
	if step < 1 {
		step = 1
	}
	if step > tierCount {
		step = tierCount
	}
	return step
}

func classifyTrend(s *market.Snapshot) market.Trend {
	switch {
	case s.MAShort > s.MAMid && s.MAMid > s.MALong:
		return market.TrendUp
	case s.MAShort < s.MAMid && s.MAMid < s.MALong:
		return market.TrendDown
	default:
		return market.TrendFlat
	}
}

// rapidRise flags a move that should pause fresh entries: a one-bar jump of
// 5%+ or price stretched 8%+ above the short MA.
func rapidRise(s *market.Snapshot) bool {
	if s.PrevPrice > 0 && s.Price/s.PrevPrice-1 >= 0.05 {
		return true
	}
	return s.MAShort > 0 && s.Price/s.MAShort-1 >= 0.08
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
