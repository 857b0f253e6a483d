package indicators

import (
	"testing"

	"github.com/rustyeddy/splitbot/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCandles() market.Series {
	return market.Series{
		{Open: 100, High: 105, Low: 99, Close: 102, Volume: 1000},
		{Open: 102, High: 107, Low: 101, Close: 105, Volume: 1100},
		{Open: 105, High: 108, Low: 104, Close: 106, Volume: 900},
		{Open: 106, High: 110, Low: 105, Close: 108, Volume: 1200},
		{Open: 108, High: 112, Low: 107, Close: 110, Volume: 1000},
		{Open: 110, High: 113, Low: 109, Close: 111, Volume: 1300},
		{Open: 111, High: 115, Low: 110, Close: 113, Volume: 1250},
		{Open: 113, High: 116, Low: 112, Close: 114, Volume: 1400},
		{Open: 114, High: 118, Low: 113, Close: 116, Volume: 1350},
		{Open: 116, High: 120, Low: 115, Close: 118, Volume: 1500},
	}
}

func TestSMA(t *testing.T) {
	t.Parallel()
	candles := createTestCandles()

	ma, err := SMA(candles, 5)
	assert.NoError(t, err)
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma, 0.001)
}

func TestSMAShortSeries(t *testing.T) {
	t.Parallel()
	_, err := SMA(createTestCandles(), 20)
	assert.ErrorIs(t, err, market.ErrShortSeries)
}

func TestEMA(t *testing.T) {
	t.Parallel()
	ema, err := EMA(createTestCandles(), 5)
	assert.NoError(t, err)
	assert.Greater(t, ema, 0.0)
}

func TestRSIAllGains(t *testing.T) {
	t.Parallel()
	// Monotonically rising closes: no losses, RSI pegs at 100.
	s := make(market.Series, 20)
	for i := range s {
		s[i].Close = 100 + float64(i)
	}
	rsi, err := RSI(s, 14)
	assert.NoError(t, err)
	assert.InDelta(t, 100, rsi, 0.001)
}

func TestRSIRange(t *testing.T) {
	t.Parallel()
	s := make(market.Series, 30)
	for i := range s {
		// Alternating up/down walk.
		if i%2 == 0 {
			s[i].Close = 100 + float64(i%5)
		} else {
			s[i].Close = 98 + float64(i%3)
		}
	}
	rsi, err := RSI(s, 14)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, rsi, 0.0)
	assert.LessOrEqual(t, rsi, 100.0)
}

func TestATR(t *testing.T) {
	t.Parallel()
	candles := market.Series{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 13, Low: 11, Close: 12},
	}
	atr, err := ATR(candles, 3)
	assert.NoError(t, err)
	assert.InDelta(t, 2.0, atr, 0.001)
}

func TestReturn(t *testing.T) {
	t.Parallel()
	s := market.Series{{Close: 100}, {Close: 105}, {Close: 110}}
	r, err := Return(s, 2)
	assert.NoError(t, err)
	assert.InDelta(t, 0.10, r, 0.0001)
}

func TestVolumeRatio(t *testing.T) {
	t.Parallel()
	s := market.Series{
		{Volume: 100}, {Volume: 100}, {Volume: 100}, {Volume: 200},
	}
	vr, err := VolumeRatio(s, 3)
	assert.NoError(t, err)
	assert.InDelta(t, 2.0, vr, 0.0001)
}

// flatSeries returns n candles at a constant price with small wiggle so
// indicators have non-zero ranges.
func flatSeries(n int, price float64) market.Series {
	s := make(market.Series, n)
	for i := range s {
		s[i] = market.Candle{
			Open:   price,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1000,
		}
	}
	return s
}

func TestBuildSnapshotShortSeries(t *testing.T) {
	t.Parallel()
	_, err := BuildSnapshot("A", flatSeries(30, 100), 5, 20, 0.5)
	assert.ErrorIs(t, err, market.ErrShortSeries)
}

func TestBuildSnapshotFlat(t *testing.T) {
	t.Parallel()
	snap, err := BuildSnapshot("A", flatSeries(80, 100), 5, 20, 0.5)
	require.NoError(t, err)

	assert.Equal(t, "A", snap.InstrumentID)
	assert.InDelta(t, 100, snap.Price, 0.001)
	assert.InDelta(t, 100, snap.MAShort, 0.001)
	assert.InDelta(t, 100, snap.MALong, 0.001)
	assert.Equal(t, market.TrendFlat, snap.Trend)
	assert.False(t, snap.RapidRise)
	// Band is [99,101]; price 100 sits in the middle step.
	assert.GreaterOrEqual(t, snap.Step, 1)
	assert.LessOrEqual(t, snap.Step, 5)
	assert.Greater(t, snap.GapRate, 0.0)
	assert.InDelta(t, snap.GapRate/5, snap.TargetRate, 1e-9)
	assert.InDelta(t, -snap.GapRate/5, snap.TriggerRate, 1e-9)
}

func TestBuildSnapshotPullback(t *testing.T) {
	t.Parallel()
	s := flatSeries(80, 100)
	// Spike to 120 then fall back to 100: 16.7% off the 30-period high.
	s[70].High = 120
	snap, err := BuildSnapshot("A", s, 5, 20, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, (120.0-100.0)/120.0*100, snap.PullbackPct, 0.001)
}

func TestBuildSnapshotStepBottomAndTop(t *testing.T) {
	t.Parallel()

	// Rising series: the latest close is the series high, so step maxes out.
	up := make(market.Series, 80)
	for i := range up {
		p := 100 + float64(i)
		up[i] = market.Candle{Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000}
	}
	snap, err := BuildSnapshot("A", up, 5, 20, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Step)
	assert.Equal(t, market.TrendUp, snap.Trend)

	// Falling series lands at step 1.
	down := make(market.Series, 80)
	for i := range down {
		p := 200 - float64(i)
		down[i] = market.Candle{Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000}
	}
	snap, err = BuildSnapshot("A", down, 5, 20, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Step)
	assert.Equal(t, market.TrendDown, snap.Trend)
}

func TestBuildSnapshotRapidRise(t *testing.T) {
	t.Parallel()
	s := flatSeries(80, 100)
	s[79] = market.Candle{Open: 100, High: 108, Low: 100, Close: 107, Volume: 5000}
	snap, err := BuildSnapshot("A", s, 5, 20, 0.5)
	require.NoError(t, err)
	assert.True(t, snap.RapidRise)
}
