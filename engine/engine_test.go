package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/splitbot/broker/paper"
	"github.com/rustyeddy/splitbot/config"
	"github.com/rustyeddy/splitbot/indicators"
	"github.com/rustyeddy/splitbot/ledger"
	"github.com/rustyeddy/splitbot/market"
	"github.com/rustyeddy/splitbot/notify"
	"github.com/rustyeddy/splitbot/plan"
	"github.com/rustyeddy/splitbot/recon"
	"github.com/rustyeddy/splitbot/regime"
	"github.com/rustyeddy/splitbot/telemetry"
)

var cycleTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	engine *Engine
	book   *ledger.Book
	brk    *paper.Engine
}

func newFixture(t *testing.T, instruments ...market.InstrumentConfig) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Instruments = instruments
	for i := range cfg.Instruments {
		cfg.Instruments[i].ApplyDefaults()
	}

	book, err := ledger.NewBook(ledger.NewMemStore(), cfg.Strategy.TierCount, zerolog.Nop())
	require.NoError(t, err)

	brk := paper.NewEngine(1_000_000)
	eng := New(cfg, book, recon.New(book, zerolog.Nop()), brk,
		notify.Nop{}, telemetry.Nop(), AlwaysOpen{}, zerolog.Nop())

	return &fixture{engine: eng, book: book, brk: brk}
}

// oversoldSeries is a long slide ending in one decisive green bar: RSI well
// under 25 with a close 2%+ above the open.
func oversoldSeries() market.Series {
	s := make(market.Series, 0, 120)
	close := 130.0
	for i := 0; i < 119; i++ {
		close -= 0.5
		s = append(s, market.Candle{
			Time:   cycleTime.AddDate(0, 0, i-120),
			Open:   close + 0.5,
			High:   close + 0.5,
			Low:    close - 0.5,
			Close:  close,
			Volume: 1000,
		})
	}
	s = append(s, market.Candle{
		Time:   cycleTime.AddDate(0, 0, -1),
		Open:   70.4,
		High:   72.2,
		Low:    70.2,
		Close:  72.0,
		Volume: 1800,
	})
	return s
}

// risingSeries is a steady climb ending at 115, well above a 100 entry.
func risingSeries() market.Series {
	s := make(market.Series, 0, 120)
	close := 90.0
	for i := 0; i < 119; i++ {
		close += 0.2
		s = append(s, market.Candle{
			Time:   cycleTime.AddDate(0, 0, i-120),
			Open:   close - 0.2,
			High:   close + 0.3,
			Low:    close - 0.5,
			Close:  close,
			Volume: 1000,
		})
	}
	s = append(s, market.Candle{
		Time:   cycleTime.AddDate(0, 0, -1),
		Open:   113.8,
		High:   115.2,
		Low:    113.5,
		Close:  115,
		Volume: 1200,
	})
	return s
}

// slideSeries declines from a start price by step per bar for 120 bars.
func slideSeries(start, step float64) market.Series {
	s := make(market.Series, 0, 120)
	for i := 0; i < 120; i++ {
		close := start - step*float64(i)
		s = append(s, market.Candle{
			Time:   cycleTime.AddDate(0, 0, i-120),
			Open:   close + step,
			High:   close + 0.5,
			Low:    close - 0.5,
			Close:  close,
			Volume: 1000,
		})
	}
	return s
}

func seedTier1(t *testing.T, f *fixture, instrumentID string, price float64, amount int64) {
	t.Helper()
	_, err := f.book.GetOrCreate(instrumentID, instrumentID)
	require.NoError(t, err)
	require.NoError(t, f.book.MarkReady(instrumentID))
	require.NoError(t, f.book.ApplyFill(instrumentID, 1, price, amount, cycleTime.AddDate(0, 0, -30)))
}

func TestFirstEntryOversoldReversal(t *testing.T) {
	t.Parallel()
	inst := market.InstrumentConfig{ID: "A", Name: "Alpha", Weight: 0.3, Type: market.TypeValue}
	f := newFixture(t, inst)
	f.brk.SetSeries("A", oversoldSeries())

	// A fresh record sits out its first cycle.
	f.engine.RunCycle(context.Background(), cycleTime)
	assert.Empty(t, f.brk.Fills())
	assert.True(t, f.book.Get("A").Ready)
	assert.True(t, f.book.Get("A").Flat())

	f.engine.RunCycle(context.Background(), cycleTime.Add(10*time.Minute))

	fills := f.brk.Fills()
	require.Len(t, fills, 1)
	assert.Positive(t, fills[0].Amount)
	assert.InDelta(t, 72.0, fills[0].Price, 1e-9)

	rec := f.book.Get("A")
	t1 := rec.Tier(1)
	require.True(t, t1.Filled)
	assert.Equal(t, fills[0].Amount, t1.CurrentAmount)
	assert.InDelta(t, 72.0, t1.EntryPrice, 1e-9)
	assert.False(t, rec.Tier(2).Filled)
}

func TestRejectedOrderRetriedNextCycle(t *testing.T) {
	t.Parallel()
	inst := market.InstrumentConfig{ID: "A", Name: "Alpha", Weight: 0.3, Type: market.TypeValue}
	f := newFixture(t, inst)
	f.brk.SetSeries("A", oversoldSeries())

	f.engine.RunCycle(context.Background(), cycleTime) // warm up

	f.brk.RejectOrders = true
	f.engine.RunCycle(context.Background(), cycleTime.Add(10*time.Minute))
	assert.Empty(t, f.brk.Fills())
	assert.True(t, f.book.Get("A").Flat(), "rejection leaves the ledger untouched")

	f.brk.RejectOrders = false
	f.engine.RunCycle(context.Background(), cycleTime.Add(20*time.Minute))
	require.Len(t, f.brk.Fills(), 1)
	assert.True(t, f.book.Get("A").Tier(1).Filled)
}

func TestFirstEntryAdoptsExistingHolding(t *testing.T) {
	t.Parallel()
	inst := market.InstrumentConfig{ID: "A", Name: "Alpha", Weight: 0.3, Type: market.TypeValue}
	f := newFixture(t, inst)
	f.brk.SetSeries("A", oversoldSeries())
	f.brk.SetHolding("A", 40, 95)

	f.engine.RunCycle(context.Background(), cycleTime) // warm up
	f.engine.RunCycle(context.Background(), cycleTime.Add(10*time.Minute))

	assert.Empty(t, f.brk.Fills(), "adoption places no order")
	t1 := f.book.Get("A").Tier(1)
	require.True(t, t1.Filled)
	assert.Equal(t, int64(40), t1.CurrentAmount)
	assert.InDelta(t, 95, t1.EntryPrice, 1e-9, "broker average cost inherited")
}

func TestFullExitOnTarget(t *testing.T) {
	t.Parallel()
	inst := market.InstrumentConfig{ID: "A", Name: "Alpha", Weight: 0.3, Type: market.TypeValue}
	f := newFixture(t, inst)
	f.brk.SetSeries("A", risingSeries())
	f.brk.SetHolding("A", 10, 100)

	// Seed a ready ledger holding tier 1 at 100.
	_, err := f.book.GetOrCreate("A", "Alpha")
	require.NoError(t, err)
	require.NoError(t, f.book.MarkReady("A"))
	require.NoError(t, f.book.ApplyFill("A", 1, 100, 10, cycleTime.AddDate(0, 0, -30)))

	f.engine.RunCycle(context.Background(), cycleTime)

	fills := f.brk.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, int64(-10), fills[0].Amount, "non-growth exits the tier fully")
	assert.InDelta(t, 115, fills[0].Price, 1e-9)

	rec := f.book.Get("A")
	assert.False(t, rec.Tier(1).Filled)
	assert.True(t, rec.Flat())
	assert.InDelta(t, 150, rec.RealizedPnLTotal, 1e-9)
	require.Len(t, rec.Tier(1).SellHistory, 1)
	assert.False(t, rec.Tier(1).SellHistory[0].Manual)
}

func TestGrowthPartialExitOnTarget(t *testing.T) {
	t.Parallel()
	inst := market.InstrumentConfig{ID: "G", Name: "Growthco", Weight: 0.3, Type: market.TypeGrowth}
	f := newFixture(t, inst)
	f.brk.SetSeries("G", risingSeries())
	f.brk.SetHolding("G", 10, 100)

	_, err := f.book.GetOrCreate("G", "Growthco")
	require.NoError(t, err)
	require.NoError(t, f.book.MarkReady("G"))
	require.NoError(t, f.book.ApplyFill("G", 1, 100, 10, cycleTime.AddDate(0, 0, -30)))

	f.engine.RunCycle(context.Background(), cycleTime)

	fills := f.brk.Fills()
	require.Len(t, fills, 1)
	// Neutral regime, growth tag: partial-sell ratio 0.40 of ten shares.
	assert.Equal(t, int64(-4), fills[0].Amount)

	rec := f.book.Get("G")
	assert.True(t, rec.Tier(1).Filled)
	assert.Equal(t, int64(6), rec.Tier(1).CurrentAmount)
}

func TestInstrumentFailureIsolated(t *testing.T) {
	t.Parallel()
	bad := market.InstrumentConfig{ID: "BAD", Name: "Bad", Weight: 0.3, Type: market.TypeValue}
	good := market.InstrumentConfig{ID: "A", Name: "Alpha", Weight: 0.3, Type: market.TypeValue}
	f := newFixture(t, bad, good)
	// No series for BAD: its cycle is skipped without touching A.
	f.brk.SetSeries("A", oversoldSeries())

	f.engine.RunCycle(context.Background(), cycleTime)
	f.engine.RunCycle(context.Background(), cycleTime.Add(10*time.Minute))

	require.Len(t, f.brk.Fills(), 1)
	assert.Equal(t, "A", f.brk.Fills()[0].InstrumentID)
	assert.True(t, f.book.Get("A").Tier(1).Filled)
	assert.True(t, f.book.Get("BAD").Flat())
}

func TestTriggerBreachLaddersIntoNextTier(t *testing.T) {
	t.Parallel()
	inst := market.InstrumentConfig{ID: "A", Name: "Alpha", Weight: 0.3, Type: market.TypeValue}
	f := newFixture(t, inst)

	// A steady slide to 86.2 puts tier 1 (entry 100) 13.8% underwater, far
	// past the tier-2 trigger, with price under the short MA for the
	// even-tier confirmation.
	f.brk.SetSeries("A", slideSeries(110, 0.2))
	f.brk.SetHolding("A", 10, 100)
	seedTier1(t, f, "A", 100, 10)

	f.engine.RunCycle(context.Background(), cycleTime)

	fills := f.brk.Fills()
	require.Len(t, fills, 1)
	assert.Positive(t, fills[0].Amount)
	assert.InDelta(t, 86.2, fills[0].Price, 1e-9)

	rec := f.book.Get("A")
	t2 := rec.Tier(2)
	require.True(t, t2.Filled)
	assert.InDelta(t, 86.2, t2.EntryPrice, 1e-9)
	assert.False(t, rec.Tier(3).Filled, "tier 3 waits for its own breach against the new tier 2")
}

func TestLadderParityBlocksEvenTier(t *testing.T) {
	t.Parallel()
	inst := market.InstrumentConfig{ID: "A", Name: "Alpha", Weight: 0.3, Type: market.TypeValue}
	f := newFixture(t, inst)

	// Deep slide, then a five-bar bounce that lifts price above the short
	// MA: the trigger is breached but the even-tier confirmation fails.
	s := slideSeries(110, 0.26)[:115]
	for i := 0; i < 5; i++ {
		close := 81.4 + float64(i)
		s = append(s, market.Candle{
			Time:   cycleTime.AddDate(0, 0, i-5),
			Open:   close - 1,
			High:   close + 0.5,
			Low:    close - 1.2,
			Close:  close,
			Volume: 1000,
		})
	}
	f.brk.SetSeries("A", s)
	f.brk.SetHolding("A", 10, 100)
	seedTier1(t, f, "A", 100, 10)

	f.engine.RunCycle(context.Background(), cycleTime)

	assert.Empty(t, f.brk.Fills())
	assert.False(t, f.book.Get("A").Tier(2).Filled)
}

// Growth instruments may ladder into tiers <= 3 on a shallow dip inside an
// intact uptrend, without a trigger breach, at 70% of the planned size.
func TestGrowthSmallPullbackEntry(t *testing.T) {
	t.Parallel()
	inst := market.InstrumentConfig{ID: "G", Name: "Growthco", Weight: 0.3, Type: market.TypeGrowth}
	f := newFixture(t, inst)

	// Rise to a 115 spike high, then a ~2.7% dip: above the long MA, short
	// over mid over long, pullback between 2% and the 6% threshold.
	s := make(market.Series, 0, 120)
	for i := 0; i < 118; i++ {
		close := 90 + 0.2*float64(i)
		high := close + 0.3
		if i == 117 {
			high = 115
		}
		s = append(s, market.Candle{
			Time:   cycleTime.AddDate(0, 0, i-120),
			Open:   close - 0.2,
			High:   high,
			Low:    close - 0.5,
			Close:  close,
			Volume: 1000,
		})
	}
	s = append(s,
		market.Candle{Time: cycleTime.AddDate(0, 0, -2), Open: 113.4, High: 113.4, Low: 112.0, Close: 112.2, Volume: 1100},
		market.Candle{Time: cycleTime.AddDate(0, 0, -1), Open: 112.2, High: 112.4, Low: 111.4, Close: 111.9, Volume: 1100},
	)
	f.brk.SetSeries("G", s)
	f.brk.SetHolding("G", 20, 110.5)
	seedTier1(t, f, "G", 110, 10)
	require.NoError(t, f.book.ApplyFill("G", 2, 111, 10, cycleTime.AddDate(0, 0, -10)))

	equity, err := f.brk.GetEquity(context.Background())
	require.NoError(t, err)

	f.engine.RunCycle(context.Background(), cycleTime)

	fills := f.brk.Fills()
	require.Len(t, fills, 1)
	assert.InDelta(t, 111.9, fills[0].Price, 1e-9)

	// Reproduce the sizing: the plan's tier-3 invest, scaled to 70%.
	snap, err := indicators.BuildSnapshot("G", s, 5, 20, 0.6)
	require.NoError(t, err)
	state := regime.NeutralState()
	params := regime.ParamsFor(state, market.TypeGrowth)
	p, err := plan.Build(snap, params, inst, state, plan.Budget(equity, 0.5, 0.3), 5)
	require.NoError(t, err)

	invest := int64(math.Round(float64(p.Tier(3).InvestMoney) * 0.7))
	wantAmount := int64(float64(invest) / (snap.Price * buyLimitPremium))
	assert.Equal(t, wantAmount, fills[0].Amount)
	assert.Equal(t, wantAmount, f.book.Get("G").Tier(3).CurrentAmount)
	assert.False(t, f.book.Get("G").Tier(4).Filled, "shallow-dip entries stop at tier 3")
}

func TestCascadeThroughCycle(t *testing.T) {
	t.Parallel()
	inst := market.InstrumentConfig{ID: "A", Name: "Alpha", Weight: 0.3, Type: market.TypeValue}
	f := newFixture(t, inst)

	// All five tiers filled down the ladder, then a crash to 70 breaches
	// even the deepest tier's trigger.
	f.brk.SetSeries("A", slideSeries(105.7, 0.3))
	f.brk.SetHolding("A", 50, 90)
	seedTier1(t, f, "A", 100, 10)
	for tier := 2; tier <= 5; tier++ {
		price := 100 - float64(tier-1)*5
		require.NoError(t, f.book.ApplyFill("A", tier, price, 10, cycleTime.AddDate(0, 0, tier-30)))
	}

	f.engine.RunCycle(context.Background(), cycleTime)

	fills := f.brk.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, int64(-10), fills[0].Amount, "tier 2 lot sold at market")
	assert.InDelta(t, 70, fills[0].Price, 1e-9)

	rec := f.book.Get("A")
	assert.InDelta(t, 100, rec.Tier(1).EntryPrice, 1e-9)
	assert.InDelta(t, 90, rec.Tier(2).EntryPrice, 1e-9, "old tier 3 shifted down")
	assert.InDelta(t, 85, rec.Tier(3).EntryPrice, 1e-9)
	assert.InDelta(t, 80, rec.Tier(4).EntryPrice, 1e-9)

	t5 := rec.Tier(5)
	assert.False(t, t5.Filled)
	require.Len(t, t5.SellHistory, 1)
	assert.InDelta(t, (70.0-95.0)*10, t5.SellHistory[0].Profit, 1e-9)
	assert.InDelta(t, (70.0-95.0)*10, rec.RealizedPnLTotal, 1e-9)
	assert.Equal(t, int64(40), rec.TotalAmount())
}

func TestReconciliationRunsBeforeDecision(t *testing.T) {
	t.Parallel()
	inst := market.InstrumentConfig{ID: "A", Name: "Alpha", Weight: 0.3, Type: market.TypeValue}
	f := newFixture(t, inst)
	f.brk.SetSeries("A", risingSeries())
	f.brk.SetHolding("A", 10, 100)

	// Ledger believes 14 shares; the broker reports 10. The deficit drains
	// before the exit runs, so the sell never oversells.
	_, err := f.book.GetOrCreate("A", "Alpha")
	require.NoError(t, err)
	require.NoError(t, f.book.MarkReady("A"))
	require.NoError(t, f.book.ApplyFill("A", 1, 100, 14, cycleTime.AddDate(0, 0, -30)))

	f.engine.RunCycle(context.Background(), cycleTime)

	rec := f.book.Get("A")
	history := rec.Tier(1).SellHistory
	require.Len(t, history, 2)
	assert.True(t, history[0].Manual)
	assert.Equal(t, int64(4), history[0].Amount)
	assert.False(t, history[1].Manual)
	assert.Equal(t, int64(10), history[1].Amount)
	assert.True(t, rec.Flat())
}
