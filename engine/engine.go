// Package engine runs the per-cycle decision state machine over the tier
// ledger: reconcile against brokerage truth, then evaluate first entries,
// exits, trigger-breach laddering and the deep-drawdown cascade, instrument
// by instrument, each in its own failure boundary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/splitbot/broker"
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

// buyLimitPremium places buy limits ~1% above market so they fill
// immediately without chasing.
const buyLimitPremium = 1.01

// sellLimitDiscount places sell limits just under market for the same
// reason.
const sellLimitDiscount = 0.995

type Engine struct {
	cfg      *config.Config
	book     *ledger.Book
	recon    *recon.Engine
	brk      broker.Broker
	notifier notify.Notifier
	metrics  *telemetry.Metrics
	clock    MarketClock
	log      zerolog.Logger
}

func New(cfg *config.Config, book *ledger.Book, rc *recon.Engine, brk broker.Broker, notifier notify.Notifier, metrics *telemetry.Metrics, clock MarketClock, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		book:     book,
		recon:    rc,
		brk:      brk,
		notifier: notifier,
		metrics:  metrics,
		clock:    clock,
		log:      log,
	}
}

// Run polls until ctx ends: one full cycle, then sleep. While the market is
// closed it sleeps the long interval instead. Cycle errors are logged and
// never stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	interval, err := e.cfg.Schedule.ParseInterval()
	if err != nil {
		return err
	}
	closedSleep, err := e.cfg.Schedule.ParseClosedSleep()
	if err != nil {
		return err
	}

	for {
		now := time.Now()
		sleep := closedSleep
		if e.clock.Open(now) {
			e.RunCycle(ctx, now)
			sleep = interval
		} else {
			e.log.Debug().Time("now", now).Msg("market closed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// RunCycle executes one full decision cycle: classify the broad market,
// fetch equity, then process every instrument strictly sequentially. A
// failure in one instrument never aborts the others.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) {
	e.metrics.CyclesTotal.Inc()

	state := e.classify(ctx)

	equity, err := e.brk.GetEquity(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("equity query failed, skipping cycle")
		return
	}

	for _, inst := range e.cfg.Instruments {
		if err := e.processInstrument(ctx, inst, state, equity, now); err != nil {
			e.metrics.InstrumentErrors.WithLabelValues(inst.ID).Inc()
			e.log.Error().Err(err).Str("instrument", inst.ID).Msg("instrument cycle failed")
		}
	}
}

// classify fetches the broad-market series and classifies the regime,
// failing closed to neutral when data is unavailable.
func (e *Engine) classify(ctx context.Context) regime.State {
	series, err := e.brk.GetBroadMarketSeries(ctx, e.cfg.Account.IndexID, e.cfg.Strategy.Lookback)
	if err != nil {
		e.log.Warn().Err(err).Msg("broad market series unavailable, neutral regime")
		return regime.NeutralState()
	}
	state := regime.Classify(series)
	e.log.Debug().Stringer("regime", state.Regime).Float64("score", state.Score).Msg("regime classified")
	return state
}

// processInstrument is the per-instrument failure boundary. Panics inside
// are converted to errors so one bad instrument cannot take the cycle down.
func (e *Engine) processInstrument(ctx context.Context, inst market.InstrumentConfig, state regime.State, equity float64, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	log := e.log.With().Str("instrument", inst.ID).Logger()

	rec, err := e.book.GetOrCreate(inst.ID, inst.Name)
	if err != nil {
		return err
	}
	if !rec.Ready {
		// Freshly created records sit out their first cycle.
		if err := e.book.MarkReady(inst.ID); err != nil {
			return err
		}
		log.Info().Msg("ledger record warming up, ready next cycle")
		return nil
	}

	series, err := e.brk.GetIndicatorSeries(ctx, inst.ID, e.cfg.Strategy.Lookback)
	if err != nil {
		log.Warn().Err(err).Msg("indicator series unavailable, skipping")
		return nil
	}
	snap, err := indicators.BuildSnapshot(inst.ID, series, e.cfg.Strategy.TierCount,
		e.cfg.Strategy.RecentPeriod, e.cfg.Strategy.RecentWeight)
	if err != nil {
		if errors.Is(err, market.ErrShortSeries) {
			log.Warn().Err(err).Msg("series too short, skipping")
			return nil
		}
		return err
	}

	params := regime.ParamsFor(state, inst.Type)
	budget := plan.Budget(equity, e.cfg.Account.SleeveRatio, inst.Weight)
	tierPlan, err := plan.Build(snap, params, inst, state, budget, e.cfg.Strategy.TierCount)
	if err != nil {
		return err
	}

	holding, err := e.brk.GetHolding(ctx, inst.ID)
	if err != nil {
		log.Warn().Err(err).Msg("holding query failed, skipping")
		return nil
	}

	// Reconcile before any decision so the state machine starts from broker
	// truth.
	adj, err := e.recon.Reconcile(rec, holding, now)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if adj.Delta != 0 {
		kind := "surplus"
		if adj.Delta < 0 {
			kind = "deficit"
		}
		e.metrics.ReconAdjustments.WithLabelValues(inst.ID, kind).Inc()
		e.notifier.Notify(fmt.Sprintf("[%s] reconciled %s of %d shares", inst.ID, kind, abs64(adj.Delta)))
		rec = e.book.Get(inst.ID)
	}

	if err := e.decide(ctx, log, inst, rec, snap, params, state, tierPlan, holding, now); err != nil {
		return err
	}

	e.metrics.RealizedPnL.WithLabelValues(inst.ID).Set(e.book.Get(inst.ID).RealizedPnLTotal)
	return nil
}

// decide walks the tier state machine for one instrument: first entry,
// exits, trigger-breach laddering, then the deep-drawdown cascade.
func (e *Engine) decide(ctx context.Context, log zerolog.Logger, inst market.InstrumentConfig, rec *ledger.Record, snap *market.Snapshot, params regime.Params, state regime.State, tierPlan *plan.Plan, holding market.Holding, now time.Time) error {
	// 1. First entry.
	if t1 := rec.Tier(1); t1 != nil && !t1.Filled {
		if ok, reason := firstEntrySignal(snap, params, state); ok {
			if err := e.enterFirst(ctx, log, inst, snap, tierPlan, holding, reason, now); err != nil {
				return err
			}
			rec = e.book.Get(inst.ID)
		}
	}

	// 2. Exits on target.
	for tier := 1; tier <= len(rec.Tiers); tier++ {
		t := rec.Tier(tier)
		if !t.Filled || t.EntryPrice <= 0 {
			continue
		}
		unrealizedRate := snap.Price/t.EntryPrice - 1
		if unrealizedRate < tierPlan.Tier(tier).TargetRate {
			continue
		}
		unrealized := (snap.Price - t.EntryPrice) * float64(t.CurrentAmount)
		if rec.RealizedPnLTotal+unrealized <= 0 {
			continue
		}
		if err := e.exitTier(ctx, log, inst, rec, snap, params, tier, now); err != nil {
			return err
		}
		rec = e.book.Get(inst.ID)
	}

	// 3. Additional tiers on trigger breach (or the growth small-pullback
	// path for low tiers).
	for tier := 2; tier <= len(rec.Tiers); tier++ {
		t := rec.Tier(tier)
		pred := rec.Tier(tier - 1)
		if t.Filled || !pred.Filled || pred.EntryPrice <= 0 {
			continue
		}
		predRate := snap.Price/pred.EntryPrice - 1

		invest := tierPlan.Tier(tier).InvestMoney
		triggered := predRate <= tierPlan.Tier(tier).TriggerRate && additionalEntryConfirmed(snap, tier)
		if !triggered && inst.IsGrowth() && tier <= 3 && smallPullbackSignal(snap, params) {
			triggered = true
			invest = int64(math.Round(float64(invest) * 0.7))
		}
		if !triggered {
			continue
		}
		if err := e.enterTier(ctx, log, inst, snap, tier, invest, "trigger", now); err != nil {
			return err
		}
		rec = e.book.Get(inst.ID)
	}

	// 4. Deep-drawdown cascade once everything is filled and the deepest
	// tier itself breaches its trigger.
	if rec.AllFilled() {
		n := len(rec.Tiers)
		tn := rec.Tier(n)
		if tn.EntryPrice > 0 && snap.Price/tn.EntryPrice-1 <= tierPlan.Tier(n).TriggerRate {
			if err := e.cascade(ctx, log, inst, rec, snap, now); err != nil {
				return err
			}
		}
	}
	return nil
}

// enterFirst opens tier 1: adopting an existing brokerage holding when one
// is already there, buying per plan otherwise.
func (e *Engine) enterFirst(ctx context.Context, log zerolog.Logger, inst market.InstrumentConfig, snap *market.Snapshot, tierPlan *plan.Plan, holding market.Holding, reason string, now time.Time) error {
	if holding.Amount > 0 {
		// Bought outside the bot; inherit the broker's price and size.
		if err := e.book.ApplyFill(inst.ID, 1, holding.AvgPrice, holding.Amount, now); err != nil {
			return err
		}
		log.Info().Str("reason", reason).Int64("amount", holding.Amount).
			Float64("price", holding.AvgPrice).Msg("adopted existing holding as tier 1")
		e.notifier.Notify(fmt.Sprintf("[%s] adopted %d shares as tier 1 (%s)", inst.ID, holding.Amount, reason))
		return nil
	}

	return e.enterTier(ctx, log, inst, snap, 1, tierPlan.Tier(1).InvestMoney, reason, now)
}

// enterTier buys into one tier at a limit just above market and records the
// fill. A brokerage rejection skips the transition; it is retried next
// cycle.
func (e *Engine) enterTier(ctx context.Context, log zerolog.Logger, inst market.InstrumentConfig, snap *market.Snapshot, tier int, investMoney int64, reason string, now time.Time) error {
	if investMoney <= 0 || snap.Price <= 0 {
		return nil
	}
	limit := snap.Price * buyLimitPremium
	amount := int64(float64(investMoney) / limit)
	if amount <= 0 {
		log.Debug().Int("tier", tier).Int64("invest", investMoney).Msg("invest too small for one share")
		return nil
	}

	res, err := e.brk.SubmitBuy(ctx, inst.ID, amount, limit)
	if err != nil {
		e.metrics.OrdersRejected.WithLabelValues(inst.ID, "buy").Inc()
		if errors.Is(err, broker.ErrRejected) {
			log.Warn().Err(err).Int("tier", tier).Msg("buy rejected, retrying next cycle")
			return nil
		}
		return err
	}
	e.metrics.OrdersSubmitted.WithLabelValues(inst.ID, "buy").Inc()

	if err := e.book.ApplyFill(inst.ID, tier, res.Price, res.Amount, now); err != nil {
		return err
	}
	log.Info().Int("tier", tier).Str("reason", reason).
		Int64("amount", res.Amount).Float64("price", res.Price).Msg("tier filled")
	e.notifier.Notify(fmt.Sprintf("[%s] tier %d buy: %d @ %.2f (%s)", inst.ID, tier, res.Amount, res.Price, reason))
	return nil
}

// exitTier sells from one tier on target: growth instruments scale out by
// the partial-sell ratio, everything else exits the tier fully.
func (e *Engine) exitTier(ctx context.Context, log zerolog.Logger, inst market.InstrumentConfig, rec *ledger.Record, snap *market.Snapshot, params regime.Params, tier int, now time.Time) error {
	t := rec.Tier(tier)

	sellAmount := t.CurrentAmount
	if inst.IsGrowth() {
		sellAmount = int64(math.Floor(float64(t.CurrentAmount) * params.PartialSellRatio))
	}
	// Never sell through the minimum-holding floor.
	if floorRoom := rec.TotalAmount() - inst.MinHolding; sellAmount > floorRoom {
		sellAmount = floorRoom
	}
	if sellAmount <= 0 {
		return nil
	}

	limit := snap.Price * sellLimitDiscount
	res, err := e.brk.SubmitSell(ctx, inst.ID, sellAmount, limit)
	if err != nil {
		e.metrics.OrdersRejected.WithLabelValues(inst.ID, "sell").Inc()
		if errors.Is(err, broker.ErrRejected) {
			log.Warn().Err(err).Int("tier", tier).Msg("sell rejected, retrying next cycle")
			return nil
		}
		return err
	}
	e.metrics.OrdersSubmitted.WithLabelValues(inst.ID, "sell").Inc()

	profit := (res.Price - t.EntryPrice) * float64(res.Amount)
	if err := e.book.ApplyExit(inst.ID, tier, res.Amount, res.Price, profit, now, false); err != nil {
		return err
	}

	kind := "full exit"
	if inst.IsGrowth() && res.Amount < t.CurrentAmount {
		kind = "partial exit"
	}
	log.Info().Int("tier", tier).Str("kind", kind).
		Int64("amount", res.Amount).Float64("price", res.Price).Float64("profit", profit).Msg("tier exit")
	e.notifier.Notify(fmt.Sprintf("[%s] tier %d %s: %d @ %.2f, profit %.0f", inst.ID, tier, kind, res.Amount, res.Price, profit))
	return nil
}

// cascade runs the deep-drawdown rebalance: sell tier 2 fully at market,
// then shift tiers 3..N down and clear slot N.
func (e *Engine) cascade(ctx context.Context, log zerolog.Logger, inst market.InstrumentConfig, rec *ledger.Record, snap *market.Snapshot, now time.Time) error {
	t2 := rec.Tier(2)
	limit := snap.Price * sellLimitDiscount

	res, err := e.brk.SubmitSell(ctx, inst.ID, t2.CurrentAmount, limit)
	if err != nil {
		e.metrics.OrdersRejected.WithLabelValues(inst.ID, "sell").Inc()
		if errors.Is(err, broker.ErrRejected) {
			log.Warn().Err(err).Msg("cascade sell rejected, retrying next cycle")
			return nil
		}
		return err
	}
	e.metrics.OrdersSubmitted.WithLabelValues(inst.ID, "sell").Inc()

	if err := e.book.RebalanceAfterDeepDrawdown(inst.ID, res.Price, now); err != nil {
		return err
	}
	log.Info().Int64("amount", res.Amount).Float64("price", res.Price).Msg("deep drawdown cascade executed")
	e.notifier.Notify(fmt.Sprintf("[%s] deep drawdown cascade: dropped tier 2 (%d @ %.2f)", inst.ID, res.Amount, res.Price))
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
